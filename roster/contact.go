package roster

import (
	"slices"
	"strings"

	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// Subscription is the presence subscription state of a roster item.
type Subscription uint8

const (
	SubscriptionNone Subscription = iota
	SubscriptionTo
	SubscriptionFrom
	SubscriptionBoth
	// SubscriptionRemove only appears in roster pushes.
	SubscriptionRemove
)

var subscriptionNames = []string{"none", "to", "from", "both", "remove"}

// String returns the attribute value of the subscription.
func (s Subscription) String() string {
	if int(s) < len(subscriptionNames) {
		return subscriptionNames[s]
	}
	return "none"
}

// ParseSubscription maps a subscription attribute to a Subscription.
// Unknown values map to SubscriptionNone.
func ParseSubscription(v string) Subscription {
	if i := slices.Index(subscriptionNames, strings.ToLower(v)); i >= 0 {
		return Subscription(i)
	}
	return SubscriptionNone
}

// Contact is a roster entry.
type Contact struct {
	JID          string
	Name         string
	Subscription Subscription
	Group        string
}

// DisplayName returns the contact's name, or its address if unnamed.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.JID
}

// ParseItems extracts the contacts from a jabber:iq:roster query element.
// Items without a jid are skipped.
func ParseItems(query *stanza.Element) []Contact {
	if query == nil {
		return nil
	}
	var out []Contact
	for _, item := range query.Children {
		if item.Name() != "item" {
			continue
		}
		jid := item.Attr("jid")
		if jid == "" {
			logrus.WithFields(logrus.Fields{
				"function": "ParseItems",
			}).Warn("Skipping roster item without jid")
			continue
		}
		out = append(out, Contact{
			JID:          stanza.Bare(jid),
			Name:         item.Attr("name"),
			Subscription: ParseSubscription(item.Attr("subscription")),
			Group:        item.ChildText("group"),
		})
	}
	return out
}

// Roster is the contact list. It is owned by the protocol goroutine.
type Roster struct {
	contacts []Contact
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{}
}

// Replace swaps the whole contact list for contacts.
func (r *Roster) Replace(contacts []Contact) {
	r.contacts = slices.Clone(contacts)
	logrus.WithFields(logrus.Fields{
		"function": "Replace",
		"count":    len(r.contacts),
	}).Debug("Roster replaced")
}

// Apply merges pushed items: items with subscription remove are deleted,
// others are added or updated in place.
func (r *Roster) Apply(items []Contact) {
	for _, item := range items {
		i := r.index(item.JID)
		switch {
		case item.Subscription == SubscriptionRemove:
			if i >= 0 {
				r.contacts = slices.Delete(r.contacts, i, i+1)
			}
		case i >= 0:
			r.contacts[i] = item
		default:
			r.contacts = append(r.contacts, item)
		}
	}
}

// Contacts returns a copy of the contact list.
func (r *Roster) Contacts() []Contact {
	return slices.Clone(r.contacts)
}

// Contact looks up the contact for the bare form of addr.
func (r *Roster) Contact(addr string) (Contact, bool) {
	if i := r.index(addr); i >= 0 {
		return r.contacts[i], true
	}
	return Contact{}, false
}

// Len returns the number of contacts.
func (r *Roster) Len() int {
	return len(r.contacts)
}

func (r *Roster) index(addr string) int {
	bare := stanza.Bare(addr)
	return slices.IndexFunc(r.contacts, func(c Contact) bool {
		return strings.EqualFold(c.JID, bare)
	})
}
