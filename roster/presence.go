package roster

import (
	"strings"
	"time"

	"github.com/opd-ai/xmppotr/stanza"
)

// Status is the availability of a contact resource, ordered from least to
// most relevant.
type Status uint8

const (
	StatusOffline Status = iota
	StatusExtendedAway
	StatusBusy
	StatusAway
	StatusOnline
	StatusChat
)

// ParseStatus maps a presence type and show value to a Status.
func ParseStatus(typ, show string) Status {
	if typ == "unavailable" {
		return StatusOffline
	}
	switch strings.ToLower(show) {
	case "chat":
		return StatusChat
	case "away":
		return StatusAway
	case "dnd":
		return StatusBusy
	case "xa":
		return StatusExtendedAway
	default:
		return StatusOnline
	}
}

// Show returns the show element value of the status.
func (s Status) Show() string {
	switch s {
	case StatusChat:
		return "chat"
	case StatusAway:
		return "away"
	case StatusBusy:
		return "dnd"
	case StatusExtendedAway:
		return "xa"
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	default:
		return s.Show()
	}
}

// ResourcePresence is the last presence seen from one resource.
type ResourcePresence struct {
	Resource string
	Status   Status
	Message  string
	Updated  time.Time
}

// Presence aggregates resource presence per contact. It is owned by the
// protocol goroutine.
type Presence struct {
	contacts     map[string][]ResourcePresence
	timeProvider TimeProvider
}

// NewPresence creates an empty presence table.
func NewPresence() *Presence {
	return NewPresenceWithTimeProvider(defaultTimeProvider)
}

// NewPresenceWithTimeProvider creates a presence table using tp for
// timestamps.
func NewPresenceWithTimeProvider(tp TimeProvider) *Presence {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &Presence{
		contacts:     make(map[string][]ResourcePresence),
		timeProvider: tp,
	}
}

// Update records a presence stanza's content for from. Unavailable presence
// removes the resource.
func (p *Presence) Update(from, typ, show, status string) {
	bare, resource := stanza.SplitJID(from)
	bare = strings.ToLower(bare)
	list := p.contacts[bare]

	idx := -1
	for i, rp := range list {
		if rp.Resource == resource {
			idx = i
			break
		}
	}

	st := ParseStatus(typ, show)
	if st == StatusOffline {
		if idx >= 0 {
			list = append(list[:idx], list[idx+1:]...)
		}
		if len(list) == 0 {
			delete(p.contacts, bare)
		} else {
			p.contacts[bare] = list
		}
		return
	}

	rp := ResourcePresence{
		Resource: resource,
		Status:   st,
		Message:  status,
		Updated:  p.timeProvider.Now(),
	}
	if idx >= 0 {
		list[idx] = rp
	} else {
		list = append(list, rp)
	}
	p.contacts[bare] = list
}

// Best returns the most relevant presence of a contact. Ties go to the most
// recently updated resource. ok is false when the contact is offline.
func (p *Presence) Best(addr string) (best ResourcePresence, ok bool) {
	for _, rp := range p.contacts[strings.ToLower(stanza.Bare(addr))] {
		if !ok || rp.Status > best.Status ||
			(rp.Status == best.Status && rp.Updated.After(best.Updated)) {
			best, ok = rp, true
		}
	}
	return best, ok
}

// Resources returns the online resources of a contact.
func (p *Presence) Resources(addr string) []ResourcePresence {
	list := p.contacts[strings.ToLower(stanza.Bare(addr))]
	out := make([]ResourcePresence, len(list))
	copy(out, list)
	return out
}

// Reset forgets all presence, as after a disconnect.
func (p *Presence) Reset() {
	clear(p.contacts)
}
