package xmppotr

import (
	"strings"

	"github.com/opd-ai/xmppotr/limits"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// otrPrefix marks a body as OTR protocol data.
const otrPrefix = "?OTR"

// handleMessage classifies an inbound message stanza.
func (c *Client) handleMessage(el *stanza.Element) {
	if el.Type() == "error" {
		logrus.WithFields(logrus.Fields{
			"function": "handleMessage",
			"from":     el.From(),
		}).Debug("Discarding error message")
		return
	}

	from := el.From()
	if from == "" {
		logrus.WithFields(logrus.Fields{
			"function": "handleMessage",
			"id":       el.ID(),
		}).Warn("Discarding message without sender")
		return
	}
	c.directory.Session(from)

	body := el.Child("body")
	if body == nil {
		for _, state := range stanza.ChatStates(el) {
			c.notifyChatState(from, state)
		}
		return
	}

	text := body.Text
	if strings.HasPrefix(text, otrPrefix) && len(text) > limits.OTRPrefixLength && c.crypto != nil {
		c.handleEncrypted(from, text)
		return
	}

	if html, ok := stanza.HTMLBody(el); ok && html != "" {
		text = html
	}
	c.notifyMessage(from, text, false)
}

func (c *Client) handleEncrypted(from, text string) {
	plain, outcome := c.crypto.Decrypt(from, text)
	switch outcome {
	case otr.OutcomeMessage:
		c.notifyMessage(from, plain, true)
	case otr.OutcomeUnencrypted:
		c.notifyMessage(from, plain, false)
	case otr.OutcomeInternal:
		if c.crypto.State(from) == otr.StateFinished {
			c.securityChanged(from, false)
		}
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handleEncrypted",
			"from":     from,
			"outcome":  outcome.String(),
		}).Debug("Encrypted message not delivered")
	}
}

// handlePresence processes availability and subscription presence.
func (c *Client) handlePresence(el *stanza.Element) {
	from := el.From()
	if from == "" {
		logrus.WithFields(logrus.Fields{
			"function": "handlePresence",
		}).Debug("Ignoring presence without sender")
		return
	}

	typ := el.Type()
	show := el.ChildText("show")
	status := el.ChildText("status")

	switch typ {
	case "error":
		logrus.WithFields(logrus.Fields{
			"function": "handlePresence",
			"from":     from,
		}).Debug("Discarding error presence")
		return
	case "subscribe":
		req, isNew := c.requests.Add(from, status)
		logrus.WithFields(logrus.Fields{
			"function": "handlePresence",
			"from":     req.From,
			"new":      isNew,
		}).Info("Subscription request")
		if isNew {
			c.notifySubscriptionRequest(req.From)
		}
		return
	case "", "unavailable":
		c.presence.Update(from, typ, show, status)
		if !stanza.EqualBare(from, c.settings.JID) {
			c.directory.Session(from).Conversation().SetOnline(stanza.Resource(from), typ == "")
		}
	}

	c.notifyPresence(from, typ, show, status)
}

// handleIQ answers roster pushes and queries addressed to the client.
func (c *Client) handleIQ(el *stanza.Element) {
	typ := el.Type()
	switch typ {
	case "result", "error":
		logrus.WithFields(logrus.Fields{
			"function": "handleIQ",
			"id":       el.ID(),
			"type":     typ,
		}).Debug("Unmatched iq response")
		return
	case "get", "set":
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handleIQ",
			"id":       el.ID(),
			"type":     typ,
		}).Warn("Discarding iq with invalid type")
		return
	}

	if q := el.ChildNS(stanza.NSRoster, "query"); q != nil && typ == "set" {
		c.handleRosterPush(el, q)
		return
	}
	if q := el.ChildNS(stanza.NSDiscoInfo, "query"); q != nil && typ == "get" {
		c.transport.Send(stanza.DiscoInfoResult(el, c.options.ClientName))
		return
	}
	c.transport.Send(stanza.ErrorReply(el, "cancel", "service-unavailable"))
}

func (c *Client) handleRosterPush(el, query *stanza.Element) {
	if from := el.From(); from != "" && !stanza.EqualBare(from, c.settings.JID) {
		logrus.WithFields(logrus.Fields{
			"function": "handleRosterPush",
			"from":     from,
		}).Warn("Ignoring roster push from foreign address")
		return
	}
	c.roster.Apply(roster.ParseItems(query))
	c.transport.Send(stanza.Result(el))
	c.notifyRoster()
}

// queryRoster requests the contact list. The result replaces the roster.
func (c *Client) queryRoster() {
	iq := stanza.RosterQuery()
	c.transport.RegisterIDHandler(iq.ID(), c.handleRosterResult)
	c.transport.Send(iq)
}

func (c *Client) handleRosterResult(el *stanza.Element) {
	if el.Type() == "error" {
		logrus.WithFields(logrus.Fields{
			"function": "handleRosterResult",
			"id":       el.ID(),
		}).Warn("Roster query failed")
		c.notifyContactsQueryFailed()
		return
	}

	var contacts []roster.Contact
	if q := el.ChildNS(stanza.NSRoster, "query"); q != nil {
		contacts = roster.ParseItems(q)
	}
	c.roster.Replace(contacts)

	logrus.WithFields(logrus.Fields{
		"function": "handleRosterResult",
		"contacts": len(contacts),
	}).Debug("Roster received")

	c.notifyRoster()
}
