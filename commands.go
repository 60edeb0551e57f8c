package xmppotr

import (
	"github.com/opd-ai/xmppotr/limits"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// SendMessage queues a chat message to to, followed by an active chat state.
// With encrypt set the text goes through the OTR engine, which sends it in
// the clear when no encrypted session exists. The text filter runs on the
// calling goroutine.
func (c *Client) SendMessage(to, text string, encrypt bool) error {
	if c.options.TextFilter != nil {
		text = c.options.TextFilter(text)
	}
	if err := limits.ValidateBody(text); err != nil {
		return err
	}
	c.queue.Submit(func() {
		c.sendMessage(to, text, encrypt)
	})
	return nil
}

func (c *Client) sendMessage(to, text string, encrypt bool) {
	bodies := []string{text}
	if encrypt && c.crypto != nil {
		out, ev := c.crypto.Encrypt(to, text)
		if ev != otr.EventNone {
			logrus.WithFields(logrus.Fields{
				"function": "sendMessage",
				"to":       to,
				"event":    ev.String(),
			}).Warn("Message not sent")
			return
		}
		bodies = out
	}

	for _, body := range bodies {
		c.transport.Send(stanza.Message(to, body))
	}
	c.transport.Send(stanza.ChatStateMessage(to, stanza.StateActive))
}

// SendChatState queues a standalone chat state notification.
func (c *Client) SendChatState(to string, state stanza.ChatState) {
	c.queue.Submit(func() {
		c.transport.Send(stanza.ChatStateMessage(to, state))
	})
}

// SendPresence queues a presence broadcast.
func (c *Client) SendPresence(show, status string, priority int) {
	c.queue.Submit(func() {
		c.transport.Send(stanza.Presence(show, status, priority))
	})
}

// QueryContacts asks the server for the contact list. The result is
// reported through OnRosterUpdate or OnContactsQueryFailed.
func (c *Client) QueryContacts() {
	c.queue.Submit(c.queryRoster)
}

// AddContact adds address to the roster, asks for a presence subscription
// and refreshes the contact list.
func (c *Client) AddContact(address, name string) {
	c.queue.Submit(func() {
		bare := stanza.Bare(address)
		c.transport.Send(stanza.RosterSet(bare, name, ""))
		c.transport.Send(stanza.Subscription(bare, "subscribe"))
		c.queryRoster()
	})
}

// RemoveContact removes address from the roster. With unsubscribe set the
// presence subscription is cancelled first.
func (c *Client) RemoveContact(address string, unsubscribe bool) {
	c.queue.Submit(func() {
		bare := stanza.Bare(address)
		if unsubscribe {
			c.transport.Send(stanza.Subscription(bare, "unsubscribe"))
		}
		c.transport.Send(stanza.RosterSet(bare, "", "remove"))
		c.queryRoster()
	})
}

// Authorize grants address a subscription to our presence.
func (c *Client) Authorize(address string) {
	c.queue.Submit(func() {
		bare := stanza.Bare(address)
		c.transport.Send(stanza.Subscription(bare, "subscribed"))
		c.requests.Accept(bare)
		c.queryRoster()
	})
}

// Deny refuses a pending subscription request from address.
func (c *Client) Deny(address string) {
	c.queue.Submit(func() {
		bare := stanza.Bare(address)
		c.transport.Send(stanza.Subscription(bare, "unsubscribed"))
		c.requests.Reject(bare)
	})
}

// StartEncryption asks address for an OTR session.
func (c *Client) StartEncryption(address string) {
	c.queue.Submit(func() {
		c.directory.Session(address).Conversation().SetOTR(true)
		if c.crypto == nil {
			logrus.WithFields(logrus.Fields{
				"function": "StartEncryption",
				"to":       address,
			}).Warn("OTR is disabled")
			return
		}
		c.crypto.Start(address)
	})
}

// StopEncryption ends the OTR session with address.
func (c *Client) StopEncryption(address string) {
	c.queue.Submit(func() {
		c.directory.Session(address).Conversation().SetOTR(false)
		if c.crypto != nil {
			c.crypto.Stop(address)
		}
	})
}

// AuthenticateEncryption runs the socialist millionaires' protocol with
// address over the current OTR session. The question is only sent when
// starting the exchange. Progress is reported through OnOTREvent.
func (c *Client) AuthenticateEncryption(address, question, secret string) {
	c.queue.Submit(func() {
		if c.crypto == nil {
			return
		}
		if err := c.crypto.Authenticate(address, question, secret); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AuthenticateEncryption",
				"to":       address,
				"error":    err.Error(),
			}).Warn("Cannot authenticate contact")
		}
	})
}

// Stop ends the session. Calls submitted before Stop still run; the
// connection closes once their output is flushed.
func (c *Client) Stop() {
	c.queue.Submit(func() {
		c.stopping = true
	})
}
