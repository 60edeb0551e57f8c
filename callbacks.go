package xmppotr

import (
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/stanza"
)

// StatusCallback is called when the connection comes up or goes down.
// Offline is reported as roster.StatusOffline.
type StatusCallback func(status roster.Status)

// MessageCallback is called for each delivered message. secure reports
// whether it arrived inside an OTR session.
type MessageCallback func(from, text string, secure bool)

// ChatStateCallback is called for typing notifications.
type ChatStateCallback func(from string, state stanza.ChatState)

// PresenceCallback is called for each presence stanza other than
// subscription requests.
type PresenceCallback func(from, typ, show, status string)

// SubscriptionRequestCallback is called for a new subscription request.
type SubscriptionRequestCallback func(from string)

// SecurityStatusCallback is called when an OTR session goes secure, stays
// secure after a key change, or goes insecure.
type SecurityStatusCallback func(from string, secure bool)

// FingerprintCallback is called for a contact key not seen before.
type FingerprintCallback func(from string, fingerprint []byte)

// OTREventCallback is called for OTR protocol events and errors.
type OTREventCallback func(from string, event otr.Event)

// RosterCallback is called with a copy of the contact list after it
// changes.
type RosterCallback func(contacts []roster.Contact)

// ContactsQueryFailedCallback is called when the roster query fails.
type ContactsQueryFailedCallback func()

type callbacks struct {
	status              StatusCallback
	message             MessageCallback
	chatState           ChatStateCallback
	presence            PresenceCallback
	subscriptionRequest SubscriptionRequestCallback
	securityStatus      SecurityStatusCallback
	fingerprint         FingerprintCallback
	otrEvent            OTREventCallback
	rosterUpdate        RosterCallback
	contactsQueryFailed ContactsQueryFailedCallback
}

// OnStatus sets the callback for connection status changes.
func (c *Client) OnStatus(callback StatusCallback) {
	c.callbacks.status = callback
}

// OnMessage sets the callback for received messages.
func (c *Client) OnMessage(callback MessageCallback) {
	c.callbacks.message = callback
}

// OnChatState sets the callback for chat state notifications.
func (c *Client) OnChatState(callback ChatStateCallback) {
	c.callbacks.chatState = callback
}

// OnPresence sets the callback for presence changes.
func (c *Client) OnPresence(callback PresenceCallback) {
	c.callbacks.presence = callback
}

// OnSubscriptionRequest sets the callback for subscription requests.
func (c *Client) OnSubscriptionRequest(callback SubscriptionRequestCallback) {
	c.callbacks.subscriptionRequest = callback
}

// OnSecurityStatus sets the callback for OTR security changes.
func (c *Client) OnSecurityStatus(callback SecurityStatusCallback) {
	c.callbacks.securityStatus = callback
}

// OnFingerprint sets the callback for new contact fingerprints.
func (c *Client) OnFingerprint(callback FingerprintCallback) {
	c.callbacks.fingerprint = callback
}

// OnOTREvent sets the callback for OTR events.
func (c *Client) OnOTREvent(callback OTREventCallback) {
	c.callbacks.otrEvent = callback
}

// OnRosterUpdate sets the callback for contact list updates.
func (c *Client) OnRosterUpdate(callback RosterCallback) {
	c.callbacks.rosterUpdate = callback
}

// OnContactsQueryFailed sets the callback for failed roster queries.
func (c *Client) OnContactsQueryFailed(callback ContactsQueryFailedCallback) {
	c.callbacks.contactsQueryFailed = callback
}

func (c *Client) notifyStatus(status roster.Status) {
	if c.callbacks.status != nil {
		c.callbacks.status(status)
	}
}

func (c *Client) notifyMessage(from, text string, secure bool) {
	if c.callbacks.message != nil {
		c.callbacks.message(from, text, secure)
	}
}

func (c *Client) notifyChatState(from string, state stanza.ChatState) {
	if c.callbacks.chatState != nil {
		c.callbacks.chatState(from, state)
	}
}

func (c *Client) notifyPresence(from, typ, show, status string) {
	if c.callbacks.presence != nil {
		c.callbacks.presence(from, typ, show, status)
	}
}

func (c *Client) notifySubscriptionRequest(from string) {
	if c.callbacks.subscriptionRequest != nil {
		c.callbacks.subscriptionRequest(from)
	}
}

func (c *Client) notifyFingerprint(from string, fp []byte) {
	if c.callbacks.fingerprint != nil {
		c.callbacks.fingerprint(from, fp)
	}
}

func (c *Client) notifyOTREvent(from string, ev otr.Event) {
	if c.callbacks.otrEvent != nil {
		c.callbacks.otrEvent(from, ev)
	}
}

func (c *Client) notifyRoster() {
	if c.callbacks.rosterUpdate != nil {
		c.callbacks.rosterUpdate(c.roster.Contacts())
	}
}

func (c *Client) notifyContactsQueryFailed() {
	if c.callbacks.contactsQueryFailed != nil {
		c.callbacks.contactsQueryFailed()
	}
}

// securityChanged updates the contact's conversation and reports the new
// state.
func (c *Client) securityChanged(from string, secure bool) {
	c.directory.Session(from).Conversation().SetEncrypted(secure)
	if c.callbacks.securityStatus != nil {
		c.callbacks.securityStatus(from, secure)
	}
}
