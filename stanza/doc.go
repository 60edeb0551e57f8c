// Package stanza provides the XML element tree used for XMPP stanzas, JID
// handling, and builders for the message, presence and iq stanzas the
// client sends.
//
// Inbound stanzas are decoded into a generic Element tree rather than typed
// structs, since a message may carry any mix of body, html, chat state and
// OTR payloads. Outbound stanzas are built as Element values and serialized
// with Element.Bytes.
package stanza
