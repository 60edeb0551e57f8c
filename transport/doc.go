// Package transport implements the XMPP client stream the session engine
// runs over.
//
// # Architecture
//
// A Stream owns one TCP connection to the account's server. Connect dials
// the server (SRV lookup of _xmpp-client._tcp unless a host is configured),
// negotiates STARTTLS, authenticates with SASL and binds a resource. After
// that a reader goroutine decodes inbound stanzas into a buffer; everything
// else happens on the goroutine that owns the Stream:
//
//	s := transport.NewStream(transport.Config{JID: "alice@example.org", Password: pw})
//	s.RegisterHandler("message", onMessage)
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	for !s.IsDisconnected() {
//	    s.RunOnce(10 * time.Millisecond)
//	}
//
// RunOnce writes queued outbound stanzas and dispatches buffered inbound
// ones to the registered handlers. Readable signals when the reader has
// buffered something, so an idle owner can block on it instead of polling.
//
// # Security flags
//
// Flags select how TLS is used. DisableTLS never negotiates STARTTLS,
// MandatoryTLS fails the connection when the server does not offer it,
// LegacySSL starts TLS before the stream opens and TrustTLS skips
// certificate verification.
package transport
