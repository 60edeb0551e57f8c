// Package xmppotr implements an XMPP client session engine with OTR
// end-to-end encryption.
//
// A Client owns one connection to an XMPP server. All connection and
// encryption state is mutated on a single protocol goroutine started by
// Run; commands issued from other goroutines are queued and executed there
// in submission order.
//
// # Getting Started
//
// Create a Client from account settings, register callbacks and run it:
//
//	settings := xmppotr.AccountSettings{
//	    JID:      "alice@example.org",
//	    Password: "secret",
//	    Resource: "laptop",
//	}
//
//	client, err := xmppotr.New(settings, xmppotr.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.OnMessage(func(from, text string, secure bool) {
//	    fmt.Printf("%s: %s\n", from, text)
//	})
//
//	client.OnStatus(func(status roster.Status) {
//	    fmt.Println("status:", status)
//	})
//
//	if err := client.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	client.Wait()
//
// # Commands
//
// Commands may be called from any goroutine. They capture their arguments
// and run on the protocol goroutine:
//
//	client.SendMessage("bob@example.org", "Hello", true)
//	client.SendPresence("away", "lunch", 0)
//	client.StartEncryption("bob@example.org/phone")
//	client.QueryContacts()
//
// Commands submitted after the connection is lost are dropped. Reconnecting
// requires Recreate followed by Run.
//
// # Callbacks
//
// Callbacks are invoked on the protocol goroutine and must be registered
// before Run:
//
//   - [Client.OnStatus]: connection came up or went down
//   - [Client.OnMessage]: a message arrived, with its security state
//   - [Client.OnChatState]: typing notifications
//   - [Client.OnPresence]: contact availability
//   - [Client.OnSecurityStatus]: an OTR session went secure or insecure
//   - [Client.OnFingerprint]: an unknown OTR key was seen
//   - [Client.OnOTREvent]: an OTR protocol event or error
//   - [Client.OnRosterUpdate]: the contact list changed
//
// # Integration Architecture
//
// The Client orchestrates:
//
//   - [transport]: XMPP client stream with STARTTLS and SASL
//   - [stanza]: XML elements, addresses and stanza builders
//   - [otr]: OTR sessions, keys and fingerprints
//   - [conversation]: per-contact conversations and sessions
//   - [roster]: contact list, presence and subscription requests
//   - [queue]: the cross-goroutine call queue
package xmppotr
