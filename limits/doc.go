// Package limits provides centralized size constants and validation functions
// for the XMPP session engine. Every component that accepts text from the
// network or from the host application checks it here, so the same ceiling
// applies on the transport, in the OTR layer and in the command API.
//
// # Size Hierarchy
//
//   - MaxBodyLength (64 KiB): The largest user message body the command API
//     accepts before it is handed to the protocol goroutine.
//
//   - MaxOTRMessageSize (1 MiB): The message-size policy handed to the OTR
//     library. Encrypted payloads above this size are fragmented; there is no
//     negotiation beyond this ceiling.
//
//   - MaxStanzaSize (4 MiB): The absolute maximum for a single inbound stanza.
//     The stream reader drops the connection when a peer exceeds it.
//
// # Validation Functions
//
//	if err := limits.ValidateBody(text); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// For custom limits use ValidateMessageSize.
package limits
