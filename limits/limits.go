// Package limits provides centralized message size limits for the XMPP engine.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxBodyLength is the largest outgoing message body accepted by the
	// command API.
	MaxBodyLength = 64 * 1024

	// MaxOTRMessageSize is the maximum message size policy returned to the
	// OTR layer. It doubles as the fragment size for encrypted messages.
	MaxOTRMessageSize = 1024 * 1024

	// MaxStanzaSize is the absolute maximum for a single inbound stanza.
	// This prevents memory exhaustion from a misbehaving server (4MB limit).
	MaxStanzaSize = 4 * 1024 * 1024

	// OTRPrefixLength is the length of the literal "?OTR" marker that tags a
	// message body as OTR traffic.
	OTRPrefixLength = 4
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateBody validates an outgoing message body against MaxBodyLength.
func ValidateBody(body string) error {
	if len(body) == 0 {
		return ErrMessageEmpty
	}
	if len(body) > MaxBodyLength {
		return fmt.Errorf("%w: body size %d exceeds limit %d", ErrMessageTooLarge, len(body), MaxBodyLength)
	}
	return nil
}

// ValidateOTRMessage validates a message handed to the OTR layer against
// MaxOTRMessageSize.
func ValidateOTRMessage(message []byte) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > MaxOTRMessageSize {
		return fmt.Errorf("%w: otr message size %d exceeds limit %d", ErrMessageTooLarge, len(message), MaxOTRMessageSize)
	}
	return nil
}

// ValidateStanza validates raw inbound stanza data against MaxStanzaSize.
// This limit should be applied to everything read from the network.
func ValidateStanza(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > MaxStanzaSize {
		return fmt.Errorf("%w: stanza size %d exceeds limit %d", ErrMessageTooLarge, len(data), MaxStanzaSize)
	}
	return nil
}
