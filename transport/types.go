package transport

import (
	"context"
	"errors"
	"time"

	"github.com/opd-ai/xmppotr/stanza"
)

var (
	// ErrDisconnected is returned when the stream is not connected.
	ErrDisconnected = errors.New("stream disconnected")
	// ErrAuthFailed is returned when SASL authentication fails.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrTLSRequired is returned when TLS is mandatory but the server does
	// not offer it.
	ErrTLSRequired = errors.New("server does not offer required TLS")
	// ErrNoMechanism is returned when no offered SASL mechanism is usable.
	ErrNoMechanism = errors.New("no usable SASL mechanism")
	// ErrBindFailed is returned when resource binding fails.
	ErrBindFailed = errors.New("resource binding failed")
	// ErrStreamError is returned when the server sends a stream error.
	ErrStreamError = errors.New("stream error")
)

// Flags select connection security options.
type Flags uint

const (
	// FlagDisableTLS never negotiates STARTTLS.
	FlagDisableTLS Flags = 1 << iota
	// FlagMandatoryTLS refuses to continue without TLS.
	FlagMandatoryTLS
	// FlagLegacySSL starts TLS immediately after connecting.
	FlagLegacySSL
	// FlagTrustTLS accepts any server certificate.
	FlagTrustTLS
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Handler processes an inbound stanza on the owning goroutine.
type Handler func(el *stanza.Element)

// Transport is the stanza connection the session engine drives. All methods
// except Readable and IsDisconnected must be called from the owning
// goroutine.
type Transport interface {
	// Connect dials and negotiates the stream.
	Connect(ctx context.Context) error

	// Send queues a stanza for writing on the next RunOnce.
	Send(el *stanza.Element)

	// KeepAlive queues a whitespace keep-alive.
	KeepAlive()

	// RunOnce flushes queued writes, waits up to timeout for input and
	// dispatches buffered stanzas.
	RunOnce(timeout time.Duration)

	// SendQueueLen returns the number of queued writes.
	SendQueueLen() int

	// Readable is signalled when inbound stanzas are buffered or the
	// connection is lost.
	Readable() <-chan struct{}

	// IsDisconnected reports whether the connection is gone.
	IsDisconnected() bool

	// RegisterHandler adds a handler for stanzas with the given element
	// name (message, presence, iq).
	RegisterHandler(name string, h Handler)

	// RegisterIDHandler sets a one-shot handler for the iq result or error
	// with the given id.
	RegisterIDHandler(id string, h Handler)

	// JID returns the bound full address.
	JID() string

	// Close ends the stream and closes the connection.
	Close() error
}
