package xmppotr

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/xmppotr/conversation"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/queue"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoJID is returned by New when the account address is missing or
	// malformed.
	ErrNoJID = errors.New("account address required")
	// ErrRunning is returned when an operation needs a stopped Client.
	ErrRunning = errors.New("client is running")
	// ErrNotRunning is returned by Wait-style helpers on a Client that was
	// never started.
	ErrNotRunning = errors.New("client is not running")
)

// ConnectionState is the lifecycle state of a Client.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Crypto is the end-to-end encryption engine used by a Client. It is
// satisfied by *otr.Engine.
type Crypto interface {
	Encrypt(to, plaintext string) ([]string, otr.Event)
	Decrypt(from, ciphertext string) (string, otr.Outcome)
	Start(to string)
	Stop(to string)
	Authenticate(to, question, secret string) error
	State(addr string) otr.MessageState
	Fingerprint() []byte
}

// Client is an XMPP session with optional OTR encryption.
type Client struct {
	settings AccountSettings
	options  *Options

	// Owned by the protocol goroutine while running.
	transport transport.Transport
	queue     *queue.Queue
	crypto    Crypto
	directory *conversation.Directory
	roster    *roster.Roster
	presence  *roster.Presence
	requests  *roster.RequestManager
	stopping  bool

	state   atomic.Int32
	started atomic.Bool
	done    chan struct{}

	callbacks callbacks
}

// New creates a Client for the given account. The connection is not opened
// until Run.
func New(settings AccountSettings, options *Options) (*Client, error) {
	if options == nil {
		options = NewOptions()
	}
	options = options.withDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		settings:  settings,
		options:   options,
		directory: conversation.NewDirectory(),
		roster:    roster.New(),
		presence:  roster.NewPresence(),
		requests:  roster.NewRequestManager(),
	}
	c.reset()

	if options.EnableOTR {
		crypto, err := c.newCrypto()
		if err != nil {
			return nil, fmt.Errorf("create OTR engine: %w", err)
		}
		c.crypto = crypto
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"jid":      settings.Bare(),
		"otr":      c.crypto != nil,
	}).Info("Client created")

	return c, nil
}

func (c *Client) newCrypto() (Crypto, error) {
	ops := &otrOps{client: c}
	if c.options.NewCrypto != nil {
		return c.options.NewCrypto(c.settings.Bare(), ops)
	}
	engine, err := otr.NewEngine(c.settings.Bare(), ops, c.options.KeyStore)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// reset creates a fresh transport, call queue and done channel.
func (c *Client) reset() {
	if c.options.NewTransport != nil {
		c.transport = c.options.NewTransport(c.settings)
	} else {
		c.transport = transport.NewStream(c.settings.transportConfig())
	}
	c.queue = queue.New()
	c.done = make(chan struct{})
	c.stopping = false
	c.started.Store(false)
	c.state.Store(int32(StateDisconnected))
}

// Run starts the protocol goroutine, which connects and then serves the
// session until the connection is lost, Stop is called or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrRunning
	}
	c.setState(StateConnecting)
	go c.run(ctx)
	return nil
}

// Recreate replaces the account settings and prepares a new connection.
// Callbacks, the conversation directory and the roster are kept; the OTR
// engine and pending subscription requests are kept unless the account
// changes. The Client must not be
// running.
func (c *Client) Recreate(settings AccountSettings) error {
	if c.started.Load() && !c.isDone() {
		return ErrRunning
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	accountChanged := settings.Bare() != c.settings.Bare()
	c.settings = settings
	c.reset()
	c.presence.Reset()

	if accountChanged {
		c.requests.Clear()
	}
	if accountChanged && c.options.EnableOTR {
		crypto, err := c.newCrypto()
		if err != nil {
			return fmt.Errorf("create OTR engine: %w", err)
		}
		c.crypto = crypto
	}

	logrus.WithFields(logrus.Fields{
		"function":        "Recreate",
		"jid":             settings.Bare(),
		"account_changed": accountChanged,
	}).Info("Client recreated")
	return nil
}

// Wait blocks until the protocol goroutine has exited. It returns
// ErrNotRunning if Run was never called.
func (c *Client) Wait() error {
	if !c.started.Load() {
		return ErrNotRunning
	}
	<-c.done
	return nil
}

// Done returns a channel closed when the protocol goroutine exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// State returns the connection state. It is safe to call from any
// goroutine.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(s ConnectionState) {
	old := ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		logrus.WithFields(logrus.Fields{
			"function": "setState",
			"from":     old.String(),
			"to":       s.String(),
		}).Debug("Connection state changed")
	}
}

// Settings returns the account settings.
func (c *Client) Settings() AccountSettings {
	return c.settings
}

// JID returns the bound full address, or the configured address before
// the stream is bound. Protocol goroutine only.
func (c *Client) JID() string {
	if jid := c.transport.JID(); jid != "" {
		return jid
	}
	return c.settings.Bare()
}

// Fingerprint returns the local OTR key fingerprint, or nil when OTR is
// disabled.
func (c *Client) Fingerprint() []byte {
	if c.crypto == nil {
		return nil
	}
	return c.crypto.Fingerprint()
}

// Call runs fn on the protocol goroutine.
func (c *Client) Call(fn func(c *Client)) {
	c.queue.Submit(func() { fn(c) })
}

// Directory returns the conversation directory. It must only be used on
// the protocol goroutine, for example from a callback or Call.
func (c *Client) Directory() *conversation.Directory {
	return c.directory
}

// Roster returns the contact list. Protocol goroutine only.
func (c *Client) Roster() *roster.Roster {
	return c.roster
}

// Presence returns the per-contact presence aggregate. Protocol goroutine
// only.
func (c *Client) Presence() *roster.Presence {
	return c.presence
}

// Requests returns the pending subscription requests. It is safe to use
// from any goroutine.
func (c *Client) Requests() *roster.RequestManager {
	return c.requests
}

// Crypto returns the OTR engine, or nil when OTR is disabled. Protocol
// goroutine only.
func (c *Client) Crypto() Crypto {
	return c.crypto
}
