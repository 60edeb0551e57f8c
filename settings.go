package xmppotr

import (
	"fmt"
	"time"

	"github.com/opd-ai/xmppotr/config"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/opd-ai/xmppotr/transport"
)

// StartupPresence is the presence announced once connected.
type StartupPresence struct {
	// Show is empty for plain available, or chat, away, dnd, xa.
	Show     string
	Status   string
	Priority int
}

// AccountSettings describes the account a Client connects as. Settings are
// fixed for the life of a connection; use Recreate to change them.
type AccountSettings struct {
	// JID is the account address. A resource part is ignored in favour of
	// Resource.
	JID      string
	Password string
	Resource string

	// Host and Port bypass SRV lookup when Host is set.
	Host  string
	Port  int
	Flags transport.Flags

	Presence StartupPresence
}

// SettingsFromConfig builds account settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) AccountSettings {
	var flags transport.Flags
	if cfg.Account.Flags.DisableTLS {
		flags |= transport.FlagDisableTLS
	}
	if cfg.Account.Flags.MandatoryTLS {
		flags |= transport.FlagMandatoryTLS
	}
	if cfg.Account.Flags.LegacySSL {
		flags |= transport.FlagLegacySSL
	}
	if cfg.Account.Flags.TrustTLS {
		flags |= transport.FlagTrustTLS
	}

	return AccountSettings{
		JID:      cfg.Account.JID,
		Password: cfg.Account.Password,
		Resource: cfg.Account.Resource,
		Host:     cfg.Account.Host,
		Port:     cfg.Account.Port,
		Flags:    flags,
		Presence: StartupPresence{
			Show:     cfg.Presence.Show,
			Status:   cfg.Presence.Status,
			Priority: cfg.Presence.Priority,
		},
	}
}

// Validate checks that the settings can be used to connect.
func (s AccountSettings) Validate() error {
	if s.JID == "" {
		return ErrNoJID
	}
	if stanza.Local(s.JID) == "" || stanza.Domain(s.JID) == "" {
		return fmt.Errorf("%w: %q is not a user address", ErrNoJID, s.JID)
	}
	return nil
}

// Bare returns the bare account address.
func (s AccountSettings) Bare() string {
	return stanza.Bare(s.JID)
}

func (s AccountSettings) transportConfig() transport.Config {
	return transport.Config{
		JID:      s.Bare(),
		Password: s.Password,
		Resource: s.Resource,
		Host:     s.Host,
		Port:     s.Port,
		Flags:    s.Flags,
	}
}

const (
	// DefaultPollTimeout is how long each loop iteration waits for input
	// when Options.PollTimeout is not set.
	DefaultPollTimeout = 10 * time.Millisecond
	// DefaultKeepAliveInterval is used when Options.KeepAliveInterval is
	// not set.
	DefaultKeepAliveInterval = 30 * time.Second
)

// TextFilter rewrites outgoing message text before it is sent.
type TextFilter func(text string) string

// Options contains configuration options for creating a Client.
type Options struct {
	// EnableOTR creates an OTR engine for the account.
	EnableOTR bool

	// KeyStore holds the OTR private key and fingerprints. nil stores them
	// as files located by Resolver.
	KeyStore otr.KeyStore

	// Resolver maps a persisted file name to its path.
	Resolver func(name string) string

	// TextFilter is applied to outgoing text by SendMessage.
	TextFilter TextFilter

	// ClientName is reported in disco#info replies.
	ClientName string

	// PollTimeout is how long each loop iteration waits for input.
	PollTimeout time.Duration

	// KeepAliveInterval is the idle time after which a whitespace
	// keep-alive is sent.
	KeepAliveInterval time.Duration

	// NewTransport replaces the default TCP stream.
	NewTransport func(settings AccountSettings) transport.Transport

	// NewCrypto replaces the default OTR engine.
	NewCrypto func(account string, ops otr.Ops) (Crypto, error)
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	dir, err := config.Dir("")
	if err != nil {
		dir = "."
	}
	return &Options{
		EnableOTR:         true,
		Resolver:          config.DirResolver{Dir: dir}.Path,
		ClientName:        "xmppotr",
		PollTimeout:       DefaultPollTimeout,
		KeepAliveInterval: DefaultKeepAliveInterval,
	}
}

// withDefaults returns a copy of o with unset intervals filled in.
func (o *Options) withDefaults() *Options {
	opts := *o
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = DefaultKeepAliveInterval
	}
	return &opts
}
