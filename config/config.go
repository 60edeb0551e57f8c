// Package config loads the client configuration.
//
// Configuration is read from config.yaml in the config directory. The
// directory is chosen by, in order:
//   - the --config flag passed to the command
//   - the XMPPOTR_CONFIG environment variable
//   - $XDG_CONFIG_HOME/xmppotr (or ~/.config/xmppotr)
//
// The same directory holds the OTR private key and fingerprint files, which
// the session engine finds through a DirResolver.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file inside the config
// directory.
const FileName = "config.yaml"

// EnvVar names the environment variable that overrides the config
// directory.
const EnvVar = "XMPPOTR_CONFIG"

// ErrNoAccount is returned when the configuration has no account JID.
var ErrNoAccount = errors.New("no account configured")

// Config is the client configuration.
type Config struct {
	// Account configures the XMPP account.
	Account AccountConfig `yaml:"account"`

	// Presence is sent once the connection is established.
	Presence PresenceConfig `yaml:"presence"`

	// OTR configures end-to-end encryption.
	OTR OTRConfig `yaml:"otr"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// AccountConfig describes the XMPP account.
type AccountConfig struct {
	// JID is the bare account address.
	JID string `yaml:"jid"`

	Password string `yaml:"password"`

	// Resource is the resource to bind. The server picks one when empty.
	Resource string `yaml:"resource"`

	// Host and Port override SRV lookup of the account's domain.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Flags FlagsConfig `yaml:"flags"`
}

// FlagsConfig selects the transport security mode.
type FlagsConfig struct {
	// DisableTLS never negotiates STARTTLS.
	DisableTLS bool `yaml:"disable_tls"`

	// MandatoryTLS fails the connection when STARTTLS is not offered.
	MandatoryTLS bool `yaml:"mandatory_tls"`

	// LegacySSL uses TLS from the first byte (port 5223 style).
	LegacySSL bool `yaml:"legacy_ssl"`

	// TrustTLS skips server certificate verification.
	TrustTLS bool `yaml:"trust_tls"`
}

// PresenceConfig is the startup presence.
type PresenceConfig struct {
	// Show is empty for plain available, or chat, away, dnd, xa.
	Show     string `yaml:"show"`
	Status   string `yaml:"status"`
	Priority int    `yaml:"priority"`
}

// OTRConfig configures the OTR engine.
type OTRConfig struct {
	// Enabled turns on OTR support.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// KeyPassphrase encrypts the private key file when set.
	KeyPassphrase string `yaml:"key_passphrase"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		OTR:      OTRConfig{Enabled: true},
		LogLevel: "info",
	}
}

// Dir returns the config directory: override if set, then the environment
// variable, then the XDG location.
func Dir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if dir := os.Getenv(EnvVar); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(base, "xmppotr"), nil
}

// Load reads config.yaml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads the configuration from path on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to config.yaml in dir, creating the
// directory if needed. The file may hold a password so it is private to
// the user.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Account.JID == "" {
		return ErrNoAccount
	}
	if !strings.Contains(c.Account.JID, "@") {
		return fmt.Errorf("account jid %q has no localpart", c.Account.JID)
	}
	if c.Account.Port < 0 || c.Account.Port > 65535 {
		return fmt.Errorf("account port %d out of range", c.Account.Port)
	}
	if c.Account.Flags.DisableTLS && c.Account.Flags.MandatoryTLS {
		return errors.New("disable_tls and mandatory_tls are mutually exclusive")
	}
	switch c.Presence.Show {
	case "", "chat", "away", "dnd", "xa":
	default:
		return fmt.Errorf("presence show %q is not one of chat, away, dnd, xa", c.Presence.Show)
	}
	return nil
}

// DirResolver resolves file names inside a config directory.
type DirResolver struct {
	Dir string
}

// Path returns the path of name inside the directory.
func (r DirResolver) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// Template is the commented configuration written by "config init".
const Template = `# xmppotr configuration
account:
  jid: user@example.org
  password: ""
  # resource: laptop
  # host and port override the SRV lookup of the account domain
  # host: xmpp.example.org
  # port: 5222
  flags:
    disable_tls: false
    mandatory_tls: true
    legacy_ssl: false
    trust_tls: false

presence:
  show: ""
  status: ""
  priority: 0

otr:
  enabled: true
  # key_passphrase encrypts otr.private_key at rest
  key_passphrase: ""

log_level: info
`

// WriteTemplate writes Template to config.yaml in dir unless the file
// already exists.
func WriteTemplate(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(Template); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
