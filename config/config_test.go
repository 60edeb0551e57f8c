package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.OTR.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.ErrorIs(t, cfg.Validate(), ErrNoAccount)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `
account:
  jid: alice@example.org
  password: secret
  resource: laptop
  port: 5223
  flags:
    legacy_ssl: true
presence:
  show: away
  priority: 3
log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", cfg.Account.JID)
	assert.Equal(t, "secret", cfg.Account.Password)
	assert.Equal(t, 5223, cfg.Account.Port)
	assert.True(t, cfg.Account.Flags.LegacySSL)
	assert.Equal(t, "away", cfg.Presence.Show)
	assert.Equal(t, 3, cfg.Presence.Priority)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Not in the file, so the default survives.
	assert.True(t, cfg.OTR.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("account: [not a map"), 0o600))
	_, err = Load(dir)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := Default()
	cfg.Account.JID = "bob@example.org"
	cfg.OTR.KeyPassphrase = "hunter2"
	require.NoError(t, cfg.Save(dir))

	info, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	back, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no localpart", func(c *Config) { c.Account.JID = "example.org" }, true},
		{"bad port", func(c *Config) { c.Account.Port = 70000 }, true},
		{"conflicting tls", func(c *Config) {
			c.Account.Flags.DisableTLS = true
			c.Account.Flags.MandatoryTLS = true
		}, true},
		{"bad show", func(c *Config) { c.Presence.Show = "sleeping" }, true},
		{"chat show", func(c *Config) { c.Presence.Show = "chat" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Account.JID = "alice@example.org"
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestDir(t *testing.T) {
	t.Setenv(EnvVar, "/from/env")
	dir, err := Dir("/from/flag")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", dir)

	dir, err = Dir("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", dir)

	t.Setenv(EnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err = Dir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "xmppotr"), dir)
}

func TestDirResolver(t *testing.T) {
	r := DirResolver{Dir: "/cfg"}
	assert.Equal(t, filepath.Join("/cfg", "otr.private_key"), r.Path("otr.private_key"))
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTemplate(dir)
	require.NoError(t, err)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user@example.org", cfg.Account.JID)
	assert.True(t, cfg.Account.Flags.MandatoryTLS)
	assert.NoError(t, cfg.Validate())

	_, err = WriteTemplate(dir)
	assert.Error(t, err)
}
