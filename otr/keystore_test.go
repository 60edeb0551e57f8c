package otr

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirResolver(dir string) Resolver {
	return func(name string) string { return filepath.Join(dir, name) }
}

func TestFileKeyStore(t *testing.T) {
	dir := t.TempDir()
	ks := NewFileKeyStore(dirResolver(dir))

	_, err := ks.Read("missing")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, ks.Write("a", []byte("data")))
	got, err := ks.Read("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	info, err := os.Stat(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEncryptedKeyStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewEncryptedKeyStore(dirResolver(dir), []byte("passphrase"))
	require.NoError(t, err)
	defer ks.Close()

	secret := []byte("private key material")
	require.NoError(t, ks.Write(PrivateKeyFile, secret))

	raw, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, secret))

	got, err := ks.Read(PrivateKeyFile)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	salt, err := os.ReadFile(filepath.Join(dir, SaltFile))
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)
}

func TestEncryptedKeyStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewEncryptedKeyStore(dirResolver(dir), []byte("right"))
	require.NoError(t, err)
	require.NoError(t, ks.Write("f", []byte("x")))

	other, err := NewEncryptedKeyStore(dirResolver(dir), []byte("wrong"))
	require.NoError(t, err)
	_, err = other.Read("f")
	assert.Error(t, err)
}

func TestEncryptedKeyStoreErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewEncryptedKeyStore(dirResolver(dir), nil)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	ks, err := NewEncryptedKeyStore(dirResolver(dir), []byte("p"))
	require.NoError(t, err)

	_, err = ks.Read("missing")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "short"), []byte{0, 1}, 0o600))
	_, err = ks.Read("short")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, SaltFile), []byte("short"), 0o600))
	_, err = NewEncryptedKeyStore(dirResolver(dir), []byte("p"))
	assert.Error(t, err)
}

func TestEngineOverEncryptedStore(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewEncryptedKeyStore(dirResolver(dir), []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, ks.Write(PrivateKeyFile, []byte(alicePrivateKeyHex)))

	e, err := NewEngine("alice@example.org", &recordingOps{dir: dir}, ks)
	require.NoError(t, err)
	assert.Len(t, e.Fingerprint(), FingerprintLength)
}

func TestFingerprintFileFormat(t *testing.T) {
	f := &fingerprints{}
	fp := bytes.Repeat([]byte{0xab}, FingerprintLength)
	assert.True(t, f.add("bob@x", "alice@x", fp))
	assert.False(t, f.add("BOB@x", "alice@x", fp))
	assert.True(t, f.setTrust("bob@x", fp, "smp"))
	assert.False(t, f.setTrust("carol@x", fp, "smp"))

	data := f.marshal()
	assert.Equal(t, "bob@x\talice@x\txmpp\t"+string(bytes.Repeat([]byte("ab"), FingerprintLength))+"\tsmp\n", string(data))

	back, err := parseFingerprints(data)
	require.NoError(t, err)
	assert.Equal(t, f.list, back.list)

	_, err = parseFingerprints([]byte("only\ttwo\n"))
	assert.Error(t, err)
	_, err = parseFingerprints([]byte("a\tb\txmpp\tzz\n"))
	assert.Error(t, err)
}
