package otr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// Names of the files the engine persists.
const (
	PrivateKeyFile  = "otr.private_key"
	FingerprintFile = "otr.fingerprints"
	SaltFile        = "otr.salt"
)

// KeyStore persists the engine's key material. Read returns an error
// wrapping os.ErrNotExist when name has never been written.
type KeyStore interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
}

// Resolver maps a file name to a path, like Ops.ConfigPath.
type Resolver func(name string) string

// FileKeyStore stores files unencrypted at the paths chosen by a Resolver.
type FileKeyStore struct {
	resolve Resolver
}

// NewFileKeyStore creates a store resolving names with resolve.
func NewFileKeyStore(resolve Resolver) *FileKeyStore {
	return &FileKeyStore{resolve: resolve}
}

// Read implements KeyStore.
func (s *FileKeyStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Write implements KeyStore.
func (s *FileKeyStore) Write(name string, data []byte) error {
	return writeFileAtomic(s.resolve(name), data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

const (
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// EncryptionVersion is the current encrypted file format version.
	EncryptionVersion = 1
	// SaltSize is the size of the PBKDF2 salt.
	SaltSize = 32
)

// ErrEmptyPassphrase is returned when an encrypted store is opened without
// a passphrase.
var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// EncryptedKeyStore stores files encrypted with AES-256-GCM under a key
// derived from a passphrase. The salt is kept unencrypted in SaltFile.
type EncryptedKeyStore struct {
	encryptionKey [32]byte
	resolve       Resolver
}

// NewEncryptedKeyStore opens an encrypted store, creating the salt on
// first use. The passphrase slice is wiped.
func NewEncryptedKeyStore(resolve Resolver, passphrase []byte) (*EncryptedKeyStore, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	ks := &EncryptedKeyStore{resolve: resolve}

	salt, err := ks.loadOrGenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize salt: %w", err)
	}

	derivedKey := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
	copy(ks.encryptionKey[:], derivedKey)

	wipe(derivedKey)
	wipe(passphrase)

	return ks, nil
}

func (ks *EncryptedKeyStore) loadOrGenerateSalt() ([]byte, error) {
	path := ks.resolve(SaltFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read salt file: %w", err)
		}

		salt := make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := writeFileAtomic(path, salt); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
		return salt, nil
	}

	if len(data) != SaltSize {
		return nil, fmt.Errorf("invalid salt file size: got %d, want %d", len(data), SaltSize)
	}
	return data, nil
}

// Write encrypts data and writes it under name.
// Format: [version:2][nonce:12][ciphertext+tag:N]
func (ks *EncryptedKeyStore) Write(name string, data []byte) error {
	gcm, err := ks.aead()
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, data, nil)

	output := make([]byte, 2+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint16(output[0:2], EncryptionVersion)
	copy(output[2:2+len(nonce)], nonce)
	copy(output[2+len(nonce):], ciphertext)

	return writeFileAtomic(ks.resolve(name), output)
}

// Read reads and decrypts the file stored under name.
func (ks *EncryptedKeyStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(ks.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	gcm, err := ks.aead()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < 2+nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("file too short: %d bytes", len(data))
	}

	version := binary.BigEndian.Uint16(data[0:2])
	if version != EncryptionVersion {
		return nil, fmt.Errorf("unsupported encryption version: %d (expected %d)", version, EncryptionVersion)
	}

	nonce := data[2 : 2+nonceSize]
	plaintext, err := gcm.Open(nil, nonce, data[2+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted data): %w", err)
	}
	return plaintext, nil
}

func (ks *EncryptedKeyStore) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(ks.encryptionKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Close wipes the derived key. The store must not be used afterwards.
func (ks *EncryptedKeyStore) Close() error {
	wipe(ks.encryptionKey[:])
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
