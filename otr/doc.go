// Package otr layers Off-the-Record messaging over chat bodies.
//
// Engine wraps golang.org/x/crypto/otr, keeping one conversation per contact
// bare address. It never touches the network itself: messages the protocol
// generates (handshake replies, disconnect notices, SMP steps) are handed to
// the Ops implementation supplied by the session engine, which sends them
// like any other chat body.
//
// The Go library speaks OTR version 2, so the engine's fixed policy is
// PolicyAllowV2 and a handshake is started with the "?OTRv2?" query.
//
// Engine is not safe for concurrent use. The session engine calls it from
// its protocol goroutine only.
//
// # Keys and fingerprints
//
// The private key and the known fingerprints are persisted through a
// KeyStore under the names PrivateKeyFile and FingerprintFile. FileKeyStore
// writes plain files at paths chosen by Ops.ConfigPath; EncryptedKeyStore
// encrypts them with AES-GCM under a passphrase-derived key.
package otr
