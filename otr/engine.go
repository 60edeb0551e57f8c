package otr

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opd-ai/xmppotr/limits"
	"github.com/opd-ai/xmppotr/logging"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/otr"
)

// FingerprintLength is the length of a key fingerprint in bytes.
const FingerprintLength = 20

var (
	// ErrNoPrivateKey is returned when the stored private key cannot be
	// used.
	ErrNoPrivateKey = errors.New("no usable OTR private key")
	// ErrNoOps is returned by NewEngine when ops is nil.
	ErrNoOps = errors.New("otr ops required")
	// ErrNotEncrypted is returned by Authenticate outside an encrypted
	// session.
	ErrNotEncrypted = errors.New("no encrypted session")
)

// Ops is the set of callbacks the engine uses to reach the session layer.
// All calls happen on the goroutine calling into the Engine.
type Ops interface {
	// Inject sends a protocol-generated message to a contact.
	Inject(to, msg string)
	// NewFingerprint reports a fingerprint not seen before for a contact.
	NewFingerprint(from string, fp []byte)
	// SecurityChanged reports that a session went secure, stayed secure
	// after a key refresh, or went insecure.
	SecurityChanged(from string, secure bool)
	// MessageEvent reports a protocol event or error.
	MessageEvent(from string, ev Event)
	// ConfigPath resolves the path of a persisted file.
	ConfigPath(name string) string
}

type peerContext struct {
	// peer is the full address last used with this contact.
	peer  string
	conv  *otr.Conversation
	state MessageState
}

// Engine holds OTR state for every contact of one account.
type Engine struct {
	account  string
	ops      Ops
	store    KeyStore
	key      *otr.PrivateKey
	policy   Policy
	contexts map[string]*peerContext
	known    *fingerprints
}

// NewEngine creates an engine for account. The private key is read from
// store, or generated and written there on first use; known fingerprints
// are loaded too. A nil store means a FileKeyStore resolving through
// ops.ConfigPath.
func NewEngine(account string, ops Ops, store KeyStore) (*Engine, error) {
	if ops == nil {
		return nil, ErrNoOps
	}
	if store == nil {
		store = NewFileKeyStore(ops.ConfigPath)
	}

	key, err := LoadOrCreateKey(store, nil)
	if err != nil {
		return nil, err
	}

	known := &fingerprints{}
	data, err := store.Read(FingerprintFile)
	switch {
	case err == nil:
		if known, err = parseFingerprints(data); err != nil {
			return nil, fmt.Errorf("load fingerprints: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewEngine",
		"account":      account,
		"fingerprint":  logging.Fingerprint(key.PublicKey.Fingerprint()),
		"known_prints": len(known.list),
	}).Info("OTR engine ready")

	return &Engine{
		account:  stanza.Bare(account),
		ops:      ops,
		store:    store,
		key:      key,
		policy:   DefaultPolicy,
		contexts: make(map[string]*peerContext),
		known:    known,
	}, nil
}

// LoadOrCreateKey reads the private key from store, generating and saving
// a new one if none exists. Keys are stored hex encoded; a libotr key file
// is accepted too. rand may be nil.
func LoadOrCreateKey(store KeyStore, rand io.Reader) (*otr.PrivateKey, error) {
	data, err := store.Read(PrivateKeyFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrNoPrivateKey, err)
		}
		return createKey(store, rand)
	}

	key := new(otr.PrivateKey)
	if raw, err := hex.DecodeString(strings.TrimSpace(string(data))); err == nil {
		if rest, ok := key.Parse(raw); ok && len(rest) == 0 {
			return key, nil
		}
	}
	key = new(otr.PrivateKey)
	if key.Import(data) {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s is not a valid key", ErrNoPrivateKey, PrivateKeyFile)
}

func createKey(store KeyStore, rand io.Reader) (*otr.PrivateKey, error) {
	logrus.WithFields(logrus.Fields{
		"function": "LoadOrCreateKey",
	}).Info("Generating OTR private key")

	key := new(otr.PrivateKey)
	key.Generate(randOrDefault(rand))
	if err := store.Write(PrivateKeyFile, []byte(hex.EncodeToString(key.Serialize(nil)))); err != nil {
		return nil, fmt.Errorf("save private key: %w", err)
	}
	return key, nil
}

// Policy returns the policy applied to every contact.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Fingerprint returns the fingerprint of the local key.
func (e *Engine) Fingerprint() []byte {
	return e.key.PublicKey.Fingerprint()
}

// State returns the message state for the contact addressed by addr.
func (e *Engine) State(addr string) MessageState {
	if ctx, ok := e.contexts[contextKey(addr)]; ok {
		return ctx.state
	}
	return StatePlaintext
}

// KnownFingerprints returns the stored fingerprints of a contact.
func (e *Engine) KnownFingerprints(addr string) []Fingerprint {
	return e.known.forContact(stanza.Bare(addr))
}

// SMPQuestion returns the question asked by the peer in a pending SMP
// exchange.
func (e *Engine) SMPQuestion(addr string) string {
	if ctx, ok := e.contexts[contextKey(addr)]; ok {
		return ctx.conv.SMPQuestion()
	}
	return ""
}

// Encrypt prepares plaintext for sending to to. It returns the bodies to
// send, which are the plaintext itself when no encrypted session exists,
// and the event raised if nothing can be sent.
func (e *Engine) Encrypt(to, plaintext string) ([]string, Event) {
	ctx := e.context(to)

	if err := limits.ValidateOTRMessage([]byte(plaintext)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Encrypt",
			"to":       to,
			"error":    err.Error(),
		}).Warn("Refusing to encrypt message")
		e.event(to, EventEncryptionError)
		return nil, EventEncryptionError
	}

	if ctx.state == StateFinished {
		e.event(to, EventConnectionEnded)
		return nil, EventConnectionEnded
	}

	out, err := ctx.conv.Send([]byte(plaintext))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Encrypt",
			"to":       to,
			"error":    err.Error(),
		}).Warn("OTR send failed")
		e.event(to, EventEncryptionError)
		return nil, EventEncryptionError
	}
	return toStrings(out), EventNone
}

// Decrypt processes a body starting with the OTR marker received from from.
func (e *Engine) Decrypt(from, ciphertext string) (string, Outcome) {
	ctx := e.context(from)
	log := logging.New("otr", "Decrypt").WithField("from", from)

	if strings.HasPrefix(ciphertext, otr.ErrorPrefix) {
		log.WithField("message", strings.TrimSpace(ciphertext[len(otr.ErrorPrefix):])).Warn("Peer reported OTR error")
		e.event(from, EventRcvdMsgGeneralErr)
		return "", OutcomeInternal
	}

	out, encrypted, change, toSend, err := ctx.conv.Receive([]byte(ciphertext))
	e.inject(ctx.peer, toSend)
	if err != nil {
		ev := classifyError(ciphertext, ctx.state)
		log.WithError(err, "receive").WithField("event", ev.String()).Warn("OTR receive failed")
		e.event(from, ev)
		return "", OutcomeError
	}

	e.handleChange(ctx, from, change)

	if len(out) == 0 {
		log.WithField("state", ctx.state.String()).Debug("OTR protocol message handled")
		return "", OutcomeInternal
	}
	if !encrypted {
		if ctx.state == StateEncrypted {
			e.event(from, EventRcvdMsgUnencrypted)
		}
		return string(out), OutcomeUnencrypted
	}
	return string(out), OutcomeMessage
}

// Start asks to for an encrypted session.
func (e *Engine) Start(to string) {
	ctx := e.context(to)
	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"to":       to,
		"state":    ctx.state.String(),
	}).Info("Starting OTR session")
	e.ops.Inject(to, otr.QueryMessage)
}

// Stop ends the session with to, notifying the peer. SecurityChanged(false)
// is raised if the session was encrypted.
func (e *Engine) Stop(to string) {
	ctx, ok := e.contexts[contextKey(to)]
	if !ok {
		return
	}
	ctx.peer = to
	wasEncrypted := ctx.state == StateEncrypted
	e.inject(to, ctx.conv.End())
	ctx.state = StatePlaintext

	logrus.WithFields(logrus.Fields{
		"function":      "Stop",
		"to":            to,
		"was_encrypted": wasEncrypted,
	}).Info("Stopped OTR session")

	if wasEncrypted {
		e.ops.SecurityChanged(to, false)
	}
}

// Authenticate starts or answers a socialist millionaires' exchange with
// to. question is only sent when starting.
func (e *Engine) Authenticate(to, question, secret string) error {
	ctx := e.context(to)
	if ctx.state != StateEncrypted {
		return fmt.Errorf("authenticate %s: %w", to, ErrNotEncrypted)
	}
	toSend, err := ctx.conv.Authenticate(question, []byte(secret))
	if err != nil {
		return fmt.Errorf("authenticate %s: %w", to, err)
	}
	e.inject(to, toSend)
	return nil
}

func (e *Engine) handleChange(ctx *peerContext, from string, change otr.SecurityChange) {
	switch change {
	case otr.NewKeys:
		fp := ctx.conv.TheirPublicKey.Fingerprint()
		if e.known.add(stanza.Bare(from), e.account, fp) {
			e.saveFingerprints()
			e.ops.NewFingerprint(from, fp)
		}
		ctx.state = StateEncrypted
		e.ops.SecurityChanged(from, true)
	case otr.SMPSecretNeeded:
		e.event(from, EventSMPSecretNeeded)
	case otr.SMPComplete:
		if e.known.setTrust(stanza.Bare(from), ctx.conv.TheirPublicKey.Fingerprint(), "smp") {
			e.saveFingerprints()
		}
		e.event(from, EventSMPComplete)
	case otr.SMPFailed:
		e.event(from, EventSMPFailed)
	case otr.ConversationEnded:
		ctx.state = StateFinished
		logrus.WithFields(logrus.Fields{
			"function": "Decrypt",
			"from":     from,
		}).Info("Peer ended OTR session")
	}
}

func (e *Engine) context(addr string) *peerContext {
	key := contextKey(addr)
	ctx, ok := e.contexts[key]
	if !ok {
		ctx = &peerContext{
			conv: &otr.Conversation{
				PrivateKey:   e.key,
				FragmentSize: limits.MaxOTRMessageSize,
			},
		}
		e.contexts[key] = ctx
	}
	ctx.peer = addr
	return ctx
}

func (e *Engine) inject(to string, msgs [][]byte) {
	for _, m := range msgs {
		e.ops.Inject(to, string(m))
	}
}

func (e *Engine) event(addr string, ev Event) {
	e.ops.MessageEvent(addr, ev)
}

func (e *Engine) saveFingerprints() {
	if err := e.store.Write(FingerprintFile, e.known.marshal()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "saveFingerprints",
			"error":    err.Error(),
		}).Error("Failed to save fingerprints")
	}
}

func contextKey(addr string) string {
	return strings.ToLower(stanza.Bare(addr))
}

func toStrings(msgs [][]byte) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m)
	}
	return out
}

func randOrDefault(r io.Reader) io.Reader {
	if r == nil {
		return cryptorand.Reader
	}
	return r
}

// OTR v2 message types.
const (
	msgTypeDHCommit  = 2
	msgTypeData      = 3
	msgTypeDHKey     = 10
	msgTypeRevealSig = 17
	msgTypeSig       = 18
)

// classifyError picks the event for a message Receive rejected.
func classifyError(msg string, state MessageState) Event {
	if !strings.HasPrefix(msg, "?OTR:") || !strings.HasSuffix(msg, ".") {
		return EventRcvdMsgMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(msg[len("?OTR:") : len(msg)-1])
	if err != nil || len(raw) < 3 {
		return EventRcvdMsgMalformed
	}
	switch raw[2] {
	case msgTypeData:
		if state != StateEncrypted {
			return EventRcvdMsgNotInPrivate
		}
		return EventRcvdMsgUnreadable
	case msgTypeDHCommit, msgTypeDHKey, msgTypeRevealSig, msgTypeSig:
		return EventSetupError
	}
	return EventRcvdMsgUnrecognized
}
