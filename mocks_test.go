package xmppotr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/opd-ai/xmppotr/transport"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// mockTransport is an in-memory transport driven by the test.
// ---------------------------------------------------------------------------

type mockTransport struct {
	connectErr error
	jid        string

	mu           sync.Mutex
	inbound      []*stanza.Element
	outbound     []*stanza.Element
	sent         []*stanza.Element
	keepAlives   int
	closed       bool
	disconnected bool
	readable     chan struct{}

	// Protocol goroutine only.
	handlers   map[string][]transport.Handler
	idHandlers map[string]transport.Handler
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		readable:   make(chan struct{}, 1),
		handlers:   make(map[string][]transport.Handler),
		idHandlers: make(map[string]transport.Handler),
	}
}

func (m *mockTransport) Connect(ctx context.Context) error {
	if m.connectErr != nil {
		m.mu.Lock()
		m.disconnected = true
		m.mu.Unlock()
		return m.connectErr
	}
	m.jid = "alice@example.org/test"
	return nil
}

func (m *mockTransport) Send(el *stanza.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disconnected {
		return
	}
	m.outbound = append(m.outbound, el)
}

func (m *mockTransport) KeepAlive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepAlives++
}

func (m *mockTransport) RunOnce(timeout time.Duration) {
	m.mu.Lock()
	m.sent = append(m.sent, m.outbound...)
	m.outbound = nil
	waiting := len(m.inbound) == 0 && !m.disconnected
	m.mu.Unlock()

	if waiting && timeout > 0 {
		select {
		case <-m.readable:
		case <-time.After(timeout):
		}
	}

	m.mu.Lock()
	batch := m.inbound
	m.inbound = nil
	m.mu.Unlock()

	for _, el := range batch {
		if el.Name() == "iq" && (el.Type() == "result" || el.Type() == "error") {
			if h, ok := m.idHandlers[el.ID()]; ok {
				delete(m.idHandlers, el.ID())
				h(el)
				continue
			}
		}
		for _, h := range m.handlers[el.Name()] {
			h(el)
		}
	}
}

func (m *mockTransport) SendQueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outbound)
}

func (m *mockTransport) Readable() <-chan struct{} {
	return m.readable
}

func (m *mockTransport) IsDisconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

func (m *mockTransport) RegisterHandler(name string, h transport.Handler) {
	m.handlers[name] = append(m.handlers[name], h)
}

func (m *mockTransport) RegisterIDHandler(id string, h transport.Handler) {
	m.idHandlers[id] = h
}

func (m *mockTransport) JID() string {
	return m.jid
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.disconnected = true
	return nil
}

// deliver queues raw XML as if it had been received from the server.
func (m *mockTransport) deliver(t *testing.T, raw string) {
	t.Helper()
	el, err := stanza.Parse([]byte(raw))
	require.NoError(t, err)
	m.mu.Lock()
	m.inbound = append(m.inbound, el)
	m.mu.Unlock()
	m.signal()
}

func (m *mockTransport) disconnect() {
	m.mu.Lock()
	m.disconnected = true
	m.mu.Unlock()
	m.signal()
}

func (m *mockTransport) signal() {
	select {
	case m.readable <- struct{}{}:
	default:
	}
}

func (m *mockTransport) sentStanzas() []*stanza.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*stanza.Element(nil), m.sent...)
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) keepAliveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepAlives
}

// waitSent waits for a sent stanza matching match.
func (m *mockTransport) waitSent(t *testing.T, match func(el *stanza.Element) bool) *stanza.Element {
	t.Helper()
	var found *stanza.Element
	require.Eventually(t, func() bool {
		for _, el := range m.sentStanzas() {
			if match(el) {
				found = el
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

// ---------------------------------------------------------------------------
// fakeCrypto stands in for the OTR engine.
// ---------------------------------------------------------------------------

type decryptResult struct {
	text    string
	outcome otr.Outcome
}

type fakeCrypto struct {
	ops otr.Ops

	mu        sync.Mutex
	states    map[string]otr.MessageState
	responses map[string]decryptResult
	started   []string
	stopped   []string
	authErr   error
	authCalls int
}

func newFakeCrypto(ops otr.Ops) *fakeCrypto {
	return &fakeCrypto{
		ops:       ops,
		states:    make(map[string]otr.MessageState),
		responses: make(map[string]decryptResult),
	}
}

func (f *fakeCrypto) setState(addr string, state otr.MessageState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[stanza.Bare(addr)] = state
}

func (f *fakeCrypto) respond(ciphertext, text string, outcome otr.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[ciphertext] = decryptResult{text: text, outcome: outcome}
}

func (f *fakeCrypto) Encrypt(to, plaintext string) ([]string, otr.Event) {
	switch f.State(to) {
	case otr.StateFinished:
		f.ops.MessageEvent(to, otr.EventConnectionEnded)
		return nil, otr.EventConnectionEnded
	case otr.StateEncrypted:
		return []string{"?OTR:" + plaintext + "."}, otr.EventNone
	}
	return []string{plaintext}, otr.EventNone
}

func (f *fakeCrypto) Decrypt(from, ciphertext string) (string, otr.Outcome) {
	f.mu.Lock()
	r, ok := f.responses[ciphertext]
	f.mu.Unlock()
	if !ok {
		f.ops.MessageEvent(from, otr.EventRcvdMsgUnreadable)
		return "", otr.OutcomeError
	}
	return r.text, r.outcome
}

func (f *fakeCrypto) Start(to string) {
	f.mu.Lock()
	f.started = append(f.started, to)
	f.mu.Unlock()
	f.ops.Inject(to, "?OTRv2?")
}

func (f *fakeCrypto) Stop(to string) {
	f.mu.Lock()
	f.stopped = append(f.stopped, to)
	was := f.states[stanza.Bare(to)]
	f.states[stanza.Bare(to)] = otr.StatePlaintext
	f.mu.Unlock()
	if was == otr.StateEncrypted {
		f.ops.SecurityChanged(to, false)
	}
}

func (f *fakeCrypto) Authenticate(to, question, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return f.authErr
}

func (f *fakeCrypto) State(addr string) otr.MessageState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[stanza.Bare(addr)]
}

func (f *fakeCrypto) Fingerprint() []byte {
	return []byte("0123456789abcdefghij")
}

// ---------------------------------------------------------------------------
// recorder collects callback invocations.
// ---------------------------------------------------------------------------

type receivedMessage struct {
	from   string
	text   string
	secure bool
}

type securityChange struct {
	from   string
	secure bool
}

type otrEvent struct {
	from  string
	event otr.Event
}

type recorder struct {
	status        chan roster.Status
	messages      chan receivedMessage
	chatStates    chan stanza.ChatState
	presence      chan string
	subscriptions chan string
	security      chan securityChange
	fingerprints  chan string
	events        chan otrEvent
	rosters       chan []roster.Contact
	queryFailed   chan struct{}
}

func newRecorder(c *Client) *recorder {
	r := &recorder{
		status:        make(chan roster.Status, 16),
		messages:      make(chan receivedMessage, 256),
		chatStates:    make(chan stanza.ChatState, 16),
		presence:      make(chan string, 16),
		subscriptions: make(chan string, 16),
		security:      make(chan securityChange, 16),
		fingerprints:  make(chan string, 16),
		events:        make(chan otrEvent, 16),
		rosters:       make(chan []roster.Contact, 16),
		queryFailed:   make(chan struct{}, 16),
	}
	c.OnStatus(func(s roster.Status) { r.status <- s })
	c.OnMessage(func(from, text string, secure bool) {
		r.messages <- receivedMessage{from, text, secure}
	})
	c.OnChatState(func(from string, s stanza.ChatState) { r.chatStates <- s })
	c.OnPresence(func(from, typ, show, status string) {
		r.presence <- from + "|" + typ + "|" + show + "|" + status
	})
	c.OnSubscriptionRequest(func(from string) { r.subscriptions <- from })
	c.OnSecurityStatus(func(from string, secure bool) {
		r.security <- securityChange{from, secure}
	})
	c.OnFingerprint(func(from string, fp []byte) { r.fingerprints <- from })
	c.OnOTREvent(func(from string, ev otr.Event) { r.events <- otrEvent{from, ev} })
	c.OnRosterUpdate(func(contacts []roster.Contact) { r.rosters <- contacts })
	c.OnContactsQueryFailed(func() { r.queryFailed <- struct{}{} })
	return r
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	var zero T
	return zero
}

// ---------------------------------------------------------------------------
// harness wires a Client to the mocks and runs it.
// ---------------------------------------------------------------------------

type harness struct {
	client    *Client
	transport *mockTransport
	crypto    *fakeCrypto
	rec       *recorder
	cancel    context.CancelFunc
}

func testSettings() AccountSettings {
	return AccountSettings{
		JID:      "alice@example.org",
		Password: "secret",
		Resource: "test",
	}
}

func testOptions(mt *mockTransport, fc **fakeCrypto) *Options {
	opts := NewOptions()
	opts.PollTimeout = time.Millisecond
	opts.KeepAliveInterval = time.Hour
	opts.NewTransport = func(AccountSettings) transport.Transport { return mt }
	opts.NewCrypto = func(account string, ops otr.Ops) (Crypto, error) {
		*fc = newFakeCrypto(ops)
		return *fc, nil
	}
	return opts
}

// newHarness creates a client without starting it.
func newHarness(t *testing.T, configure func(o *Options)) *harness {
	t.Helper()
	h := &harness{transport: newMockTransport()}
	opts := testOptions(h.transport, &h.crypto)
	if configure != nil {
		configure(opts)
	}
	c, err := New(testSettings(), opts)
	require.NoError(t, err)
	h.client = c
	h.rec = newRecorder(c)
	return h
}

// start runs the client and waits for it to report online.
func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(func() {
		cancel()
		<-h.client.Done()
	})
	require.NoError(t, h.client.Run(ctx))
	require.Equal(t, roster.StatusOnline, receive(t, h.rec.status))
}

// startedHarness creates and starts a client.
func startedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	h.start(t)
	return h
}

// onProtocol runs fn on the protocol goroutine and waits for it.
func (h *harness) onProtocol(t *testing.T, fn func(c *Client)) {
	t.Helper()
	done := make(chan struct{})
	h.client.Call(func(c *Client) {
		fn(c)
		close(done)
	})
	receive(t, done)
}
