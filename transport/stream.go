package transport

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/xmppotr/limits"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the client port used when SRV lookup fails.
	DefaultPort = 5222
	// DefaultLegacySSLPort is the port for FlagLegacySSL connections.
	DefaultLegacySSLPort = 5223
	// DefaultTimeout bounds connection negotiation when the context has no
	// deadline.
	DefaultTimeout = 30 * time.Second
	// WriteTimeout bounds each flush.
	WriteTimeout = 30 * time.Second
)

// Config describes the account a Stream connects as.
type Config struct {
	// JID is the bare account address.
	JID      string
	Password string
	// Resource is requested at bind time. The server assigns one if empty.
	Resource string
	// Host and Port bypass SRV lookup when Host is set.
	Host  string
	Port  int
	Flags Flags

	// TLSConfig is cloned for STARTTLS and legacy SSL. ServerName defaults
	// to the account domain.
	TLSConfig *tls.Config
	// Dial replaces net.Dialer.DialContext.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
	// Resolver is used for SRV lookups. nil means net.DefaultResolver.
	Resolver *net.Resolver
}

// Stream is a client-to-server XMPP stream.
type Stream struct {
	cfg Config

	conn    net.Conn
	dec     *xml.Decoder
	limiter *stanzaLimiter
	secure  bool
	jid     string
	id      string

	handlers   map[string][]Handler
	idHandlers map[string]Handler
	outbound   [][]byte

	mu       sync.Mutex
	inbound  []*stanza.Element
	readErr  error
	readable chan struct{}

	connected    atomic.Bool
	disconnected atomic.Bool
	closeOnce    sync.Once
}

// NewStream creates an unconnected stream.
func NewStream(cfg Config) *Stream {
	return &Stream{
		cfg:        cfg,
		handlers:   make(map[string][]Handler),
		idHandlers: make(map[string]Handler),
		readable:   make(chan struct{}, 1),
	}
}

// Connect dials the server and negotiates TLS, authentication and resource
// binding. On success the reader goroutine is started.
func (s *Stream) Connect(ctx context.Context) error {
	if !s.connected.CompareAndSwap(false, true) {
		return errors.New("stream already connected")
	}

	addr := s.address(ctx)
	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"jid":      s.cfg.JID,
		"addr":     addr,
		"flags":    uint(s.cfg.Flags),
	}).Info("Connecting")

	conn, err := s.dial(ctx, addr)
	if err != nil {
		s.disconnected.Store(true)
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	s.setConn(conn)

	if s.cfg.Flags.Has(FlagLegacySSL) {
		if err := s.upgradeTLS(ctx); err != nil {
			s.abort()
			return err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		s.abort()
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := s.negotiate(ctx); err != nil {
		s.abort()
		return err
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		s.abort()
		return fmt.Errorf("clear deadline: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"jid":      s.jid,
		"secure":   s.secure,
	}).Info("Stream established")

	go s.readLoop()
	return nil
}

func (s *Stream) dial(ctx context.Context, addr string) (net.Conn, error) {
	if s.cfg.Dial != nil {
		return s.cfg.Dial(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func (s *Stream) setConn(conn net.Conn) {
	s.conn = conn
	s.limiter = &stanzaLimiter{r: conn}
}

func (s *Stream) abort() {
	s.disconnected.Store(true)
	if s.conn != nil {
		s.conn.Close()
	}
}

// address picks the host:port to dial.
func (s *Stream) address(ctx context.Context) string {
	port := s.cfg.Port
	if port == 0 {
		port = DefaultPort
		if s.cfg.Flags.Has(FlagLegacySSL) {
			port = DefaultLegacySSLPort
		}
	}
	if s.cfg.Host != "" {
		return net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	}

	domain := stanza.Domain(s.cfg.JID)
	if !s.cfg.Flags.Has(FlagLegacySSL) {
		if host, srvPort, ok := s.lookupSRV(ctx, domain); ok {
			return net.JoinHostPort(host, strconv.Itoa(srvPort))
		}
	}
	return net.JoinHostPort(domain, strconv.Itoa(port))
}

func (s *Stream) tlsConfig() *tls.Config {
	var cfg *tls.Config
	if s.cfg.TLSConfig != nil {
		cfg = s.cfg.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = stanza.Domain(s.cfg.JID)
	}
	if s.cfg.Flags.Has(FlagTrustTLS) {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (s *Stream) upgradeTLS(ctx context.Context) error {
	tc := tls.Client(s.conn, s.tlsConfig())
	if err := tc.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("tls handshake: %w", err)
	}
	s.setConn(tc)
	s.secure = true
	return nil
}

// JID implements Transport.
func (s *Stream) JID() string {
	return s.jid
}

// Secure reports whether the connection is encrypted.
func (s *Stream) Secure() bool {
	return s.secure
}

// RegisterHandler implements Transport.
func (s *Stream) RegisterHandler(name string, h Handler) {
	s.handlers[name] = append(s.handlers[name], h)
}

// RegisterIDHandler implements Transport.
func (s *Stream) RegisterIDHandler(id string, h Handler) {
	s.idHandlers[id] = h
}

// Send implements Transport. Stanzas sent after the connection is lost are
// dropped.
func (s *Stream) Send(el *stanza.Element) {
	if s.disconnected.Load() {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"stanza":   el.Name(),
		}).Debug("Dropping stanza on disconnected stream")
		return
	}
	s.outbound = append(s.outbound, el.Bytes())
}

// KeepAlive implements Transport.
func (s *Stream) KeepAlive() {
	if !s.disconnected.Load() {
		s.outbound = append(s.outbound, []byte(" "))
	}
}

// SendQueueLen implements Transport.
func (s *Stream) SendQueueLen() int {
	return len(s.outbound)
}

// Readable implements Transport.
func (s *Stream) Readable() <-chan struct{} {
	return s.readable
}

// IsDisconnected implements Transport.
func (s *Stream) IsDisconnected() bool {
	return s.disconnected.Load()
}

// Err returns why the stream was lost, if it was.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// RunOnce implements Transport.
func (s *Stream) RunOnce(timeout time.Duration) {
	s.flush()

	if s.pending() == 0 && !s.disconnected.Load() && timeout > 0 {
		timer := time.NewTimer(timeout)
		select {
		case <-s.readable:
		case <-timer.C:
		}
		timer.Stop()
	}

	s.dispatch()
}

func (s *Stream) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound)
}

func (s *Stream) flush() {
	if len(s.outbound) == 0 || s.conn == nil {
		return
	}
	if s.disconnected.Load() {
		s.outbound = nil
		return
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		s.fail(fmt.Errorf("set write deadline: %w", err))
		s.outbound = nil
		return
	}
	for i, data := range s.outbound {
		if _, err := s.conn.Write(data); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "flush",
				"dropped":  len(s.outbound) - i,
				"error":    err.Error(),
			}).Warn("Write failed")
			s.fail(fmt.Errorf("write: %w", err))
			break
		}
	}
	s.outbound = nil
}

func (s *Stream) dispatch() {
	s.mu.Lock()
	batch := s.inbound
	s.inbound = nil
	s.mu.Unlock()

	for _, el := range batch {
		s.handle(el)
	}
}

func (s *Stream) handle(el *stanza.Element) {
	if el.Name() == "iq" {
		if t := el.Type(); t == "result" || t == "error" {
			if h, ok := s.idHandlers[el.ID()]; ok {
				delete(s.idHandlers, el.ID())
				h(el)
				return
			}
		}
	}

	handlers := s.handlers[el.Name()]
	if len(handlers) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"stanza":   el.Name(),
		}).Debug("No handler for stanza")
		return
	}
	for _, h := range handlers {
		h(el)
	}
}

// Close implements Transport.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.conn == nil {
			s.disconnected.Store(true)
			return
		}
		if !s.disconnected.Swap(true) {
			s.conn.SetWriteDeadline(time.Now().Add(time.Second))
			io.WriteString(s.conn, "</stream:stream>")
		}
		err = s.conn.Close()
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"jid":      s.jid,
		}).Info("Stream closed")
	})
	return err
}

// fail records the first connection error and marks the stream lost.
func (s *Stream) fail(err error) {
	s.mu.Lock()
	if s.readErr == nil {
		s.readErr = err
	}
	s.mu.Unlock()

	if !s.disconnected.Swap(true) {
		logrus.WithFields(logrus.Fields{
			"function": "fail",
			"error":    err.Error(),
		}).Warn("Stream disconnected")
	}
	s.signal()
}

func (s *Stream) signal() {
	select {
	case s.readable <- struct{}{}:
	default:
	}
}

// stanzaLimiter caps the bytes read for one top-level stanza.
type stanzaLimiter struct {
	r io.Reader
	n int
}

func (l *stanzaLimiter) Read(p []byte) (int, error) {
	if l.n > limits.MaxStanzaSize {
		return 0, fmt.Errorf("%w: stanza exceeds %d bytes", limits.ErrMessageTooLarge, limits.MaxStanzaSize)
	}
	n, err := l.r.Read(p)
	l.n += n
	return n, err
}

func (l *stanzaLimiter) reset() {
	l.n = 0
}
