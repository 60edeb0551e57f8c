package roster

import (
	"strings"
	"sync"
	"time"

	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// Request is an inbound presence subscription request.
type Request struct {
	From      string
	Status    string
	Timestamp time.Time
	Handled   bool
}

// RequestManager tracks pending subscription requests.
type RequestManager struct {
	pending      []*Request
	timeProvider TimeProvider
	mu           sync.RWMutex
}

// NewRequestManager creates an empty request manager.
func NewRequestManager() *RequestManager {
	return NewRequestManagerWithTimeProvider(defaultTimeProvider)
}

// NewRequestManagerWithTimeProvider creates a request manager using tp for
// timestamps.
func NewRequestManagerWithTimeProvider(tp TimeProvider) *RequestManager {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &RequestManager{timeProvider: tp}
}

// Add records a subscribe presence from addr. A repeated request from the
// same contact refreshes the existing entry and reports false.
func (m *RequestManager) Add(addr, status string) (*Request, bool) {
	m.mu.Lock()
	bare := stanza.Bare(addr)
	now := m.timeProvider.Now()

	for _, existing := range m.pending {
		if strings.EqualFold(existing.From, bare) {
			existing.Status = status
			existing.Timestamp = now
			existing.Handled = false
			m.mu.Unlock()
			return existing, false
		}
	}

	req := &Request{From: bare, Status: status, Timestamp: now}
	m.pending = append(m.pending, req)
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Add",
		"from":     bare,
	}).Info("Subscription request received")

	return req, true
}

// Pending returns the unhandled requests.
func (m *RequestManager) Pending() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Request
	for _, req := range m.pending {
		if !req.Handled {
			out = append(out, *req)
		}
	}
	return out
}

// Accept marks the request from addr handled. It reports whether an
// unhandled request existed.
func (m *RequestManager) Accept(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := stanza.Bare(addr)
	for _, req := range m.pending {
		if strings.EqualFold(req.From, bare) && !req.Handled {
			req.Handled = true
			return true
		}
	}
	return false
}

// Reject drops the request from addr.
func (m *RequestManager) Reject(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := stanza.Bare(addr)
	for i, req := range m.pending {
		if strings.EqualFold(req.From, bare) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all requests.
func (m *RequestManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}
