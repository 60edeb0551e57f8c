// Package queue implements the call queue used to marshal work from any
// goroutine onto the single protocol goroutine of a client.
//
// Producers call Submit; the protocol goroutine selects on Ready and runs
// pending calls with Drain. Calls run exactly once, in submission order.
package queue

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Call is a unit of work executed on the protocol goroutine. Any payload is
// captured by the closure.
type Call func()

// Queue is a multi-producer, single-consumer FIFO of calls.
type Queue struct {
	mu      sync.Mutex
	pending []Call
	closed  bool
	ready   chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
	}
}

// Submit appends c to the queue and signals Ready. It never blocks beyond
// taking the queue lock. Calls submitted after Close are dropped.
func (q *Queue) Submit(c Call) {
	if c == nil {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Submit",
		}).Debug("Queue closed, dropping call")
		return
	}
	q.pending = append(q.pending, c)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready returns a channel that receives a value whenever calls are pending.
// Signals coalesce: one receive may stand for many submissions.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain runs every call pending at the time of the call, in FIFO order, on
// the calling goroutine, and returns how many ran. Calls submitted while
// draining are picked up by the next Drain.
func (q *Queue) Drain(run func(Call)) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if run == nil {
		run = func(c Call) { c() }
	}
	for _, c := range batch {
		run(c)
	}
	return len(batch)
}

// Len returns the number of pending calls.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close discards pending calls and makes later submissions no-ops. It
// returns the number of calls discarded.
func (q *Queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.pending)
	q.pending = nil
	q.closed = true
	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"dropped":  dropped,
		}).Debug("Discarded pending calls")
	}
	return dropped
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
