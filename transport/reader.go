package transport

import (
	"errors"
	"io"
	"net"

	"github.com/sirupsen/logrus"
)

// readLoop decodes stanzas until the connection fails and buffers them for
// RunOnce.
func (s *Stream) readLoop() {
	for {
		el, err := s.next()
		if err != nil {
			if s.disconnected.Load() && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)) {
				s.signal()
				return
			}
			s.fail(err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"function": "readLoop",
			"stanza":   el.Name(),
			"from":     el.From(),
		}).Debug("Received stanza")

		s.mu.Lock()
		s.inbound = append(s.inbound, el)
		s.mu.Unlock()
		s.signal()
	}
}
