package transport

import (
	"context"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// lookupSRV resolves the _xmpp-client._tcp record for domain and returns the
// highest priority target.
func (s *Stream) lookupSRV(ctx context.Context, domain string) (string, int, bool) {
	r := s.cfg.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	_, addrs, err := r.LookupSRV(ctx, "xmpp-client", "tcp", domain)
	if err != nil || len(addrs) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "lookupSRV",
			"domain":   domain,
		}).Debug("No SRV record, using domain")
		return "", 0, false
	}
	target := strings.TrimSuffix(addrs[0].Target, ".")
	if target == "" {
		return "", 0, false
	}
	return target, int(addrs[0].Port), true
}
