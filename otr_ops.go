package xmppotr

import (
	"github.com/opd-ai/xmppotr/logging"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/stanza"
)

// otrOps connects the OTR engine to the client. Every method runs on the
// protocol goroutine.
type otrOps struct {
	client *Client
}

func (o *otrOps) Inject(to, msg string) {
	o.client.transport.Send(stanza.Message(to, msg))
}

func (o *otrOps) NewFingerprint(from string, fp []byte) {
	logging.New("xmppotr", "NewFingerprint").
		WithField("from", from).
		WithField("fingerprint", logging.Fingerprint(fp)).
		Info("New OTR fingerprint")
	o.client.notifyFingerprint(from, fp)
}

func (o *otrOps) SecurityChanged(from string, secure bool) {
	o.client.securityChanged(from, secure)
}

func (o *otrOps) MessageEvent(from string, ev otr.Event) {
	o.client.notifyOTREvent(from, ev)
}

func (o *otrOps) ConfigPath(name string) string {
	if o.client.options.Resolver == nil {
		return name
	}
	return o.client.options.Resolver(name)
}
