package xmppotr

import (
	"context"
	"time"

	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// run is the body of the protocol goroutine.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"jid":      c.settings.Bare(),
	}).Info("Connecting")

	if err := c.transport.Connect(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"jid":      c.settings.Bare(),
			"error":    err.Error(),
		}).Warn("Connection failed")
		c.shutdown()
		return
	}

	c.transport.RegisterHandler("message", c.handleMessage)
	c.transport.RegisterHandler("presence", c.handlePresence)
	c.transport.RegisterHandler("iq", c.handleIQ)

	c.setState(StateConnected)
	c.onConnected()
	c.loop(ctx)
	c.shutdown()
}

// onConnected announces presence, asks for the roster and reports the
// startup status.
func (c *Client) onConnected() {
	p := c.settings.Presence
	c.transport.Send(stanza.Presence(p.Show, p.Status, p.Priority))
	c.queryRoster()

	logrus.WithFields(logrus.Fields{
		"function": "onConnected",
		"jid":      c.transport.JID(),
	}).Info("Connected")

	c.notifyStatus(roster.ParseStatus("", p.Show))
}

func (c *Client) loop(ctx context.Context) {
	keepAlive := time.NewTimer(c.options.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		c.transport.RunOnce(c.options.PollTimeout)
		c.queue.Drain(nil)

		if c.stopping || c.transport.IsDisconnected() || ctx.Err() != nil {
			return
		}
		if c.transport.SendQueueLen() > 0 {
			continue
		}

		keepAlive.Reset(c.options.KeepAliveInterval)
		select {
		case <-c.transport.Readable():
		case <-c.queue.Ready():
		case <-ctx.Done():
		case <-keepAlive.C:
			c.transport.KeepAlive()
		}
	}
}

// shutdown tears the connection down and reports offline. Calls still
// queued are dropped.
func (c *Client) shutdown() {
	if c.stopping && !c.transport.IsDisconnected() {
		c.transport.RunOnce(0)
	}
	if err := c.transport.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "shutdown",
			"error":    err.Error(),
		}).Debug("Closing transport")
	}
	dropped := c.queue.Close()

	c.presence.Reset()
	for _, conv := range c.directory.Conversations() {
		for _, s := range conv.Sessions() {
			s.Online = false
		}
		if s := conv.NoResource(); s != nil {
			s.Online = false
		}
	}

	c.setState(StateDisconnected)

	logrus.WithFields(logrus.Fields{
		"function": "shutdown",
		"jid":      c.settings.Bare(),
		"dropped":  dropped,
		"stopped":  c.stopping,
	}).Info("Disconnected")

	c.notifyStatus(roster.StatusOffline)
}
