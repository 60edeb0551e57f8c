package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
	"mellium.im/sasl"
)

// Stream negotiation namespaces.
const (
	NSTLS     = "urn:ietf:params:xml:ns:xmpp-tls"
	NSSASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	NSBind    = "urn:ietf:params:xml:ns:xmpp-bind"
	NSSession = "urn:ietf:params:xml:ns:xmpp-session"
	NSStreams = "urn:ietf:params:xml:ns:xmpp-streams"
)

// mechanisms lists the supported SASL mechanisms in order of preference.
var mechanisms = []sasl.Mechanism{
	sasl.ScramSha256,
	sasl.ScramSha1,
	sasl.Plain,
}

func (s *Stream) negotiate(ctx context.Context) error {
	features, err := s.openStream()
	if err != nil {
		return err
	}

	if !s.secure && !s.cfg.Flags.Has(FlagDisableTLS) {
		if features.ChildNS(NSTLS, "starttls") != nil {
			if err := s.startTLS(ctx); err != nil {
				return err
			}
			if features, err = s.openStream(); err != nil {
				return err
			}
		}
	}
	if !s.secure && s.cfg.Flags.Has(FlagMandatoryTLS) {
		return ErrTLSRequired
	}

	if err := s.authenticate(features); err != nil {
		return err
	}
	if features, err = s.openStream(); err != nil {
		return err
	}

	if features.ChildNS(NSBind, "bind") == nil {
		return fmt.Errorf("%w: server does not offer bind", ErrBindFailed)
	}
	if err := s.bind(); err != nil {
		return err
	}

	if sess := features.ChildNS(NSSession, "session"); sess != nil && sess.Child("optional") == nil {
		return s.startSession()
	}
	return nil
}

// openStream writes a stream header and reads the server's header and
// features.
func (s *Stream) openStream() (*stanza.Element, error) {
	domain := stanza.Domain(s.cfg.JID)
	header := fmt.Sprintf("<?xml version='1.0'?><stream:stream to='%s' xmlns='%s' xmlns:stream='%s' version='1.0'>",
		escapeAttr(domain), stanza.NSClient, stanza.NSStream)
	if _, err := io.WriteString(s.conn, header); err != nil {
		return nil, fmt.Errorf("write stream header: %w", err)
	}

	s.dec = xml.NewDecoder(s.limiter)
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read stream header: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space != stanza.NSStream || start.Name.Local != "stream" {
			return nil, fmt.Errorf("%w: unexpected <%s> opening stream", ErrStreamError, start.Name.Local)
		}
		for _, a := range start.Attr {
			if a.Name.Local == "id" {
				s.id = a.Value
			}
		}
		break
	}

	features, err := s.next()
	if err != nil {
		return nil, err
	}
	if features.XMLName.Space != stanza.NSStream || features.Name() != "features" {
		return nil, fmt.Errorf("%w: expected features, got <%s>", ErrStreamError, features.Name())
	}
	return features, nil
}

// next reads one top-level element from the stream.
func (s *Stream) next() (*stanza.Element, error) {
	for {
		s.limiter.reset()
		tok, err := s.dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el, err := stanza.Decode(s.dec, &t)
			if err != nil {
				return nil, err
			}
			if el.XMLName.Space == stanza.NSStream && el.Name() == "error" {
				return nil, streamError(el)
			}
			return el, nil
		case xml.EndElement:
			return nil, fmt.Errorf("%w: server closed stream", ErrDisconnected)
		}
	}
}

func streamError(el *stanza.Element) error {
	var cond []string
	for _, c := range el.ChildrenNS(NSStreams) {
		if c.Name() == "text" {
			if c.Text != "" {
				cond = append(cond, c.Text)
			}
			continue
		}
		cond = append(cond, c.Name())
	}
	return fmt.Errorf("%w: %s", ErrStreamError, strings.Join(cond, ": "))
}

func (s *Stream) write(el *stanza.Element) error {
	if _, err := s.conn.Write(el.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", el.Name(), err)
	}
	return nil
}

func (s *Stream) startTLS(ctx context.Context) error {
	if err := s.write(stanza.NewElement(NSTLS, "starttls")); err != nil {
		return err
	}
	resp, err := s.next()
	if err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if resp.Name() != "proceed" {
		return fmt.Errorf("starttls refused: <%s>", resp.Name())
	}
	logrus.WithFields(logrus.Fields{
		"function": "startTLS",
		"server":   stanza.Domain(s.cfg.JID),
	}).Debug("Upgrading to TLS")
	return s.upgradeTLS(ctx)
}

// selectMechanism returns the most preferred mechanism the server offers.
// PLAIN is only used over TLS or when TLS was explicitly disabled.
func (s *Stream) selectMechanism(offered []string) (sasl.Mechanism, error) {
	for _, m := range mechanisms {
		for _, name := range offered {
			if !strings.EqualFold(name, m.Name) {
				continue
			}
			if m.Name == sasl.Plain.Name && !s.secure && !s.cfg.Flags.Has(FlagDisableTLS) {
				continue
			}
			return m, nil
		}
	}
	return sasl.Mechanism{}, fmt.Errorf("%w: offered %v", ErrNoMechanism, offered)
}

func (s *Stream) authenticate(features *stanza.Element) error {
	mechs := features.ChildNS(NSSASL, "mechanisms")
	if mechs == nil {
		return fmt.Errorf("%w: server offers no SASL mechanisms", ErrNoMechanism)
	}
	var offered []string
	for _, m := range mechs.Children {
		if m.Name() == "mechanism" {
			offered = append(offered, strings.TrimSpace(m.Text))
		}
	}

	mech, err := s.selectMechanism(offered)
	if err != nil {
		return err
	}

	opts := []sasl.Option{
		sasl.RemoteMechanisms(offered...),
		sasl.Credentials(func() ([]byte, []byte, []byte) {
			return []byte(stanza.Local(s.cfg.JID)), []byte(s.cfg.Password), nil
		}),
	}
	if cs, ok := s.tlsState(); ok {
		opts = append(opts, sasl.TLSState(cs))
	}
	client := sasl.NewClient(mech, opts...)

	more, resp, err := client.Step(nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	auth := stanza.NewElement(NSSASL, "auth").SetAttr("mechanism", mech.Name)
	auth.Text = encodeSASL(resp)
	if err := s.write(auth); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "authenticate",
		"mechanism": mech.Name,
	}).Debug("Authenticating")

	for {
		el, err := s.next()
		if err != nil {
			return fmt.Errorf("sasl: %w", err)
		}
		switch el.Name() {
		case "challenge":
			data, err := decodeSASL(el.Text)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrAuthFailed, err)
			}
			more, resp, err = client.Step(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrAuthFailed, err)
			}
			r := stanza.NewElement(NSSASL, "response")
			r.Text = encodeSASL(resp)
			if err := s.write(r); err != nil {
				return err
			}
		case "success":
			if more {
				data, err := decodeSASL(el.Text)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrAuthFailed, err)
				}
				if _, _, err := client.Step(data); err != nil {
					return fmt.Errorf("%w: verify server: %v", ErrAuthFailed, err)
				}
			}
			return nil
		case "failure":
			reason := "unknown"
			for _, c := range el.Children {
				if c.Name() != "text" {
					reason = c.Name()
					break
				}
			}
			return fmt.Errorf("%w: %s", ErrAuthFailed, reason)
		default:
			return fmt.Errorf("%w: unexpected <%s>", ErrAuthFailed, el.Name())
		}
	}
}

func (s *Stream) bind() error {
	b := stanza.NewElement(NSBind, "bind")
	if s.cfg.Resource != "" {
		res := stanza.NewElement(NSBind, "resource")
		res.Text = s.cfg.Resource
		b.AddChild(res)
	}
	iq := stanza.IQ("set", "", b)
	if err := s.write(iq); err != nil {
		return err
	}

	resp, err := s.awaitIQ(iq.ID())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	if resp.Type() != "result" {
		return fmt.Errorf("%w: server returned %s", ErrBindFailed, resp.Type())
	}
	jid := ""
	if rb := resp.ChildNS(NSBind, "bind"); rb != nil {
		jid = strings.TrimSpace(rb.ChildText("jid"))
	}
	if jid == "" {
		jid = stanza.JoinJID(stanza.Bare(s.cfg.JID), s.cfg.Resource)
	}
	s.jid = jid
	return nil
}

func (s *Stream) startSession() error {
	iq := stanza.IQ("set", "", stanza.NewElement(NSSession, "session"))
	if err := s.write(iq); err != nil {
		return err
	}
	resp, err := s.awaitIQ(iq.ID())
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if resp.Type() != "result" {
		return fmt.Errorf("session: server returned %s", resp.Type())
	}
	return nil
}

// awaitIQ reads until the iq response with the given id arrives. Other
// stanzas received meanwhile are buffered for dispatch.
func (s *Stream) awaitIQ(id string) (*stanza.Element, error) {
	for {
		el, err := s.next()
		if err != nil {
			return nil, err
		}
		if el.Name() == "iq" && el.ID() == id {
			return el, nil
		}
		s.inbound = append(s.inbound, el)
	}
}

func (s *Stream) tlsState() (tls.ConnectionState, bool) {
	if tc, ok := s.conn.(*tls.Conn); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

func encodeSASL(data []byte) string {
	if len(data) == 0 {
		return "="
	}
	return base64.StdEncoding.EncodeToString(data)
}

func decodeSASL(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "=" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.New("invalid base64 in SASL payload")
	}
	return data, nil
}

func escapeAttr(v string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(v))
	return b.String()
}
