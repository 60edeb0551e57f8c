package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opd-ai/xmppotr/config"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	calls    []string
	requests *roster.RequestManager
}

func (f *fakeCommander) record(format string, args ...any) {
	f.calls = append(f.calls, strings.TrimSpace(strings.Join(append([]string{format}, toStrings(args)...), " ")))
}

func toStrings(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			out[i] = v
		case bool:
			if v {
				out[i] = "true"
			} else {
				out[i] = "false"
			}
		case int:
			out[i] = strings.Repeat("#", v)
		}
	}
	return out
}

func (f *fakeCommander) SendMessage(to, text string, encrypt bool) error {
	f.record("msg", to, text, encrypt)
	return nil
}
func (f *fakeCommander) SendPresence(show, status string, priority int) {
	f.record("presence", show, status, priority)
}
func (f *fakeCommander) QueryContacts() { f.record("query") }
func (f *fakeCommander) AddContact(address, name string) { f.record("add", address, name) }
func (f *fakeCommander) RemoveContact(address string, unsubscribe bool) {
	f.record("remove", address, unsubscribe)
}
func (f *fakeCommander) Authorize(address string) { f.record("authorize", address) }
func (f *fakeCommander) Deny(address string) { f.record("deny", address) }
func (f *fakeCommander) StartEncryption(address string) { f.record("otr-start", address) }
func (f *fakeCommander) StopEncryption(address string) { f.record("otr-stop", address) }
func (f *fakeCommander) AuthenticateEncryption(address, question, secret string) {
	f.record("smp", address, question, secret)
}
func (f *fakeCommander) Stop() { f.record("stop") }
func (f *fakeCommander) Fingerprint() []byte { return []byte{0xde, 0xad, 0xbe, 0xef} }
func (f *fakeCommander) Requests() *roster.RequestManager {
	if f.requests == nil {
		f.requests = roster.NewRequestManager()
	}
	return f.requests
}

func TestConsoleCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"/msg bob@example.org hello there", "msg bob@example.org hello there true"},
		{"/otr start bob@example.org", "otr-start bob@example.org"},
		{"/otr stop bob@example.org", "otr-stop bob@example.org"},
		{"/otr smp bob@example.org rex pet name?", "smp bob@example.org pet name? rex"},
		{"/presence away at lunch", "presence away at lunch"},
		{"/presence online", "presence"},
		{"/priority 2", "presence   ##"},
		{"/add carol@example.org Carol C", "add carol@example.org Carol C"},
		{"/remove carol@example.org", "remove carol@example.org true"},
		{"/authorize dave@example.org", "authorize dave@example.org"},
		{"/deny eve@example.org", "deny eve@example.org"},
		{"/roster", "query"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			fc := &fakeCommander{}
			con := newConsole(fc, &bytes.Buffer{})
			quit, err := con.handle(tt.line)
			require.NoError(t, err)
			assert.False(t, quit)
			require.Len(t, fc.calls, 1)
			assert.Equal(t, tt.want, fc.calls[0])
		})
	}
}

func TestConsoleUsageErrors(t *testing.T) {
	for _, line := range []string{"/msg bob@example.org", "/otr start", "/otr smp bob@example.org", "/remove", "/priority x", "/bogus", "/otr dance bob@example.org"} {
		t.Run(line, func(t *testing.T) {
			fc := &fakeCommander{}
			_, err := newConsole(fc, &bytes.Buffer{}).handle(line)
			assert.Error(t, err)
			assert.Empty(t, fc.calls)
		})
	}
}

func TestConsoleReplyToLast(t *testing.T) {
	fc := &fakeCommander{}
	con := newConsole(fc, &bytes.Buffer{})

	_, err := con.handle("hello?")
	assert.Error(t, err)

	_, err = con.handle("/msg bob@example.org hi")
	require.NoError(t, err)
	_, err = con.handle("how are you")
	require.NoError(t, err)
	assert.Equal(t, "msg bob@example.org how are you true", fc.calls[1])
}

func TestConsoleQuitAndEOF(t *testing.T) {
	fc := &fakeCommander{}
	con := newConsole(fc, &bytes.Buffer{})
	quit, err := con.handle("/quit")
	require.NoError(t, err)
	assert.True(t, quit)
	assert.Equal(t, []string{"stop"}, fc.calls)

	fc = &fakeCommander{}
	con = newConsole(fc, &bytes.Buffer{})
	con.run(strings.NewReader("/msg bob@example.org hi\n"))
	assert.Equal(t, []string{"msg bob@example.org hi true", "stop"}, fc.calls)
}

func TestConsoleFingerprintAndHelp(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&fakeCommander{}, &out)

	_, err := con.handle("/fingerprint")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "DEADBEEF")

	_, err = con.handle("/help")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "/otr smp")
}

func TestConsoleRosterShowsBestPresence(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&fakeCommander{}, &out)
	con.contacts = []roster.Contact{
		{JID: "bob@example.org", Name: "Bob", Subscription: roster.SubscriptionBoth},
		{JID: "carol@example.org", Name: "Carol", Subscription: roster.SubscriptionTo},
	}

	p := roster.NewPresence()
	p.Update("bob@example.org/pc", "", "away", "lunch")
	p.Update("bob@example.org/phone", "", "chat", "")
	con.updatePresence("bob@example.org", p)

	_, err := con.handle("/roster")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "chat (2)")
	assert.Contains(t, lines[1], "offline")

	p.Update("bob@example.org/pc", "unavailable", "", "")
	p.Update("bob@example.org/phone", "unavailable", "", "")
	con.updatePresence("bob@example.org", p)
	out.Reset()
	_, err = con.handle("/roster")
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "chat")
}

func TestConsoleRequests(t *testing.T) {
	var out bytes.Buffer
	fc := &fakeCommander{}
	con := newConsole(fc, &out)

	_, err := con.handle("/requests")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no pending requests")

	fc.Requests().Add("dave@example.org/pc", "let me in")
	fc.Requests().Add("eve@example.org", "")
	fc.Requests().Accept("eve@example.org")
	out.Reset()
	_, err = con.handle("/requests")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "dave@example.org")
	assert.Contains(t, out.String(), "let me in")
	assert.NotContains(t, out.String(), "eve@example.org")
	assert.Empty(t, fc.calls)
}

func TestConfigInitAndFingerprint(t *testing.T) {
	tmp := t.TempDir()

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", tmp, "config", "init"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), filepath.Join(tmp, config.FileName))

	root = rootCmd()
	root.SetArgs([]string{"--config", tmp, "config", "init"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())

	out.Reset()
	root = rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", tmp, "fingerprint"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "user@example.org: ")
	_, err := os.Stat(filepath.Join(tmp, "otr.private_key"))
	assert.NoError(t, err)
}

func TestFingerprintWithoutConfig(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", t.TempDir(), "fingerprint"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config init")
}
