package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/opd-ai/xmppotr"
	"github.com/opd-ai/xmppotr/logging"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/opd-ai/xmppotr/roster"
	"github.com/opd-ai/xmppotr/stanza"
)

// commander is the part of the client the console drives.
type commander interface {
	SendMessage(to, text string, encrypt bool) error
	SendPresence(show, status string, priority int)
	QueryContacts()
	AddContact(address, name string)
	RemoveContact(address string, unsubscribe bool)
	Authorize(address string)
	Deny(address string)
	StartEncryption(address string)
	StopEncryption(address string)
	AuthenticateEncryption(address, question, secret string)
	Stop()
	Fingerprint() []byte
	Requests() *roster.RequestManager
}

// presenceSource is the read side of the client's presence table.
type presenceSource interface {
	Best(addr string) (roster.ResourcePresence, bool)
	Resources(addr string) []roster.ResourcePresence
}

// contactPresence is the console's copy of a contact's best presence.
type contactPresence struct {
	status    roster.Status
	resources int
}

var errUsage = errors.New("usage")

const help = `Commands:
  /msg <jid> <text>           send a message (encrypted when a session exists)
  /otr start|stop <jid>       start or end an OTR session
  /otr smp <jid> <secret> [question]
                              verify the contact with a shared secret
  /presence [show] [status]   set availability (chat, away, dnd, xa)
  /add <jid> [name]           add a contact
  /remove <jid>               remove a contact
  /authorize <jid>            accept a subscription request
  /deny <jid>                 refuse a subscription request
  /roster                     list contacts
  /requests                   list pending subscription requests
  /fingerprint                show your OTR fingerprint
  /quit                       disconnect
Text without a command goes to the last contact messaged.
`

// console is a line-oriented chat front end.
type console struct {
	client commander

	mu       sync.Mutex
	out      io.Writer
	last     string
	contacts []roster.Contact
	presence map[string]contactPresence
}

func newConsole(client commander, out io.Writer) *console {
	return &console{
		client:   client,
		out:      out,
		presence: make(map[string]contactPresence),
	}
}

// updatePresence copies the best presence of bare out of p. It runs on the
// protocol goroutine.
func (c *console) updatePresence(bare string, p presenceSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	best, ok := p.Best(bare)
	if !ok {
		delete(c.presence, bare)
		return
	}
	c.presence[bare] = contactPresence{
		status:    best.Status,
		resources: len(p.Resources(bare)),
	}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// log is the sink for forwarded log lines.
func (c *console) log(line string) {
	c.printf("log: %s", line)
}

// attach registers the console's callbacks on the client.
func (c *console) attach(client *xmppotr.Client) {
	client.OnStatus(func(s roster.Status) {
		if s == roster.StatusOffline {
			c.mu.Lock()
			clear(c.presence)
			c.mu.Unlock()
		}
		c.printf("* status: %s\n", s)
	})
	client.OnMessage(func(from, text string, secure bool) {
		c.mu.Lock()
		c.last = stanza.Bare(from)
		c.mu.Unlock()
		lock := " "
		if secure {
			lock = "*"
		}
		c.printf("%s<%s> %s\n", lock, from, text)
	})
	client.OnChatState(func(from string, state stanza.ChatState) {
		if state == stanza.StateComposing {
			c.printf("* %s is typing\n", from)
		}
	})
	client.OnPresence(func(from, typ, show, status string) {
		c.updatePresence(strings.ToLower(stanza.Bare(from)), client.Presence())
		c.printf("* %s is %s %s\n", from, roster.ParseStatus(typ, show), status)
	})
	client.OnSubscriptionRequest(func(from string) {
		c.printf("* %s wants to see your presence (/authorize or /deny)\n", from)
	})
	client.OnSecurityStatus(func(from string, secure bool) {
		if secure {
			c.printf("* private conversation with %s started\n", from)
		} else {
			c.printf("* private conversation with %s ended\n", from)
		}
	})
	client.OnFingerprint(func(from string, fp []byte) {
		c.printf("* new fingerprint for %s: %s\n", from, logging.Fingerprint(fp))
	})
	client.OnOTREvent(func(from string, ev otr.Event) {
		c.printf("* otr %s: %s (%d)\n", from, ev, int(ev))
	})
	client.OnRosterUpdate(func(contacts []roster.Contact) {
		c.mu.Lock()
		c.contacts = contacts
		c.mu.Unlock()
		c.printf("* %d contacts\n", len(contacts))
	})
	client.OnContactsQueryFailed(func() {
		c.printf("* could not fetch contacts\n")
	})
}

// run reads commands until /quit or end of input, then stops the client.
func (c *console) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		quit, err := c.handle(scanner.Text())
		if err != nil {
			c.printf("error: %v\n", err)
		}
		if quit {
			return
		}
	}
	c.client.Stop()
}

// handle executes one input line. It reports whether the console should
// exit.
func (c *console) handle(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		c.mu.Lock()
		to := c.last
		c.mu.Unlock()
		if to == "" {
			return false, errors.New("no recipient, use /msg first")
		}
		return false, c.client.SendMessage(to, line, true)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	args := strings.Fields(rest)
	switch name {
	case "msg":
		to, text, ok := strings.Cut(strings.TrimSpace(rest), " ")
		if !ok || strings.TrimSpace(text) == "" {
			return false, fmt.Errorf("%w: /msg <jid> <text>", errUsage)
		}
		c.mu.Lock()
		c.last = to
		c.mu.Unlock()
		return false, c.client.SendMessage(to, strings.TrimSpace(text), true)
	case "otr":
		return false, c.otr(args)
	case "presence":
		show, status := "", ""
		if len(args) > 0 {
			show = args[0]
			if show == "online" {
				show = ""
			}
		}
		if len(args) > 1 {
			status = strings.Join(args[1:], " ")
		}
		c.client.SendPresence(show, status, 0)
	case "priority":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /priority <n>", errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid priority: %w", err)
		}
		c.client.SendPresence("", "", n)
	case "add":
		if len(args) < 1 {
			return false, fmt.Errorf("%w: /add <jid> [name]", errUsage)
		}
		c.client.AddContact(args[0], strings.Join(args[1:], " "))
	case "remove":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /remove <jid>", errUsage)
		}
		c.client.RemoveContact(args[0], true)
	case "authorize":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /authorize <jid>", errUsage)
		}
		c.client.Authorize(args[0])
	case "deny":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /deny <jid>", errUsage)
		}
		c.client.Deny(args[0])
	case "roster":
		c.printRoster()
		c.client.QueryContacts()
	case "requests":
		pending := c.client.Requests().Pending()
		if len(pending) == 0 {
			c.printf("no pending requests\n")
		}
		for _, req := range pending {
			c.printf("  %-30s %s %s\n", req.From, req.Timestamp.Format("15:04"), req.Status)
		}
	case "fingerprint":
		fp := c.client.Fingerprint()
		if fp == nil {
			return false, errors.New("OTR is disabled")
		}
		c.printf("%s\n", logging.Fingerprint(fp))
	case "help":
		c.printf("%s", help)
	case "quit":
		c.client.Stop()
		return true, nil
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return false, nil
}

func (c *console) otr(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: /otr start|stop|smp <jid>", errUsage)
	}
	to := args[1]
	switch args[0] {
	case "start":
		c.client.StartEncryption(to)
	case "stop":
		c.client.StopEncryption(to)
	case "smp":
		if len(args) < 3 {
			return fmt.Errorf("%w: /otr smp <jid> <secret> [question]", errUsage)
		}
		c.client.AuthenticateEncryption(to, strings.Join(args[3:], " "), args[2])
	default:
		return fmt.Errorf("unknown otr command %q", args[0])
	}
	return nil
}

func (c *console) printRoster() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, contact := range c.contacts {
		state := roster.StatusOffline.String()
		if p, ok := c.presence[strings.ToLower(contact.JID)]; ok {
			state = p.status.String()
			if p.resources > 1 {
				state = fmt.Sprintf("%s (%d)", state, p.resources)
			}
		}
		fmt.Fprintf(c.out, "  %-30s %-6s %-10s %s\n", contact.JID, contact.Subscription, state, contact.Name)
	}
}
