// Package conversation models the client's conversations: one Conversation
// per bare contact address, holding a Session per resource the contact has
// been seen on plus an optional Session for the bare address itself.
//
// The directory is owned by the protocol goroutine and is not safe for
// concurrent use.
package conversation

import (
	"slices"
	"strings"

	"github.com/opd-ai/xmppotr/stanza"
	"github.com/sirupsen/logrus"
)

// Session is one endpoint of a conversation: either a specific resource of
// the contact, or the contact's bare address.
type Session struct {
	conv *Conversation

	// Resource is empty for the no-resource session.
	Resource string
	// Online reports whether the resource is currently available.
	Online bool
	// OTR reports whether encryption was requested for this session.
	OTR bool
	// Encrypted reports whether the OTR session is currently secure.
	Encrypted bool
}

// Conversation returns the conversation the session belongs to.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Address returns the full address the session talks to.
func (s *Session) Address() string {
	return stanza.JoinJID(s.conv.bare, s.Resource)
}

// Conversation groups the sessions of one contact.
type Conversation struct {
	bare       string
	noResource *Session
	sessions   []*Session

	// SessionSelected is set once the host has picked a session to talk to.
	SessionSelected bool
	// UserData1 and UserData2 hold host state, such as a window handle.
	UserData1 any
	UserData2 any
}

// Bare returns the bare address of the contact.
func (c *Conversation) Bare() string {
	return c.bare
}

// NoResource returns the session for the bare address, or nil.
func (c *Conversation) NoResource() *Session {
	return c.noResource
}

// Sessions returns the resource sessions in creation order. The returned
// slice is a copy.
func (c *Conversation) Sessions() []*Session {
	return slices.Clone(c.sessions)
}

// Session returns the session for resource, or nil. An empty resource
// returns the no-resource session.
func (c *Conversation) Session(resource string) *Session {
	if resource == "" {
		return c.noResource
	}
	for _, s := range c.sessions {
		if s.Resource == resource {
			return s
		}
	}
	return nil
}

func (c *Conversation) session(resource string) *Session {
	if s := c.Session(resource); s != nil {
		return s
	}
	s := &Session{conv: c, Resource: resource}
	if resource == "" {
		c.noResource = s
	} else {
		c.sessions = append(c.sessions, s)
	}
	return s
}

// SetEncrypted updates the security state of every session.
func (c *Conversation) SetEncrypted(secure bool) {
	if c.noResource != nil {
		c.noResource.Encrypted = secure
	}
	for _, s := range c.sessions {
		s.Encrypted = secure
	}
}

// SetOTR records whether encryption is requested on every session.
func (c *Conversation) SetOTR(enabled bool) {
	if c.noResource != nil {
		c.noResource.OTR = enabled
	}
	for _, s := range c.sessions {
		s.OTR = enabled
	}
}

// SetOnline updates the availability of a resource, creating its session if
// needed.
func (c *Conversation) SetOnline(resource string, online bool) *Session {
	s := c.session(resource)
	s.Online = online
	return s
}

// Online reports whether any session is online.
func (c *Conversation) Online() bool {
	if c.noResource != nil && c.noResource.Online {
		return true
	}
	for _, s := range c.sessions {
		if s.Online {
			return true
		}
	}
	return false
}

// Encrypted reports whether any session is secure.
func (c *Conversation) Encrypted() bool {
	if c.noResource != nil && c.noResource.Encrypted {
		return true
	}
	for _, s := range c.sessions {
		if s.Encrypted {
			return true
		}
	}
	return false
}

// Directory maps bare addresses to conversations.
type Directory struct {
	conversations []*Conversation
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Conversation returns the conversation for the bare form of addr, or nil.
func (d *Directory) Conversation(addr string) *Conversation {
	bare := stanza.Bare(addr)
	for _, c := range d.conversations {
		if strings.EqualFold(c.bare, bare) {
			return c
		}
	}
	return nil
}

// Conversations returns all conversations in creation order. The returned
// slice is a copy.
func (d *Directory) Conversations() []*Conversation {
	return slices.Clone(d.conversations)
}

// Len returns the number of conversations.
func (d *Directory) Len() int {
	return len(d.conversations)
}

// Session returns the session for a full address, creating the conversation
// and session as needed. Repeated calls with the same address return the
// same session until it is removed.
func (d *Directory) Session(fullAddress string) *Session {
	bare, resource := stanza.SplitJID(fullAddress)
	c := d.Conversation(bare)
	if c == nil {
		c = &Conversation{bare: bare}
		d.conversations = append(d.conversations, c)
		logrus.WithFields(logrus.Fields{
			"function": "Session",
			"contact":  bare,
		}).Debug("Created conversation")
	}
	return c.session(resource)
}

// RemoveSession detaches s from its conversation. The conversation itself
// remains in the directory.
func (d *Directory) RemoveSession(s *Session) {
	if s == nil || s.conv == nil {
		return
	}
	c := s.conv
	if c.noResource == s {
		c.noResource = nil
		return
	}
	if i := slices.Index(c.sessions, s); i >= 0 {
		c.sessions = slices.Delete(c.sessions, i, i+1)
	}
}

// Remove tears down the conversation for addr and all its sessions. It
// reports whether a conversation was removed.
func (d *Directory) Remove(addr string) bool {
	c := d.Conversation(addr)
	if c == nil {
		return false
	}
	i := slices.Index(d.conversations, c)
	d.conversations = slices.Delete(d.conversations, i, i+1)
	c.noResource = nil
	c.sessions = nil
	return true
}
