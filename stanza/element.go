package stanza

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Namespaces used by the client.
const (
	NSClient     = "jabber:client"
	NSStream     = "http://etherx.jabber.org/streams"
	NSRoster     = "jabber:iq:roster"
	NSChatStates = "http://jabber.org/protocol/chatstates"
	NSXHTMLIM    = "http://jabber.org/protocol/xhtml-im"
	NSXHTML      = "http://www.w3.org/1999/xhtml"
	NSDiscoInfo  = "http://jabber.org/protocol/disco#info"
	NSStanzas    = "urn:ietf:params:xml:ns:xmpp-stanzas"
)

// Element is a generic XML element.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*Element `xml:",any"`
	Text     string     `xml:",chardata"`
	Inner    []byte     `xml:",innerxml"`
}

// NewElement creates an element with the given namespace and local name.
func NewElement(space, local string) *Element {
	return &Element{XMLName: xml.Name{Space: space, Local: local}}
}

// Name returns the local name of the element.
func (e *Element) Name() string {
	return e.XMLName.Local
}

// Attr returns the value of the named attribute, ignoring its namespace.
func (e *Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// SetAttr sets an attribute, replacing an existing value. Empty values are
// not written.
func (e *Element) SetAttr(name, value string) *Element {
	for i, a := range e.Attrs {
		if a.Name.Local == name {
			if value == "" {
				e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			} else {
				e.Attrs[i].Value = value
			}
			return e
		}
	}
	if value != "" {
		e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	}
	return e
}

// Type returns the type attribute.
func (e *Element) Type() string { return e.Attr("type") }

// From returns the from attribute.
func (e *Element) From() string { return e.Attr("from") }

// To returns the to attribute.
func (e *Element) To() string { return e.Attr("to") }

// ID returns the id attribute.
func (e *Element) ID() string { return e.Attr("id") }

// Child returns the first child with the given local name, or nil.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children {
		if c.XMLName.Local == local {
			return c
		}
	}
	return nil
}

// ChildNS returns the first child with the given namespace and local name.
func (e *Element) ChildNS(space, local string) *Element {
	for _, c := range e.Children {
		if c.XMLName.Local == local && c.XMLName.Space == space {
			return c
		}
	}
	return nil
}

// ChildrenNS returns all children in the given namespace.
func (e *Element) ChildrenNS(space string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.XMLName.Space == space {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the character data of the first child with the given
// local name.
func (e *Element) ChildText(local string) string {
	if c := e.Child(local); c != nil {
		return c.Text
	}
	return ""
}

// AddChild appends c and returns e.
func (e *Element) AddChild(c *Element) *Element {
	e.Children = append(e.Children, c)
	return e
}

// AddText appends a child with the given name and text content.
func (e *Element) AddText(local, text string) *Element {
	c := NewElement("", local)
	c.Text = text
	return e.AddChild(c)
}

// Bytes serializes the element. Namespaces are written as xmlns attributes
// only where they differ from the parent's.
func (e *Element) Bytes() []byte {
	var buf bytes.Buffer
	e.write(&buf, NSClient)
	return buf.Bytes()
}

// String implements fmt.Stringer.
func (e *Element) String() string {
	return string(e.Bytes())
}

func (e *Element) write(buf *bytes.Buffer, parentNS string) {
	buf.WriteByte('<')
	buf.WriteString(e.XMLName.Local)
	if e.XMLName.Space != "" && e.XMLName.Space != parentNS {
		writeAttr(buf, "xmlns", e.XMLName.Space)
	}
	for _, a := range e.Attrs {
		if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
			continue
		}
		name := a.Name.Local
		if a.Name.Space == "xml" || a.Name.Space == "http://www.w3.org/XML/1998/namespace" {
			name = "xml:" + name
		}
		writeAttr(buf, name, a.Value)
	}
	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if e.Text != "" {
		_ = xml.EscapeText(buf, []byte(e.Text))
	}
	ns := parentNS
	if e.XMLName.Space != "" {
		ns = e.XMLName.Space
	}
	for _, c := range e.Children {
		c.write(buf, ns)
	}
	fmt.Fprintf(buf, "</%s>", e.XMLName.Local)
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteByte('"')
}

// Decode reads the next element from d starting at start.
func Decode(d *xml.Decoder, start *xml.StartElement) (*Element, error) {
	var e Element
	if err := d.DecodeElement(&e, start); err != nil {
		return nil, fmt.Errorf("decode %s: %w", start.Name.Local, err)
	}
	return &e, nil
}

// Parse decodes a single element from raw XML.
func Parse(raw []byte) (*Element, error) {
	var e Element
	if err := xml.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("parse stanza: %w", err)
	}
	return &e, nil
}
