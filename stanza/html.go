package stanza

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// FlattenHTML returns the text content of an XHTML-IM payload. Block
// elements and <br/> become line breaks.
func FlattenHTML(raw []byte) string {
	z := html.NewTokenizer(bytes.NewReader(raw))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteByte('\n')
			case "p", "div", "li":
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte('\n')
				}
			}
		}
	}
}

// HTMLBody returns the flattened text of a message's XHTML-IM body, and
// whether one was present.
func HTMLBody(msg *Element) (string, bool) {
	h := msg.Child("html")
	if h == nil {
		return "", false
	}
	body := h.Child("body")
	if body == nil {
		return "", false
	}
	return FlattenHTML(body.Inner), true
}
