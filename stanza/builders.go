package stanza

import "strconv"

// Message builds a chat message with a body.
func Message(to, body string) *Element {
	m := NewElement(NSClient, "message").
		SetAttr("to", to).
		SetAttr("type", "chat").
		SetAttr("id", NewID())
	return m.AddText("body", body)
}

// ChatStateMessage builds a body-less message carrying only a chat state.
func ChatStateMessage(to string, state ChatState) *Element {
	m := NewElement(NSClient, "message").
		SetAttr("to", to).
		SetAttr("type", "chat").
		SetAttr("id", NewID())
	return m.AddChild(NewElement(NSChatStates, state.String()))
}

// Presence builds an availability presence. Priority is only included when
// positive.
func Presence(show, status string, priority int) *Element {
	p := NewElement(NSClient, "presence")
	if show != "" {
		p.AddText("show", show)
	}
	if status != "" {
		p.AddText("status", status)
	}
	if priority > 0 {
		p.AddText("priority", strconv.Itoa(priority))
	}
	return p
}

// Subscription builds a presence of the given subscription type
// (subscribe, subscribed, unsubscribe, unsubscribed) addressed to to.
func Subscription(to, typ string) *Element {
	return NewElement(NSClient, "presence").
		SetAttr("to", to).
		SetAttr("type", typ)
}

// IQ builds an iq stanza with a fresh id and an optional payload.
func IQ(typ, to string, payload *Element) *Element {
	iq := NewElement(NSClient, "iq").
		SetAttr("type", typ).
		SetAttr("to", to).
		SetAttr("id", NewID())
	if payload != nil {
		iq.AddChild(payload)
	}
	return iq
}

// Result builds the empty result response to an iq.
func Result(req *Element) *Element {
	return NewElement(NSClient, "iq").
		SetAttr("type", "result").
		SetAttr("to", req.From()).
		SetAttr("id", req.ID())
}

// ErrorReply builds an error response to an iq with the given defined
// condition, such as service-unavailable.
func ErrorReply(req *Element, errType, condition string) *Element {
	e := NewElement(NSClient, "error").SetAttr("type", errType)
	e.AddChild(NewElement(NSStanzas, condition))
	return NewElement(NSClient, "iq").
		SetAttr("type", "error").
		SetAttr("to", req.From()).
		SetAttr("id", req.ID()).
		AddChild(e)
}

// RosterQuery builds a roster get request.
func RosterQuery() *Element {
	return IQ("get", "", NewElement(NSRoster, "query"))
}

// RosterSet builds a roster set request for one item. subscription is
// empty for an add and "remove" for a removal.
func RosterSet(jid, name, subscription string) *Element {
	item := NewElement(NSRoster, "item").
		SetAttr("jid", jid).
		SetAttr("name", name).
		SetAttr("subscription", subscription)
	return IQ("set", "", NewElement(NSRoster, "query").AddChild(item))
}

// DiscoInfoResult builds the reply to a disco#info request identifying this
// client.
func DiscoInfoResult(req *Element, name string) *Element {
	q := NewElement(NSDiscoInfo, "query")
	if node := req.Child("query"); node != nil {
		q.SetAttr("node", node.Attr("node"))
	}
	q.AddChild(NewElement(NSDiscoInfo, "identity").
		SetAttr("category", "client").
		SetAttr("type", "pc").
		SetAttr("name", name))
	for _, feature := range []string{NSDiscoInfo, NSChatStates, NSXHTMLIM} {
		q.AddChild(NewElement(NSDiscoInfo, "feature").SetAttr("var", feature))
	}
	return Result(req).AddChild(q)
}
