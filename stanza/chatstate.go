package stanza

// ChatState is a typing notification state.
type ChatState int

// Chat states in the chatstates namespace.
const (
	StateNone ChatState = iota
	StateActive
	StateComposing
	StatePaused
	StateInactive
	StateGone
)

var chatStateNames = map[ChatState]string{
	StateActive:    "active",
	StateComposing: "composing",
	StatePaused:    "paused",
	StateInactive:  "inactive",
	StateGone:      "gone",
}

// String returns the element name of the state.
func (s ChatState) String() string {
	if n, ok := chatStateNames[s]; ok {
		return n
	}
	return "none"
}

// ParseChatState maps a chat state element name to a ChatState.
func ParseChatState(name string) (ChatState, bool) {
	for s, n := range chatStateNames {
		if n == name {
			return s, true
		}
	}
	return StateNone, false
}

// ChatStates returns the recognised chat states carried by a message, in
// document order.
func ChatStates(msg *Element) []ChatState {
	var out []ChatState
	for _, c := range msg.ChildrenNS(NSChatStates) {
		if s, ok := ParseChatState(c.Name()); ok {
			out = append(out, s)
		}
	}
	return out
}
