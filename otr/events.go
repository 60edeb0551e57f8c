package otr

// Event is a message event reported through Ops.MessageEvent. The values
// below SMP events match libotr's OtrlMessageEvent numbering.
type Event int

const (
	EventNone                    Event = 0
	EventEncryptionRequired      Event = 1
	EventEncryptionError         Event = 2
	EventConnectionEnded         Event = 3
	EventSetupError              Event = 4
	EventMsgReflected            Event = 5
	EventMsgResent               Event = 6
	EventRcvdMsgNotInPrivate     Event = 7
	EventRcvdMsgUnreadable       Event = 8
	EventRcvdMsgMalformed        Event = 9
	EventLogHeartbeatRcvd        Event = 10
	EventLogHeartbeatSent        Event = 11
	EventRcvdMsgGeneralErr       Event = 12
	EventRcvdMsgUnencrypted      Event = 13
	EventRcvdMsgUnrecognized     Event = 14
	EventRcvdMsgForOtherInstance Event = 15

	// SMP progress.
	EventSMPSecretNeeded Event = 100
	EventSMPComplete     Event = 101
	EventSMPFailed       Event = 102
)

var eventNames = map[Event]string{
	EventNone:                    "none",
	EventEncryptionRequired:      "encryption required",
	EventEncryptionError:         "encryption error",
	EventConnectionEnded:         "connection ended",
	EventSetupError:              "setup error",
	EventMsgReflected:            "message reflected",
	EventMsgResent:               "message resent",
	EventRcvdMsgNotInPrivate:     "received message not in private",
	EventRcvdMsgUnreadable:       "received unreadable message",
	EventRcvdMsgMalformed:        "received malformed message",
	EventLogHeartbeatRcvd:        "heartbeat received",
	EventLogHeartbeatSent:        "heartbeat sent",
	EventRcvdMsgGeneralErr:       "received general error",
	EventRcvdMsgUnencrypted:      "received unencrypted message",
	EventRcvdMsgUnrecognized:     "received unrecognized message",
	EventRcvdMsgForOtherInstance: "received message for other instance",
	EventSMPSecretNeeded:         "smp secret needed",
	EventSMPComplete:             "smp complete",
	EventSMPFailed:               "smp failed",
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "unknown"
}

// Outcome is the result class of Engine.Decrypt.
type Outcome int

const (
	// OutcomeMessage means a user message was decrypted.
	OutcomeMessage Outcome = 0
	// OutcomeInternal means the input was a protocol message with nothing
	// to show the user.
	OutcomeInternal Outcome = 1
	// OutcomeError means the input could not be processed. An event has
	// already been raised.
	OutcomeError Outcome = 2
	// OutcomeUnencrypted means the input carried readable plain text
	// outside an encrypted session.
	OutcomeUnencrypted Outcome = 3
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeMessage:
		return "message"
	case OutcomeInternal:
		return "internal"
	case OutcomeError:
		return "error"
	case OutcomeUnencrypted:
		return "unencrypted"
	}
	return "unknown"
}

// MessageState is the per-contact OTR state.
type MessageState int

const (
	StatePlaintext MessageState = iota
	StateEncrypted
	StateFinished
)

// String implements fmt.Stringer.
func (s MessageState) String() string {
	switch s {
	case StatePlaintext:
		return "plaintext"
	case StateEncrypted:
		return "encrypted"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// Policy is a set of OTR policy bits.
type Policy uint

const (
	PolicyAllowV1 Policy = 1 << iota
	PolicyAllowV2
	PolicyAllowV3
	PolicyRequireEncryption
	PolicySendWhitespaceTag
	PolicyWhitespaceStartAKE
	PolicyErrorStartAKE
)

// DefaultPolicy is the policy every contact gets.
const DefaultPolicy = PolicyAllowV2
