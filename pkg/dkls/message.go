package dkls

// BroadcastRecipient is a sentinel a transport can use for "every party" —
// fixed here per spec.md §9's Open Question, since N <= 255 keeps real party
// ids inside [0, 254] and 0xFF free for this purpose. The core itself marks
// a broadcast with a nil ToID and never encodes this value. See
// SPEC_FULL.md §6.
const BroadcastRecipient = 0xFF

// Message is the opaque unit of exchange between sessions. The core never
// inspects payload bytes for authenticity — that is the transport's job
// (spec.md §4.9/§6) — it only validates the semantic content once decoded.
type Message struct {
	FromID  uint8
	ToID    *uint8 // nil means broadcast
	Payload []byte
}

// NewMessage builds a message. toID == nil marks a broadcast.
func NewMessage(payload []byte, fromID uint8, toID *uint8) Message {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return Message{FromID: fromID, ToID: toID, Payload: buf}
}

// Clone duplicates the message, including its payload bytes, so the
// original can be reused or dropped independently (spec.md §5).
func (m Message) Clone() Message {
	return NewMessage(m.Payload, m.FromID, m.ToID)
}

// IsBroadcast reports whether the message targets every party.
func (m Message) IsBroadcast() bool { return m.ToID == nil }

func ptrU8(v uint8) *uint8 { return &v }
