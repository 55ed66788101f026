package chat

// ConvType is the conversation type. Together with the conversation ID it
// forms the composite identity of a conversation.
type ConvType int

const (
	ConvOneToOne ConvType = iota
	ConvGroup
	ConvRoom
)

func (t ConvType) String() string {
	switch t {
	case ConvGroup:
		return "group"
	case ConvRoom:
		return "room"
	default:
		return "chat"
	}
}

// ConvKey is the composite conversation identity.
type ConvKey struct {
	ID   string
	Type ConvType
}

// Conversation is a read view of a conversation record. Counts and the
// latest message are derived fields maintained by the store; mutating them
// here has no effect on stored state.
type Conversation struct {
	ID   string
	Type ConvType

	UnreadCount  int
	MessageCount int

	Ext map[string]string

	Pinned bool
	// PinnedTime is the unix-millisecond timestamp when the conversation
	// was pinned; zero when not pinned.
	PinnedTime int64

	IsThread bool

	// LatestMessage is the most recent message by compare time, or nil for
	// an empty conversation.
	LatestMessage *Message

	// ActiveTime is the conversation activity timestamp: the latest
	// message's compare time, or the creation time when no messages exist.
	ActiveTime int64
}

// Key returns the composite identity.
func (c *Conversation) Key() ConvKey {
	return ConvKey{ID: c.ID, Type: c.Type}
}
