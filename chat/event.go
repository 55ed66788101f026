package chat

import "time"

// Event kinds published by the client. Observers filter by prefix, so
// related kinds share a namespace.
const (
	EventMessageReceived        = "message.received"
	EventMessageStatusChanged   = "message.status_changed"
	EventMessageRecalled        = "message.recalled"
	EventMessageModified        = "message.modified"
	EventMessageReactionChanged = "message.reaction_changed"
	EventMessageDeliveryAck     = "message.delivery_ack"
	EventMessageReadAck         = "message.read_ack"
	EventMessageGroupAck        = "message.group_ack"
	EventConversationUpdated    = "conversation.updated"
	EventConnectionChanged      = "connection.state_changed"
	EventSyncCheckpoint         = "sync.checkpoint"
)

// Event is a domain event fanned out to registered observers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// RecallNotice is the payload of EventMessageRecalled. Recalls surface on
// their own event kind, never as ordinary received messages.
type RecallNotice struct {
	ConversationID string
	RecalledBy     string
	// Message is the retained message with its body replaced by recall
	// metadata.
	Message *Message
}

// StatusChange is the payload of EventMessageStatusChanged.
type StatusChange struct {
	MessageID string
	From      Status
	To        Status
}

// Observer receives events. Observers are tracked by identity, so
// implementations must be comparable — use a pointer receiver. Slow
// observers delay only their own queue, not other observers.
type Observer interface {
	HandleEvent(Event)
}

// Executor runs observer callbacks on a caller-chosen execution context.
// A nil executor at registration time selects a dedicated serial goroutine,
// the closest analogue of a UI main queue this library can provide.
type Executor interface {
	Do(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Do(fn func()) { f(fn) }
