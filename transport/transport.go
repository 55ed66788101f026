// Package transport defines the contracts the sync engine consumes from its
// network-facing collaborators. Connection management, wire formats and
// attachment transfer mechanics live behind these interfaces and are not
// implemented here, with the exception of an in-memory transport used for
// testing.
package transport

import (
	"context"

	"github.com/driftline/chatkit/chat"
)

// ConnState is a transport connection state transition.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// SendResult carries the server-assigned fields merged into a message after
// a successful send. Message IDs are stable across local and remote
// representations, so no ID rewrite happens here.
type SendResult struct {
	// ServerTime is the unix-millisecond timestamp the server assigned on
	// receipt.
	ServerTime int64
}

// HistoryRequest asks for one page of a conversation's server-side history.
type HistoryRequest struct {
	ConversationID string
	Type           chat.ConvType
	// StartMessageID anchors the page; empty means "from the newest
	// message".
	StartMessageID string
	Direction      chat.SearchDirection
	PageSize       int
	Cursor         string
}

// EventKind tags a server-pushed event.
type EventKind int

const (
	EventMessage EventKind = iota
	EventRecall
	EventDeliveryAck
	EventReadAck
	EventGroupAck
	EventModify
	EventReaction
)

// Event is a server-pushed event delivered on the transport's event stream.
// The fields populated depend on Kind.
type Event struct {
	Kind EventKind

	// Message is the pushed message (EventMessage) or the modified message
	// (EventModify).
	Message *chat.Message

	// ConversationID and MessageID identify the target of recall and ack
	// events.
	ConversationID string
	MessageID      string

	// Actor is the user behind the event: recaller, acker, modifier or
	// reactor.
	Actor string

	// Reaction fields (EventReaction).
	ReactionContent string
	ReactionAdded   bool
}

// Transport is the remote messaging server as seen by the sync engine.
// Implementations own connection lifecycle; the engine only observes state
// transitions via ConnectionStates.
type Transport interface {
	SendMessage(ctx context.Context, msg *chat.Message) (SendResult, error)
	FetchHistory(ctx context.Context, req HistoryRequest) (*chat.CursorResult[*chat.Message], error)
	FetchConversations(ctx context.Context, cursor string, pageSize int) (*chat.CursorResult[*chat.Conversation], error)
	RecallMessage(ctx context.Context, conversationID, messageID string) error
	ModifyMessage(ctx context.Context, messageID string, body chat.Body) error
	AddReaction(ctx context.Context, messageID, content string) error
	RemoveReaction(ctx context.Context, messageID, content string) error
	FetchReactionUsers(ctx context.Context, messageID, content, cursor string, pageSize int) (*chat.CursorResult[string], error)
	SendDeliveryAck(ctx context.Context, conversationID, messageID string) error
	SendReadAck(ctx context.Context, conversationID, messageID string) error
	SendGroupAck(ctx context.Context, messageID, content string) error
	SendConversationReadAck(ctx context.Context, conversationID string) error
	DeleteServerMessages(ctx context.Context, conversationID string, messageIDs []string) error

	// Events yields server-pushed events in server-delivery order.
	Events() <-chan Event
	// ConnectionStates yields connection state transitions.
	ConnectionStates() <-chan ConnState
}

// ProgressFunc reports attachment transfer progress as a percentage in
// [0,100]. Implementations must report non-decreasing values.
type ProgressFunc func(percent int)

// Attachments is the attachment transfer collaborator. The engine depends
// only on the final remote reference and the progress stream.
type Attachments interface {
	Upload(ctx context.Context, localPath string, progress ProgressFunc) (remoteRef string, err error)
	Download(ctx context.Context, remoteRef, localPath string, progress ProgressFunc) error
}
