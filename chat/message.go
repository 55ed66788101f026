package chat

import (
	"time"

	"github.com/google/uuid"
)

// ChatType distinguishes the delivery scope of a message.
type ChatType int

const (
	ChatTypeOneToOne ChatType = iota
	ChatTypeGroup
	ChatTypeRoom
)

func (t ChatType) String() string {
	switch t {
	case ChatTypeGroup:
		return "group"
	case ChatTypeRoom:
		return "room"
	default:
		return "chat"
	}
}

// Direction records whether a message was sent by or received on the local
// client.
type Direction int

const (
	DirectionSend Direction = iota
	DirectionReceive
)

// Status is the delivery status of an outgoing message.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDelivering Status = "delivering"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Message is the canonical message envelope. The ID and ConversationID are
// immutable after construction; everything else mutates through store and
// sync operations.
type Message struct {
	ID             string
	ConversationID string
	ChatType       ChatType
	Direction      Direction
	From           string
	To             string

	// ServerTime is the unix-millisecond timestamp assigned by the server
	// on receipt; zero until the server acknowledges a local send.
	ServerTime int64
	// LocalTime is the unix-millisecond timestamp when the local client
	// enqueued or received the message.
	LocalTime int64

	Status        Status
	IsRead        bool
	IsDeliverAck  bool
	IsReadAck     bool
	IsThreadMsg   bool
	NeedsGroupAck bool
	// GroupAckCount is the number of distinct group members that have
	// acknowledged reading this message. Only meaningful when
	// NeedsGroupAck is true.
	GroupAckCount int

	Body Body
	Ext  map[string]string

	Reactions []Reaction

	// Modification metadata, populated once the body has been replaced
	// through a content-modify operation.
	OperatorID    string
	OperationTime int64
	OperationN    int

	// SendError holds the failure from the last delivery attempt, for
	// inspection while the message sits in StatusFailed.
	SendError string
}

// NewMessage builds a locally originated message in StatusPending with a
// generated ID. Received and fetched messages are built directly with the
// server-assigned fields instead.
func NewMessage(conversationID string, chatType ChatType, from, to string, body Body, ext map[string]string) *Message {
	return &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		ChatType:       chatType,
		Direction:      DirectionSend,
		From:           from,
		To:             to,
		LocalTime:      time.Now().UnixMilli(),
		Status:         StatusPending,
		Body:           body,
		Ext:            ext,
	}
}

// CompareTime returns the timestamp used for ordering: the server receipt
// time when sortByServerTime is enabled and the message has one, otherwise
// the local time.
func (m *Message) CompareTime(sortByServerTime bool) int64 {
	if sortByServerTime && m.ServerTime > 0 {
		return m.ServerTime
	}
	return m.LocalTime
}

// Reaction returns the reaction aggregate for the given content, or nil.
func (m *Message) Reaction(content string) *Reaction {
	for i := range m.Reactions {
		if m.Reactions[i].Content == content {
			return &m.Reactions[i]
		}
	}
	return nil
}

// Validate checks the envelope fields required for a send.
func (m *Message) Validate() error {
	const op = "chat.message_validate"
	if m.ConversationID == "" {
		return Errf(KindInvalidParameter, op, "conversation ID is required")
	}
	if m.From == "" || m.To == "" {
		return Errf(KindInvalidParameter, op, "from and to are required")
	}
	return m.Body.Validate()
}
