// Package delivery tracks the per-message delivery lifecycle and applies
// acknowledgments. Transitions go through the store so the persisted status
// and the published event always agree.
package delivery

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/internal/dispatch"
	"github.com/driftline/chatkit/internal/store"
)

// validTransitions defines the allowed delivery status transitions. Failed
// re-enters Delivering only through an explicit resend; there is no
// automatic retry.
var validTransitions = map[chat.Status][]chat.Status{
	chat.StatusPending:    {chat.StatusDelivering},
	chat.StatusDelivering: {chat.StatusSucceeded, chat.StatusFailed},
	chat.StatusFailed:     {chat.StatusDelivering},
	chat.StatusSucceeded:  {},
}

// Machine validates and applies delivery status transitions and ack events.
type Machine struct {
	db     *store.DB
	hub    *dispatch.Hub
	logger *zap.Logger
}

// NewMachine creates a delivery state machine over the given store.
func NewMachine(db *store.DB, hub *dispatch.Hub, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{db: db, hub: hub, logger: logger}
}

// Transition moves a message to a new delivery status. Invalid transitions
// fail with Conflict. serverTime, when positive, is merged as the
// server-assigned timestamp; sendErr is attached to failed messages for
// inspection.
func (m *Machine) Transition(msgID string, to chat.Status, serverTime int64, sendErr string) error {
	const op = "delivery.transition"
	msg, err := m.db.GetMessage(msgID)
	if err != nil {
		return err
	}
	from := msg.Status
	if !slices.Contains(validTransitions[from], to) {
		return chat.Errf(chat.KindConflict, op, "invalid transition from %s to %s for %s", from, to, msgID)
	}
	if err := m.db.SetStatus(msgID, to, serverTime, sendErr); err != nil {
		return err
	}
	m.logger.Debug("delivery status changed",
		zap.String("msg_id", msgID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	m.publish(chat.Event{
		Kind:      chat.EventMessageStatusChanged,
		Timestamp: time.Now(),
		Payload:   chat.StatusChange{MessageID: msgID, From: from, To: to},
	})
	return nil
}

// ApplyDeliveryAck flags the message delivery-acked. Idempotent; only the
// first application publishes an event.
func (m *Machine) ApplyDeliveryAck(msgID string) error {
	msg, err := m.db.GetMessage(msgID)
	if err != nil {
		return err
	}
	if msg.IsDeliverAck {
		return nil
	}
	if err := m.db.ApplyDeliveryAck(msgID); err != nil {
		return err
	}
	m.publish(chat.Event{
		Kind:      chat.EventMessageDeliveryAck,
		Timestamp: time.Now(),
		Payload:   msgID,
	})
	return nil
}

// ApplyReadAck flags the message read-acked. Idempotent.
func (m *Machine) ApplyReadAck(msgID string) error {
	msg, err := m.db.GetMessage(msgID)
	if err != nil {
		return err
	}
	if msg.IsReadAck {
		return nil
	}
	if err := m.db.ApplyReadAck(msgID); err != nil {
		return err
	}
	m.publish(chat.Event{
		Kind:      chat.EventMessageReadAck,
		Timestamp: time.Now(),
		Payload:   msgID,
	})
	return nil
}

// GroupAck is the payload of EventMessageGroupAck.
type GroupAck struct {
	MessageID string
	Member    string
	Count     int
}

// ApplyGroupAck records a group member's read acknowledgment. The count
// only grows, and equals the number of distinct acking members; a repeated
// ack from the same member changes nothing and publishes nothing.
func (m *Machine) ApplyGroupAck(msgID, member string) error {
	before, err := m.db.GroupAckCount(msgID)
	if err != nil {
		return err
	}
	count, err := m.db.AddGroupAck(msgID, member)
	if err != nil {
		return err
	}
	if count == before {
		return nil
	}
	m.publish(chat.Event{
		Kind:      chat.EventMessageGroupAck,
		Timestamp: time.Now(),
		Payload:   GroupAck{MessageID: msgID, Member: member, Count: count},
	})
	return nil
}

func (m *Machine) publish(evt chat.Event) {
	if m.hub != nil {
		m.hub.Publish(evt)
	}
}
