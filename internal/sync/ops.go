package sync

import (
	"context"
	"time"

	"github.com/driftline/chatkit/chat"
)

// Recall withdraws a previously sent message. The message keeps its slot in
// the conversation history; its body is replaced with recall metadata
// holding the recaller identity and a snapshot of the original body.
// Recalling an already-recalled message fails with Conflict.
func (e *Engine) Recall(ctx context.Context, messageID string) error {
	const op = "sync.recall"
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Body.Type == chat.BodyRecall {
		return chat.Errf(chat.KindConflict, op, "message %s already recalled", messageID)
	}
	if err := e.tp.RecallMessage(ctx, msg.ConversationID, messageID); err != nil {
		return netErr(op, err)
	}

	snapshot := msg.Body
	if err := e.db.SetRecalled(messageID, chat.RecallBody{
		RecalledBy: e.selfID,
		RecallTime: time.Now().UnixMilli(),
		Original:   &snapshot,
	}); err != nil {
		return err
	}
	recalled, err := e.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageRecalled,
		Timestamp: time.Now(),
		Payload: chat.RecallNotice{
			ConversationID: msg.ConversationID,
			RecalledBy:     e.selfID,
			Message:        recalled,
		},
	})
	return nil
}

// Modify replaces the body of a sent message. Only the body changes; the
// operation records the operator and time and bumps the operation count.
func (e *Engine) Modify(ctx context.Context, messageID string, body chat.Body) (*chat.Message, error) {
	const op = "sync.modify"
	if err := body.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.db.GetMessage(messageID); err != nil {
		return nil, err
	}
	if err := e.tp.ModifyMessage(ctx, messageID, body); err != nil {
		return nil, netErr(op, err)
	}
	if err := e.db.ReplaceBody(messageID, body, e.selfID, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	modified, err := e.db.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageModified,
		Timestamp: time.Now(),
		Payload:   modified,
	})
	return modified, nil
}

// AddReaction adds the local user's reaction to a message.
func (e *Engine) AddReaction(ctx context.Context, messageID, content string) error {
	return e.applyLocalReaction(ctx, messageID, content, true)
}

// RemoveReaction removes the local user's reaction from a message.
func (e *Engine) RemoveReaction(ctx context.Context, messageID, content string) error {
	return e.applyLocalReaction(ctx, messageID, content, false)
}

func (e *Engine) applyLocalReaction(ctx context.Context, messageID, content string, added bool) error {
	const op = "sync.reaction"
	if content == "" {
		return chat.Errf(chat.KindInvalidParameter, op, "reaction content is required")
	}
	if _, err := e.db.GetMessage(messageID); err != nil {
		return err
	}
	var err error
	if added {
		err = e.tp.AddReaction(ctx, messageID, content)
	} else {
		err = e.tp.RemoveReaction(ctx, messageID, content)
	}
	if err != nil {
		return netErr(op, err)
	}
	if err := e.db.ApplyReaction(messageID, content, e.selfID, added); err != nil {
		return err
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageReactionChanged,
		Timestamp: time.Now(),
		Payload:   chat.Reaction{MessageID: messageID, Content: content, AddedBySelf: added},
	})
	return nil
}

// SendReadAck reports to the server that the local user read a message and
// marks it read locally.
func (e *Engine) SendReadAck(ctx context.Context, messageID string) error {
	const op = "sync.send_read_ack"
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if err := e.tp.SendReadAck(ctx, msg.ConversationID, messageID); err != nil {
		return netErr(op, err)
	}
	return e.db.MarkMessageRead(msg.ConversationID, chat.ConvType(msg.ChatType), messageID)
}

// SendGroupAck reports the local user's group read acknowledgment.
func (e *Engine) SendGroupAck(ctx context.Context, messageID, content string) error {
	const op = "sync.send_group_ack"
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if !msg.NeedsGroupAck {
		return chat.Errf(chat.KindInvalidParameter, op, "message %s does not require group acks", messageID)
	}
	return netErr(op, e.tp.SendGroupAck(ctx, messageID, content))
}

// AckConversationRead reports the whole conversation read and zeroes the
// local unread count.
func (e *Engine) AckConversationRead(ctx context.Context, convID string, convType chat.ConvType) error {
	const op = "sync.ack_conversation_read"
	if err := e.tp.SendConversationReadAck(ctx, convID); err != nil {
		return netErr(op, err)
	}
	return e.db.MarkAllRead(convID, convType)
}

// DeleteServerMessages removes messages from both the server and the local
// store. Per-message local failures are reported in the failure map while
// the remaining deletions proceed.
func (e *Engine) DeleteServerMessages(ctx context.Context, convID string, convType chat.ConvType, messageIDs []string) (map[string]error, error) {
	const op = "sync.delete_server_messages"
	if len(messageIDs) == 0 {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "message IDs are required")
	}
	if err := e.tp.DeleteServerMessages(ctx, convID, messageIDs); err != nil {
		return nil, netErr(op, err)
	}
	failed := make(map[string]error)
	for _, id := range messageIDs {
		if err := e.db.DeleteMessage(convID, convType, id); err != nil {
			failed[id] = err
		}
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return failed, chat.Errf(chat.KindStorage, op, "%d of %d local deletions failed", len(failed), len(messageIDs))
}
