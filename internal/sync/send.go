package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/transport"
)

// Send validates and persists a locally originated message, then runs a
// delivery attempt: pending -> delivering -> succeeded/failed. A failed
// message stays in the store with its error attached, ready for Resend.
func (e *Engine) Send(ctx context.Context, msg *chat.Message, progress transport.ProgressFunc) (*chat.Message, error) {
	const op = "sync.send"
	if msg == nil {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "message is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	msg.Status = chat.StatusPending
	if err := e.db.AppendMessage(msg); err != nil {
		return nil, err
	}
	return e.attempt(ctx, msg.ID, progress)
}

// Resend re-runs delivery for a message in the Failed state, reusing the
// stored message verbatim.
func (e *Engine) Resend(ctx context.Context, messageID string, progress transport.ProgressFunc) (*chat.Message, error) {
	const op = "sync.resend"
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status != chat.StatusFailed {
		return nil, chat.Errf(chat.KindConflict, op, "message %s is %s, only failed messages can be resent", messageID, msg.Status)
	}
	return e.attempt(ctx, messageID, progress)
}

// attempt moves the message into Delivering, uploads any pending
// attachment, and invokes the transport. Attachment progress is clamped
// so observers only ever see non-decreasing values in [0,100].
func (e *Engine) attempt(ctx context.Context, messageID string, progress transport.ProgressFunc) (*chat.Message, error) {
	if err := e.machine.Transition(messageID, chat.StatusDelivering, 0, ""); err != nil {
		return nil, err
	}
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return nil, err
	}

	if err := e.uploadAttachment(ctx, msg, progress); err != nil {
		return e.fail(messageID, err)
	}

	res, err := e.tp.SendMessage(ctx, msg)
	if err != nil {
		return e.fail(messageID, netErr("sync.send", err))
	}

	if err := e.machine.Transition(messageID, chat.StatusSucceeded, res.ServerTime, ""); err != nil {
		return nil, err
	}
	e.logger.Info("message sent",
		zap.String("msg_id", messageID),
		zap.String("conversation", msg.ConversationID))
	e.publishConversationUpdated(msg.ConversationID)
	return e.db.GetMessage(messageID)
}

func (e *Engine) fail(messageID string, cause error) (*chat.Message, error) {
	if terr := e.machine.Transition(messageID, chat.StatusFailed, 0, cause.Error()); terr != nil {
		e.logger.Error("failed to record send failure", zap.String("msg_id", messageID), zap.Error(terr))
	}
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	return msg, cause
}

// uploadAttachment uploads the local file behind an attachment body that
// has no remote reference yet, recording the resulting reference on the
// message.
func (e *Engine) uploadAttachment(ctx context.Context, msg *chat.Message, progress transport.ProgressFunc) error {
	const op = "sync.upload_attachment"
	att := msg.Body.Attachment()
	if att == nil || att.RemotePath != "" {
		return nil
	}
	if e.atts == nil {
		return chat.Errf(chat.KindInvalidParameter, op, "no attachment collaborator configured for %s body", msg.Body.Type)
	}

	remoteRef, err := e.atts.Upload(ctx, att.LocalPath, monotonic(progress))
	if err != nil {
		return netErr(op, err)
	}
	att.RemotePath = remoteRef
	return e.db.SetBody(msg.ID, msg.Body)
}

// monotonic wraps a progress callback so reported percentages are clamped
// to [0,100] and never decrease.
func monotonic(progress transport.ProgressFunc) transport.ProgressFunc {
	if progress == nil {
		return nil
	}
	last := -1
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent <= last {
			return
		}
		last = percent
		progress(percent)
	}
}
