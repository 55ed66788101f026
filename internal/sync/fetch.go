package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/transport"
)

// FetchHistory pulls one page of a conversation's server-side history and
// folds it into the local store. An empty startMessageID starts from the
// newest message. At most one fetch per (conversation, direction) may be in
// flight; a concurrent second call fails fast with Busy.
func (e *Engine) FetchHistory(ctx context.Context, convID string, convType chat.ConvType, startMessageID string, dir chat.SearchDirection, pageSize int, cursor string) (*chat.CursorResult[*chat.Message], error) {
	const op = "sync.fetch_history"
	if convID == "" {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "conversation ID is required")
	}
	if pageSize < 0 {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "page size must be non-negative, got %d", pageSize)
	}
	if !e.connected.Load() {
		return nil, chat.Errf(chat.KindNetworkUnavailable, op, "transport disconnected")
	}

	key := fetchKey{convID: convID, dir: dir}
	if err := e.acquireFetch(key); err != nil {
		return nil, err
	}
	defer e.releaseFetch(key)

	res, err := e.tp.FetchHistory(ctx, transport.HistoryRequest{
		ConversationID: convID,
		Type:           convType,
		StartMessageID: startMessageID,
		Direction:      dir,
		PageSize:       pageSize,
		Cursor:         cursor,
	})
	if err != nil {
		// A failed fetch mutates nothing locally and is safely retryable.
		return nil, netErr(op, err)
	}

	for _, msg := range res.Items {
		cp := *msg
		cp.Status = chat.StatusSucceeded
		if cp.From == e.selfID {
			cp.Direction = chat.DirectionSend
		} else {
			cp.Direction = chat.DirectionReceive
		}
		if cp.LocalTime == 0 {
			cp.LocalTime = cp.ServerTime
		}
		if err := e.db.MergeServerMessage(&cp); err != nil {
			return nil, err
		}
	}

	if err := e.db.SetCheckpoint(historyCheckpointKey(convID, dir), res.Cursor); err != nil {
		return nil, err
	}
	e.logger.Debug("history page fetched",
		zap.String("conversation", convID),
		zap.Int("messages", len(res.Items)),
		zap.Bool("has_more", res.HasMore))
	e.hub.Publish(chat.Event{
		Kind:      chat.EventSyncCheckpoint,
		Timestamp: time.Now(),
		Payload:   convID,
	})
	return res, nil
}

// FetchConversations pulls one page of the server-side conversation list,
// ordered by descending activity time, and upserts it locally. An empty
// cursor starts from the most active conversation.
func (e *Engine) FetchConversations(ctx context.Context, cursor string, pageSize int) (*chat.CursorResult[*chat.Conversation], error) {
	const op = "sync.fetch_conversations"
	if pageSize < 0 {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "page size must be non-negative, got %d", pageSize)
	}
	if !e.connected.Load() {
		return nil, chat.Errf(chat.KindNetworkUnavailable, op, "transport disconnected")
	}

	res, err := e.tp.FetchConversations(ctx, cursor, pageSize)
	if err != nil {
		return nil, netErr(op, err)
	}
	for _, c := range res.Items {
		if err := e.db.UpsertConversation(c); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// FetchReactionUsers enumerates the users behind one reaction aggregate,
// one page at a time.
func (e *Engine) FetchReactionUsers(ctx context.Context, messageID, content, cursor string, pageSize int) (*chat.CursorResult[string], error) {
	const op = "sync.fetch_reaction_users"
	if messageID == "" || content == "" {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "message ID and content are required")
	}
	res, err := e.tp.FetchReactionUsers(ctx, messageID, content, cursor, pageSize)
	return res, netErr(op, err)
}

func historyCheckpointKey(convID string, dir chat.SearchDirection) string {
	return fmt.Sprintf("history.%s.%s", convID, dir)
}
