package client

import (
	"context"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/transport"
)

// Async runs op in its own goroutine and delivers the result through cb on
// exec. A nil exec invokes cb on the operation goroutine. Every blocking
// client method can be made callback-style this way; the wrappers below
// cover the common ones.
//
// There is no cancellation beyond ctx: a caller that no longer cares simply
// ignores the callback.
func Async[T any](ctx context.Context, exec chat.Executor, op func(context.Context) (T, error), cb func(T, error)) {
	go func() {
		v, err := op(ctx)
		if cb == nil {
			return
		}
		if exec == nil {
			cb(v, err)
			return
		}
		exec.Do(func() { cb(v, err) })
	}()
}

// AsyncErr is Async for operations that return only an error.
func AsyncErr(ctx context.Context, exec chat.Executor, op func(context.Context) error, cb func(error)) {
	go func() {
		err := op(ctx)
		if cb == nil {
			return
		}
		if exec == nil {
			cb(err)
			return
		}
		exec.Do(func() { cb(err) })
	}()
}

// SendMessageAsync is the callback form of SendMessage.
func (c *Client) SendMessageAsync(ctx context.Context, m *chat.Message, progress transport.ProgressFunc, exec chat.Executor, cb func(*chat.Message, error)) {
	Async(ctx, exec, func(ctx context.Context) (*chat.Message, error) {
		return c.SendMessage(ctx, m, progress)
	}, cb)
}

// ResendMessageAsync is the callback form of ResendMessage.
func (c *Client) ResendMessageAsync(ctx context.Context, messageID string, progress transport.ProgressFunc, exec chat.Executor, cb func(*chat.Message, error)) {
	Async(ctx, exec, func(ctx context.Context) (*chat.Message, error) {
		return c.ResendMessage(ctx, messageID, progress)
	}, cb)
}

// RecallMessageAsync is the callback form of RecallMessage.
func (c *Client) RecallMessageAsync(ctx context.Context, messageID string, exec chat.Executor, cb func(error)) {
	AsyncErr(ctx, exec, func(ctx context.Context) error {
		return c.RecallMessage(ctx, messageID)
	}, cb)
}

// FetchHistoryAsync is the callback form of FetchHistory.
func (c *Client) FetchHistoryAsync(ctx context.Context, convID string, typ chat.ConvType, startMessageID string, dir chat.SearchDirection, pageSize int, cursor string, exec chat.Executor, cb func(*chat.CursorResult[*chat.Message], error)) {
	Async(ctx, exec, func(ctx context.Context) (*chat.CursorResult[*chat.Message], error) {
		return c.FetchHistory(ctx, convID, typ, startMessageID, dir, pageSize, cursor)
	}, cb)
}

// FetchConversationsAsync is the callback form of FetchConversations.
func (c *Client) FetchConversationsAsync(ctx context.Context, cursor string, pageSize int, exec chat.Executor, cb func(*chat.CursorResult[*chat.Conversation], error)) {
	Async(ctx, exec, func(ctx context.Context) (*chat.CursorResult[*chat.Conversation], error) {
		return c.FetchConversations(ctx, cursor, pageSize)
	}, cb)
}
