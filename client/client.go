// Package client is the chatkit entry point: an explicit client context
// object wired over the local store, sync engine, delivery state machine
// and observer hub. Construct one per local user and pass it around; there
// is no process-wide singleton.
package client

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/internal/config"
	"github.com/driftline/chatkit/internal/datadir"
	"github.com/driftline/chatkit/internal/delivery"
	"github.com/driftline/chatkit/internal/dispatch"
	"github.com/driftline/chatkit/internal/store"
	intsync "github.com/driftline/chatkit/internal/sync"
	"github.com/driftline/chatkit/transport"
)

// Options configure a client.
type Options struct {
	// UserID identifies the local user. Required.
	UserID string
	// DataDir overrides the default ~/.chatkit/users/<id> directory.
	DataDir string
	// SortMessageByServerTime orders messages by server receipt time
	// instead of local enqueue time.
	SortMessageByServerTime bool
	// AutoDeliveryAck acknowledges delivery automatically on receipt.
	AutoDeliveryAck bool
	// MaxPageSize caps page sizes on paginated fetches; zero selects the
	// default of 50.
	MaxPageSize int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

func (o Options) toConfig() *config.Config {
	cfg := config.Default()
	cfg.UserID = o.UserID
	cfg.DataDir = o.DataDir
	cfg.SortMessageByServerTime = o.SortMessageByServerTime
	cfg.AutoDeliveryAck = o.AutoDeliveryAck
	if o.MaxPageSize > 0 {
		cfg.MaxPageSize = o.MaxPageSize
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg
}

// LoadOptions reads Options from the TOML config file at path, or the
// default location when path is empty.
func LoadOptions(path string) (Options, error) {
	if path == "" {
		path = datadir.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return Options{}, err
	}
	return Options{
		UserID:                  cfg.UserID,
		DataDir:                 cfg.DataDir,
		SortMessageByServerTime: cfg.SortMessageByServerTime,
		AutoDeliveryAck:         cfg.AutoDeliveryAck,
		MaxPageSize:             cfg.MaxPageSize,
		LogLevel:                cfg.LogLevel,
	}, nil
}

// Client is the chatkit client context.
type Client struct {
	cfg  *config.Config
	app  *fx.App
	self string

	db      *store.DB
	hub     *dispatch.Hub
	machine *delivery.Machine
	engine  *intsync.Engine
	logger  *zap.Logger
}

// New builds and starts a client for the given transport. atts may be nil
// when attachment bodies are never sent.
func New(opts Options, tp transport.Transport, atts transport.Attachments) (*Client, error) {
	const op = "client.new"
	if tp == nil {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "transport is required")
	}
	cfg := opts.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.DataDir == "" {
		if err := datadir.ValidateUserID(cfg.UserID); err != nil {
			return nil, chat.WrapErr(chat.KindInvalidParameter, op, err)
		}
	}

	c := &Client{cfg: cfg, self: cfg.UserID}
	c.app = fx.New(module(params{cfg: cfg, tp: tp, atts: atts}, c))
	if err := c.app.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.app.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Close stops the client and releases its resources.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return c.app.Stop(ctx)
}

// UserID returns the local user's ID.
func (c *Client) UserID() string { return c.self }

// AddObserver registers an observer for client events. A nil executor
// selects a dedicated serial queue for the observer.
func (c *Client) AddObserver(obs chat.Observer, exec chat.Executor) {
	c.hub.AddObserver(obs, exec)
}

// RemoveObserver deregisters an observer; it receives no events after this
// call returns.
func (c *Client) RemoveObserver(obs chat.Observer) {
	c.hub.RemoveObserver(obs)
}

// NewTextMessage builds a pending text message from the local user.
func (c *Client) NewTextMessage(conversationID string, chatType chat.ChatType, to, text string) *chat.Message {
	return chat.NewMessage(conversationID, chatType, c.self, to, chat.NewTextBody(text), nil)
}

// --- Local conversation store operations ---

// GetConversation returns the conversation identified by (id, typ),
// creating it when createIfAbsent is set.
func (c *Client) GetConversation(id string, typ chat.ConvType, createIfAbsent bool) (*chat.Conversation, error) {
	return c.db.GetConversation(id, typ, createIfAbsent)
}

// ListConversations returns all local conversations; sorted=true applies
// the pinned-first, most-recent-activity ordering.
func (c *Client) ListConversations(sorted bool) ([]*chat.Conversation, error) {
	return c.db.ListConversations(sorted)
}

// PinConversation sets or clears the conversation's pinned flag.
func (c *Client) PinConversation(id string, typ chat.ConvType, pinned bool) error {
	return c.db.PinConversation(id, typ, pinned)
}

// SetConversationExt replaces the conversation extension map.
func (c *Client) SetConversationExt(id string, typ chat.ConvType, ext map[string]string) error {
	return c.db.SetConversationExt(id, typ, ext)
}

// DeleteConversation removes a conversation, optionally cascading to its
// messages.
func (c *Client) DeleteConversation(id string, typ chat.ConvType, deleteMessages bool) error {
	return c.db.DeleteConversation(id, typ, deleteMessages)
}

// InsertMessage stores a message positioned by timestamp among the
// conversation's existing messages.
func (c *Client) InsertMessage(m *chat.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return c.db.InsertMessage(m)
}

// AppendMessage stores a message after all existing conversation messages.
func (c *Client) AppendMessage(m *chat.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return c.db.AppendMessage(m)
}

// GetMessage loads a message by ID.
func (c *Client) GetMessage(messageID string) (*chat.Message, error) {
	return c.db.GetMessage(messageID)
}

// DeleteMessage removes a single message locally.
func (c *Client) DeleteMessage(convID string, typ chat.ConvType, messageID string) error {
	return c.db.DeleteMessage(convID, typ, messageID)
}

// DeleteMessagesBefore purges local messages older than ts (unix ms).
func (c *Client) DeleteMessagesBefore(ts int64) error {
	return c.db.DeleteMessagesBefore(ts)
}

// MarkMessageRead flags a message read locally.
func (c *Client) MarkMessageRead(convID string, typ chat.ConvType, messageID string) error {
	return c.db.MarkMessageRead(convID, typ, messageID)
}

// MarkAllRead flags every message in the conversation read.
func (c *Client) MarkAllRead(convID string, typ chat.ConvType) error {
	return c.db.MarkAllRead(convID, typ)
}

// LoadMessages traverses the conversation locally from the message after
// startMessageID in the given direction; empty startMessageID starts at
// the newest (descending) or oldest (ascending) end.
func (c *Client) LoadMessages(convID string, typ chat.ConvType, startMessageID string, dir chat.SearchDirection, limit int) ([]*chat.Message, error) {
	return c.db.LoadMessagesStartFrom(convID, typ, startMessageID, dir, c.cfg.ClampPageSize(limit))
}

// LoadMessagesWithType returns local messages of one body type, newest
// first.
func (c *Client) LoadMessagesWithType(convID string, typ chat.ConvType, bodyType chat.BodyType, limit int) ([]*chat.Message, error) {
	return c.db.LoadMessagesWithType(convID, typ, bodyType, c.cfg.ClampPageSize(limit))
}

// SearchMessages returns local messages whose body contains the keyword,
// newest first.
func (c *Client) SearchMessages(convID string, typ chat.ConvType, keyword string, limit int) ([]*chat.Message, error) {
	return c.db.SearchMessages(convID, typ, keyword, c.cfg.ClampPageSize(limit))
}

// LastReceivedMessage returns the newest received message, or nil.
func (c *Client) LastReceivedMessage(convID string, typ chat.ConvType) (*chat.Message, error) {
	return c.db.LastReceivedMessage(convID, typ)
}

// ImportMessages inserts externally obtained messages without touching
// delivery state.
func (c *Client) ImportMessages(msgs []*chat.Message) error {
	return c.db.ImportMessages(msgs)
}

// --- Remote operations (suspend on network I/O) ---

// SendMessage delivers a message, blocking until the transport accepts or
// rejects it. progress, when non-nil, reports attachment upload progress.
func (c *Client) SendMessage(ctx context.Context, m *chat.Message, progress transport.ProgressFunc) (*chat.Message, error) {
	return c.engine.Send(ctx, m, progress)
}

// ResendMessage re-attempts delivery of a failed message.
func (c *Client) ResendMessage(ctx context.Context, messageID string, progress transport.ProgressFunc) (*chat.Message, error) {
	return c.engine.Resend(ctx, messageID, progress)
}

// RecallMessage withdraws a sent message; its history slot is kept with
// recall metadata in place of the original body.
func (c *Client) RecallMessage(ctx context.Context, messageID string) error {
	return c.engine.Recall(ctx, messageID)
}

// ModifyMessage replaces a message's body, recording modification
// metadata.
func (c *Client) ModifyMessage(ctx context.Context, messageID string, body chat.Body) (*chat.Message, error) {
	return c.engine.Modify(ctx, messageID, body)
}

// FetchHistory pulls one page of server-side history into the local store.
func (c *Client) FetchHistory(ctx context.Context, convID string, typ chat.ConvType, startMessageID string, dir chat.SearchDirection, pageSize int, cursor string) (*chat.CursorResult[*chat.Message], error) {
	return c.engine.FetchHistory(ctx, convID, typ, startMessageID, dir, c.cfg.ClampPageSize(pageSize), cursor)
}

// FetchConversations pulls one page of the server-side conversation list.
func (c *Client) FetchConversations(ctx context.Context, cursor string, pageSize int) (*chat.CursorResult[*chat.Conversation], error) {
	return c.engine.FetchConversations(ctx, cursor, c.cfg.ClampPageSize(pageSize))
}

// AddReaction adds the local user's reaction to a message.
func (c *Client) AddReaction(ctx context.Context, messageID, content string) error {
	return c.engine.AddReaction(ctx, messageID, content)
}

// RemoveReaction removes the local user's reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, messageID, content string) error {
	return c.engine.RemoveReaction(ctx, messageID, content)
}

// FetchReactionUsers enumerates the users behind one reaction aggregate.
func (c *Client) FetchReactionUsers(ctx context.Context, messageID, content, cursor string, pageSize int) (*chat.CursorResult[string], error) {
	return c.engine.FetchReactionUsers(ctx, messageID, content, cursor, c.cfg.ClampPageSize(pageSize))
}

// SendReadAck reports the message read and marks it read locally.
func (c *Client) SendReadAck(ctx context.Context, messageID string) error {
	return c.engine.SendReadAck(ctx, messageID)
}

// SendGroupAck reports the local user's group read acknowledgment.
func (c *Client) SendGroupAck(ctx context.Context, messageID, content string) error {
	return c.engine.SendGroupAck(ctx, messageID, content)
}

// AckConversationRead reports the whole conversation read.
func (c *Client) AckConversationRead(ctx context.Context, convID string, typ chat.ConvType) error {
	return c.engine.AckConversationRead(ctx, convID, typ)
}

// DeleteServerMessages removes messages from server and local store. The
// returned map reports per-message local failures on partial success.
func (c *Client) DeleteServerMessages(ctx context.Context, convID string, typ chat.ConvType, messageIDs []string) (map[string]error, error) {
	return c.engine.DeleteServerMessages(ctx, convID, typ, messageIDs)
}
