// Package sync reconciles the local conversation store against the remote
// messaging server: paginated history and conversation pulls, send/resend,
// recall and modify, and idempotent ingestion of server-pushed events.
package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/internal/delivery"
	"github.com/driftline/chatkit/internal/dispatch"
	"github.com/driftline/chatkit/internal/store"
	"github.com/driftline/chatkit/transport"
)

type fetchKey struct {
	convID string
	dir    chat.SearchDirection
}

// Engine bridges local and remote state. It holds no persistent state of
// its own beyond in-flight fetch bookkeeping; everything durable lives in
// the store.
type Engine struct {
	db      *store.DB
	tp      transport.Transport
	atts    transport.Attachments
	machine *delivery.Machine
	hub     *dispatch.Hub
	logger  *zap.Logger
	selfID  string
	autoAck bool

	mu       sync.Mutex
	inflight map[fetchKey]struct{}

	connected atomic.Bool
	cancel    context.CancelFunc
}

// Config carries engine construction parameters.
type Config struct {
	SelfUserID string
	// AutoDeliveryAck acknowledges delivery to the server automatically
	// when a pushed message is ingested.
	AutoDeliveryAck bool
}

// NewEngine creates a sync engine. atts may be nil when attachment bodies
// are never sent.
func NewEngine(db *store.DB, tp transport.Transport, atts transport.Attachments, machine *delivery.Machine, hub *dispatch.Hub, logger *zap.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		tp:       tp,
		atts:     atts,
		machine:  machine,
		hub:      hub,
		logger:   logger,
		selfID:   cfg.SelfUserID,
		autoAck:  cfg.AutoDeliveryAck,
		inflight: make(map[fetchKey]struct{}),
	}
}

// Start begins consuming server-pushed events and connection transitions.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.loop(ctx)
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) loop(ctx context.Context) {
	events := e.tp.Events()
	states := e.tp.ConnectionStates()
	for {
		select {
		case evt := <-events:
			e.handleServerEvent(evt)
		case st := <-states:
			e.handleConnState(st)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handleConnState(st transport.ConnState) {
	e.connected.Store(st == transport.Connected)
	e.logger.Info("connection state changed", zap.String("state", st.String()))
	e.hub.Publish(chat.Event{
		Kind:      chat.EventConnectionChanged,
		Timestamp: time.Now(),
		Payload:   st,
	})
}

// handleServerEvent applies one server-pushed event to the store. Events
// for the same conversation apply in server-delivery order because the
// loop is single-threaded.
func (e *Engine) handleServerEvent(evt transport.Event) {
	var err error
	switch evt.Kind {
	case transport.EventMessage:
		err = e.ingestPushedMessage(evt.Message)
	case transport.EventRecall:
		err = e.applyRemoteRecall(evt.ConversationID, evt.MessageID, evt.Actor)
	case transport.EventDeliveryAck:
		err = e.machine.ApplyDeliveryAck(evt.MessageID)
	case transport.EventReadAck:
		err = e.machine.ApplyReadAck(evt.MessageID)
	case transport.EventGroupAck:
		err = e.machine.ApplyGroupAck(evt.MessageID, evt.Actor)
	case transport.EventModify:
		err = e.applyRemoteModify(evt.Message, evt.Actor)
	case transport.EventReaction:
		err = e.applyRemoteReaction(evt.MessageID, evt.ReactionContent, evt.Actor, evt.ReactionAdded)
	}
	if err != nil {
		e.logger.Error("failed to apply server event",
			zap.Int("kind", int(evt.Kind)),
			zap.String("msg_id", evt.MessageID),
			zap.Error(err))
	}
}

// ingestPushedMessage stores a newly pushed message (idempotent on message
// ID) and notifies observers.
func (e *Engine) ingestPushedMessage(msg *chat.Message) error {
	if msg == nil {
		return nil
	}
	cp := *msg
	cp.Direction = chat.DirectionReceive
	cp.Status = chat.StatusSucceeded
	if cp.LocalTime == 0 {
		cp.LocalTime = time.Now().UnixMilli()
	}
	if err := e.db.InsertMessage(&cp); err != nil {
		return err
	}
	if e.autoAck {
		if err := e.tp.SendDeliveryAck(context.Background(), cp.ConversationID, cp.ID); err != nil {
			e.logger.Warn("failed to send delivery ack", zap.String("msg_id", cp.ID), zap.Error(err))
		}
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageReceived,
		Timestamp: time.Now(),
		Payload:   &cp,
	})
	e.publishConversationUpdated(cp.ConversationID)
	return nil
}

func (e *Engine) applyRemoteRecall(conversationID, messageID, actor string) error {
	msg, err := e.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Body.Type == chat.BodyRecall {
		// Already recalled; re-delivery is a no-op.
		return nil
	}
	snapshot := msg.Body
	if err := e.db.SetRecalled(messageID, chat.RecallBody{
		RecalledBy: actor,
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
			ConversationID: conversationID,
			RecalledBy:     actor,
			Message:        recalled,
		},
	})
	return nil
}

func (e *Engine) applyRemoteModify(msg *chat.Message, actor string) error {
	if msg == nil {
		return nil
	}
	if err := e.db.ReplaceBody(msg.ID, msg.Body, actor, time.Now().UnixMilli()); err != nil {
		return err
	}
	modified, err := e.db.GetMessage(msg.ID)
	if err != nil {
		return err
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageModified,
		Timestamp: time.Now(),
		Payload:   modified,
	})
	return nil
}

func (e *Engine) applyRemoteReaction(messageID, content, actor string, added bool) error {
	if err := e.db.ApplyReaction(messageID, content, actor, added); err != nil {
		return err
	}
	e.hub.Publish(chat.Event{
		Kind:      chat.EventMessageReactionChanged,
		Timestamp: time.Now(),
		Payload:   chat.Reaction{MessageID: messageID, Content: content},
	})
	return nil
}

func (e *Engine) publishConversationUpdated(conversationID string) {
	e.hub.Publish(chat.Event{
		Kind:      chat.EventConversationUpdated,
		Timestamp: time.Now(),
		Payload:   conversationID,
	})
}

// acquireFetch reserves the (conversation, direction) fetch slot, failing
// fast with Busy while another fetch for the same key is outstanding.
func (e *Engine) acquireFetch(key fetchKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inflight[key]; ok {
		return chat.Errf(chat.KindBusy, "sync.fetch_history",
			"fetch already in flight for %s/%s", key.convID, key.dir)
	}
	e.inflight[key] = struct{}{}
	return nil
}

func (e *Engine) releaseFetch(key fetchKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, key)
}

// netErr classifies a transport error, preserving an existing
// classification when the transport supplied one.
func netErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if chat.KindOf(err) != chat.KindUnknown {
		return err
	}
	return chat.WrapErr(chat.KindNetworkUnavailable, op, err)
}
