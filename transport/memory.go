package transport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driftline/chatkit/chat"
)

// Mem is an in-memory Transport for tests and local development. Server
// state is seeded directly; failures are scripted per call.
type Mem struct {
	mu sync.Mutex

	// history holds server-side messages per conversation, sorted by
	// server time ascending.
	history map[string][]*chat.Message
	convs   []*chat.Conversation

	sendErr       error
	fetchErr      error
	recallErr     error
	sendDelay     time.Duration
	fetchDelay    time.Duration
	nextServerTs  int64
	historyCalls  []HistoryRequest
	recalledIDs   map[string]bool
	reactionUsers map[string][]string // messageID+"\x00"+content -> users

	events chan Event
	states chan ConnState
}

// NewMem creates an empty in-memory transport.
func NewMem() *Mem {
	return &Mem{
		history:       make(map[string][]*chat.Message),
		recalledIDs:   make(map[string]bool),
		reactionUsers: make(map[string][]string),
		nextServerTs:  1,
		events:        make(chan Event, 256),
		states:        make(chan ConnState, 16),
	}
}

// SeedHistory installs server-side history for a conversation. Messages are
// kept sorted by server time.
func (m *Mem) SeedHistory(conversationID string, msgs ...*chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[conversationID] = append(m.history[conversationID], msgs...)
	sort.SliceStable(m.history[conversationID], func(i, j int) bool {
		return m.history[conversationID][i].ServerTime < m.history[conversationID][j].ServerTime
	})
}

// SeedConversations installs the server-side conversation list, most active
// first.
func (m *Mem) SeedConversations(convs ...*chat.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs = append(m.convs, convs...)
}

// FailSends makes subsequent SendMessage calls return err; nil restores
// success.
func (m *Mem) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// FailFetches makes subsequent fetch calls return err; nil restores success.
func (m *Mem) FailFetches(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// FailRecalls makes subsequent RecallMessage calls return err.
func (m *Mem) FailRecalls(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recallErr = err
}

// DelayFetches makes fetch calls sleep before answering, so tests can hold
// a fetch in flight.
func (m *Mem) DelayFetches(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchDelay = d
}

// HistoryCalls returns a copy of every HistoryRequest seen so far.
func (m *Mem) HistoryCalls() []HistoryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryRequest, len(m.historyCalls))
	copy(out, m.historyCalls)
	return out
}

// Push injects a server-pushed event.
func (m *Mem) Push(evt Event) {
	m.events <- evt
}

// SetConnState injects a connection state transition.
func (m *Mem) SetConnState(s ConnState) {
	m.states <- s
}

func (m *Mem) SendMessage(_ context.Context, msg *chat.Message) (SendResult, error) {
	m.mu.Lock()
	err := m.sendErr
	delay := m.sendDelay
	ts := m.nextServerTs
	m.nextServerTs++
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return SendResult{}, err
	}

	m.mu.Lock()
	cp := *msg
	cp.ServerTime = ts
	m.history[msg.ConversationID] = append(m.history[msg.ConversationID], &cp)
	m.mu.Unlock()
	return SendResult{ServerTime: ts}, nil
}

func (m *Mem) FetchHistory(_ context.Context, req HistoryRequest) (*chat.CursorResult[*chat.Message], error) {
	m.mu.Lock()
	m.historyCalls = append(m.historyCalls, req)
	err := m.fetchErr
	delay := m.fetchDelay
	msgs := append([]*chat.Message(nil), m.history[req.ConversationID]...)
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	if req.Direction == chat.SearchDescending {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}

	start := 0
	if req.Cursor != "" {
		for i, msg := range msgs {
			if msg.ID == req.Cursor {
				start = i + 1
				break
			}
		}
	} else if req.StartMessageID != "" {
		for i, msg := range msgs {
			if msg.ID == req.StartMessageID {
				start = i + 1
				break
			}
		}
	}

	size := req.PageSize
	if size <= 0 {
		size = 20
	}
	end := start + size
	if end > len(msgs) {
		end = len(msgs)
	}
	page := msgs[start:end]

	res := &chat.CursorResult[*chat.Message]{Items: page, HasMore: end < len(msgs)}
	if res.HasMore && len(page) > 0 {
		res.Cursor = page[len(page)-1].ID
	}
	return res, nil
}

func (m *Mem) FetchConversations(_ context.Context, cursor string, pageSize int) (*chat.CursorResult[*chat.Conversation], error) {
	m.mu.Lock()
	err := m.fetchErr
	convs := append([]*chat.Conversation(nil), m.convs...)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(convs, func(i, j int) bool { return convs[i].ActiveTime > convs[j].ActiveTime })

	start := 0
	if cursor != "" {
		for i, c := range convs {
			if c.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	end := start + pageSize
	if end > len(convs) {
		end = len(convs)
	}
	page := convs[start:end]

	res := &chat.CursorResult[*chat.Conversation]{Items: page, HasMore: end < len(convs)}
	if res.HasMore && len(page) > 0 {
		res.Cursor = page[len(page)-1].ID
	}
	return res, nil
}

func (m *Mem) RecallMessage(_ context.Context, conversationID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recallErr != nil {
		return m.recallErr
	}
	if m.recalledIDs[messageID] {
		return chat.Errf(chat.KindConflict, "mem.recall", "message %s already recalled", messageID)
	}
	m.recalledIDs[messageID] = true
	return nil
}

func (m *Mem) ModifyMessage(_ context.Context, messageID string, body chat.Body) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchErr
}

func (m *Mem) AddReaction(_ context.Context, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := messageID + "\x00" + content
	m.reactionUsers[key] = append(m.reactionUsers[key], "self")
	return nil
}

func (m *Mem) RemoveReaction(_ context.Context, messageID, content string) error {
	return nil
}

func (m *Mem) FetchReactionUsers(_ context.Context, messageID, content, cursor string, pageSize int) (*chat.CursorResult[string], error) {
	m.mu.Lock()
	users := append([]string(nil), m.reactionUsers[messageID+"\x00"+content]...)
	m.mu.Unlock()
	return &chat.CursorResult[string]{Items: users}, nil
}

func (m *Mem) SendDeliveryAck(_ context.Context, conversationID, messageID string) error { return nil }

func (m *Mem) SendReadAck(_ context.Context, conversationID, messageID string) error { return nil }

func (m *Mem) SendGroupAck(_ context.Context, messageID, content string) error { return nil }

func (m *Mem) SendConversationReadAck(_ context.Context, conversationID string) error { return nil }

func (m *Mem) DeleteServerMessages(_ context.Context, conversationID string, messageIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := m.history[conversationID][:0]
	for _, msg := range m.history[conversationID] {
		drop := false
		for _, id := range messageIDs {
			if msg.ID == id {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, msg)
		}
	}
	m.history[conversationID] = keep
	return nil
}

func (m *Mem) Events() <-chan Event { return m.events }

func (m *Mem) ConnectionStates() <-chan ConnState { return m.states }
