package client

import (
	"context"
	"testing"
	"time"

	"github.com/driftline/chatkit/chat"
	"github.com/driftline/chatkit/transport"
)

type recorder struct {
	events chan chat.Event
}

func (r *recorder) HandleEvent(evt chat.Event) { r.events <- evt }

func (r *recorder) waitFor(t *testing.T, kind string) chat.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-r.events:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q", kind)
			return chat.Event{}
		}
	}
}

func newTestClient(t *testing.T) (*Client, *transport.Mem) {
	t.Helper()
	tp := transport.NewMem()
	c, err := New(Options{
		UserID:                  "self",
		DataDir:                 t.TempDir(),
		SortMessageByServerTime: true,
		AutoDeliveryAck:         true,
	}, tp, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, tp
}

func TestClientRequiresTransport(t *testing.T) {
	if _, err := New(Options{UserID: "self"}, nil, nil); !chat.IsKind(err, chat.KindInvalidParameter) {
		t.Errorf("err = %v, want invalid parameter", err)
	}
}

func TestClientRejectsBadUserID(t *testing.T) {
	if _, err := New(Options{UserID: "../escape"}, transport.NewMem(), nil); !chat.IsKind(err, chat.KindInvalidParameter) {
		t.Errorf("err = %v, want invalid parameter", err)
	}
}

func TestSecondClientOnSameDataDirFails(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(Options{UserID: "self", DataDir: dir}, transport.NewMem(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c1.Close() }()

	if _, err := New(Options{UserID: "self", DataDir: dir}, transport.NewMem(), nil); err == nil {
		t.Error("second client on the same data dir should fail")
	}
}

func TestSendAndObserve(t *testing.T) {
	c, _ := newTestClient(t)

	rec := &recorder{events: make(chan chat.Event, 64)}
	c.AddObserver(rec, nil)

	msg := c.NewTextMessage("peer", chat.ChatTypeOneToOne, "peer", "hello")
	sent, err := c.SendMessage(context.Background(), msg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sent.Status != chat.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", sent.Status)
	}
	rec.waitFor(t, chat.EventMessageStatusChanged)
	rec.waitFor(t, chat.EventConversationUpdated)

	convs, err := c.ListConversations(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "peer" {
		t.Fatalf("conversations = %v", convs)
	}
	if convs[0].LatestMessage == nil || convs[0].LatestMessage.ID != sent.ID {
		t.Error("latest message should be the sent message")
	}
}

func TestPushedMessageReachesObserver(t *testing.T) {
	c, tp := newTestClient(t)

	rec := &recorder{events: make(chan chat.Event, 64)}
	c.AddObserver(rec, nil)

	tp.Push(transport.Event{Kind: transport.EventMessage, Message: &chat.Message{
		ID:             "srv-1",
		ConversationID: "peer",
		ChatType:       chat.ChatTypeOneToOne,
		From:           "peer",
		To:             "self",
		ServerTime:     1000,
		Body:           chat.NewTextBody("incoming"),
	}})

	evt := rec.waitFor(t, chat.EventMessageReceived)
	got := evt.Payload.(*chat.Message)
	if got.ID != "srv-1" || got.Direction != chat.DirectionReceive {
		t.Errorf("received = %+v", got)
	}

	stored, err := c.GetMessage("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Body.Text.Content != "incoming" {
		t.Errorf("stored body = %q", stored.Body.Text.Content)
	}
}

func TestFetchHistoryHonorsConnectionState(t *testing.T) {
	c, tp := newTestClient(t)

	rec := &recorder{events: make(chan chat.Event, 64)}
	c.AddObserver(rec, nil)

	// Freshly built clients are disconnected.
	_, err := c.FetchHistory(context.Background(), "peer", chat.ConvOneToOne, "", chat.SearchDescending, 10, "")
	if !chat.IsKind(err, chat.KindNetworkUnavailable) {
		t.Errorf("err = %v, want network unavailable", err)
	}

	tp.SeedHistory("peer", &chat.Message{
		ID:             "h1",
		ConversationID: "peer",
		ChatType:       chat.ChatTypeOneToOne,
		From:           "peer",
		To:             "self",
		ServerTime:     1000,
		Body:           chat.NewTextBody("old"),
	})
	tp.SetConnState(transport.Connected)
	rec.waitFor(t, chat.EventConnectionChanged)

	res, err := c.FetchHistory(context.Background(), "peer", chat.ConvOneToOne, "", chat.SearchDescending, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.HasMore {
		t.Errorf("page = %d items hasMore=%v, want 1 terminal", len(res.Items), res.HasMore)
	}
}

func TestPageSizeIsClamped(t *testing.T) {
	c, tp := newTestClient(t)

	rec := &recorder{events: make(chan chat.Event, 64)}
	c.AddObserver(rec, nil)
	tp.SetConnState(transport.Connected)
	rec.waitFor(t, chat.EventConnectionChanged)

	if _, err := c.FetchHistory(context.Background(), "peer", chat.ConvOneToOne, "", chat.SearchDescending, 5000, ""); err != nil {
		t.Fatal(err)
	}

	calls := tp.HistoryCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].PageSize != 50 {
		t.Errorf("page size = %d, want clamped to 50", calls[0].PageSize)
	}
}

func TestAsyncSendDeliversCallback(t *testing.T) {
	c, _ := newTestClient(t)

	done := make(chan struct{})
	msg := c.NewTextMessage("peer", chat.ChatTypeOneToOne, "peer", "hello")
	c.SendMessageAsync(context.Background(), msg, nil, nil, func(sent *chat.Message, err error) {
		if err != nil {
			t.Error(err)
		} else if sent.Status != chat.StatusSucceeded {
			t.Errorf("status = %s, want succeeded", sent.Status)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for async callback")
	}
}

func TestRecallThroughClient(t *testing.T) {
	c, _ := newTestClient(t)

	msg := c.NewTextMessage("peer", chat.ChatTypeOneToOne, "peer", "oops")
	if _, err := c.SendMessage(context.Background(), msg, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.RecallMessage(context.Background(), msg.ID); err != nil {
		t.Fatal(err)
	}

	stored, err := c.GetMessage(msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Body.Type != chat.BodyRecall {
		t.Errorf("body type = %s, want recall", stored.Body.Type)
	}
	if err := c.RecallMessage(context.Background(), msg.ID); !chat.IsKind(err, chat.KindConflict) {
		t.Errorf("double recall = %v, want conflict", err)
	}
}

func TestLocalStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	tp := transport.NewMem()
	c, err := New(Options{UserID: "self", DataDir: dir, SortMessageByServerTime: true}, tp, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg := c.NewTextMessage("peer", chat.ChatTypeOneToOne, "peer", "persisted")
	if _, err := c.SendMessage(context.Background(), msg, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := New(Options{UserID: "self", DataDir: dir, SortMessageByServerTime: true}, transport.NewMem(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c2.Close() }()

	stored, err := c2.GetMessage(msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Body.Text.Content != "persisted" {
		t.Errorf("body = %q, want persisted", stored.Body.Text.Content)
	}
}
