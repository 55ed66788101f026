package store

import (
	"path/filepath"
	"testing"

	"github.com/driftline/chatkit/chat"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	return testDBOpts(t, Options{SelfUserID: "self"})
}

func testDBOpts(t *testing.T, opts Options) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func textMsg(conv, id string, dir chat.Direction, localTime int64) *chat.Message {
	from, to := "self", "peer"
	if dir == chat.DirectionReceive {
		from, to = "peer", "self"
	}
	return &chat.Message{
		ID:             id,
		ConversationID: conv,
		ChatType:       chat.ChatTypeOneToOne,
		Direction:      dir,
		From:           from,
		To:             to,
		LocalTime:      localTime,
		Status:         chat.StatusSucceeded,
		Body:           chat.NewTextBody("hello " + id),
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already migrated once; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestInsertMaintainsDerivedCounts(t *testing.T) {
	db := testDB(t)

	msgs := []*chat.Message{
		textMsg("peer", "m1", chat.DirectionReceive, 1000),
		textMsg("peer", "m2", chat.DirectionReceive, 2000),
		textMsg("peer", "m3", chat.DirectionSend, 3000),
	}
	for _, m := range msgs {
		if err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", c.MessageCount)
	}
	if c.UnreadCount != 2 {
		t.Errorf("unread count = %d, want 2", c.UnreadCount)
	}
	if c.LatestMessage == nil || c.LatestMessage.ID != "m3" {
		t.Errorf("latest message = %v, want m3", c.LatestMessage)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	db := testDB(t)

	m := textMsg("peer", "m1", chat.DirectionReceive, 1000)
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.MessageCount != 1 {
		t.Errorf("message count = %d, want 1 after duplicate insert", c.MessageCount)
	}
	if c.UnreadCount != 1 {
		t.Errorf("unread count = %d, want 1 after duplicate insert", c.UnreadCount)
	}
}

func TestAppendMessagePositionsLast(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionReceive, 2000)); err != nil {
		t.Fatal(err)
	}
	// Older local timestamp, but Append must still land after m1.
	if err := db.AppendMessage(textMsg("peer", "m2", chat.DirectionSend, 1000)); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.LoadMessagesStartFrom("peer", chat.ConvOneToOne, "", chat.SearchDescending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m2" {
		t.Errorf("newest message = %s, want m2", msgs[0].ID)
	}
}

func TestMarkReadUpdatesCounts(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"m1", "m2", "m3"} {
		if err := db.InsertMessage(textMsg("peer", id, chat.DirectionReceive, int64(1000*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.MarkMessageRead("peer", chat.ConvOneToOne, "m1"); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 2 {
		t.Errorf("unread = %d after single mark, want 2", c.UnreadCount)
	}

	if err := db.MarkAllRead("peer", chat.ConvOneToOne); err != nil {
		t.Fatal(err)
	}
	c, err = db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d after mark all, want 0", c.UnreadCount)
	}
}

func TestLoadMessagesStartFromAnchor(t *testing.T) {
	db := testDB(t)

	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	for i, id := range ids {
		if err := db.InsertMessage(textMsg("peer", id, chat.DirectionReceive, int64(1000*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}

	// Descending from m3: the two older messages, newest first.
	msgs, err := db.LoadMessagesStartFrom("peer", chat.ConvOneToOne, "m3", chat.SearchDescending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m2" || msgs[1].ID != "m1" {
		t.Errorf("descending from m3 = %v, want [m2 m1]", msgIDs(msgs))
	}

	// Ascending from m3: the two newer messages, oldest first.
	msgs, err = db.LoadMessagesStartFrom("peer", chat.ConvOneToOne, "m3", chat.SearchAscending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m4" || msgs[1].ID != "m5" {
		t.Errorf("ascending from m3 = %v, want [m4 m5]", msgIDs(msgs))
	}
}

func msgIDs(msgs []*chat.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func TestSearchMessagesEscapesLikeMeta(t *testing.T) {
	db := testDB(t)

	m1 := textMsg("peer", "m1", chat.DirectionReceive, 1000)
	m1.Body = chat.NewTextBody("discount is 50% today")
	m2 := textMsg("peer", "m2", chat.DirectionReceive, 2000)
	m2.Body = chat.NewTextBody("fifty percent")
	for _, m := range []*chat.Message{m1, m2} {
		if err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.SearchMessages("peer", chat.ConvOneToOne, "50%", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("search 50%% = %v, want [m1]", msgIDs(msgs))
	}

	if _, err := db.SearchMessages("peer", chat.ConvOneToOne, "", 10); !chat.IsKind(err, chat.KindInvalidParameter) {
		t.Errorf("empty keyword error = %v, want invalid parameter", err)
	}
}

func TestLoadMessagesWithType(t *testing.T) {
	db := testDB(t)

	loc := textMsg("peer", "m1", chat.DirectionReceive, 1000)
	loc.Body = chat.NewLocationBody(51.5, -0.12, "London")
	if err := db.InsertMessage(loc); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(textMsg("peer", "m2", chat.DirectionReceive, 2000)); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.LoadMessagesWithType("peer", chat.ConvOneToOne, chat.BodyLocation, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("location messages = %v, want [m1]", msgIDs(msgs))
	}
	if msgs[0].Body.Location == nil || msgs[0].Body.Location.Address != "London" {
		t.Errorf("location body = %+v, want London", msgs[0].Body.Location)
	}
}

func TestLastReceivedMessage(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionReceive, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(textMsg("peer", "m2", chat.DirectionSend, 2000)); err != nil {
		t.Fatal(err)
	}

	m, err := db.LastReceivedMessage("peer", chat.ConvOneToOne)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.ID != "m1" {
		t.Errorf("last received = %v, want m1", m)
	}

	m, err = db.LastReceivedMessage("empty", chat.ConvOneToOne)
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("last received in empty conversation = %v, want nil", m)
	}
}

func TestSetStatusStampsServerTimeAndReorders(t *testing.T) {
	db := testDBOpts(t, Options{SelfUserID: "self", SortByServerTime: true})

	pending := textMsg("peer", "m1", chat.DirectionSend, 5000)
	pending.Status = chat.StatusPending
	if err := db.AppendMessage(pending); err != nil {
		t.Fatal(err)
	}

	if err := db.SetStatus("m1", chat.StatusSucceeded, 9000, ""); err != nil {
		t.Fatal(err)
	}
	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != chat.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", m.Status)
	}
	if m.ServerTime != 9000 {
		t.Errorf("server time = %d, want 9000", m.ServerTime)
	}

	if err := db.SetStatus("missing", chat.StatusFailed, 0, "boom"); !chat.IsKind(err, chat.KindNotFound) {
		t.Errorf("set status on missing = %v, want not found", err)
	}
}

func TestRecallPreservesSlotAndCounts(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"m1", "m2", "m3"} {
		if err := db.InsertMessage(textMsg("peer", id, chat.DirectionReceive, int64(1000*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}

	orig, err := db.GetMessage("m2")
	if err != nil {
		t.Fatal(err)
	}
	snapshot := orig.Body
	if err := db.SetRecalled("m2", chat.RecallBody{RecalledBy: "peer", RecallTime: 5000, Original: &snapshot}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.LoadMessagesStartFrom("peer", chat.ConvOneToOne, "", chat.SearchAscending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := msgIDs(msgs); len(got) != 3 || got[1] != "m2" {
		t.Errorf("order after recall = %v, want m2 in the middle", got)
	}
	if msgs[1].Body.Type != chat.BodyRecall {
		t.Errorf("recalled body type = %s, want recall", msgs[1].Body.Type)
	}
	if msgs[1].Body.Recall == nil || msgs[1].Body.Recall.RecalledBy != "peer" {
		t.Errorf("recall body = %+v, want recalled by peer", msgs[1].Body.Recall)
	}
	if msgs[1].Body.Recall.Original == nil || msgs[1].Body.Recall.Original.Type != chat.BodyText {
		t.Error("recall should retain the original body snapshot")
	}

	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.MessageCount != 3 {
		t.Errorf("message count after recall = %d, want 3", c.MessageCount)
	}
}

func TestGroupAckCountsDistinctMembers(t *testing.T) {
	db := testDB(t)

	m := textMsg("grp", "m1", chat.DirectionSend, 1000)
	m.ChatType = chat.ChatTypeGroup
	m.NeedsGroupAck = true
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}

	n, err := db.AddGroupAck("m1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	// Same member again: no increment.
	n, err = db.AddGroupAck("m1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after duplicate ack = %d, want 1", n)
	}

	n, err = db.AddGroupAck("m1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	got, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.GroupAckCount != 2 {
		t.Errorf("loaded group ack count = %d, want 2", got.GroupAckCount)
	}
}

func TestAcksAreIdempotentAndIndependent(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionSend, 1000)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := db.ApplyDeliveryAck("m1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.ApplyReadAck("m1"); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsDeliverAck || !m.IsReadAck {
		t.Errorf("acks = deliver:%v read:%v, want both true", m.IsDeliverAck, m.IsReadAck)
	}

	if err := db.ApplyReadAck("missing"); !chat.IsKind(err, chat.KindNotFound) {
		t.Errorf("ack on missing message = %v, want not found", err)
	}
}

func TestReactionAggregateLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionReceive, 1000)); err != nil {
		t.Fatal(err)
	}

	for _, user := range []string{"self", "alice", "bob", "carol", "dave"} {
		if err := db.ApplyReaction("m1", "👍", user, true); err != nil {
			t.Fatal(err)
		}
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	r := m.Reaction("👍")
	if r == nil {
		t.Fatal("reaction missing")
	}
	if r.Count != 5 {
		t.Errorf("count = %d, want 5", r.Count)
	}
	if !r.AddedBySelf {
		t.Error("AddedBySelf should be true")
	}
	if len(r.UserPreview) > chat.ReactionUserPreviewLimit {
		t.Errorf("preview has %d users, limit is %d", len(r.UserPreview), chat.ReactionUserPreviewLimit)
	}

	if err := db.ApplyReaction("m1", "👍", "self", false); err != nil {
		t.Fatal(err)
	}
	m, err = db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	r = m.Reaction("👍")
	if r == nil || r.Count != 4 {
		t.Errorf("reaction after self removal = %+v, want count 4", r)
	}
	if r.AddedBySelf {
		t.Error("AddedBySelf should be false after removal")
	}

	// Removing the last contributor deletes the aggregate.
	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		if err := db.ApplyReaction("m1", "👍", user, false); err != nil {
			t.Fatal(err)
		}
	}
	m, err = db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Reaction("👍") != nil {
		t.Error("empty reaction aggregate should be deleted")
	}
}

func TestListConversationsPinnedFirst(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("old", "m1", chat.DirectionReceive, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(textMsg("new", "m2", chat.DirectionReceive, 9000)); err != nil {
		t.Fatal(err)
	}
	if err := db.PinConversation("old", chat.ConvOneToOne, true); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "old" || !convs[0].Pinned {
		t.Errorf("first conversation = %s pinned=%v, want pinned old", convs[0].ID, convs[0].Pinned)
	}

	if err := db.PinConversation("old", chat.ConvOneToOne, false); err != nil {
		t.Fatal(err)
	}
	convs, err = db.ListConversations(true)
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].ID != "new" {
		t.Errorf("first conversation after unpin = %s, want new", convs[0].ID)
	}
	if convs[1].PinnedTime != 0 {
		t.Errorf("pinned time after unpin = %d, want 0", convs[1].PinnedTime)
	}
}

func TestDeleteConversationCascade(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionReceive, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteConversation("peer", chat.ConvOneToOne, true); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetConversation("peer", chat.ConvOneToOne, false); !chat.IsKind(err, chat.KindNotFound) {
		t.Errorf("get deleted conversation = %v, want not found", err)
	}
	if _, err := db.GetMessage("m1"); !chat.IsKind(err, chat.KindNotFound) {
		t.Errorf("get cascaded message = %v, want not found", err)
	}
}

func TestGetConversationCreateIfAbsent(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetConversation("fresh", chat.ConvGroup, false); !chat.IsKind(err, chat.KindNotFound) {
		t.Errorf("absent without create = %v, want not found", err)
	}

	c, err := db.GetConversation("fresh", chat.ConvGroup, true)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "fresh" || c.Type != chat.ConvGroup {
		t.Errorf("created conversation = %+v", c)
	}
	if c.MessageCount != 0 || c.LatestMessage != nil {
		t.Error("fresh conversation should be empty")
	}
}

func TestMergeServerMessageKeepsLocalFields(t *testing.T) {
	db := testDBOpts(t, Options{SelfUserID: "self", SortByServerTime: true})

	local := textMsg("peer", "m1", chat.DirectionSend, 5000)
	local.Status = chat.StatusDelivering
	if err := db.AppendMessage(local); err != nil {
		t.Fatal(err)
	}

	remote := textMsg("peer", "m1", chat.DirectionSend, 0)
	remote.ServerTime = 9000
	remote.IsDeliverAck = true
	if err := db.MergeServerMessage(remote); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.ServerTime != 9000 {
		t.Errorf("server time = %d, want 9000", m.ServerTime)
	}
	if !m.IsDeliverAck {
		t.Error("deliver ack should be merged in")
	}
	if m.Status != chat.StatusDelivering {
		t.Errorf("status = %s, want local delivering preserved", m.Status)
	}
	if m.LocalTime != 5000 {
		t.Errorf("local time = %d, want 5000 preserved", m.LocalTime)
	}
}

func TestMergeServerMessageInsertsWhenAbsent(t *testing.T) {
	db := testDB(t)

	remote := textMsg("peer", "m1", chat.DirectionReceive, 1000)
	remote.ServerTime = 1000
	if err := db.MergeServerMessage(remote); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetMessage("m1"); err != nil {
		t.Fatal(err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := testDB(t)

	v, err := db.GetCheckpoint("history.peer.desc")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset checkpoint = %q, want empty", v)
	}

	if err := db.SetCheckpoint("history.peer.desc", "cursor-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint("history.peer.desc", "cursor-2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetCheckpoint("history.peer.desc")
	if err != nil {
		t.Fatal(err)
	}
	if v != "cursor-2" {
		t.Errorf("checkpoint = %q, want cursor-2", v)
	}
}

func TestImportMessagesSkipsExisting(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionReceive, 1000)); err != nil {
		t.Fatal(err)
	}

	batch := []*chat.Message{
		textMsg("peer", "m1", chat.DirectionReceive, 1000),
		textMsg("peer", "m2", chat.DirectionReceive, 2000),
	}
	if err := db.ImportMessages(batch); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.MessageCount != 2 {
		t.Errorf("message count after import = %d, want 2", c.MessageCount)
	}
}

func TestDeleteMessagesBefore(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"m1", "m2", "m3"} {
		if err := db.InsertMessage(textMsg("peer", id, chat.DirectionReceive, int64(1000*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.DeleteMessagesBefore(2500); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.LoadMessagesStartFrom("peer", chat.ConvOneToOne, "", chat.SearchAscending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := msgIDs(msgs); len(got) != 1 || got[0] != "m3" {
		t.Errorf("messages after prune = %v, want [m3]", got)
	}
	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.MessageCount != 1 {
		t.Errorf("message count after prune = %d, want 1", c.MessageCount)
	}
}

func TestReplaceBodyRecordsOperation(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionSend, 1000)); err != nil {
		t.Fatal(err)
	}

	if err := db.ReplaceBody("m1", chat.NewTextBody("edited"), "self", 5000); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceBody("m1", chat.NewTextBody("edited twice"), "self", 6000); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Body.Text == nil || m.Body.Text.Content != "edited twice" {
		t.Errorf("body = %+v, want edited twice", m.Body.Text)
	}
	if m.OperationN != 2 {
		t.Errorf("operation count = %d, want 2", m.OperationN)
	}
	if m.OperatorID != "self" || m.OperationTime != 6000 {
		t.Errorf("operation metadata = %s@%d, want self@6000", m.OperatorID, m.OperationTime)
	}
}

func TestSetBodyLeavesOperationMetadata(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(textMsg("peer", "m1", chat.DirectionSend, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.SetBody("m1", chat.NewFileBody("doc.pdf", "/tmp/doc.pdf")); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Body.Type != chat.BodyFile {
		t.Errorf("body type = %s, want file", m.Body.Type)
	}
	if m.OperationN != 0 || m.OperatorID != "" {
		t.Error("SetBody must not record modification metadata")
	}
}

func TestConversationExtRoundTrip(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetConversation("peer", chat.ConvOneToOne, true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetConversationExt("peer", chat.ConvOneToOne, map[string]string{"draft": "hi"}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("peer", chat.ConvOneToOne, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.Ext["draft"] != "hi" {
		t.Errorf("ext = %v, want draft=hi", c.Ext)
	}
}
