package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/driftline/chatkit/chat"
)

// InsertMessage stores a message positioned by its compare timestamp among
// the conversation's existing messages. The conversation is created on
// first insert; derived counters update in the same transaction.
func (db *DB) InsertMessage(m *chat.Message) error {
	return db.insert(m, db.compareTime(m), "store.insert_message")
}

// AppendMessage stores a message after all existing messages in the
// conversation regardless of its own timestamp.
func (db *DB) AppendMessage(m *chat.Message) error {
	const op = "store.append_message"
	var maxCT sql.NullInt64
	err := db.QueryRow(`
		SELECT MAX(compare_time) FROM messages WHERE conv_id = ? AND conv_type = ?`,
		m.ConversationID, int(convTypeOf(m))).Scan(&maxCT)
	if err != nil {
		return storageErr(op, err)
	}
	ct := db.compareTime(m)
	if maxCT.Valid && maxCT.Int64 >= ct {
		ct = maxCT.Int64 + 1
	}
	return db.insert(m, ct, op)
}

func convTypeOf(m *chat.Message) chat.ConvType {
	return chat.ConvType(m.ChatType)
}

func (db *DB) insert(m *chat.Message, compareTime int64, op string) error {
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	convType := convTypeOf(m)
	if _, err := tx.Exec(`
		INSERT INTO conversations (conv_id, conv_type, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conv_id, conv_type) DO NOTHING`,
		m.ConversationID, int(convType), now, now); err != nil {
		return storageErr(op, err)
	}

	bodyRaw, err := encodeBody(&m.Body)
	if err != nil {
		return chat.WrapErr(chat.KindInvalidParameter, op, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (conv_id, conv_type, msg_id, direction, sender, recipient, chat_type,
			server_time, local_time, compare_time, status, is_read, deliver_acked, read_acked,
			is_thread_msg, needs_group_ack, body_type, body, ext, operator_id, operation_time,
			operation_n, send_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			server_time = CASE WHEN excluded.server_time > 0 THEN excluded.server_time ELSE messages.server_time END,
			status = excluded.status,
			body_type = excluded.body_type,
			body = excluded.body,
			ext = excluded.ext,
			is_read = MAX(messages.is_read, excluded.is_read),
			deliver_acked = MAX(messages.deliver_acked, excluded.deliver_acked),
			read_acked = MAX(messages.read_acked, excluded.read_acked)`,
		m.ConversationID, int(convType), m.ID, int(m.Direction), m.From, m.To, int(m.ChatType),
		m.ServerTime, m.LocalTime, compareTime, string(m.Status), m.IsRead, m.IsDeliverAck, m.IsReadAck,
		m.IsThreadMsg, m.NeedsGroupAck, string(m.Body.Type), bodyRaw, encodeExt(m.Ext), m.OperatorID, m.OperationTime,
		m.OperationN, m.SendError, now); err != nil {
		return storageErr(op, err)
	}

	if err := refreshCounts(tx, m.ConversationID, convType); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// MergeServerMessage reconciles a server-sourced copy of a message with the
// local record. Server-owned fields (server timestamp, ack flags) take the
// server values; local-only fields (local enqueue time, in-flight status)
// keep the local values when the local record already exists.
func (db *DB) MergeServerMessage(m *chat.Message) error {
	const op = "store.merge_server_message"
	existing, err := db.GetMessage(m.ID)
	if err != nil && !chat.IsKind(err, chat.KindNotFound) {
		return err
	}
	if existing == nil {
		return db.InsertMessage(m)
	}

	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	serverTime := existing.ServerTime
	if m.ServerTime > 0 {
		serverTime = m.ServerTime
	}
	merged := *existing
	merged.ServerTime = serverTime
	if _, err := tx.Exec(`
		UPDATE messages SET
			server_time = ?,
			compare_time = ?,
			is_read = MAX(is_read, ?),
			deliver_acked = MAX(deliver_acked, ?),
			read_acked = MAX(read_acked, ?)
		WHERE msg_id = ?`,
		serverTime, db.compareTime(&merged), m.IsRead, m.IsDeliverAck, m.IsReadAck, m.ID); err != nil {
		return storageErr(op, err)
	}
	if err := refreshCounts(tx, existing.ConversationID, convTypeOf(existing)); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// GetMessage loads a message by its globally unique ID.
func (db *DB) GetMessage(msgID string) (*chat.Message, error) {
	const op = "store.get_message"
	row := db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE msg_id = ?`, msgID)
	m, err := scanMessage(row)
	if err != nil {
		return nil, storageErr(op, err)
	}
	reactions, err := db.ReactionList(m.ID)
	if err != nil {
		return nil, err
	}
	m.Reactions = reactions
	return m, nil
}

// DeleteMessage removes a single message and refreshes the conversation
// counters in the same transaction.
func (db *DB) DeleteMessage(convID string, convType chat.ConvType, msgID string) error {
	const op = "store.delete_message"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		DELETE FROM messages WHERE conv_id = ? AND conv_type = ? AND msg_id = ?`,
		convID, int(convType), msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found in %s/%s", msgID, convID, convType)
	}
	if err := refreshCounts(tx, convID, convType); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// DeleteMessagesBefore purges all messages with a compare timestamp
// strictly before ts, across every conversation.
func (db *DB) DeleteMessagesBefore(ts int64) error {
	const op = "store.delete_messages_before"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`
		SELECT DISTINCT conv_id, conv_type FROM messages WHERE compare_time < ?`, ts)
	if err != nil {
		return storageErr(op, err)
	}
	type key struct {
		id  string
		typ int
	}
	var affected []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.id, &k.typ); err != nil {
			_ = rows.Close()
			return storageErr(op, err)
		}
		affected = append(affected, k)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return storageErr(op, err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE compare_time < ?`, ts); err != nil {
		return storageErr(op, err)
	}
	for _, k := range affected {
		if err := refreshCounts(tx, k.id, chat.ConvType(k.typ)); err != nil {
			return storageErr(op, err)
		}
	}
	return storageErr(op, tx.Commit())
}

// MarkMessageRead flags a single message read and updates the unread count
// atomically.
func (db *DB) MarkMessageRead(convID string, convType chat.ConvType, msgID string) error {
	const op = "store.mark_message_read"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		UPDATE messages SET is_read = 1
		WHERE conv_id = ? AND conv_type = ? AND msg_id = ?`,
		convID, int(convType), msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found in %s/%s", msgID, convID, convType)
	}
	if err := refreshCounts(tx, convID, convType); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// MarkAllRead flags every message in the conversation read and zeroes the
// unread count.
func (db *DB) MarkAllRead(convID string, convType chat.ConvType) error {
	const op = "store.mark_all_read"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE messages SET is_read = 1 WHERE conv_id = ? AND conv_type = ?`,
		convID, int(convType)); err != nil {
		return storageErr(op, err)
	}
	if err := refreshCounts(tx, convID, convType); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// LoadMessagesStartFrom traverses the conversation locally from the message
// after startID in the given direction. An empty startID starts from the
// newest (descending) or oldest (ascending) message.
func (db *DB) LoadMessagesStartFrom(convID string, convType chat.ConvType, startID string, dir chat.SearchDirection, limit int) ([]*chat.Message, error) {
	const op = "store.load_messages"
	if limit <= 0 {
		limit = 20
	}

	var anchor int64
	haveAnchor := false
	if startID != "" {
		err := db.QueryRow(`
			SELECT compare_time FROM messages
			WHERE conv_id = ? AND conv_type = ? AND msg_id = ?`,
			convID, int(convType), startID).Scan(&anchor)
		if err != nil {
			return nil, storageErr(op, err)
		}
		haveAnchor = true
	}

	var rows *sql.Rows
	var err error
	switch {
	case dir == chat.SearchDescending && haveAnchor:
		rows, err = db.Query(`
			SELECT `+messageColumns+` FROM messages
			WHERE conv_id = ? AND conv_type = ? AND compare_time < ?
			ORDER BY compare_time DESC LIMIT ?`, convID, int(convType), anchor, limit)
	case dir == chat.SearchDescending:
		rows, err = db.Query(`
			SELECT `+messageColumns+` FROM messages
			WHERE conv_id = ? AND conv_type = ?
			ORDER BY compare_time DESC LIMIT ?`, convID, int(convType), limit)
	case haveAnchor:
		rows, err = db.Query(`
			SELECT `+messageColumns+` FROM messages
			WHERE conv_id = ? AND conv_type = ? AND compare_time > ?
			ORDER BY compare_time ASC LIMIT ?`, convID, int(convType), anchor, limit)
	default:
		rows, err = db.Query(`
			SELECT `+messageColumns+` FROM messages
			WHERE conv_id = ? AND conv_type = ?
			ORDER BY compare_time ASC LIMIT ?`, convID, int(convType), limit)
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	msgs, err := db.scanMessages(rows)
	return msgs, storageErr(op, err)
}

// LoadMessagesWithType returns the conversation's messages carrying the
// given body type, newest first. Purely local, no suspension.
func (db *DB) LoadMessagesWithType(convID string, convType chat.ConvType, bodyType chat.BodyType, limit int) ([]*chat.Message, error) {
	const op = "store.load_messages_with_type"
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE conv_id = ? AND conv_type = ? AND body_type = ?
		ORDER BY compare_time DESC LIMIT ?`, convID, int(convType), string(bodyType), limit)
	if err != nil {
		return nil, storageErr(op, err)
	}
	msgs, err := db.scanMessages(rows)
	return msgs, storageErr(op, err)
}

// SearchMessages returns the conversation's text messages whose body
// contains the keyword, newest first.
func (db *DB) SearchMessages(convID string, convType chat.ConvType, keyword string, limit int) ([]*chat.Message, error) {
	const op = "store.search_messages"
	if keyword == "" {
		return nil, chat.Errf(chat.KindInvalidParameter, op, "keyword is required")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE conv_id = ? AND conv_type = ? AND body LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY compare_time DESC LIMIT ?`, convID, int(convType), escapeLike(keyword), limit)
	if err != nil {
		return nil, storageErr(op, err)
	}
	msgs, err := db.scanMessages(rows)
	return msgs, storageErr(op, err)
}

// LastReceivedMessage returns the newest received message in the
// conversation, or nil when none exists.
func (db *DB) LastReceivedMessage(convID string, convType chat.ConvType) (*chat.Message, error) {
	const op = "store.last_received_message"
	row := db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE conv_id = ? AND conv_type = ? AND direction = 1
		ORDER BY compare_time DESC LIMIT 1`, convID, int(convType))
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return m, nil
}

// SetStatus records a delivery status transition, stamping the server time
// and send error as appropriate.
func (db *DB) SetStatus(msgID string, status chat.Status, serverTime int64, sendError string) error {
	const op = "store.set_status"
	m, err := db.GetMessage(msgID)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if serverTime > 0 {
		m.ServerTime = serverTime
	}
	if _, err := tx.Exec(`
		UPDATE messages SET status = ?, server_time = ?, compare_time = ?, send_error = ?
		WHERE msg_id = ?`,
		string(status), m.ServerTime, db.compareTime(m), sendError, msgID); err != nil {
		return storageErr(op, err)
	}
	if err := refreshCounts(tx, m.ConversationID, convTypeOf(m)); err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

// ReplaceBody swaps the message body and records modification metadata:
// operator, operation time, and an incremented operation count. The message
// ID and conversation ID never change.
func (db *DB) ReplaceBody(msgID string, body chat.Body, operatorID string, operationTime int64) error {
	const op = "store.replace_body"
	bodyRaw, err := encodeBody(&body)
	if err != nil {
		return chat.WrapErr(chat.KindInvalidParameter, op, err)
	}
	res, err := db.Exec(`
		UPDATE messages SET body_type = ?, body = ?, operator_id = ?, operation_time = ?,
			operation_n = operation_n + 1
		WHERE msg_id = ?`,
		string(body.Type), bodyRaw, operatorID, operationTime, msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found", msgID)
	}
	return nil
}

// SetBody swaps the message body without touching modification metadata,
// used when a send fills in server-assigned attachment references.
func (db *DB) SetBody(msgID string, body chat.Body) error {
	const op = "store.set_body"
	bodyRaw, err := encodeBody(&body)
	if err != nil {
		return chat.WrapErr(chat.KindInvalidParameter, op, err)
	}
	res, err := db.Exec(`
		UPDATE messages SET body_type = ?, body = ? WHERE msg_id = ?`,
		string(body.Type), bodyRaw, msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found", msgID)
	}
	return nil
}

// SetRecalled replaces the message body with recall metadata without
// touching the modification counters. The message keeps its slot in the
// conversation history.
func (db *DB) SetRecalled(msgID string, recall chat.RecallBody) error {
	const op = "store.set_recalled"
	body := chat.Body{Type: chat.BodyRecall, Recall: &recall}
	bodyRaw, err := encodeBody(&body)
	if err != nil {
		return chat.WrapErr(chat.KindInvalidParameter, op, err)
	}
	res, err := db.Exec(`
		UPDATE messages SET body_type = ?, body = ? WHERE msg_id = ?`,
		string(chat.BodyRecall), bodyRaw, msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found", msgID)
	}
	return nil
}

// ImportMessages inserts externally obtained messages in one transaction,
// without touching delivery state. Existing messages are left untouched.
func (db *DB) ImportMessages(msgs []*chat.Message) error {
	const op = "store.import_messages"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	affected := make(map[string]chat.ConvType)
	for _, m := range msgs {
		convType := convTypeOf(m)
		if _, err := tx.Exec(`
			INSERT INTO conversations (conv_id, conv_type, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(conv_id, conv_type) DO NOTHING`,
			m.ConversationID, int(convType), now, now); err != nil {
			return storageErr(op, err)
		}
		bodyRaw, err := encodeBody(&m.Body)
		if err != nil {
			return chat.WrapErr(chat.KindInvalidParameter, op, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conv_id, conv_type, msg_id, direction, sender, recipient, chat_type,
				server_time, local_time, compare_time, status, is_read, deliver_acked, read_acked,
				is_thread_msg, needs_group_ack, body_type, body, ext, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(msg_id) DO NOTHING`,
			m.ConversationID, int(convType), m.ID, int(m.Direction), m.From, m.To, int(m.ChatType),
			m.ServerTime, m.LocalTime, db.compareTime(m), string(m.Status), m.IsRead, m.IsDeliverAck, m.IsReadAck,
			m.IsThreadMsg, m.NeedsGroupAck, string(m.Body.Type), bodyRaw, encodeExt(m.Ext), now); err != nil {
			return storageErr(op, err)
		}
		affected[m.ConversationID] = convType
	}
	for id, typ := range affected {
		if err := refreshCounts(tx, id, typ); err != nil {
			return storageErr(op, err)
		}
	}
	return storageErr(op, tx.Commit())
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
