package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/driftline/chatkit/chat"
)

// GetConversation returns the conversation identified by (id, typ). When
// createIfAbsent is set a missing conversation is created empty; otherwise
// a NotFound error is returned.
func (db *DB) GetConversation(id string, typ chat.ConvType, createIfAbsent bool) (*chat.Conversation, error) {
	const op = "store.get_conversation"
	c, err := db.loadConversation(id, typ)
	if err == nil {
		return c, nil
	}
	if !chat.IsKind(err, chat.KindNotFound) {
		return nil, err
	}
	if !createIfAbsent {
		return nil, err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO conversations (conv_id, conv_type, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conv_id, conv_type) DO NOTHING`,
		id, int(typ), now, now)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return db.loadConversation(id, typ)
}

// ListConversations returns all conversations. With sorted=true, pinned
// conversations come first ordered by most-recently-pinned, then the rest
// by latest-message compare time descending.
func (db *DB) ListConversations(sorted bool) ([]*chat.Conversation, error) {
	const op = "store.list_conversations"
	order := `c.created_at ASC`
	if sorted {
		order = `c.pinned DESC, c.pinned_time DESC, active_time DESC`
	}
	rows, err := db.Query(`
		SELECT c.conv_id, c.conv_type, c.unread_count, c.msg_count, c.ext,
			c.pinned, c.pinned_time, c.is_thread,
			COALESCE((SELECT MAX(m.compare_time) FROM messages m
				WHERE m.conv_id = c.conv_id AND m.conv_type = c.conv_type), c.created_at) AS active_time
		FROM conversations c
		ORDER BY ` + order)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	for _, c := range convs {
		latest, err := db.latestMessage(c.ID, c.Type)
		if err != nil {
			return nil, err
		}
		c.LatestMessage = latest
	}
	return convs, nil
}

// UpsertConversation merges a server-fetched conversation into the store.
// Local message counts are preserved; server-owned attributes (ext, pin
// state) take the fetched values.
func (db *DB) UpsertConversation(c *chat.Conversation) error {
	const op = "store.upsert_conversation"
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (conv_id, conv_type, ext, pinned, pinned_time, is_thread, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conv_id, conv_type) DO UPDATE SET
			ext = excluded.ext,
			pinned = excluded.pinned,
			pinned_time = excluded.pinned_time,
			is_thread = excluded.is_thread,
			updated_at = excluded.updated_at`,
		c.ID, int(c.Type), encodeExt(c.Ext), c.Pinned, c.PinnedTime, c.IsThread, now, now)
	return storageErr(op, err)
}

// PinConversation sets or clears the pinned flag, stamping the pin time.
func (db *DB) PinConversation(id string, typ chat.ConvType, pinned bool) error {
	const op = "store.pin_conversation"
	pinnedTime := int64(0)
	if pinned {
		pinnedTime = time.Now().UnixMilli()
	}
	res, err := db.Exec(`
		UPDATE conversations SET pinned = ?, pinned_time = ?, updated_at = ?
		WHERE conv_id = ? AND conv_type = ?`,
		pinned, pinnedTime, time.Now().UnixMilli(), id, int(typ))
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "conversation %s/%s not found", id, typ)
	}
	return nil
}

// SetConversationExt replaces the conversation extension map.
func (db *DB) SetConversationExt(id string, typ chat.ConvType, ext map[string]string) error {
	const op = "store.set_conversation_ext"
	res, err := db.Exec(`
		UPDATE conversations SET ext = ?, updated_at = ?
		WHERE conv_id = ? AND conv_type = ?`,
		encodeExt(ext), time.Now().UnixMilli(), id, int(typ))
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "conversation %s/%s not found", id, typ)
	}
	return nil
}

// DeleteConversation removes a conversation. With cascade=true its messages
// are removed in the same transaction.
func (db *DB) DeleteConversation(id string, typ chat.ConvType, cascade bool) error {
	const op = "store.delete_conversation"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM conversations WHERE conv_id = ? AND conv_type = ?`, id, int(typ))
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "conversation %s/%s not found", id, typ)
	}
	if cascade {
		if _, err := tx.Exec(`DELETE FROM messages WHERE conv_id = ? AND conv_type = ?`, id, int(typ)); err != nil {
			return storageErr(op, err)
		}
	}
	return storageErr(op, tx.Commit())
}

func (db *DB) loadConversation(id string, typ chat.ConvType) (*chat.Conversation, error) {
	const op = "store.get_conversation"
	row := db.QueryRow(`
		SELECT c.conv_id, c.conv_type, c.unread_count, c.msg_count, c.ext,
			c.pinned, c.pinned_time, c.is_thread,
			COALESCE((SELECT MAX(m.compare_time) FROM messages m
				WHERE m.conv_id = c.conv_id AND m.conv_type = c.conv_type), c.created_at) AS active_time
		FROM conversations c
		WHERE c.conv_id = ? AND c.conv_type = ?`, id, int(typ))
	c, err := scanConversation(row)
	if err != nil {
		return nil, storageErr(op, err)
	}
	latest, err := db.latestMessage(id, typ)
	if err != nil {
		return nil, err
	}
	c.LatestMessage = latest
	return c, nil
}

func scanConversation(row rowScanner) (*chat.Conversation, error) {
	var c chat.Conversation
	var typ int
	var extRaw string
	if err := row.Scan(&c.ID, &typ, &c.UnreadCount, &c.MessageCount, &extRaw,
		&c.Pinned, &c.PinnedTime, &c.IsThread, &c.ActiveTime); err != nil {
		return nil, err
	}
	c.Type = chat.ConvType(typ)
	c.Ext = decodeExt(extRaw)
	return &c, nil
}

func (db *DB) latestMessage(id string, typ chat.ConvType) (*chat.Message, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE conv_id = ? AND conv_type = ?
		ORDER BY compare_time DESC LIMIT 1`, id, int(typ))
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("store.latest_message", err)
	}
	return m, nil
}

// refreshCounts recomputes the derived conversation counters inside the
// caller's transaction so the invariant unread <= total holds at commit.
func refreshCounts(tx *sql.Tx, convID string, convType chat.ConvType) error {
	_, err := tx.Exec(`
		UPDATE conversations SET
			msg_count = (SELECT COUNT(*) FROM messages m
				WHERE m.conv_id = ? AND m.conv_type = ?),
			unread_count = (SELECT COUNT(*) FROM messages m
				WHERE m.conv_id = ? AND m.conv_type = ? AND m.direction = 1 AND m.is_read = 0),
			updated_at = ?
		WHERE conv_id = ? AND conv_type = ?`,
		convID, int(convType), convID, int(convType), time.Now().UnixMilli(), convID, int(convType))
	return err
}
