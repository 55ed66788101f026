package store

import (
	"database/sql"
	"errors"

	"github.com/driftline/chatkit/chat"
)

// ApplyReaction adjusts the aggregate for one reaction content on one
// message. added=true counts the user in, added=false counts them out;
// an aggregate that reaches zero is removed.
func (db *DB) ApplyReaction(msgID, content, userID string, added bool) error {
	const op = "store.apply_reaction"
	tx, err := db.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	var bySelf bool
	var previewRaw string
	err = tx.QueryRow(`
		SELECT count, by_self, user_preview FROM reactions
		WHERE msg_id = ? AND content = ?`, msgID, content).
		Scan(&count, &bySelf, &previewRaw)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageErr(op, err)
	}

	preview := decodeUsers(previewRaw)
	self := userID == db.selfUserID
	if added {
		count++
		if self {
			bySelf = true
		}
		if len(preview) < chat.ReactionUserPreviewLimit && !containsUser(preview, userID) {
			preview = append(preview, userID)
		}
	} else {
		if count > 0 {
			count--
		}
		if self {
			bySelf = false
		}
		preview = removeUser(preview, userID)
	}

	if count == 0 {
		if exists {
			if _, err := tx.Exec(`DELETE FROM reactions WHERE msg_id = ? AND content = ?`, msgID, content); err != nil {
				return storageErr(op, err)
			}
		}
	} else {
		if _, err := tx.Exec(`
			INSERT INTO reactions (msg_id, content, count, by_self, user_preview)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(msg_id, content) DO UPDATE SET
				count = excluded.count,
				by_self = excluded.by_self,
				user_preview = excluded.user_preview`,
			msgID, content, count, bySelf, encodeUsers(preview)); err != nil {
			return storageErr(op, err)
		}
	}
	return storageErr(op, tx.Commit())
}

// ReactionList returns the reaction aggregates on a message.
func (db *DB) ReactionList(msgID string) ([]chat.Reaction, error) {
	const op = "store.reaction_list"
	rows, err := db.Query(`
		SELECT content, count, by_self, user_preview FROM reactions
		WHERE msg_id = ? ORDER BY content`, msgID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	var reactions []chat.Reaction
	for rows.Next() {
		r := chat.Reaction{MessageID: msgID}
		var previewRaw string
		if err := rows.Scan(&r.Content, &r.Count, &r.AddedBySelf, &previewRaw); err != nil {
			return nil, storageErr(op, err)
		}
		r.UserPreview = decodeUsers(previewRaw)
		reactions = append(reactions, r)
	}
	return reactions, storageErr(op, rows.Err())
}

func containsUser(users []string, id string) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}

func removeUser(users []string, id string) []string {
	out := users[:0]
	for _, u := range users {
		if u != id {
			out = append(out, u)
		}
	}
	return out
}
