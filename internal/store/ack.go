package store

import (
	"time"

	"github.com/driftline/chatkit/chat"
)

// ApplyDeliveryAck flags the message delivery-acked. Idempotent: applying
// the same ack twice leaves state unchanged.
func (db *DB) ApplyDeliveryAck(msgID string) error {
	const op = "store.apply_delivery_ack"
	res, err := db.Exec(`UPDATE messages SET deliver_acked = 1 WHERE msg_id = ?`, msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found", msgID)
	}
	return nil
}

// ApplyReadAck flags the message read-acked. Idempotent.
func (db *DB) ApplyReadAck(msgID string) error {
	const op = "store.apply_read_ack"
	res, err := db.Exec(`UPDATE messages SET read_acked = 1 WHERE msg_id = ?`, msgID)
	if err != nil {
		return storageErr(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return chat.Errf(chat.KindNotFound, op, "message %s not found", msgID)
	}
	return nil
}

// AddGroupAck records that member acknowledged the group message and
// returns the resulting count of distinct acking members. Duplicate acks
// from the same member do not change the count.
func (db *DB) AddGroupAck(msgID, member string) (int, error) {
	const op = "store.add_group_ack"
	if _, err := db.Exec(`
		INSERT INTO group_acks (msg_id, member, acked_at) VALUES (?, ?, ?)
		ON CONFLICT(msg_id, member) DO NOTHING`,
		msgID, member, time.Now().UnixMilli()); err != nil {
		return 0, storageErr(op, err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM group_acks WHERE msg_id = ?`, msgID).Scan(&count); err != nil {
		return 0, storageErr(op, err)
	}
	return count, nil
}

// GroupAckCount returns the number of distinct members that acknowledged
// the message.
func (db *DB) GroupAckCount(msgID string) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM group_acks WHERE msg_id = ?`, msgID).Scan(&count); err != nil {
		return 0, storageErr("store.group_ack_count", err)
	}
	return count, nil
}
