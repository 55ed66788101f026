package store

import (
	"database/sql"
	"encoding/json"

	"github.com/driftline/chatkit/chat"
)

func encodeBody(b *chat.Body) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeBody(s string) (chat.Body, error) {
	var b chat.Body
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return chat.Body{}, err
	}
	return b, nil
}

func encodeExt(ext map[string]string) string {
	if len(ext) == 0 {
		return ""
	}
	data, _ := json.Marshal(ext)
	return string(data)
}

func decodeExt(s string) map[string]string {
	if s == "" {
		return nil
	}
	var ext map[string]string
	if err := json.Unmarshal([]byte(s), &ext); err != nil {
		return nil
	}
	return ext
}

func encodeUsers(users []string) string {
	if len(users) == 0 {
		return ""
	}
	data, _ := json.Marshal(users)
	return string(data)
}

func decodeUsers(s string) []string {
	if s == "" {
		return nil
	}
	var users []string
	if err := json.Unmarshal([]byte(s), &users); err != nil {
		return nil
	}
	return users
}

const messageColumns = `conv_id, conv_type, msg_id, direction, sender, recipient, chat_type,
	server_time, local_time, status, is_read, deliver_acked, read_acked,
	is_thread_msg, needs_group_ack, body, ext, operator_id, operation_time,
	operation_n, send_error,
	(SELECT COUNT(*) FROM group_acks ga WHERE ga.msg_id = messages.msg_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*chat.Message, error) {
	var m chat.Message
	var convType, direction, chatType int
	var status, bodyRaw, extRaw string
	if err := row.Scan(
		&m.ConversationID, &convType, &m.ID, &direction, &m.From, &m.To, &chatType,
		&m.ServerTime, &m.LocalTime, &status, &m.IsRead, &m.IsDeliverAck, &m.IsReadAck,
		&m.IsThreadMsg, &m.NeedsGroupAck, &bodyRaw, &extRaw, &m.OperatorID, &m.OperationTime,
		&m.OperationN, &m.SendError, &m.GroupAckCount,
	); err != nil {
		return nil, err
	}
	m.Direction = chat.Direction(direction)
	m.ChatType = chat.ChatType(chatType)
	m.Status = chat.Status(status)
	body, err := decodeBody(bodyRaw)
	if err != nil {
		return nil, err
	}
	m.Body = body
	m.Ext = decodeExt(extRaw)
	return &m, nil
}

func (db *DB) scanMessages(rows *sql.Rows) ([]*chat.Message, error) {
	defer func() { _ = rows.Close() }()
	var msgs []*chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		reactions, err := db.ReactionList(m.ID)
		if err != nil {
			return nil, err
		}
		m.Reactions = reactions
	}
	return msgs, nil
}
