package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const messageColumns = `id, chat_jid, msg_id, from_me, sender_jid, sender_name, body, message_type,
	mentioned_jids, quoted_msg_id, quoted_sender_jid, ack, edited_at, revoked, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var m Message
	var mentions string
	err := row.Scan(&m.ID, &m.ChatJID, &m.MsgID, &m.FromMe, &m.SenderJID, &m.SenderName, &m.Body, &m.MessageType,
		&mentions, &m.QuotedMsgID, &m.QuotedSenderJID, &m.Ack, &m.EditedAt, &m.Revoked, &m.Timestamp)
	if mentions != "" {
		m.MentionedJIDs = strings.Split(mentions, ",")
	}
	return m, err
}

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id)
// and advances the chat's last message. Ack, edit time and revocation never
// move backwards.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (chat_jid, msg_id, from_me, sender_jid, sender_name, body, message_type,
			mentioned_jids, quoted_msg_id, quoted_sender_jid, ack, edited_at, revoked, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
			body = CASE WHEN excluded.body != '' OR excluded.revoked THEN excluded.body ELSE messages.body END,
			message_type = excluded.message_type,
			mentioned_jids = excluded.mentioned_jids,
			ack = MAX(messages.ack, excluded.ack),
			edited_at = MAX(messages.edited_at, excluded.edited_at),
			revoked = MAX(messages.revoked, excluded.revoked)`,
		m.ChatJID, m.MsgID, m.FromMe, m.SenderJID, m.SenderName, m.Body, m.MessageType,
		strings.Join(m.MentionedJIDs, ","), m.QuotedMsgID, m.QuotedSenderJID, m.Ack, m.EditedAt, m.Revoked, m.Timestamp, now); err != nil {
		return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (jid, is_group, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		m.ChatJID, strings.HasSuffix(m.ChatJID, "@g.us"), m.Timestamp, m.Body, now); err != nil {
		return fmt.Errorf("touch chat %q: %w", m.ChatJID, err)
	}
	return tx.Commit()
}

// GetMessage returns a message, or nil if it is not cached.
func (db *DB) GetMessage(ctx context.Context, chatJID, msgID string) (*Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMessage looks a message up by id alone, for callers that do not know
// the chat. Returns nil if it is not cached.
func (db *DB) FindMessage(ctx context.Context, msgID string) (*Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE msg_id = ? ORDER BY timestamp DESC LIMIT 1`, msgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecentMessages returns up to limit of a chat's latest messages, oldest first.
func (db *DB) RecentMessages(ctx context.Context, chatJID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT * FROM messages WHERE chat_jid = ? ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, chatJID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetAck raises the ack level of messages in a chat.
func (db *DB) SetAck(ctx context.Context, chatJID string, msgIDs []string, ack int) error {
	for _, id := range msgIDs {
		if _, err := db.ExecContext(ctx,
			`UPDATE messages SET ack = MAX(ack, ?) WHERE chat_jid = ? AND msg_id = ?`, ack, chatJID, id); err != nil {
			return fmt.Errorf("set ack %q: %w", id, err)
		}
	}
	return nil
}

// MarkEdited replaces a message body. Returns false if it is not cached.
func (db *DB) MarkEdited(ctx context.Context, chatJID, msgID, body string, editedAt int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE messages SET body = ?, edited_at = MAX(edited_at, ?) WHERE chat_jid = ? AND msg_id = ?`,
		body, editedAt, chatJID, msgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRevoked flags a message as deleted for everyone and returns it as it
// was before, or nil if it is not cached.
func (db *DB) MarkRevoked(ctx context.Context, chatJID, msgID string) (*Message, error) {
	prior, err := db.GetMessage(ctx, chatJID, msgID)
	if err != nil || prior == nil {
		return prior, err
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE messages SET revoked = 1 WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID); err != nil {
		return nil, err
	}
	return prior, nil
}

// DeleteMessage removes a message deleted only for this device.
func (db *DB) DeleteMessage(ctx context.Context, chatJID, msgID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID)
	return err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
