package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertChat inserts or updates a chat's metadata. The last message fields
// only ever advance.
func (db *DB) UpsertChat(ctx context.Context, c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO chats (jid, name, is_group, participants, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			is_group = excluded.is_group,
			participants = CASE WHEN excluded.participants > 0 THEN excluded.participants ELSE chats.participants END,
			last_message_preview = CASE WHEN excluded.last_message_at > chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		c.JID, c.Name, c.IsGroup, c.Participants, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

const chatSelect = `
	SELECT c.jid,
		COALESCE(NULLIF(c.name,''), NULLIF(ct.name,''), NULLIF(ct.push_name,''), '') AS display_name,
		c.is_group, c.participants, c.last_message_at, c.last_message_preview
	FROM chats c
	LEFT JOIN contacts ct ON c.jid = ct.jid`

// ListChats returns chats sorted by last message timestamp descending.
// Names fall back from chat name to contact name to push name.
func (db *DB) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, chatSelect+`
		WHERE c.jid NOT LIKE '%@lid' AND c.jid != 'status@broadcast'
		ORDER BY c.last_message_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.JID, &c.Name, &c.IsGroup, &c.Participants, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat, or nil if it is not cached.
func (db *DB) GetChat(ctx context.Context, jid string) (*Chat, error) {
	var c Chat
	err := db.QueryRowContext(ctx, chatSelect+` WHERE c.jid = ?`, jid).
		Scan(&c.JID, &c.Name, &c.IsGroup, &c.Participants, &c.LastMessageAt, &c.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
