package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertContact = `
	INSERT INTO contacts (jid, name, push_name, short_name, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE contacts.push_name END,
		short_name = CASE WHEN excluded.short_name != '' THEN excluded.short_name ELSE contacts.short_name END,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact. Empty fields keep their
// cached value.
func (db *DB) UpsertContact(ctx context.Context, c *Contact) error {
	_, err := db.ExecContext(ctx, upsertContact, c.JID, c.Name, c.PushName, c.ShortName, time.Now().UnixMilli())
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(ctx context.Context, contacts []Contact) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, upsertContact, c.JID, c.Name, c.PushName, c.ShortName, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.JID, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact, or nil if it is not cached.
func (db *DB) GetContact(ctx context.Context, jid string) (*Contact, error) {
	var c Contact
	err := db.QueryRowContext(ctx, `SELECT jid, name, push_name, short_name FROM contacts WHERE jid = ?`, jid).
		Scan(&c.JID, &c.Name, &c.PushName, &c.ShortName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns named contacts ordered by name.
func (db *DB) ListContacts(ctx context.Context, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT jid, name, push_name, short_name FROM contacts
		WHERE jid NOT LIKE '%@lid' AND (name != '' OR push_name != '')
		ORDER BY COALESCE(NULLIF(name,''), push_name) COLLATE NOCASE
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.JID, &c.Name, &c.PushName, &c.ShortName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
