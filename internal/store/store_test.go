package store

import (
	"context"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + message state)", result.Version)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	msg := &Message{ChatJID: "chat@s.whatsapp.net", MsgID: "msg1", Body: "hello", MessageType: "chat", Ack: 2, Timestamp: 1000}
	if err := db.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	msg.Body = "hello updated"
	msg.Ack = 1
	if err := db.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.RecentMessages(ctx, "chat@s.whatsapp.net", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Body != "hello updated" {
		t.Errorf("body = %q, want hello updated", msgs[0].Body)
	}
	if msgs[0].Ack != 2 {
		t.Errorf("ack = %d, want 2 (must not go backwards)", msgs[0].Ack)
	}
}

func TestRecentMessagesWindow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		m := &Message{ChatJID: "g@g.us", MsgID: id, Body: id, Timestamp: int64(100 + i), MentionedJIDs: []string{"1@s.whatsapp.net", "2@s.whatsapp.net"}}
		if err := db.UpsertMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.RecentMessages(ctx, "g@g.us", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].MsgID != "c" || msgs[1].MsgID != "d" {
		t.Fatalf("got %+v, want [c d] oldest first", msgs)
	}
	if len(msgs[0].MentionedJIDs) != 2 {
		t.Errorf("mentions = %v, want 2", msgs[0].MentionedJIDs)
	}

	chat, err := db.GetChat(ctx, "g@g.us")
	if err != nil {
		t.Fatal(err)
	}
	if chat == nil || !chat.IsGroup || chat.LastMessagePreview != "d" {
		t.Errorf("chat = %+v, want group with preview d", chat)
	}
}

func TestEditAndRevoke(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertMessage(ctx, &Message{ChatJID: "c@s", MsgID: "m1", Body: "before", Timestamp: 10}); err != nil {
		t.Fatal(err)
	}

	ok, err := db.MarkEdited(ctx, "c@s", "m1", "after", 5000)
	if err != nil || !ok {
		t.Fatalf("MarkEdited() = %v, %v", ok, err)
	}
	ok, err = db.MarkEdited(ctx, "c@s", "missing", "x", 1)
	if err != nil || ok {
		t.Errorf("MarkEdited(missing) = %v, %v, want false", ok, err)
	}

	prior, err := db.MarkRevoked(ctx, "c@s", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if prior == nil || prior.Body != "after" || prior.Revoked {
		t.Errorf("prior = %+v, want edited body, not yet revoked", prior)
	}

	m, err := db.GetMessage(ctx, "c@s", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Revoked || m.EditedAt != 5000 {
		t.Errorf("message = %+v, want revoked and edited", m)
	}

	if err := db.DeleteMessage(ctx, "c@s", "m1"); err != nil {
		t.Fatal(err)
	}
	m, err = db.GetMessage(ctx, "c@s", "m1")
	if err != nil || m != nil {
		t.Errorf("GetMessage after delete = %v, %v", m, err)
	}
}

func TestFindMessageAndAck(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertMessage(ctx, &Message{ChatJID: "c@s", MsgID: "m1", FromMe: true, Timestamp: 10}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetAck(ctx, "c@s", []string{"m1", "unknown"}, 3); err != nil {
		t.Fatal(err)
	}

	m, err := db.FindMessage(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.ChatJID != "c@s" || m.Ack != 3 || !m.FromMe {
		t.Errorf("FindMessage = %+v", m)
	}

	count, err := db.MessageCount(ctx)
	if err != nil || count != 1 {
		t.Errorf("MessageCount() = %d, %v, want 1", count, err)
	}
}

func TestChatUpsertAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	chat := &Chat{JID: "123@s.whatsapp.net", Name: "Alice", LastMessageAt: 1000, LastMessagePreview: "hello"}
	if err := db.UpsertChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	chat.Name = "Alice Updated"
	chat.LastMessageAt = 500
	chat.LastMessagePreview = "older"
	if err := db.UpsertChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(ctx, &Chat{JID: "999@lid", Name: "hidden"}); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 {
		t.Fatalf("got %d chats, want 1", len(chats))
	}
	if chats[0].Name != "Alice Updated" || chats[0].LastMessagePreview != "hello" {
		t.Errorf("chat = %+v, want renamed with newest preview kept", chats[0])
	}
}

func TestChatNameFallsBackToContact(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertChat(ctx, &Chat{JID: "a@s"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertContact(ctx, &Contact{JID: "a@s", PushName: "Ana"}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetChat(ctx, "a@s")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "Ana" {
		t.Errorf("got %v, want Ana", c)
	}

	c, err = db.GetChat(ctx, "missing@s")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}
}

func TestContacts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.BulkUpsertContacts(ctx, []Contact{
		{JID: "j@s", Name: "John", PushName: "Johnny"},
		{JID: "a@s", PushName: "ana"},
		{JID: "x@s"},
	}); err != nil {
		t.Fatal(err)
	}
	// Empty fields keep the cached value.
	if err := db.UpsertContact(ctx, &Contact{JID: "j@s", ShortName: "J"}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetContact(ctx, "j@s")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "John" || c.PushName != "Johnny" || c.ShortName != "J" {
		t.Errorf("got %+v", c)
	}

	list, err := db.ListContacts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].DisplayName() != "ana" || list[1].DisplayName() != "John" {
		t.Errorf("ListContacts() = %+v, want [ana John]", list)
	}
}
