package wa

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/store"
)

// testClient returns a client wired to a fresh message cache and no
// whatsmeow connection.
func testClient(t *testing.T) *Client {
	t.Helper()
	db, err := store.OpenMigrated(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	c := newClient(backend.Options{ClientID: "whatsapp-client-1", AuthDir: t.TempDir()}, zap.NewNop())
	c.cache = db
	t.Cleanup(func() { _ = c.Destroy(context.Background()) })
	return c
}

func next(t *testing.T, c *Client) backend.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for backend event")
		return nil
	}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %#v", ev)
	default:
	}
}

func directMessage(id, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			ID:        id,
			PushName:  "Alice",
			Timestamp: time.Unix(1700000000, 0),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "5511999999999", Server: types.DefaultUserServer},
				Sender: types.JID{User: "5511999999999", Server: types.DefaultUserServer, Device: 2},
			},
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestHandleConnected(t *testing.T) {
	c := testClient(t)
	c.handle(&events.Connected{})
	if _, ok := next(t, c).(backend.Ready); !ok {
		t.Fatal("want Ready")
	}
}

func TestHandleTransientDisconnect(t *testing.T) {
	c := testClient(t)
	c.handle(&events.Disconnected{})
	ev, ok := next(t, c).(backend.StateChange)
	if !ok || ev.State == backend.StateUnpaired || ev.State == backend.StateUnpairedIdle {
		t.Fatalf("got %#v, want a non-pairing state change", ev)
	}
}

func TestHandleLoggedOut(t *testing.T) {
	c := testClient(t)
	c.handle(&events.LoggedOut{Reason: events.ConnectFailureLoggedOut})
	ev, ok := next(t, c).(backend.Disconnected)
	if !ok || ev.Reason == "" {
		t.Fatalf("got %#v, want Disconnected with a reason", ev)
	}
}

func TestHandlePairSuccess(t *testing.T) {
	c := testClient(t)
	c.handle(&events.PairSuccess{ID: types.JID{User: "5511999999999", Server: types.DefaultUserServer}})
	if _, ok := next(t, c).(backend.Authenticated); !ok {
		t.Fatal("want Authenticated")
	}
}

func TestHandleMessageCachesAndEmits(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	c.handle(directMessage("M1", "hello"))

	ev, ok := next(t, c).(backend.MessageReceived)
	if !ok {
		t.Fatal("want MessageReceived")
	}
	if ev.Message.Chat != "5511999999999@s.whatsapp.net" || ev.Message.Body != "hello" || ev.Message.Type != "chat" {
		t.Errorf("message = %+v", ev.Message)
	}
	if ev.Message.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want unix seconds", ev.Message.Timestamp)
	}

	cached, err := c.cache.GetMessage(ctx, "5511999999999@s.whatsapp.net", "M1")
	if err != nil || cached == nil {
		t.Fatalf("GetMessage() = %v, %v", cached, err)
	}
	contact, err := c.cache.GetContact(ctx, "5511999999999@s.whatsapp.net")
	if err != nil || contact == nil || contact.PushName != "Alice" {
		t.Errorf("contact = %+v, %v, want push name cached", contact, err)
	}
}

func TestHandleReactionIgnored(t *testing.T) {
	c := testClient(t)
	evt := directMessage("R1", "")
	evt.Message = &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}}
	c.handle(evt)
	expectNone(t, c)
}

func TestHandleRevoke(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	c.handle(directMessage("M1", "secret"))
	next(t, c)

	revoke := directMessage("P1", "")
	revoke.Message = &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
		Key:  &waCommon.MessageKey{ID: proto.String("M1")},
	}}
	c.handle(revoke)

	ev, ok := next(t, c).(backend.MessageRevoked)
	if !ok {
		t.Fatal("want MessageRevoked")
	}
	if ev.Message.ID.ID != "M1" || ev.Message.Body != "secret" {
		t.Errorf("revoked = %+v, want prior content of M1", ev.Message)
	}

	cached, err := c.cache.GetMessage(ctx, "5511999999999@s.whatsapp.net", "M1")
	if err != nil || cached == nil || !cached.Revoked {
		t.Errorf("cached = %+v, %v, want revoked", cached, err)
	}
	if got := ToRaw(*cached).Type; got != normalize.RevokedType {
		t.Errorf("Type = %q, want revoked", got)
	}
}

func TestHandleRevokeUnknownMessage(t *testing.T) {
	c := testClient(t)
	revoke := directMessage("P1", "")
	revoke.Message = &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
		Key:  &waCommon.MessageKey{ID: proto.String("GONE")},
	}}
	c.handle(revoke)

	ev, ok := next(t, c).(backend.MessageRevoked)
	if !ok {
		t.Fatal("want MessageRevoked")
	}
	if err := ev.Message.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestHandleEditKeepsOriginalID(t *testing.T) {
	c := testClient(t)

	c.handle(directMessage("M1", "typo"))
	next(t, c)

	edit := directMessage("P2", "")
	edit.Info.Timestamp = time.Unix(1700000100, 0)
	edit.Message = &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
		Key:           &waCommon.MessageKey{ID: proto.String("M1")},
		EditedMessage: &waE2E.Message{Conversation: proto.String("fixed")},
	}}
	c.handle(edit)

	ev, ok := next(t, c).(backend.MessageReceived)
	if !ok {
		t.Fatal("want MessageReceived")
	}
	if ev.Message.ID.ID != "M1" || ev.Message.Body != "fixed" {
		t.Errorf("edited = %+v", ev.Message)
	}
	if ev.Message.LatestEditMs != 1700000100000 {
		t.Errorf("LatestEditMs = %d", ev.Message.LatestEditMs)
	}
}

func TestHandleReceiptRaisesAck(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	sent := directMessage("S1", "out")
	sent.Info.IsFromMe = true
	c.handle(sent)
	next(t, c)

	c.handle(&events.Receipt{
		MessageSource: types.MessageSource{Chat: types.JID{User: "5511999999999", Server: types.DefaultUserServer}},
		MessageIDs:    []types.MessageID{"S1"},
		Type:          types.ReceiptTypeRead,
	})

	m, err := c.cache.GetMessage(ctx, "5511999999999@s.whatsapp.net", "S1")
	if err != nil || m == nil || m.Ack != 3 {
		t.Errorf("message = %+v, %v, want ack 3", m, err)
	}
}

func TestHandleChatPresence(t *testing.T) {
	c := testClient(t)
	c.handle(&events.ChatPresence{
		MessageSource: types.MessageSource{
			Chat:   types.JID{User: "120363", Server: types.GroupServer},
			Sender: types.JID{User: "555", Server: types.DefaultUserServer, Device: 1},
		},
		State: types.ChatPresenceComposing,
	})
	ev, ok := next(t, c).(backend.ChatPresence)
	if !ok {
		t.Fatal("want ChatPresence")
	}
	if ev.ChatID != "120363@g.us" || ev.ParticipantID != "555@s.whatsapp.net" || !ev.Composing {
		t.Errorf("presence = %+v", ev)
	}
}

func TestHandleHistorySyncNilData(t *testing.T) {
	c := testClient(t)
	c.handle(&events.HistorySync{})
	expectNone(t, c)
}

// TestPushNameContactJIDNormalized verifies push names are cached under the
// canonical user JID.
func TestPushNameContactJIDNormalized(t *testing.T) {
	c := testClient(t)
	c.handle(&events.PushName{
		JID:         types.JID{User: "558592403672", Server: types.DefaultUserServer, Device: 4},
		NewPushName: "Carol",
	})
	ct, err := c.cache.GetContact(context.Background(), "558592403672@s.whatsapp.net")
	if err != nil || ct == nil || ct.PushName != "Carol" {
		t.Errorf("contact = %+v, %v", ct, err)
	}
}

func TestDestroyClosesEvents(t *testing.T) {
	c := testClient(t)
	if err := c.Destroy(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Destroy(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("events channel should be closed")
	}
	// Emitting after Destroy must not panic.
	c.handle(&events.Connected{})
}

func TestHistoryAck(t *testing.T) {
	if historyAck(2) != 1 || historyAck(3) != 2 || historyAck(4) != 3 || historyAck(0) != 0 {
		t.Error("unexpected ack mapping")
	}
}

type fakeLIDs map[string]types.JID

func (f fakeLIDs) GetPNForLID(_ context.Context, lid types.JID) (types.JID, error) {
	return f[lid.User], nil
}

// TestHandleGroupMessageResolvesLIDs verifies that LID-addressed senders,
// mentions and quoted authors are stored and emitted as phone number JIDs.
func TestHandleGroupMessageResolvesLIDs(t *testing.T) {
	c := testClient(t)
	c.lids = fakeLIDs{"184467440737": types.JID{User: "5511988887777", Server: types.DefaultUserServer}}

	c.handle(&events.Message{
		Info: types.MessageInfo{
			ID:        "G1",
			Timestamp: time.Unix(1700000000, 0),
			MessageSource: types.MessageSource{
				Chat:    types.JID{User: "120363", Server: types.GroupServer},
				Sender:  types.JID{User: "184467440737", Server: types.HiddenUserServer, Device: 5},
				IsGroup: true,
			},
		},
		Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String("@184467440737 @999 ok"),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:     proto.String("Q1"),
				Participant:  proto.String("184467440737@lid"),
				MentionedJID: []string{"184467440737@lid", "999@lid"},
			},
		}},
	})

	ev, ok := next(t, c).(backend.MessageReceived)
	if !ok {
		t.Fatal("want MessageReceived")
	}
	if ev.Message.Author != "5511988887777@s.whatsapp.net" {
		t.Errorf("author = %q, want resolved phone JID", ev.Message.Author)
	}
	want := []string{"5511988887777@s.whatsapp.net", "999@lid"}
	if len(ev.Message.MentionedIDs) != 2 || ev.Message.MentionedIDs[0] != want[0] || ev.Message.MentionedIDs[1] != want[1] {
		t.Errorf("mentions = %v, want %v", ev.Message.MentionedIDs, want)
	}

	cached, err := c.cache.GetMessage(context.Background(), "120363@g.us", "G1")
	if err != nil || cached == nil {
		t.Fatalf("GetMessage() = %v, %v", cached, err)
	}
	if cached.SenderJID != "5511988887777@s.whatsapp.net" || cached.QuotedSenderJID != "5511988887777@s.whatsapp.net" {
		t.Errorf("cached sender = %q, quoted = %q", cached.SenderJID, cached.QuotedSenderJID)
	}
}

func TestHandleChatPresenceResolvesLID(t *testing.T) {
	c := testClient(t)
	c.lids = fakeLIDs{"184467440737": types.JID{User: "5511988887777", Server: types.DefaultUserServer}}
	c.handle(&events.ChatPresence{
		MessageSource: types.MessageSource{
			Chat:   types.JID{User: "120363", Server: types.GroupServer},
			Sender: types.JID{User: "184467440737", Server: types.HiddenUserServer},
		},
		State: types.ChatPresenceComposing,
	})
	ev, ok := next(t, c).(backend.ChatPresence)
	if !ok {
		t.Fatal("want ChatPresence")
	}
	if ev.ParticipantID != "5511988887777@s.whatsapp.net" {
		t.Errorf("participant = %q, want resolved phone JID", ev.ParticipantID)
	}
}

func TestResolveLIDWithoutStore(t *testing.T) {
	c := testClient(t)
	lid := types.JID{User: "184467440737", Server: types.HiddenUserServer}
	if got := c.resolveLID(lid); got != lid {
		t.Errorf("resolveLID() = %v, want %v unchanged", got, lid)
	}
	if got := c.resolveID(""); got != "" {
		t.Errorf("resolveID(\"\") = %q, want empty", got)
	}
	if got := c.resolveID("555@s.whatsapp.net"); got != "555@s.whatsapp.net" {
		t.Errorf("resolveID() = %q, want phone JID unchanged", got)
	}
}

// TestWatchQRRequestsPairingCodeOnce verifies that phone pairing asks for a
// code after the first QR event only and never surfaces the QR codes.
func TestWatchQRRequestsPairingCodeOnce(t *testing.T) {
	c := testClient(t)
	c.opts.PhoneNumber = "5511999999999"

	ch := make(chan whatsmeow.QRChannelItem, 3)
	ch <- whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@a"}
	ch <- whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@b"}
	ch <- whatsmeow.QRChannelSuccess
	close(ch)

	calls := 0
	c.wg.Add(1)
	c.watchQR(ch, func(context.Context) (string, error) {
		calls++
		return "ABCD-EFGH", nil
	})

	if calls != 1 {
		t.Errorf("pair calls = %d, want 1", calls)
	}
	ev, ok := next(t, c).(backend.PairingCode)
	if !ok || ev.Code != "ABCD-EFGH" {
		t.Fatalf("event = %#v, want PairingCode", ev)
	}
	expectNone(t, c)
}

func TestWatchQRPairingCodeError(t *testing.T) {
	c := testClient(t)
	c.opts.PhoneNumber = "5511999999999"

	ch := make(chan whatsmeow.QRChannelItem, 1)
	ch <- whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@a"}
	close(ch)

	c.wg.Add(1)
	c.watchQR(ch, func(context.Context) (string, error) { return "", errors.New("rate limited") })

	ev, ok := next(t, c).(backend.AuthFailure)
	if !ok || ev.Message != "request pairing code: rate limited" {
		t.Fatalf("event = %#v, want AuthFailure", ev)
	}
}
