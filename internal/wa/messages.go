package wa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/store"
)

const chatLimit = 500

var errNoCaption = errors.New("media type cannot carry a caption")

// Contacts returns the device store's contacts, caching them for chat name
// lookups. If the device store fails the cached contacts are returned.
func (c *Client) Contacts(ctx context.Context) ([]backend.RawContact, error) {
	all, err := c.wa.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		c.logger.Warn("failed to get contacts from device store", zap.Error(err))
		cached, cerr := c.cache.ListContacts(ctx, chatLimit)
		if cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		out := make([]backend.RawContact, 0, len(cached))
		for _, ct := range cached {
			out = append(out, cachedContact(ct))
		}
		return out, nil
	}

	out := make([]backend.RawContact, 0, len(all))
	rows := make([]store.Contact, 0, len(all))
	for jid, info := range all {
		jid = jid.ToNonAD()
		if jid.Server != types.DefaultUserServer {
			continue
		}
		out = append(out, backend.RawContact{
			ID:        jid.String(),
			Name:      firstNonEmpty(info.FullName, info.BusinessName),
			PushName:  info.PushName,
			ShortName: info.FirstName,
			Number:    jid.User,
		})
		rows = append(rows, store.Contact{JID: jid.String(), Name: info.FullName, PushName: info.PushName, ShortName: info.FirstName})
	}
	if err := c.cache.BulkUpsertContacts(ctx, rows); err != nil {
		c.logger.Warn("cache contacts", zap.Error(err))
	}
	return out, nil
}

func cachedContact(ct store.Contact) backend.RawContact {
	number, _, _ := strings.Cut(ct.JID, "@")
	return backend.RawContact{ID: ct.JID, Name: ct.Name, PushName: ct.PushName, ShortName: ct.ShortName, Number: number}
}

// Chats returns cached chats, most recent first.
func (c *Client) Chats(ctx context.Context) ([]backend.RawChat, error) {
	chats, err := c.cache.ListChats(ctx, chatLimit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]backend.RawChat, 0, len(chats))
	for _, ch := range chats {
		out = append(out, backend.RawChat{
			ID:             ch.JID,
			Name:           ch.Name,
			IsGroup:        ch.IsGroup,
			Participants:   ch.Participants,
			LastMessage:    ch.LastMessagePreview,
			HasLastMessage: ch.LastMessageAt > 0,
		})
	}
	return out, nil
}

// ContactByID looks a contact up in the device store, then in the cache.
func (c *Client) ContactByID(ctx context.Context, id string) (backend.RawContact, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return backend.RawContact{}, fmt.Errorf("parse JID %q: %w", id, err)
	}
	jid = jid.ToNonAD()
	info, err := c.wa.Store.Contacts.GetContact(ctx, jid)
	if err == nil && info.Found {
		return backend.RawContact{
			ID:        jid.String(),
			Name:      firstNonEmpty(info.FullName, info.BusinessName),
			PushName:  info.PushName,
			ShortName: info.FirstName,
			Number:    jid.User,
		}, nil
	}
	ct, err := c.cache.GetContact(ctx, jid.String())
	if err != nil {
		return backend.RawContact{}, err
	}
	if ct == nil {
		return backend.RawContact{}, fmt.Errorf("contact %s: %w", id, backend.ErrNotFound)
	}
	return cachedContact(*ct), nil
}

// FormattedNumber returns the international form of a user id.
func (c *Client) FormattedNumber(_ context.Context, id string) (string, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return "", fmt.Errorf("parse JID %q: %w", id, err)
	}
	if jid.Server != types.DefaultUserServer || jid.User == "" {
		return "", fmt.Errorf("%s is not a phone number: %w", id, backend.ErrNotFound)
	}
	return "+" + jid.User, nil
}

func (c *Client) FetchMessages(ctx context.Context, chatID string, limit int) ([]backend.RawMessage, error) {
	msgs, err := c.cache.RecentMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	out := make([]backend.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToRaw(m))
	}
	return out, nil
}

func (c *Client) MessageByID(ctx context.Context, id backend.MessageID) (backend.RawMessage, error) {
	m, err := c.cache.GetMessage(ctx, id.Chat, id.ID)
	if err != nil {
		return backend.RawMessage{}, err
	}
	if m == nil {
		return backend.RawMessage{}, fmt.Errorf("message %s: %w", id, backend.ErrNotFound)
	}
	return ToRaw(*m), nil
}

func (c *Client) QuotedMessage(ctx context.Context, msg backend.RawMessage) (backend.RawMessage, error) {
	row, err := c.cache.GetMessage(ctx, msg.Chat, msg.ID.ID)
	if err != nil {
		return backend.RawMessage{}, err
	}
	if row == nil || row.QuotedMsgID == "" {
		return backend.RawMessage{}, fmt.Errorf("quote of %s: %w", msg.ID.ID, backend.ErrNotFound)
	}
	return c.MessageByID(ctx, backend.MessageID{Chat: msg.Chat, ID: row.QuotedMsgID})
}

// Send sends text or media, uploading media first. Audio cannot carry a
// caption; those sends fail so the caller can split them.
func (c *Client) Send(ctx context.Context, chatID string, out backend.Outgoing) (backend.SendResult, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return backend.SendResult{}, fmt.Errorf("parse JID: %w", err)
	}

	quote, err := c.quoteInfo(ctx, out.Quoted)
	if err != nil {
		return backend.SendResult{}, err
	}

	var msg *waE2E.Message
	if out.Media != nil {
		msg, err = c.mediaMessage(ctx, out.Media, out.Text, quote)
		if err != nil {
			return backend.SendResult{}, err
		}
	} else {
		msg = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(out.Text),
			ContextInfo: quote,
		}}
	}

	resp, err := c.wa.SendMessage(ctx, to, msg)
	if err != nil {
		return backend.SendResult{}, fmt.Errorf("send message: %w", err)
	}

	row := parseContent(msg)
	row.ChatJID = to.ToNonAD().String()
	row.MsgID = resp.ID
	row.FromMe = true
	row.Ack = 1
	row.Timestamp = resp.Timestamp.Unix()
	if row.Timestamp <= 0 {
		row.Timestamp = time.Now().Unix()
	}
	if err := c.cache.UpsertMessage(ctx, &row); err != nil {
		c.logger.Warn("cache sent message", zap.String("id", resp.ID), zap.Error(err))
	}

	return backend.SendResult{
		ID:       backend.MessageID{FromMe: true, Chat: row.ChatJID, ID: resp.ID},
		HasMedia: out.Media != nil,
	}, nil
}

// quoteInfo builds the quote of a reply. The quoted body comes from the
// cache so the recipient sees a preview.
func (c *Client) quoteInfo(ctx context.Context, q *backend.MessageID) (*waE2E.ContextInfo, error) {
	if q == nil {
		return nil, nil
	}
	participant := q.Participant
	switch {
	case participant != "":
	case q.FromMe:
		participant = c.ownJID().String()
	default:
		participant = q.Chat
	}
	ci := &waE2E.ContextInfo{
		StanzaID:    proto.String(q.ID),
		Participant: proto.String(participant),
	}
	quoted, err := c.cache.GetMessage(ctx, q.Chat, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load quoted message: %w", err)
	}
	body := ""
	if quoted != nil {
		body = quoted.Body
	}
	ci.QuotedMessage = &waE2E.Message{Conversation: proto.String(body)}
	return ci, nil
}

func (c *Client) mediaMessage(ctx context.Context, m *backend.Media, caption string, quote *waE2E.ContextInfo) (*waE2E.Message, error) {
	mime := m.MimeType
	if mime == "" {
		mime = http.DetectContentType(m.Data)
	}
	kind := mediaKind(mime)
	if kind == whatsmeow.MediaAudio && caption != "" {
		return nil, errNoCaption
	}

	up, err := c.wa.Upload(ctx, m.Data, kind)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", m.FileName, err)
	}

	switch kind {
	case whatsmeow.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       optional(caption),
			Mimetype:      proto.String(mime),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   quote,
		}}, nil
	case whatsmeow.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       optional(caption),
			Mimetype:      proto.String(mime),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   quote,
		}}, nil
	case whatsmeow.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(mime),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   quote,
		}}, nil
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       optional(caption),
			Mimetype:      proto.String(mime),
			FileName:      proto.String(m.FileName),
			Title:         proto.String(m.FileName),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   quote,
		}}, nil
	}
}

// mediaKind picks the upload type from a MIME type.
func mediaKind(mime string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mime, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return whatsmeow.MediaAudio
	}
	return whatsmeow.MediaDocument
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}

// Edit replaces the text of one of our messages.
func (c *Client) Edit(ctx context.Context, id backend.MessageID, content string) error {
	chat, err := types.ParseJID(id.Chat)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	edit := c.wa.BuildEdit(chat, id.ID, &waE2E.Message{Conversation: proto.String(content)})
	if _, err := c.wa.SendMessage(ctx, chat, edit); err != nil {
		return fmt.Errorf("send edit: %w", err)
	}
	if _, err := c.cache.MarkEdited(ctx, id.Chat, id.ID, content, time.Now().UnixMilli()); err != nil {
		c.logger.Warn("cache edit", zap.String("id", id.ID), zap.Error(err))
	}
	return nil
}

// Revoke deletes a message for everyone, or only from the local cache.
func (c *Client) Revoke(ctx context.Context, id backend.MessageID, forEveryone bool) error {
	if !forEveryone {
		return c.cache.DeleteMessage(ctx, id.Chat, id.ID)
	}
	chat, err := types.ParseJID(id.Chat)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	sender := types.EmptyJID
	if !id.FromMe {
		peer := firstNonEmpty(id.Participant, id.Chat)
		if sender, err = types.ParseJID(peer); err != nil {
			return fmt.Errorf("parse sender JID: %w", err)
		}
	}
	if _, err := c.wa.SendMessage(ctx, chat, c.wa.BuildRevoke(chat, sender, id.ID)); err != nil {
		return fmt.Errorf("send revoke: %w", err)
	}
	if _, err := c.cache.MarkRevoked(ctx, id.Chat, id.ID); err != nil {
		c.logger.Warn("cache revoke", zap.String("id", id.ID), zap.Error(err))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
