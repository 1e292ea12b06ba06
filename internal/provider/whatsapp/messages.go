package whatsapp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/provider"
)

// degrade reports a read-path failure once and logs it.
func (p *Provider) degrade(sc provider.Scope, what string, err error) {
	p.logger.Warn(what, zap.String("client", sc.ClientID), zap.Error(err))
	if !reported(err) {
		sc.Error(err.Error())
	}
}

// ListContacts returns up to 300 contacts. Failures yield an empty list.
func (p *Provider) ListContacts(ctx context.Context, sc provider.Scope) []domain.Contact {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		p.degrade(sc, "list contacts", err)
		return []domain.Contact{}
	}
	raw, err := client.Contacts(ctx)
	if err != nil {
		p.degrade(sc, "list contacts", fmt.Errorf("load WhatsApp contacts: %w", err))
		return []domain.Contact{}
	}
	if len(raw) > contactLimit {
		raw = raw[:contactLimit]
	}

	contacts := make([]domain.Contact, 0, len(raw))
	for _, c := range raw {
		if err := c.Validate(); err != nil {
			p.logger.Debug("skipping contact", zap.Error(err))
			continue
		}
		user, _, _ := strings.Cut(c.ID, "@")
		fallback := firstNonEmpty(c.Name, c.PushName, c.ShortName, c.Number, user, "Unknown")
		formatted, err := client.FormattedNumber(ctx, c.ID)
		if err != nil {
			formatted = firstNonEmpty(c.Number, user)
		}
		contacts = append(contacts, domain.Contact{
			ID:          c.ID,
			Name:        p.pipeline.DisplayName(ctx, client, c.ID, fallback, false),
			Status:      "available",
			FormattedID: formatted,
			Kind:        domain.KindContact,
		})
	}
	return contacts
}

// ListChats returns up to 200 chats. Failures yield an empty list.
func (p *Provider) ListChats(ctx context.Context, sc provider.Scope) []domain.Conversation {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		p.degrade(sc, "list chats", err)
		return []domain.Conversation{}
	}
	raw, err := client.Chats(ctx)
	if err != nil {
		p.degrade(sc, "list chats", fmt.Errorf("load WhatsApp chats: %w", err))
		return []domain.Conversation{}
	}
	if len(raw) > chatLimit {
		raw = raw[:chatLimit]
	}

	chats := make([]domain.Conversation, 0, len(raw))
	for _, c := range raw {
		if err := c.Validate(); err != nil {
			p.logger.Debug("skipping chat", zap.Error(err))
			continue
		}
		user, _, _ := strings.Cut(c.ID, "@")
		isGroup := c.IsGroup || strings.HasSuffix(c.ID, "@g.us")
		conv := domain.Conversation{
			ID:      c.ID,
			Name:    firstNonEmpty(c.Name, user, "Unknown"),
			Status:  "active",
			Preview: "No messages yet",
			Kind:    domain.ConversationDirect,
		}
		if c.HasLastMessage {
			conv.Preview = c.LastMessage
		}
		if isGroup {
			conv.Kind = domain.ConversationGroup
			conv.MembersCount = c.Participants
		} else {
			conv.Name = p.pipeline.DisplayName(ctx, client, c.ID, conv.Name, false)
			formatted, err := client.FormattedNumber(ctx, c.ID)
			if err != nil {
				formatted = user
			}
			conv.FormattedID = formatted
		}
		chats = append(chats, conv)
	}
	return chats
}

// LoadHistory returns the latest 60 messages of a chat, oldest first.
func (p *Provider) LoadHistory(ctx context.Context, sc provider.Scope, contactID string) ([]domain.ChatMessage, error) {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		return nil, err
	}
	chatID := ChatID(contactID)
	raw, err := client.FetchMessages(ctx, chatID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", chatID, err)
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for _, m := range raw {
		if err := m.Validate(); err != nil {
			p.logger.Warn("skipping history message", zap.String("chat", chatID), zap.Error(err))
			continue
		}
		messages = append(messages, p.pipeline.Message(ctx, client, sc.ClientID, chatID, m))
	}
	return messages, nil
}

// findMessage resolves a message id that is either fully qualified or a bare
// backend id, searching the chat's recent messages as a fallback.
func (p *Provider) findMessage(ctx context.Context, client backend.Client, chatID, messageID string) (backend.RawMessage, error) {
	if id, err := backend.ParseMessageID(messageID); err == nil {
		m, err := client.MessageByID(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			p.logger.Debug("direct message lookup failed", zap.String("id", messageID), zap.Error(err))
		}
	}

	recent, err := client.FetchMessages(ctx, chatID, lookupLimit)
	if err != nil {
		p.logger.Debug("recent message lookup failed", zap.String("chat", chatID), zap.Error(err))
		return backend.RawMessage{}, fmt.Errorf("message %s: %w", messageID, backend.ErrNotFound)
	}
	for _, m := range recent {
		if m.ID.String() == messageID || m.ID.ID == messageID {
			return m, nil
		}
	}
	return backend.RawMessage{}, fmt.Errorf("message %s: %w", messageID, backend.ErrNotFound)
}

// SendMessage sends text and attachments. Text rides as the caption of the
// first attachment; if the backend reports that send as carrying no media,
// or it fails, the media and the text are sent separately.
func (p *Provider) SendMessage(ctx context.Context, sc provider.Scope, contactID string, payload domain.OutboundPayload) (domain.ChatMessage, error) {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	chatID := ChatID(contactID)
	text := strings.TrimSpace(payload.Text)

	var quoted *backend.MessageID
	if payload.ReplyToMessageID != "" {
		target, err := p.findMessage(ctx, client, chatID, payload.ReplyToMessageID)
		if err != nil {
			if errors.Is(err, backend.ErrNotFound) {
				return domain.ChatMessage{}, fmt.Errorf("%w: %s", provider.ErrReplyTargetNotFound, payload.ReplyToMessageID)
			}
			return domain.ChatMessage{}, err
		}
		quoted = &target.ID
	}

	var media []backend.Media
	for _, a := range payload.Attachments {
		m, ok, err := mediaFor(a)
		if err != nil {
			return domain.ChatMessage{}, err
		}
		if ok {
			media = append(media, m)
		}
	}

	var last backend.SendResult
	textSent := false
	for i := range media {
		if i == 0 && text != "" {
			res, err := client.Send(ctx, chatID, backend.Outgoing{Text: text, Media: &media[i], Quoted: quoted})
			if err == nil && res.HasMedia {
				last = res
				textSent = true
				continue
			}
			if err != nil {
				p.logger.Warn("captioned send failed, sending media and text separately", zap.String("chat", chatID), zap.Error(err))
			} else {
				p.logger.Warn("captioned send dropped media, sending media and text separately", zap.String("chat", chatID))
			}
		}
		res, err := client.Send(ctx, chatID, backend.Outgoing{Media: &media[i], Quoted: quoted})
		if err != nil {
			p.logger.Error("send media", zap.String("chat", chatID), zap.Error(err))
			return domain.ChatMessage{}, fmt.Errorf("send media %s: %w", media[i].FileName, err)
		}
		last = res
	}

	if text != "" && !textSent {
		res, err := client.Send(ctx, chatID, backend.Outgoing{Text: text, Quoted: quoted})
		if err != nil {
			p.logger.Error("send text", zap.String("chat", chatID), zap.Error(err))
			return domain.ChatMessage{}, fmt.Errorf("send text: %w", err)
		}
		last = res
	}

	now := time.Now()
	id := last.ID.String()
	if id == "" {
		id = normalize.FallbackID("wa", now)
	}
	return domain.ChatMessage{
		ID:                id,
		ClientID:          sc.ClientID,
		ContactID:         chatID,
		From:              domain.FromSelf,
		SenderName:        normalize.SelfName,
		ReplyToMessageID:  payload.ReplyToMessageID,
		ReplyToSenderName: payload.ReplyToSenderName,
		ReplyPreviewText:  payload.ReplyPreviewText,
		Content:           text,
		ContentType:       normalize.OutboundContentType(payload.Attachments),
		Badges:            normalize.AttachmentBadges(payload.Attachments),
		Attachments:       payload.Attachments,
		Timestamp:         now.UnixMilli(),
		Status:            domain.StatusSent,
	}, nil
}

// mediaFor builds the backend media for an attachment. Attachments carrying
// neither inline data nor a file path are skipped.
func mediaFor(a domain.Attachment) (backend.Media, bool, error) {
	m := backend.Media{MimeType: a.MimeType, FileName: a.FileName}
	switch {
	case a.DataBase64 != "":
		data, err := base64.StdEncoding.DecodeString(a.DataBase64)
		if err != nil {
			return backend.Media{}, false, fmt.Errorf("decode attachment %s: %w", a.FileName, err)
		}
		m.Data = data
	case a.FilePath != "":
		data, err := os.ReadFile(a.FilePath)
		if err != nil {
			return backend.Media{}, false, fmt.Errorf("read attachment: %w", err)
		}
		m.Data = data
		if m.FileName == "" {
			m.FileName = filepath.Base(a.FilePath)
		}
	default:
		return backend.Media{}, false, nil
	}
	return m, true, nil
}

// EditMessage replaces the text of a sent message. Unknown messages and
// rejected edits return false.
func (p *Provider) EditMessage(ctx context.Context, sc provider.Scope, contactID, messageID, content string) (bool, error) {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		return false, err
	}
	target, err := p.findMessage(ctx, client, ChatID(contactID), messageID)
	if err != nil {
		return false, nil
	}
	if err := client.Edit(ctx, target.ID, content); err != nil {
		p.logger.Warn("edit message", zap.String("id", messageID), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// DeleteMessage revokes a message for everyone, falling back to deleting it
// only locally.
func (p *Provider) DeleteMessage(ctx context.Context, sc provider.Scope, contactID, messageID string) (bool, error) {
	client, err := p.readyClient(ctx, sc)
	if err != nil {
		return false, err
	}
	target, err := p.findMessage(ctx, client, ChatID(contactID), messageID)
	if err != nil {
		return false, nil
	}
	if err := client.Revoke(ctx, target.ID, true); err != nil {
		p.logger.Warn("revoke for everyone failed, deleting for me", zap.String("id", messageID), zap.Error(err))
		if err := client.Revoke(ctx, target.ID, false); err != nil {
			p.logger.Error("delete message", zap.String("id", messageID), zap.Error(err))
			return false, fmt.Errorf("delete message %s: %w", messageID, err)
		}
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
