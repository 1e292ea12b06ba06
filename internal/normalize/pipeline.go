package normalize

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/domain"
)

// DefaultCacheSize bounds each lookup cache when no size is configured.
const DefaultCacheSize = 4096

// Source is the part of a backend client the pipeline looks things up in.
type Source interface {
	ContactByID(ctx context.Context, id string) (backend.RawContact, error)
	QuotedMessage(ctx context.Context, msg backend.RawMessage) (backend.RawMessage, error)
}

// Pipeline normalizes backend messages, caching mention handles and display
// names by backend id.
type Pipeline struct {
	handles *lru.Cache[string, string]
	names   *lru.Cache[string, string]
	now     func() time.Time
}

// NewPipeline creates a pipeline whose caches hold at most size entries each.
func NewPipeline(size int) (*Pipeline, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	handles, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	names, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Pipeline{handles: handles, names: names, now: time.Now}, nil
}

// Reply is quoted-message metadata resolved at receipt time.
type Reply struct {
	MessageID  string
	SenderName string
	Preview    string
}

// MentionHandle resolves a mention id to a handle, preferring the contact's
// push name and falling back to the number.
func (p *Pipeline) MentionHandle(ctx context.Context, src Source, mentionID string) string {
	if h, ok := p.handles.Get(mentionID); ok {
		return h
	}
	number, _, _ := strings.Cut(mentionID, "@")
	base := number
	if c, err := src.ContactByID(ctx, mentionID); err == nil {
		base = firstNonEmpty(c.PushName, c.Name, c.ShortName, c.Number, number)
	}
	h := MentionHandle(base)
	p.handles.Add(mentionID, h)
	return h
}

// DisplayName resolves a backend id to a display name. When lookup is false
// only the cache is consulted before settling on fallback.
func (p *Pipeline) DisplayName(ctx context.Context, src Source, id, fallback string, lookup bool) string {
	if name, ok := p.names.Get(id); ok {
		return name
	}
	resolved := fallback
	if lookup {
		if c, err := src.ContactByID(ctx, id); err == nil {
			resolved = firstNonEmpty(c.Name, c.PushName, c.ShortName, c.Number, fallback)
		}
	}
	name := strings.TrimSpace(resolved)
	if name == "" {
		name = fallback
	}
	p.names.Add(id, name)
	return name
}

// Content returns the message body with mentions encoded as inline tokens.
func (p *Pipeline) Content(ctx context.Context, src Source, msg backend.RawMessage) string {
	if len(msg.MentionedIDs) == 0 {
		return msg.Body
	}
	mentions := make([]Mention, 0, len(msg.MentionedIDs))
	for _, id := range msg.MentionedIDs {
		if id == "" {
			continue
		}
		mentions = append(mentions, Mention{ID: id, Handle: p.MentionHandle(ctx, src, id)})
	}
	return ReplaceMentions(msg.Body, mentions)
}

// SenderName resolves who sent msg.
func (p *Pipeline) SenderName(ctx context.Context, src Source, msg backend.RawMessage) string {
	if msg.FromMe {
		return SelfName
	}
	notify := strings.TrimSpace(msg.NotifyName)
	senderID := msg.Sender()
	if senderID == "" {
		return firstNonEmpty(notify, MemberFallback)
	}
	fromID := SenderFallback(senderID)
	name := p.DisplayName(ctx, src, senderID, firstNonEmpty(notify, fromID), true)
	if strings.TrimSpace(name) != "" {
		return name
	}
	return firstNonEmpty(notify, fromID)
}

// Reply resolves the message msg quotes. The zero Reply means none.
func (p *Pipeline) Reply(ctx context.Context, src Source, msg backend.RawMessage) Reply {
	if !msg.HasQuoted {
		return Reply{}
	}
	quoted, err := src.QuotedMessage(ctx, msg)
	if err != nil {
		return Reply{}
	}
	preview := strings.TrimSpace(p.Content(ctx, src, quoted))
	if preview == "" {
		preview = ReplyPlaceholder
	}
	return Reply{
		MessageID:  p.messageID(quoted.ID),
		SenderName: p.SenderName(ctx, src, quoted),
		Preview:    preview,
	}
}

// Message runs the full pipeline over msg.
func (p *Pipeline) Message(ctx context.Context, src Source, clientID, contactID string, msg backend.RawMessage) domain.ChatMessage {
	ct := ContentType(msg.Type)
	content := p.Content(ctx, src, msg)
	deleted := msg.Type == RevokedType
	badges := WithEdited(ContentTypeBadges(ct), msg.LatestEditMs > 0)
	if deleted {
		content = deletedContent(content)
		badges = WithDeleted(badges)
	}
	reply := p.Reply(ctx, src, msg)

	return domain.ChatMessage{
		ID:                p.messageID(msg.ID),
		ClientID:          clientID,
		ContactID:         contactID,
		From:              senderIdentity(msg),
		SenderID:          msg.Sender(),
		SenderName:        p.SenderName(ctx, src, msg),
		ReplyToMessageID:  reply.MessageID,
		ReplyToSenderName: reply.SenderName,
		ReplyPreviewText:  reply.Preview,
		Content:           content,
		ContentType:       ct,
		Badges:            badges,
		Timestamp:         Timestamp(msg.Timestamp, p.now()),
		Status:            AckStatus(msg.Ack),
	}
}

// Revoked builds the update for a message deleted after delivery. It needs no
// lookups so it can run on the event path.
func (p *Pipeline) Revoked(clientID, contactID string, msg backend.RawMessage) domain.ChatMessage {
	ct := ContentType(msg.Type)
	return domain.ChatMessage{
		ID:          p.messageID(msg.ID),
		ClientID:    clientID,
		ContactID:   contactID,
		From:        senderIdentity(msg),
		SenderID:    msg.Sender(),
		SenderName:  StaticSenderName(msg),
		Content:     deletedContent(msg.Body),
		ContentType: ct,
		Badges:      WithDeleted(ContentTypeBadges(ct)),
		Timestamp:   Timestamp(msg.Timestamp, p.now()),
		Status:      AckStatus(msg.Ack),
	}
}

// StaticSenderName resolves a sender name without backend lookups.
func StaticSenderName(msg backend.RawMessage) string {
	if msg.FromMe {
		return SelfName
	}
	if name := strings.TrimSpace(msg.NotifyName); name != "" {
		return name
	}
	return SenderFallback(msg.Sender())
}

func (p *Pipeline) messageID(id backend.MessageID) string {
	if s := id.String(); s != "" {
		return s
	}
	return FallbackID("wa", p.now())
}

func senderIdentity(msg backend.RawMessage) string {
	if msg.FromMe {
		return domain.FromSelf
	}
	return firstNonEmpty(msg.NotifyName, msg.Author, msg.Chat, domain.FromPeer)
}

func deletedContent(content string) string {
	if s := strings.TrimSpace(content); s != "" {
		return s
	}
	return DeletedPlaceholder
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
