// Package mock implements a provider with fixed seed data and a simulated
// peer that answers every message.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/provider"
)

// ID is the provider id of the mock adapter.
const ID = "mock"

// ReplyDelay is how long the simulated peer types before answering.
const ReplyDelay = 400 * time.Millisecond

const (
	peerID   = "+55 11 98765-4321"
	peerName = "Ana Costa"
)

var contacts = []domain.Contact{
	{ID: "+55 11 98765-4321", Name: "Ana Costa", Status: "online", FormattedID: "+55 11 98765-4321", Kind: domain.KindContact},
	{ID: "+55 21 99876-1002", Name: "Bruno Lima", Status: "away", FormattedID: "+55 21 99876-1002", Kind: domain.KindContact},
}

var chats = []domain.Conversation{
	{ID: "+55 11 98765-4321", Name: "Ana Costa", Status: "active", Preview: "Hello from mock provider", FormattedID: "+55 11 98765-4321", Kind: domain.ConversationDirect},
	{ID: "120363022222222@g.us", Name: "Family Group", Status: "active", Preview: "Dinner at 8pm", Kind: domain.ConversationGroup, MembersCount: 5},
}

// Provider is the mock adapter.
type Provider struct {
	logger *zap.Logger
	delay  time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

var (
	_ provider.Adapter       = (*Provider)(nil)
	_ provider.Editor        = (*Provider)(nil)
	_ provider.Deleter       = (*Provider)(nil)
	_ provider.LogoutHandler = (*Provider)(nil)
)

// New creates a mock provider.
func New(logger *zap.Logger) *Provider {
	return &Provider{
		logger: logger,
		delay:  ReplyDelay,
		timers: make(map[*time.Timer]struct{}),
	}
}

func (p *Provider) ID() string { return ID }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportsPresence: true, SupportsHistory: true}
}

// Connect authenticates immediately.
func (p *Provider) Connect(_ context.Context, s provider.Scope) error {
	s.AuthStatus(domain.AuthAuthenticated)
	s.AuthCompleted()
	return nil
}

// Disconnect cancels pending simulated replies.
func (p *Provider) Disconnect(_ context.Context, _ provider.Scope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for t := range p.timers {
		t.Stop()
		delete(p.timers, t)
	}
	return nil
}

func (p *Provider) ListContacts(context.Context, provider.Scope) []domain.Contact {
	return append([]domain.Contact(nil), contacts...)
}

func (p *Provider) ListChats(context.Context, provider.Scope) []domain.Conversation {
	return append([]domain.Conversation(nil), chats...)
}

func (p *Provider) LoadHistory(_ context.Context, s provider.Scope, contactID string) ([]domain.ChatMessage, error) {
	now := time.Now()
	return []domain.ChatMessage{{
		ID:          normalize.FallbackID("msg", now),
		ClientID:    s.ClientID,
		ContactID:   contactID,
		From:        domain.FromPeer,
		SenderID:    peerID,
		SenderName:  peerName,
		Content:     "Hello from mock provider",
		ContentType: domain.ContentText,
		Badges:      []domain.Badge{},
		Timestamp:   now.Add(-time.Minute).UnixMilli(),
		Status:      domain.StatusRead,
	}}, nil
}

// SendMessage echoes the message as sent and schedules a typing indicator
// followed by a canned peer reply.
func (p *Provider) SendMessage(_ context.Context, s provider.Scope, contactID string, payload domain.OutboundPayload) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		ID:                normalize.FallbackID("msg", time.Now()),
		ClientID:          s.ClientID,
		ContactID:         contactID,
		From:              domain.FromSelf,
		SenderName:        normalize.SelfName,
		ReplyToMessageID:  payload.ReplyToMessageID,
		ReplyToSenderName: payload.ReplyToSenderName,
		ReplyPreviewText:  payload.ReplyPreviewText,
		Content:           strings.TrimSpace(payload.Text),
		ContentType:       normalize.OutboundContentType(payload.Attachments),
		Badges:            normalize.AttachmentBadges(payload.Attachments),
		Attachments:       payload.Attachments,
		Timestamp:         time.Now().UnixMilli(),
		Status:            domain.StatusSent,
	}

	typing := domain.TypingEvent{ContactID: contactID, ParticipantID: peerID, ParticipantName: peerName, IsTyping: true}
	s.Typing(typing)

	reply := "Mock reply received"
	if len(payload.Attachments) > 0 {
		reply = "Received your attachment"
	}
	p.after(func() {
		typing.IsTyping = false
		s.Typing(typing)
		now := time.Now()
		s.Received(contactID, domain.ChatMessage{
			ID:          normalize.FallbackID("msg", now),
			ClientID:    s.ClientID,
			ContactID:   contactID,
			From:        domain.FromPeer,
			SenderID:    peerID,
			SenderName:  peerName,
			Content:     reply,
			ContentType: domain.ContentText,
			Badges:      []domain.Badge{},
			Timestamp:   now.UnixMilli(),
			Status:      domain.StatusDelivered,
		})
	})

	p.logger.Debug("mock message sent", zap.String("client", s.ClientID), zap.String("contact", contactID))
	return msg, nil
}

func (p *Provider) after(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		_, live := p.timers[t]
		delete(p.timers, t)
		p.mu.Unlock()
		if live {
			fn()
		}
	})
	p.timers[t] = struct{}{}
}

func (p *Provider) EditMessage(context.Context, provider.Scope, string, string, string) (bool, error) {
	return true, nil
}

func (p *Provider) DeleteMessage(context.Context, provider.Scope, string, string) (bool, error) {
	return true, nil
}

// StartAuth is a no-op; the mock is always authenticated.
func (p *Provider) StartAuth(context.Context, provider.Scope, domain.AuthMethod) error {
	return nil
}

// SubmitAuth accepts anything.
func (p *Provider) SubmitAuth(_ context.Context, s provider.Scope, _ domain.AuthSubmission) error {
	s.AuthStatus(domain.AuthAuthenticated)
	s.AuthCompleted()
	return nil
}

func (p *Provider) Logout(_ context.Context, s provider.Scope) error {
	s.AuthLogout()
	return nil
}
