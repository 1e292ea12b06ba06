// Package timeline keeps per-conversation message lists keyed by
// client id and contact id, merging messages that share an id.
package timeline

import (
	"strings"
	"sync"

	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
)

// Store holds the timelines of every conversation.
type Store struct {
	mu    sync.RWMutex
	convs map[string][]domain.ChatMessage
}

// New creates an empty store.
func New() *Store {
	return &Store{convs: make(map[string][]domain.ChatMessage)}
}

// Merge combines a message already in a timeline with a later event for the
// same id. Badges are unioned by id. Scalar fields come from next, except
// optional fields next leaves empty. When the merged message is deleted its
// content is the first non-empty of prior content, next content and the
// deleted placeholder.
func Merge(prior, next domain.ChatMessage) domain.ChatMessage {
	out := next
	out.Badges = domain.MergeBadges(prior.Badges, next.Badges)

	keep := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	keep(&out.ClientID, prior.ClientID)
	keep(&out.ContactID, prior.ContactID)
	keep(&out.From, prior.From)
	keep(&out.SenderID, prior.SenderID)
	keep(&out.SenderName, prior.SenderName)
	keep(&out.ReplyToMessageID, prior.ReplyToMessageID)
	keep(&out.ReplyToSenderName, prior.ReplyToSenderName)
	keep(&out.ReplyPreviewText, prior.ReplyPreviewText)
	if out.ContentType == "" {
		out.ContentType = prior.ContentType
	}
	if out.Status == "" {
		out.Status = prior.Status
	}
	if len(out.Attachments) == 0 {
		out.Attachments = prior.Attachments
	}
	if out.Timestamp == 0 {
		out.Timestamp = prior.Timestamp
	}

	if domain.HasBadge(out.Badges, domain.BadgeDeleted) {
		switch {
		case strings.TrimSpace(prior.Content) != "":
			out.Content = strings.TrimSpace(prior.Content)
		case strings.TrimSpace(next.Content) != "":
			out.Content = strings.TrimSpace(next.Content)
		default:
			out.Content = normalize.DeletedPlaceholder
		}
	}
	return out
}

// Upsert appends m to its conversation, or merges it into the message with
// the same id. It returns the stored message.
func (s *Store) Upsert(clientID, contactID string, m domain.ChatMessage) domain.ChatMessage {
	key := domain.ConversationKey(clientID, contactID)

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.convs[key]
	for i := range msgs {
		if msgs[i].ID == m.ID {
			msgs[i] = Merge(msgs[i], m)
			return msgs[i]
		}
	}
	s.convs[key] = append(msgs, m)
	return m
}

// Replace sets the whole timeline of a conversation, as after loading history.
func (s *Store) Replace(clientID, contactID string, msgs []domain.ChatMessage) {
	key := domain.ConversationKey(clientID, contactID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[key] = append([]domain.ChatMessage(nil), msgs...)
}

// Messages returns a copy of a conversation's timeline.
func (s *Store) Messages(clientID, contactID string) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.convs[domain.ConversationKey(clientID, contactID)]...)
}

// Get returns one message of a conversation.
func (s *Store) Get(clientID, contactID, id string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.convs[domain.ConversationKey(clientID, contactID)] {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// Update applies fn to the message with the given id. Returns false if the
// conversation has no such message.
func (s *Store) Update(clientID, contactID, id string, fn func(*domain.ChatMessage)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.convs[domain.ConversationKey(clientID, contactID)]
	for i := range msgs {
		if msgs[i].ID == id {
			fn(&msgs[i])
			return true
		}
	}
	return false
}

// Forget drops every timeline of a client.
func (s *Store) Forget(clientID string) {
	prefix := clientID + ":"

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.convs {
		if strings.HasPrefix(key, prefix) {
			delete(s.convs, key)
		}
	}
}
