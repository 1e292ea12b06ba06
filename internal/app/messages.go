package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
)

// Send sends a message from the active client. When the provider fails, a
// local message with status failed is added to the timeline and returned
// along with the error.
func (h *Hub) Send(ctx context.Context, contactID string, payload domain.OutboundPayload) (domain.ChatMessage, error) {
	c, err := h.active()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg, err := c.SendMessage(ctx, contactID, payload)
	if err == nil {
		return msg, nil
	}

	h.logger.Error("send failed", zap.String("client", c.ID()), zap.String("contact", contactID), zap.Error(err))
	now := time.Now()
	failed := domain.ChatMessage{
		ID:                fmt.Sprintf("failed-%d", now.UnixMilli()),
		ClientID:          c.ID(),
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
		Timestamp:         now.UnixMilli(),
		Status:            domain.StatusFailed,
	}
	return h.timelines.Upsert(c.ID(), contactID, failed), err
}

// Edit replaces the content of one of the user's own messages. Blank content
// and provider refusals return false.
func (h *Hub) Edit(ctx context.Context, contactID, messageID, content string) (bool, error) {
	c, err := h.active()
	if err != nil {
		return false, err
	}
	if m, ok := h.timelines.Get(c.ID(), contactID, messageID); ok && !m.IsSelf() {
		return false, ErrNotOwnMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return false, nil
	}

	ok, err := c.EditMessage(ctx, contactID, messageID, content)
	if err != nil || !ok {
		return false, err
	}
	h.timelines.Update(c.ID(), contactID, messageID, func(m *domain.ChatMessage) {
		m.Content = content
		m.Timestamp = time.Now().UnixMilli()
		m.Badges = normalize.WithEdited(m.Badges, true)
	})
	return true, nil
}

// Delete deletes a message on the provider, then marks the local copy deleted.
// It returns false when the provider refuses or the message is not in the
// timeline.
func (h *Hub) Delete(ctx context.Context, contactID, messageID string) (bool, error) {
	c, err := h.active()
	if err != nil {
		return false, err
	}
	ok, err := c.DeleteMessage(ctx, contactID, messageID)
	if err != nil || !ok {
		return false, err
	}
	return h.timelines.Update(c.ID(), contactID, messageID, func(m *domain.ChatMessage) {
		if strings.TrimSpace(m.Content) == "" {
			m.Content = normalize.DeletedPlaceholder
		} else {
			m.Content = strings.TrimSpace(m.Content)
		}
		m.Badges = normalize.WithDeleted(m.Badges)
		m.Timestamp = time.Now().UnixMilli()
	}), nil
}
