// Package normalize turns decoded backend messages into canonical chat
// messages. The functions in this file are pure; Pipeline adds the cached
// lookups that need a backend.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/omnichat/internal/domain"
)

// Fixed labels used when the backend gives nothing better.
const (
	DeletedPlaceholder = "Message deleted"
	ReplyPlaceholder   = "Original message"
	SelfName           = "You"
	MemberFallback     = "Member"
)

// RevokedType is the backend type of a message deleted for everyone.
const RevokedType = "revoked"

var contentTypes = map[string]domain.ContentType{
	"":              domain.ContentText,
	"chat":          domain.ContentText,
	"revoked":       domain.ContentText,
	"image":         domain.ContentImage,
	"video":         domain.ContentVideo,
	"gif":           domain.ContentVideo,
	"audio":         domain.ContentAudio,
	"ptt":           domain.ContentVoice,
	"document":      domain.ContentDocument,
	"sticker":       domain.ContentSticker,
	"location":      domain.ContentLocation,
	"live_location": domain.ContentLocation,
	"vcard":         domain.ContentContact,
	"multi_vcard":   domain.ContentContact,
	"poll_creation": domain.ContentPoll,
}

// ContentType maps a backend message type to the canonical content type.
// Unset types are text; unrecognized ones are unknown.
func ContentType(raw string) domain.ContentType {
	if ct, ok := contentTypes[raw]; ok {
		return ct
	}
	return domain.ContentUnknown
}

// ContentTypeLabel returns the badge label for ct.
func ContentTypeLabel(ct domain.ContentType) string {
	switch ct {
	case domain.ContentText:
		return "Text"
	case domain.ContentImage, domain.ContentVideo, domain.ContentAudio, domain.ContentVoice,
		domain.ContentDocument, domain.ContentSticker, domain.ContentLocation,
		domain.ContentContact, domain.ContentPoll:
		s := string(ct)
		return strings.ToUpper(s[:1]) + s[1:]
	default:
		return "Media"
	}
}

// ContentTypeBadges returns the content type badge for ct. Text has none.
func ContentTypeBadges(ct domain.ContentType) []domain.Badge {
	if ct == domain.ContentText {
		return nil
	}
	return []domain.Badge{{ID: "type:" + string(ct), Label: ContentTypeLabel(ct)}}
}

// WithEdited appends the edited badge when edited is set.
func WithEdited(badges []domain.Badge, edited bool) []domain.Badge {
	if !edited {
		return badges
	}
	return domain.AppendBadge(badges, domain.Badge{ID: domain.BadgeEdited, Label: "Edited"})
}

// WithDeleted appends the deleted badge.
func WithDeleted(badges []domain.Badge) []domain.Badge {
	return domain.AppendBadge(badges, domain.Badge{ID: domain.BadgeDeleted, Label: "DELETED"})
}

// AttachmentLabel returns the coarse label for an attachment kind.
func AttachmentLabel(kind domain.AttachmentKind) string {
	switch kind {
	case domain.AttachmentImage:
		return "Image"
	case domain.AttachmentVideo:
		return "Video"
	case domain.AttachmentAudio:
		return "Audio"
	case domain.AttachmentDocument:
		return "Document"
	default:
		return "File"
	}
}

// AttachmentBadges returns one badge per attachment.
func AttachmentBadges(attachments []domain.Attachment) []domain.Badge {
	if len(attachments) == 0 {
		return nil
	}
	badges := make([]domain.Badge, 0, len(attachments))
	for _, a := range attachments {
		badges = append(badges, domain.Badge{ID: "attachment:" + a.ID, Label: AttachmentLabel(a.Kind)})
	}
	return badges
}

// OutboundContentType is the content type of a message being sent: the kind
// of its first attachment, else text.
func OutboundContentType(attachments []domain.Attachment) domain.ContentType {
	if len(attachments) == 0 {
		return domain.ContentText
	}
	return domain.ContentType(attachments[0].Kind)
}

// AckStatus maps a backend acknowledgement level to a delivery status.
func AckStatus(ack int) domain.MessageStatus {
	switch ack {
	case 3:
		return domain.StatusRead
	case 2:
		return domain.StatusDelivered
	case 1:
		return domain.StatusSent
	default:
		return domain.StatusPending
	}
}

// FallbackID returns a locally generated message id for messages the backend
// did not identify.
func FallbackID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), uuid.NewString()[:6])
}

var (
	nonDigit     = regexp.MustCompile(`\D`)
	domainSuffix = regexp.MustCompile(`@.+$`)
)

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// SenderFallback returns a readable form of a raw sender identity: the part
// before the domain, without a leading plus.
func SenderFallback(id string) string {
	s := domainSuffix.ReplaceAllString(id, "")
	s = strings.TrimSpace(strings.TrimPrefix(s, "+"))
	if s == "" {
		return MemberFallback
	}
	return s
}

// Timestamp converts backend unix seconds to epoch millis, using now when
// the backend gave none.
func Timestamp(unix int64, now time.Time) int64 {
	if unix > 0 {
		return unix * 1000
	}
	return now.UnixMilli()
}
