package domain

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// ContentType is the canonical kind of a message body.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentVoice    ContentType = "voice"
	ContentDocument ContentType = "document"
	ContentSticker  ContentType = "sticker"
	ContentLocation ContentType = "location"
	ContentContact  ContentType = "contact"
	ContentPoll     ContentType = "poll"
	ContentUnknown  ContentType = "unknown"
)

// AttachmentKind is the coarse kind of an attached file.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
	AttachmentUnknown  AttachmentKind = "unknown"
)

// Well-known badge ids.
const (
	BadgeEdited  = "meta:edited"
	BadgeDeleted = "meta:deleted"
)

// Sender identities with a fixed meaning.
const (
	FromSelf = "self"
	FromPeer = "peer"
)

// Badge is a short labeled decoration attached to a message.
type Badge struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Attachment is a file sent or received with a message. Outbound attachments
// carry their bytes inline as base64 or reference a local file.
type Attachment struct {
	ID         string         `json:"id"`
	Kind       AttachmentKind `json:"kind"`
	FileName   string         `json:"file_name"`
	MimeType   string         `json:"mime_type"`
	SizeBytes  int64          `json:"size_bytes"`
	DataBase64 string         `json:"data_base64,omitempty"`
	FilePath   string         `json:"file_path,omitempty"`
}

// ChatMessage is the canonical message record.
type ChatMessage struct {
	ID                string        `json:"id"`
	ClientID          string        `json:"client_id"`
	ContactID         string        `json:"contact_id"`
	From              string        `json:"from"`
	SenderID          string        `json:"sender_id,omitempty"`
	SenderName        string        `json:"sender_name,omitempty"`
	ReplyToMessageID  string        `json:"reply_to_message_id,omitempty"`
	ReplyToSenderName string        `json:"reply_to_sender_name,omitempty"`
	ReplyPreviewText  string        `json:"reply_preview_text,omitempty"`
	Content           string        `json:"content"`
	ContentType       ContentType   `json:"content_type,omitempty"`
	Badges            []Badge       `json:"badges,omitempty"`
	Attachments       []Attachment  `json:"attachments,omitempty"`
	Timestamp         int64         `json:"timestamp"`
	Status            MessageStatus `json:"status,omitempty"`
}

// ConversationKey returns the composite key identifying the message's conversation.
func (m ChatMessage) ConversationKey() string {
	return ConversationKey(m.ClientID, m.ContactID)
}

// IsSelf reports whether the local user authored the message.
func (m ChatMessage) IsSelf() bool {
	return m.From == FromSelf
}

// HasBadge reports whether the message carries a badge with the given id.
func (m ChatMessage) HasBadge(id string) bool {
	return HasBadge(m.Badges, id)
}

// ConversationKey joins a client id and contact id.
func ConversationKey(clientID, contactID string) string {
	return clientID + ":" + contactID
}

// OutboundPayload is what the user asks a provider to send.
type OutboundPayload struct {
	Text              string       `json:"text,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	ReplyToMessageID  string       `json:"reply_to_message_id,omitempty"`
	ReplyToSenderName string       `json:"reply_to_sender_name,omitempty"`
	ReplyPreviewText  string       `json:"reply_preview_text,omitempty"`
}

// HasBadge reports whether badges contains one with the given id.
func HasBadge(badges []Badge, id string) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// AppendBadge returns badges with b appended unless a badge with the same id
// is already present.
func AppendBadge(badges []Badge, b Badge) []Badge {
	if HasBadge(badges, b.ID) {
		return badges
	}
	return append(badges, b)
}

// MergeBadges returns the union of prior and next by badge id. Order follows
// prior first, then badges only present in next. A badge present in both
// takes its label from next.
func MergeBadges(prior, next []Badge) []Badge {
	if len(prior) == 0 && len(next) == 0 {
		return nil
	}
	index := make(map[string]int, len(prior)+len(next))
	out := make([]Badge, 0, len(prior)+len(next))
	for _, b := range prior {
		if i, ok := index[b.ID]; ok {
			out[i] = b
			continue
		}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	for _, b := range next {
		if i, ok := index[b.ID]; ok {
			out[i] = b
			continue
		}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	return out
}
