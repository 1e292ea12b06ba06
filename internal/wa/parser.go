package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/store"
)

// Message kinds that never become chat messages.
const (
	typeProtocol = "protocol"
	typeReaction = "reaction"
	typeUnknown  = "unknown"
)

// ParseMessage converts a whatsmeow message event into a cache row.
func ParseMessage(evt *events.Message) store.Message {
	m := parseContent(evt.Message)
	m.ChatJID = evt.Info.Chat.ToNonAD().String()
	m.MsgID = evt.Info.ID
	m.FromMe = evt.Info.IsFromMe
	m.SenderName = evt.Info.PushName
	m.Timestamp = evt.Info.Timestamp.Unix()
	if evt.Info.IsGroup {
		m.SenderJID = evt.Info.Sender.ToNonAD().String()
	}
	if m.FromMe {
		m.Ack = 1
	}
	return m
}

// parseContent fills the fields that depend only on the message payload.
func parseContent(msg *waE2E.Message) store.Message {
	m := store.Message{
		Body:        extractTextBody(msg),
		MessageType: detectMessageType(msg),
	}
	if ci := contextInfo(msg); ci != nil {
		m.MentionedJIDs = ci.GetMentionedJID()
		m.QuotedMsgID = ci.GetStanzaID()
		m.QuotedSenderJID = ci.GetParticipant()
	}
	return m
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	case msg.GetLocationMessage() != nil:
		return msg.GetLocationMessage().GetName()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetDisplayName()
	case msg.GetPollCreationMessage() != nil:
		return msg.GetPollCreationMessage().GetName()
	case msg.GetPollCreationMessageV3() != nil:
		return msg.GetPollCreationMessageV3().GetName()
	}
	return ""
}

// detectMessageType returns the backend kind of msg using the same names as
// the content type table in normalize.
func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return typeUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "chat"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		if msg.GetVideoMessage().GetGifPlayback() {
			return "gif"
		}
		return "video"
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return "ptt"
		}
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetLiveLocationMessage() != nil:
		return "live_location"
	case msg.GetContactMessage() != nil:
		return "vcard"
	case msg.GetContactsArrayMessage() != nil:
		return "multi_vcard"
	case msg.GetPollCreationMessage() != nil, msg.GetPollCreationMessageV3() != nil:
		return "poll_creation"
	case msg.GetProtocolMessage() != nil:
		return typeProtocol
	case msg.GetReactionMessage() != nil:
		return typeReaction
	}
	return typeUnknown
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg == nil:
		return nil
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetContextInfo()
	}
	return nil
}

// ToRaw converts a cache row into the backend message shape. Revoked rows
// report the revoked type.
func ToRaw(m store.Message) backend.RawMessage {
	group := strings.HasSuffix(m.ChatJID, "@"+types.GroupServer)
	raw := backend.RawMessage{
		ID:           backend.MessageID{FromMe: m.FromMe, Chat: m.ChatJID, ID: m.MsgID},
		Chat:         m.ChatJID,
		Body:         m.Body,
		Type:         m.MessageType,
		Timestamp:    m.Timestamp,
		Ack:          m.Ack,
		FromMe:       m.FromMe,
		NotifyName:   m.SenderName,
		MentionedIDs: m.MentionedJIDs,
		LatestEditMs: m.EditedAt,
		HasQuoted:    m.QuotedMsgID != "",
	}
	if group {
		raw.Author = m.SenderJID
		raw.ID.Participant = m.SenderJID
	}
	if m.Revoked {
		raw.Type = normalize.RevokedType
	}
	return raw
}

// visible reports whether a parsed message belongs in a chat timeline.
func visible(m store.Message) bool {
	switch m.MessageType {
	case typeProtocol, typeReaction:
		return false
	}
	return m.MsgID != "" && m.ChatJID != ""
}
