package domain

import "github.com/matheus3301/omnichat/internal/bus"

// Event topics published by providers and clients on a client's bus.
const (
	ClientConnected    bus.Topic[ClientEvent]      = "client:connected"
	ClientDisconnected bus.Topic[ClientEvent]      = "client:disconnected"
	ClientErrored      bus.Topic[ClientError]      = "client:error"
	ContactsUpdated    bus.Topic[ContactsEvent]    = "contacts:updated"
	ChatsUpdated       bus.Topic[ChatsEvent]       = "chats:updated"
	ChatHistory        bus.Topic[HistoryEvent]     = "chat:history"
	MessageSent        bus.Topic[MessageEvent]     = "message:sent"
	MessageReceived    bus.Topic[MessageEvent]     = "message:received"
	TypingUpdated      bus.Topic[TypingEvent]      = "typing:updated"
	PresenceUpdated    bus.Topic[PresenceEvent]    = "presence:updated"
	AuthStatusChanged  bus.Topic[AuthStatusEvent]  = "auth:status"
	AuthWaiting        bus.Topic[AuthWaitingEvent] = "auth:waiting"
	AuthPrompted       bus.Topic[AuthPromptEvent]  = "auth:prompt"
	AuthErrored        bus.Topic[AuthErrorEvent]   = "auth:error"
	AuthCompleted      bus.Topic[AuthEvent]        = "auth:completed"
	AuthLoggedOut      bus.Topic[AuthEvent]        = "auth:logout"
)

type ClientEvent struct {
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
}

type ClientError struct {
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
	Message    string `json:"message"`
}

type ContactsEvent struct {
	ClientID string    `json:"client_id"`
	Contacts []Contact `json:"contacts"`
}

type ChatsEvent struct {
	ClientID string         `json:"client_id"`
	Chats    []Conversation `json:"chats"`
}

type HistoryEvent struct {
	ClientID  string        `json:"client_id"`
	ContactID string        `json:"contact_id"`
	Messages  []ChatMessage `json:"messages"`
}

type MessageEvent struct {
	ClientID  string      `json:"client_id"`
	ContactID string      `json:"contact_id"`
	Message   ChatMessage `json:"message"`
}

type TypingEvent struct {
	ClientID        string `json:"client_id"`
	ContactID       string `json:"contact_id"`
	ParticipantID   string `json:"participant_id,omitempty"`
	ParticipantName string `json:"participant_name,omitempty"`
	IsTyping        bool   `json:"is_typing"`
}

type PresenceEvent struct {
	ClientID  string `json:"client_id"`
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
}

type AuthStatusEvent struct {
	ClientID string     `json:"client_id"`
	Status   AuthStatus `json:"status"`
}

// AuthWaitingEvent carries a progress message. An empty Message clears it.
type AuthWaitingEvent struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

type AuthPromptEvent struct {
	ClientID string     `json:"client_id"`
	Prompt   AuthPrompt `json:"prompt"`
}

type AuthErrorEvent struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

type AuthEvent struct {
	ClientID string `json:"client_id"`
}
