package api

import (
	"encoding/json"

	"github.com/matheus3301/omnichat/internal/app"
	"github.com/matheus3301/omnichat/internal/domain"
)

// ClientState is the wire form of a client's auth-facing state.
type ClientState struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ProviderID     string            `json:"provider_id"`
	Active         bool              `json:"active"`
	AuthStatus     domain.AuthStatus `json:"auth_status"`
	AuthPrompt     json.RawMessage   `json:"auth_prompt,omitempty"`
	WaitingMessage string            `json:"waiting_message,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Prompt decodes the pending auth prompt, if any.
func (c ClientState) Prompt() (domain.AuthPrompt, error) {
	return domain.DecodePrompt(c.AuthPrompt)
}

func clientState(v app.ClientView, active bool) (ClientState, error) {
	s := ClientState{
		ID:             v.ID,
		Name:           v.Name,
		ProviderID:     v.ProviderID,
		Active:         active,
		AuthStatus:     v.AuthStatus,
		WaitingMessage: v.WaitingMessage,
		Error:          v.Error,
	}
	if v.AuthPrompt != nil {
		data, err := json.Marshal(v.AuthPrompt)
		if err != nil {
			return ClientState{}, err
		}
		s.AuthPrompt = data
	}
	return s, nil
}

type ListClientsRequest struct{}

type ListClientsResponse struct {
	Clients []ClientState `json:"clients"`
}

type OpenRequest struct {
	ClientID string `json:"client_id"`
}

type OpenResponse struct {
	Screen app.Screen  `json:"screen"`
	Client ClientState `json:"client"`
}

// StartAuthRequest starts an auth method. An empty method lets the provider
// pick its default.
type StartAuthRequest struct {
	ClientID string            `json:"client_id"`
	Method   domain.AuthMethod `json:"method,omitempty"`
}

type SubmitAuthRequest struct {
	ClientID   string                `json:"client_id"`
	Submission domain.AuthSubmission `json:"submission"`
}

type LogoutRequest struct {
	ClientID string `json:"client_id"`
}

// ClientResponse returns a client's state after an auth command.
type ClientResponse struct {
	Client ClientState `json:"client"`
}

type ContactsRequest struct {
	ClientID string `json:"client_id"`
}

type ContactsResponse struct {
	Contacts []domain.Contact `json:"contacts"`
}

type ChatsRequest struct {
	ClientID string `json:"client_id"`
}

type ChatsResponse struct {
	Chats []domain.Conversation `json:"chats"`
}

type HistoryRequest struct {
	ClientID  string `json:"client_id"`
	ContactID string `json:"contact_id"`
}

type HistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	Typing   []string             `json:"typing,omitempty"`
}

type SendRequest struct {
	ClientID  string                 `json:"client_id"`
	ContactID string                 `json:"contact_id"`
	Payload   domain.OutboundPayload `json:"payload"`
}

// SendResponse carries the sent message. When sending failed, Message is the
// local placeholder with status failed and Error says why.
type SendResponse struct {
	Message domain.ChatMessage `json:"message"`
	Error   string             `json:"error,omitempty"`
}

type EditRequest struct {
	ClientID  string `json:"client_id"`
	ContactID string `json:"contact_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteRequest struct {
	ClientID  string `json:"client_id"`
	ContactID string `json:"contact_id"`
	MessageID string `json:"message_id"`
}

// ChangeResponse reports whether an edit or delete was applied.
type ChangeResponse struct {
	OK bool `json:"ok"`
}

// WatchRequest filters the event stream to one client. Empty means all.
type WatchRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

// Event is one bus event. Payload is the JSON form of the bus payload.
type Event struct {
	ClientID  string          `json:"client_id,omitempty"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
