// Package provider defines the contract every messaging backend adapter
// implements and the per-client scope adapters publish events through.
package provider

import (
	"context"
	"errors"

	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/domain"
)

var (
	// ErrNotReady is returned when a session did not become ready in time.
	ErrNotReady = errors.New("client is not ready yet")
	// ErrReplyTargetNotFound is returned when a reply quotes an unknown message.
	ErrReplyTargetNotFound = errors.New("reply target not found")
	// ErrUnsupported is returned for operations an adapter does not implement.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrInvalidPhoneNumber is returned for phone numbers with too few digits.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

// Capabilities lets consumers branch on what an adapter supports.
type Capabilities struct {
	AuthMethods      []domain.AuthMethod `json:"auth_methods"`
	SupportsPresence bool                `json:"supports_presence"`
	SupportsHistory  bool                `json:"supports_history"`
}

// Adapter is a backend-specific implementation of the messaging contract.
// Read operations never fail: on backend errors they publish a client error
// and return an empty result.
type Adapter interface {
	ID() string
	Capabilities() Capabilities

	Connect(ctx context.Context, s Scope) error
	Disconnect(ctx context.Context, s Scope) error

	ListContacts(ctx context.Context, s Scope) []domain.Contact
	ListChats(ctx context.Context, s Scope) []domain.Conversation
	LoadHistory(ctx context.Context, s Scope, contactID string) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, s Scope, contactID string, payload domain.OutboundPayload) (domain.ChatMessage, error)

	StartAuth(ctx context.Context, s Scope, method domain.AuthMethod) error
	SubmitAuth(ctx context.Context, s Scope, sub domain.AuthSubmission) error
}

// Editor is implemented by adapters that can edit sent messages. A false
// result means the message was not found or could not be edited.
type Editor interface {
	EditMessage(ctx context.Context, s Scope, contactID, messageID, content string) (bool, error)
}

// Deleter is implemented by adapters that can delete messages.
type Deleter interface {
	DeleteMessage(ctx context.Context, s Scope, contactID, messageID string) (bool, error)
}

// LogoutHandler is implemented by adapters holding credentials. Implementations
// publish auth:logout themselves.
type LogoutHandler interface {
	Logout(ctx context.Context, s Scope) error
}

// Scope identifies the client an adapter call is made for and carries the
// bus its events go to.
type Scope struct {
	ClientID   string
	ProviderID string
	Bus        *bus.Bus
}

func (s Scope) Error(msg string) {
	bus.Emit(s.Bus, domain.ClientErrored, domain.ClientError{ClientID: s.ClientID, ProviderID: s.ProviderID, Message: msg})
}

func (s Scope) AuthStatus(status domain.AuthStatus) {
	bus.Emit(s.Bus, domain.AuthStatusChanged, domain.AuthStatusEvent{ClientID: s.ClientID, Status: status})
}

// AuthWaiting publishes a progress message. An empty message clears it.
func (s Scope) AuthWaiting(msg string) {
	bus.Emit(s.Bus, domain.AuthWaiting, domain.AuthWaitingEvent{ClientID: s.ClientID, Message: msg})
}

func (s Scope) AuthPrompt(p domain.AuthPrompt) {
	bus.Emit(s.Bus, domain.AuthPrompted, domain.AuthPromptEvent{ClientID: s.ClientID, Prompt: p})
}

func (s Scope) AuthError(msg string) {
	bus.Emit(s.Bus, domain.AuthErrored, domain.AuthErrorEvent{ClientID: s.ClientID, Message: msg})
}

func (s Scope) AuthCompleted() {
	bus.Emit(s.Bus, domain.AuthCompleted, domain.AuthEvent{ClientID: s.ClientID})
}

func (s Scope) AuthLogout() {
	bus.Emit(s.Bus, domain.AuthLoggedOut, domain.AuthEvent{ClientID: s.ClientID})
}

func (s Scope) Received(contactID string, m domain.ChatMessage) {
	bus.Emit(s.Bus, domain.MessageReceived, domain.MessageEvent{ClientID: s.ClientID, ContactID: contactID, Message: m})
}

func (s Scope) Typing(e domain.TypingEvent) {
	e.ClientID = s.ClientID
	bus.Emit(s.Bus, domain.TypingUpdated, e)
}

func (s Scope) Presence(contactID, status string) {
	bus.Emit(s.Bus, domain.PresenceUpdated, domain.PresenceEvent{ClientID: s.ClientID, ContactID: contactID, Status: status})
}
