// Package backend defines the boundary between the automated messaging
// provider and the library that actually talks to the messaging network.
package backend

import (
	"context"
	"sync"
)

// Options configures a backend client.
type Options struct {
	// ClientID keys the persisted auth state.
	ClientID string
	// AuthDir is the directory holding persisted auth state for ClientID.
	AuthDir string
	// DeviceName is shown on the paired phone.
	DeviceName string
	// PhoneNumber, when set, requests pairing by code for this number
	// instead of by QR.
	PhoneNumber string
}

// Outgoing is a single send request. When Media is set, Text is its caption.
type Outgoing struct {
	Text   string
	Media  *Media
	Quoted *MessageID
}

// Media is an outbound file.
type Media struct {
	MimeType string
	FileName string
	Data     []byte
}

// SendResult describes what the backend reports it actually sent.
type SendResult struct {
	ID       MessageID
	HasMedia bool
}

// Client is one live connection to the messaging backend.
type Client interface {
	// Initialize connects and starts pairing if needed. Lifecycle events are
	// delivered on Events from this point on.
	Initialize(ctx context.Context) error
	// Events returns the lifecycle channel. It is closed by Destroy.
	Events() <-chan Event
	Destroy(ctx context.Context) error
	Logout(ctx context.Context) error

	Contacts(ctx context.Context) ([]RawContact, error)
	Chats(ctx context.Context) ([]RawChat, error)
	ContactByID(ctx context.Context, id string) (RawContact, error)
	FormattedNumber(ctx context.Context, id string) (string, error)

	// FetchMessages returns up to limit recent messages of a chat, oldest first.
	FetchMessages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)
	// MessageByID returns ErrNotFound when the message is unknown.
	MessageByID(ctx context.Context, id MessageID) (RawMessage, error)
	// QuotedMessage returns the message msg replies to, or ErrNotFound.
	QuotedMessage(ctx context.Context, msg RawMessage) (RawMessage, error)

	Send(ctx context.Context, chatID string, out Outgoing) (SendResult, error)
	Edit(ctx context.Context, id MessageID, content string) error
	Revoke(ctx context.Context, id MessageID, forEveryone bool) error
}

// Module builds backend clients.
type Module interface {
	NewClient(opts Options) (Client, error)
}

// Loader produces a Module on first use.
type Loader interface {
	Load(ctx context.Context) (Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Module, error)

func (f LoaderFunc) Load(ctx context.Context) (Module, error) { return f(ctx) }

// Static returns a Loader that always yields m.
func Static(m Module) Loader {
	return LoaderFunc(func(context.Context) (Module, error) { return m, nil })
}

// Cached wraps l so that a successful load is reused. Failed loads are retried
// on the next call.
func Cached(l Loader) Loader {
	return &cachedLoader{next: l}
}

type cachedLoader struct {
	mu   sync.Mutex
	next Loader
	mod  Module
}

func (c *cachedLoader) Load(ctx context.Context) (Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mod != nil {
		return c.mod, nil
	}
	mod, err := c.next.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.mod = mod
	return mod, nil
}
