// Package app is the command layer between a user interface and the
// configured clients. It keeps the derived views the interface renders:
// per-client auth state, contacts, chats, message timelines and typing
// indicators.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/timeline"
)

var (
	// ErrNoActiveClient is returned when a command needs an active client.
	ErrNoActiveClient = errors.New("no active client")
	// ErrUnknownClient is returned for client ids that are not registered.
	ErrUnknownClient = errors.New("unknown client")
	// ErrNotOwnMessage is returned when editing a message someone else sent.
	ErrNotOwnMessage = errors.New("only your own messages can be edited")
)

// Screen is where an interface should go after opening a client.
type Screen string

const (
	ScreenHome     Screen = "home"
	ScreenAuth     Screen = "auth"
	ScreenContacts Screen = "contacts"
)

// Notified is published on the hub bus for every received message.
const Notified bus.Topic[Notification] = "app:notification"

// Notification is a one-line summary of an incoming message.
type Notification struct {
	ClientID  string `json:"client_id"`
	ContactID string `json:"contact_id"`
	Text      string `json:"text"`
}

// ClientView is the auth-facing state of one client.
type ClientView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ProviderID     string            `json:"provider_id"`
	AuthStatus     domain.AuthStatus `json:"auth_status"`
	AuthPrompt     domain.AuthPrompt `json:"auth_prompt,omitempty"`
	WaitingMessage string            `json:"waiting_message,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Hub owns the registry and everything derived from client events.
type Hub struct {
	registry  *client.Registry
	timelines *timeline.Store
	bus       *bus.Bus
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	views    map[string]*ClientView
	contacts map[string][]domain.Contact
	chats    map[string][]domain.Conversation
	typing   map[string]map[string]string
	offs     map[string][]func()
}

// New creates a hub over registry.
func New(registry *client.Registry, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:  registry,
		timelines: timeline.New(),
		bus:       bus.New(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		views:     make(map[string]*ClientView),
		contacts:  make(map[string][]domain.Contact),
		chats:     make(map[string][]domain.Conversation),
		typing:    make(map[string]map[string]string),
		offs:      make(map[string][]func()),
	}
}

// Bus carries hub-level events such as notifications.
func (h *Hub) Bus() *bus.Bus { return h.bus }

// Registry returns the client registry.
func (h *Hub) Registry() *client.Registry { return h.registry }

// Add registers c and starts tracking its events.
func (h *Hub) Add(c *client.Client) {
	h.mu.Lock()
	h.views[c.ID()] = &ClientView{
		ID:         c.ID(),
		Name:       c.Name(),
		ProviderID: c.ProviderID(),
		AuthStatus: domain.AuthOffline,
	}
	h.mu.Unlock()

	h.registry.Register(c)
	h.watch(c)
}

// Remove stops tracking a client and removes it from the registry.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	offs := h.offs[id]
	delete(h.offs, id)
	delete(h.views, id)
	delete(h.contacts, id)
	delete(h.chats, id)
	for key := range h.typing {
		if strings.HasPrefix(key, id+":") {
			delete(h.typing, key)
		}
	}
	h.mu.Unlock()

	for _, off := range offs {
		off()
	}
	h.timelines.Forget(id)
	h.registry.Remove(id)
}

// Clients returns the views of every client in registration order.
func (h *Hub) Clients() []ClientView {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []ClientView
	for _, c := range h.registry.List() {
		if v, ok := h.views[c.ID()]; ok {
			out = append(out, *v)
		}
	}
	return out
}

// Client returns the view of one client.
func (h *Hub) Client(id string) (ClientView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.views[id]
	if !ok {
		return ClientView{}, false
	}
	return *v, true
}

// Active returns the active client's view.
func (h *Hub) Active() (ClientView, bool) {
	c, ok := h.registry.Active()
	if !ok {
		return ClientView{}, false
	}
	return h.Client(c.ID())
}

func (h *Hub) active() (*client.Client, error) {
	c, ok := h.registry.Active()
	if !ok {
		return nil, ErrNoActiveClient
	}
	return c, nil
}

func (h *Hub) update(id string, fn func(v *ClientView)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.views[id]; ok {
		fn(v)
	}
}

// Contacts returns the cached contacts of the active client.
func (h *Hub) Contacts() []domain.Contact {
	c, err := h.active()
	if err != nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.contacts[c.ID()])
}

// Chats returns the cached chats of the active client.
func (h *Hub) Chats() []domain.Conversation {
	c, err := h.active()
	if err != nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.chats[c.ID()])
}

// Messages returns the active client's timeline for a contact.
func (h *Hub) Messages(contactID string) []domain.ChatMessage {
	c, err := h.active()
	if err != nil || contactID == "" {
		return nil
	}
	return h.timelines.Messages(c.ID(), contactID)
}

// TypingNames returns who is typing in a conversation of the active client,
// sorted by name.
func (h *Hub) TypingNames(contactID string) []string {
	c, err := h.active()
	if err != nil || contactID == "" {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Values(h.typing[domain.ConversationKey(c.ID(), contactID)]))
}

// Open activates a client, connecting it the first time, and reports which
// screen should follow.
func (h *Hub) Open(ctx context.Context, id string) (Screen, error) {
	c, ok := h.registry.Get(id)
	if !ok {
		return ScreenHome, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	h.registry.SetActive(id)

	view, _ := h.Client(id)
	if view.AuthStatus == domain.AuthOffline {
		if err := c.Connect(ctx); err != nil {
			h.update(id, func(v *ClientView) { v.AuthStatus = domain.AuthFailed })
			return ScreenHome, err
		}
	}

	view, _ = h.Client(id)
	if view.AuthStatus == domain.AuthAuthenticated {
		h.mu.RLock()
		needContacts := len(h.contacts[id]) == 0
		needChats := len(h.chats[id]) == 0
		h.mu.RUnlock()
		if needContacts || needChats {
			h.refresh(c)
		}
		return ScreenContacts, nil
	}
	if view.AuthPrompt != nil {
		return ScreenAuth, nil
	}

	if err := c.StartAuth(ctx, ""); err != nil {
		h.update(id, func(v *ClientView) { v.AuthStatus = domain.AuthFailed })
		return ScreenHome, err
	}
	return ScreenAuth, nil
}

// StartAuth starts an auth flow on the active client.
func (h *Hub) StartAuth(ctx context.Context, method domain.AuthMethod) error {
	c, err := h.active()
	if err != nil {
		return err
	}
	if err := c.StartAuth(ctx, method); err != nil {
		h.update(c.ID(), func(v *ClientView) { v.AuthStatus = domain.AuthFailed })
		return err
	}
	return nil
}

// SubmitAuth submits user input for the active client's auth prompt.
func (h *Hub) SubmitAuth(ctx context.Context, sub domain.AuthSubmission) error {
	c, err := h.active()
	if err != nil {
		return err
	}
	if err := c.SubmitAuth(ctx, sub); err != nil {
		h.update(c.ID(), func(v *ClientView) { v.AuthStatus = domain.AuthFailed })
		return err
	}
	return nil
}

// Logout logs the active client out.
func (h *Hub) Logout(ctx context.Context) error {
	c, err := h.active()
	if err != nil {
		return err
	}
	return c.Logout(ctx)
}

// OpenConversation loads a conversation's history on the active client.
func (h *Hub) OpenConversation(ctx context.Context, contactID string) error {
	c, err := h.active()
	if err != nil {
		return err
	}
	if _, err := c.LoadHistory(ctx, contactID); err != nil {
		h.update(c.ID(), func(v *ClientView) { v.Error = errorMessage(err, "Failed to load chat history") })
		return err
	}
	return nil
}

// Shutdown disconnects every client and waits for background refreshes.
// Every client is disconnected even when some fail; the first failure is
// returned.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()
	var g errgroup.Group
	for _, c := range h.registry.List() {
		g.Go(func() error { return c.Disconnect(ctx) })
	}
	err := g.Wait()
	h.wg.Wait()
	return err
}

func errorMessage(err error, fallback string) string {
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		return err.Error()
	}
	return fallback
}
