// Package client wraps provider adapters into addressable clients, each with
// its own event bus, and keeps the registry of configured clients.
package client

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/provider"
)

// Client is one configured connection to one adapter.
type Client struct {
	id      string
	name    string
	adapter provider.Adapter
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates a client for adapter with a fresh bus.
func New(id, name string, adapter provider.Adapter, logger *zap.Logger) *Client {
	return &Client{
		id:      id,
		name:    name,
		adapter: adapter,
		bus:     bus.New(),
		logger:  logger.With(zap.String("client", id), zap.String("provider", adapter.ID())),
	}
}

func (c *Client) ID() string                          { return c.id }
func (c *Client) Name() string                        { return c.name }
func (c *Client) ProviderID() string                  { return c.adapter.ID() }
func (c *Client) Bus() *bus.Bus                       { return c.bus }
func (c *Client) Capabilities() provider.Capabilities { return c.adapter.Capabilities() }

func (c *Client) scope() provider.Scope {
	return provider.Scope{ClientID: c.id, ProviderID: c.adapter.ID(), Bus: c.bus}
}

func (c *Client) connected() domain.ClientEvent {
	return domain.ClientEvent{ClientID: c.id, ProviderID: c.adapter.ID()}
}

// Connect connects the adapter. Failures are published as client errors and
// returned.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.adapter.Connect(ctx, c.scope()); err != nil {
		c.logger.Error("connect failed", zap.Error(err))
		c.scope().Error(err.Error())
		return fmt.Errorf("connect %s: %w", c.id, err)
	}
	bus.Emit(c.bus, domain.ClientConnected, c.connected())
	return nil
}

// Disconnect disconnects the adapter. client:disconnected is published even
// when the adapter fails.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.adapter.Disconnect(ctx, c.scope())
	bus.Emit(c.bus, domain.ClientDisconnected, c.connected())
	if err != nil {
		return fmt.Errorf("disconnect %s: %w", c.id, err)
	}
	return nil
}

func (c *Client) ListContacts(ctx context.Context) []domain.Contact {
	contacts := c.adapter.ListContacts(ctx, c.scope())
	bus.Emit(c.bus, domain.ContactsUpdated, domain.ContactsEvent{ClientID: c.id, Contacts: contacts})
	return contacts
}

func (c *Client) ListChats(ctx context.Context) []domain.Conversation {
	chats := c.adapter.ListChats(ctx, c.scope())
	bus.Emit(c.bus, domain.ChatsUpdated, domain.ChatsEvent{ClientID: c.id, Chats: chats})
	return chats
}

func (c *Client) LoadHistory(ctx context.Context, contactID string) ([]domain.ChatMessage, error) {
	messages, err := c.adapter.LoadHistory(ctx, c.scope(), contactID)
	if err != nil {
		return nil, err
	}
	bus.Emit(c.bus, domain.ChatHistory, domain.HistoryEvent{ClientID: c.id, ContactID: contactID, Messages: messages})
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, contactID string, payload domain.OutboundPayload) (domain.ChatMessage, error) {
	msg, err := c.adapter.SendMessage(ctx, c.scope(), contactID, payload)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	bus.Emit(c.bus, domain.MessageSent, domain.MessageEvent{ClientID: c.id, ContactID: contactID, Message: msg})
	return msg, nil
}

// EditMessage returns false when the adapter cannot edit.
func (c *Client) EditMessage(ctx context.Context, contactID, messageID, content string) (bool, error) {
	editor, ok := c.adapter.(provider.Editor)
	if !ok {
		return false, nil
	}
	return editor.EditMessage(ctx, c.scope(), contactID, messageID, content)
}

// DeleteMessage returns false when the adapter cannot delete.
func (c *Client) DeleteMessage(ctx context.Context, contactID, messageID string) (bool, error) {
	deleter, ok := c.adapter.(provider.Deleter)
	if !ok {
		return false, nil
	}
	return deleter.DeleteMessage(ctx, c.scope(), contactID, messageID)
}

func (c *Client) StartAuth(ctx context.Context, method domain.AuthMethod) error {
	return c.adapter.StartAuth(ctx, c.scope(), method)
}

func (c *Client) SubmitAuth(ctx context.Context, sub domain.AuthSubmission) error {
	return c.adapter.SubmitAuth(ctx, c.scope(), sub)
}

// Logout clears credentials. auth:logout is published once, by the adapter
// when it handles logout, else here.
func (c *Client) Logout(ctx context.Context) error {
	handler, ok := c.adapter.(provider.LogoutHandler)
	if !ok {
		c.scope().AuthLogout()
		return nil
	}
	if err := handler.Logout(ctx, c.scope()); err != nil {
		return fmt.Errorf("logout %s: %w", c.id, err)
	}
	return nil
}

// Destroy drops every listener and subscription on the client's bus.
func (c *Client) Destroy() {
	c.bus.Reset()
}

// IsUnsupported reports whether err means the adapter lacks a capability.
func IsUnsupported(err error) bool {
	return errors.Is(err, provider.ErrUnsupported)
}
