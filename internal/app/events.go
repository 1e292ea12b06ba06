package app

import (
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/domain"
)

const (
	notificationNoText = "Message without text"
	unknownSender      = "Unknown"
	someone            = "Someone"
	groupSuffix        = "@g.us"
)

// watch registers the hub's listeners on a client's bus.
func (h *Hub) watch(c *client.Client) {
	id := c.ID()
	b := c.Bus()
	offs := []func(){
		bus.On(b, domain.AuthWaiting, func(e domain.AuthWaitingEvent) {
			h.update(id, func(v *ClientView) { v.WaitingMessage = e.Message })
		}),
		bus.On(b, domain.AuthStatusChanged, func(e domain.AuthStatusEvent) {
			h.update(id, func(v *ClientView) { v.AuthStatus = e.Status })
		}),
		bus.On(b, domain.AuthPrompted, func(e domain.AuthPromptEvent) {
			h.update(id, func(v *ClientView) {
				v.AuthPrompt = e.Prompt
				v.Error = ""
			})
		}),
		bus.On(b, domain.AuthCompleted, func(domain.AuthEvent) {
			h.update(id, func(v *ClientView) {
				v.AuthStatus = domain.AuthAuthenticated
				v.WaitingMessage = ""
				v.Error = ""
			})
			h.refresh(c)
		}),
		bus.On(b, domain.AuthLoggedOut, func(domain.AuthEvent) {
			h.mu.Lock()
			if v, ok := h.views[id]; ok {
				v.AuthStatus = domain.AuthIdle
				v.AuthPrompt = nil
				v.WaitingMessage = ""
				v.Error = ""
			}
			h.contacts[id] = nil
			h.chats[id] = nil
			h.mu.Unlock()
		}),
		bus.On(b, domain.ClientErrored, func(e domain.ClientError) {
			h.update(id, func(v *ClientView) {
				if v.AuthStatus != domain.AuthAuthenticated {
					v.AuthStatus = domain.AuthFailed
				}
				v.WaitingMessage = ""
				v.Error = e.Message
			})
		}),
		bus.On(b, domain.AuthErrored, func(e domain.AuthErrorEvent) {
			h.update(id, func(v *ClientView) { v.Error = e.Message })
		}),
		bus.On(b, domain.ContactsUpdated, func(e domain.ContactsEvent) {
			h.mu.Lock()
			h.contacts[id] = e.Contacts
			h.mu.Unlock()
		}),
		bus.On(b, domain.ChatsUpdated, func(e domain.ChatsEvent) {
			h.mu.Lock()
			h.chats[id] = e.Chats
			h.mu.Unlock()
		}),
		bus.On(b, domain.ChatHistory, func(e domain.HistoryEvent) {
			h.timelines.Replace(id, e.ContactID, e.Messages)
			h.clearTyping(domain.ConversationKey(id, e.ContactID), "")
		}),
		bus.On(b, domain.MessageSent, func(e domain.MessageEvent) {
			h.timelines.Upsert(id, e.ContactID, e.Message)
			h.clearTyping(domain.ConversationKey(id, e.ContactID), "")
		}),
		bus.On(b, domain.MessageReceived, func(e domain.MessageEvent) {
			h.timelines.Upsert(id, e.ContactID, e.Message)
			bus.Emit(h.bus, Notified, Notification{
				ClientID:  id,
				ContactID: e.ContactID,
				Text:      NotificationText(e.ContactID, e.Message),
			})
			sender := e.Message.SenderID
			if sender == "" {
				sender = e.Message.From
			}
			if sender != "" {
				h.clearTyping(domain.ConversationKey(id, e.ContactID), sender)
			}
		}),
		bus.On(b, domain.TypingUpdated, func(e domain.TypingEvent) {
			h.setTyping(domain.ConversationKey(id, e.ContactID), e)
		}),
	}

	h.mu.Lock()
	h.offs[id] = offs
	h.mu.Unlock()
}

// refresh reloads contacts and chats in the background.
func (h *Hub) refresh(c *client.Client) {
	if h.ctx.Err() != nil {
		return
	}
	h.wg.Go(func() {
		c.ListContacts(h.ctx)
		c.ListChats(h.ctx)
		h.logger.Debug("client lists refreshed", zap.String("client", c.ID()))
	})
}

func (h *Hub) setTyping(key string, e domain.TypingEvent) {
	participant := firstNonEmpty(e.ParticipantID, e.ParticipantName, "unknown")
	name := firstNonEmpty(strings.TrimSpace(e.ParticipantName), someone)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !e.IsTyping {
		delete(h.typing[key], participant)
		return
	}
	if h.typing[key] == nil {
		h.typing[key] = make(map[string]string)
	}
	h.typing[key][participant] = name
}

// clearTyping removes one participant, or everyone when participant is empty.
func (h *Hub) clearTyping(key, participant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if participant == "" {
		delete(h.typing, key)
		return
	}
	delete(h.typing[key], participant)
}

// NotificationText formats an incoming message as "sender (group): content".
func NotificationText(contactID string, m domain.ChatMessage) string {
	sender := firstNonEmpty(strings.TrimSpace(m.SenderName), unknownSender)
	scope := ""
	if strings.HasSuffix(contactID, groupSuffix) {
		scope = " (group)"
	}
	content := firstNonEmpty(strings.TrimSpace(m.Content), notificationNoText)
	return sender + scope + ": " + content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
