package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/store"
)

// handle is the whatsmeow event handler. It keeps the message cache current
// and translates what the provider cares about into backend events.
func (c *Client) handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		c.logger.Info("WhatsApp connected")
		c.emit(backend.Ready{})
	case *events.PairSuccess:
		c.logger.Info("WhatsApp paired", zap.String("jid", evt.ID.String()))
		c.emit(backend.Authenticated{})
	case *events.PairError:
		c.emit(backend.AuthFailure{Message: evt.Error.Error()})
	case *events.Disconnected:
		// whatsmeow reconnects on its own.
		c.logger.Warn("WhatsApp disconnected")
		c.emit(backend.StateChange{State: "DISCONNECTED"})
	case *events.LoggedOut:
		c.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		c.emit(backend.Disconnected{Reason: "logged out: " + evt.Reason.String()})
	case *events.StreamReplaced:
		c.emit(backend.Disconnected{Reason: "session opened elsewhere"})
	case *events.ConnectFailure:
		c.emit(backend.Disconnected{Reason: "connect failure: " + evt.Reason.String()})
	case *events.TemporaryBan:
		c.emit(backend.AuthFailure{Message: evt.String()})
	case *events.ClientOutdated:
		c.emit(backend.AuthFailure{Message: "client outdated"})
	case *events.HistorySync:
		c.handleHistorySync(evt)
	case *events.OfflineSyncCompleted:
		c.emit(backend.Loading{Percent: 100})
	case *events.Message:
		c.handleMessage(evt)
	case *events.Receipt:
		c.handleReceipt(evt)
	case *events.ChatPresence:
		c.emit(backend.ChatPresence{
			ChatID:        evt.Chat.ToNonAD().String(),
			ParticipantID: c.resolveLID(evt.Sender).ToNonAD().String(),
			Composing:     evt.State == types.ChatPresenceComposing,
		})
	case *events.Presence:
		c.emit(backend.Presence{
			ContactID: evt.From.ToNonAD().String(),
			Available: !evt.Unavailable,
			LastSeen:  evt.LastSeen,
		})
	case *events.PushName:
		c.saveContact(store.Contact{JID: evt.JID.ToNonAD().String(), PushName: evt.NewPushName})
	case *events.Contact:
		c.saveContact(store.Contact{
			JID:       evt.JID.ToNonAD().String(),
			Name:      evt.Action.GetFullName(),
			ShortName: evt.Action.GetFirstName(),
		})
	}
}

func (c *Client) saveContact(ct store.Contact) {
	if err := c.cache.UpsertContact(c.ctx, &ct); err != nil {
		c.logger.Warn("cache contact", zap.String("jid", ct.JID), zap.Error(err))
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if pm := evt.Message.GetProtocolMessage(); pm != nil {
		c.handleProtocol(evt, pm)
		return
	}

	msg := ParseMessage(evt)
	if !visible(msg) {
		return
	}
	c.resolveIdentities(&msg)
	if err := c.cache.UpsertMessage(c.ctx, &msg); err != nil {
		c.logger.Warn("cache message", zap.String("id", msg.MsgID), zap.Error(err))
	}
	if !msg.FromMe && evt.Info.PushName != "" && !evt.Info.IsGroup {
		c.saveContact(store.Contact{JID: msg.ChatJID, PushName: evt.Info.PushName})
	}
	c.emit(backend.MessageReceived{Message: ToRaw(msg)})
}

// handleProtocol applies peer edits and revocations to the cached message
// they target. Edits are re-emitted under the original id so timelines merge
// them in place.
func (c *Client) handleProtocol(evt *events.Message, pm *waE2E.ProtocolMessage) {
	chat := evt.Info.Chat.ToNonAD().String()
	target := pm.GetKey().GetID()
	if target == "" {
		return
	}

	switch pm.GetType() {
	case waE2E.ProtocolMessage_REVOKE:
		prior, err := c.cache.MarkRevoked(c.ctx, chat, target)
		if err != nil {
			c.logger.Warn("cache revoke", zap.String("id", target), zap.Error(err))
		}
		if prior == nil {
			prior = &store.Message{ChatJID: chat, MsgID: target, FromMe: pm.GetKey().GetFromMe(), Timestamp: evt.Info.Timestamp.Unix()}
			if evt.Info.IsGroup {
				prior.SenderJID = c.resolveLID(evt.Info.Sender).ToNonAD().String()
			}
		}
		c.emit(backend.MessageRevoked{Message: ToRaw(*prior)})

	case waE2E.ProtocolMessage_MESSAGE_EDIT:
		edited := parseContent(pm.GetEditedMessage())
		editedAt := evt.Info.Timestamp.UnixMilli()
		if _, err := c.cache.MarkEdited(c.ctx, chat, target, edited.Body, editedAt); err != nil {
			c.logger.Warn("cache edit", zap.String("id", target), zap.Error(err))
		}
		current, err := c.cache.GetMessage(c.ctx, chat, target)
		if err != nil || current == nil {
			m := ParseMessage(evt)
			m.MsgID = target
			m.Body = edited.Body
			m.MessageType = edited.MessageType
			m.EditedAt = editedAt
			c.resolveIdentities(&m)
			current = &m
		}
		c.emit(backend.MessageReceived{Message: ToRaw(*current)})
	}
}

func (c *Client) handleReceipt(evt *events.Receipt) {
	var ack int
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		ack = 2
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf, types.ReceiptTypePlayed:
		ack = 3
	default:
		return
	}
	if err := c.cache.SetAck(c.ctx, evt.Chat.ToNonAD().String(), evt.MessageIDs, ack); err != nil {
		c.logger.Warn("cache receipt", zap.Error(err))
	}
}

// handleHistorySync caches the messages of an initial or on-demand history
// sync and reports progress.
func (c *Client) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	count := 0
	for _, conv := range data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		chat := store.Chat{
			JID:     chatJID.ToNonAD().String(),
			Name:    conv.GetName(),
			IsGroup: chatJID.Server == types.GroupServer,
		}
		for _, hm := range conv.GetMessages() {
			web := hm.GetMessage()
			if web == nil || web.GetMessage() == nil {
				continue
			}
			parsed, err := c.wa.ParseWebMessage(chatJID, web)
			if err != nil {
				c.logger.Debug("skip history message", zap.String("chat", chat.JID), zap.Error(err))
				continue
			}
			msg := ParseMessage(parsed)
			if !visible(msg) {
				continue
			}
			c.resolveIdentities(&msg)
			if msg.FromMe {
				msg.Ack = historyAck(web.GetStatus())
			}
			if err := c.cache.UpsertMessage(c.ctx, &msg); err != nil {
				c.logger.Warn("cache history message", zap.String("id", msg.MsgID), zap.Error(err))
				continue
			}
			count++
		}
		if err := c.cache.UpsertChat(c.ctx, &chat); err != nil {
			c.logger.Warn("cache history chat", zap.String("chat", chat.JID), zap.Error(err))
		}
	}

	c.logger.Debug("history sync cached",
		zap.String("type", data.GetSyncType().String()),
		zap.Int("messages", count),
	)
	if p := data.GetProgress(); p > 0 {
		c.emit(backend.Loading{Percent: int(p)})
	}
}

// historyAck maps a history sync delivery status onto the cache's ack
// levels: 1 sent, 2 delivered, 3 read.
func historyAck(s waWeb.WebMessageInfo_Status) int {
	switch s {
	case waWeb.WebMessageInfo_SERVER_ACK:
		return 1
	case waWeb.WebMessageInfo_DELIVERY_ACK:
		return 2
	case waWeb.WebMessageInfo_READ, waWeb.WebMessageInfo_PLAYED:
		return 3
	}
	return 0
}
