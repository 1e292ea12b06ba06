package wa

import (
	"context"

	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/store"
)

// lidStore is the part of the device store that maps LIDs to phone numbers.
type lidStore interface {
	GetPNForLID(ctx context.Context, lid types.JID) (types.JID, error)
}

// resolveLID maps a LID JID to its phone number JID. Anything that is not a
// LID, or has no known mapping, comes back as given.
func (c *Client) resolveLID(jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if c.lids == nil {
		return jid
	}
	pn, err := c.lids.GetPNForLID(c.ctx, jid.ToNonAD())
	if err != nil || pn.IsEmpty() {
		if err != nil {
			c.logger.Debug("resolve lid", zap.String("lid", jid.String()), zap.Error(err))
		}
		return jid
	}
	return pn
}

// resolveID is resolveLID for ids kept as strings. The result is always the
// non-device form.
func (c *Client) resolveID(id string) string {
	if id == "" {
		return id
	}
	jid, err := types.ParseJID(id)
	if err != nil {
		return id
	}
	return c.resolveLID(jid).ToNonAD().String()
}

// resolveIdentities rewrites the LID-addressed sender, quoted author and
// mentions of m to phone number JIDs so names and numbers resolve
// downstream.
func (c *Client) resolveIdentities(m *store.Message) {
	m.SenderJID = c.resolveID(m.SenderJID)
	m.QuotedSenderJID = c.resolveID(m.QuotedSenderJID)
	if len(m.MentionedJIDs) == 0 {
		return
	}
	mentions := make([]string, len(m.MentionedJIDs))
	for i, id := range m.MentionedJIDs {
		mentions[i] = c.resolveID(id)
	}
	m.MentionedJIDs = mentions
}
