package store

// Chat is a cached chat.
type Chat struct {
	JID                string
	Name               string
	IsGroup            bool
	Participants       int
	LastMessageAt      int64
	LastMessagePreview string
}

// Contact is a cached contact.
type Contact struct {
	JID       string
	Name      string
	PushName  string
	ShortName string
}

// DisplayName returns the first non-empty of name, push name and short name.
func (c Contact) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.PushName != "":
		return c.PushName
	}
	return c.ShortName
}

// Message is a cached message. Timestamp is unix seconds; EditedAt is unix
// millis of the latest edit.
type Message struct {
	ID              int64
	ChatJID         string
	MsgID           string
	FromMe          bool
	SenderJID       string
	SenderName      string
	Body            string
	MessageType     string
	MentionedJIDs   []string
	QuotedMsgID     string
	QuotedSenderJID string
	Ack             int
	EditedAt        int64
	Revoked         bool
	Timestamp       int64
}
