package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a message, chat or contact is unknown.
	ErrNotFound = errors.New("not found")
	// ErrMalformedID is returned by ParseMessageID for bare or invalid ids.
	ErrMalformedID = errors.New("malformed message id")
)

// DecodeError reports a backend record that failed validation.
type DecodeError struct {
	Record string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: field %s: %s", e.Record, e.Field, e.Reason)
}

// MessageID is the fully qualified identity of a backend message.
type MessageID struct {
	FromMe      bool
	Chat        string
	ID          string
	Participant string
}

// IsZero reports whether id is unset.
func (id MessageID) IsZero() bool {
	return id.ID == ""
}

// String returns the serialized form "<fromMe>_<chat>_<id>[_<participant>]".
func (id MessageID) String() string {
	if id.IsZero() {
		return ""
	}
	s := fmt.Sprintf("%t_%s_%s", id.FromMe, id.Chat, id.ID)
	if id.Participant != "" {
		s += "_" + id.Participant
	}
	return s
}

// ParseMessageID parses the serialized form produced by String. Anything else,
// including a bare message id, yields ErrMalformedID.
func ParseMessageID(s string) (MessageID, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 && len(parts) != 4 {
		return MessageID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	var id MessageID
	switch parts[0] {
	case "true":
		id.FromMe = true
	case "false":
	default:
		return MessageID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	id.Chat, id.ID = parts[1], parts[2]
	if !strings.Contains(id.Chat, "@") || id.ID == "" {
		return MessageID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	if len(parts) == 4 {
		if !strings.Contains(parts[3], "@") {
			return MessageID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
		}
		id.Participant = parts[3]
	}
	return id, nil
}

// RawMessage is a backend message after decoding at the backend edge.
type RawMessage struct {
	ID MessageID
	// Chat is the conversation the message belongs to.
	Chat string
	// Author is the sender inside a group. Empty for direct chats.
	Author string
	Body   string
	// Type is the backend message kind (chat, image, ptt, revoked, ...).
	Type string
	// Timestamp is in unix seconds.
	Timestamp    int64
	Ack          int
	FromMe       bool
	NotifyName   string
	MentionedIDs []string
	// LatestEditMs is the sender timestamp of the latest edit, 0 if never edited.
	LatestEditMs int64
	HasQuoted    bool
}

// Sender returns the author for group messages, else the chat.
func (m RawMessage) Sender() string {
	if m.Author != "" {
		return m.Author
	}
	return m.Chat
}

// Validate checks the fields every consumer relies on.
func (m RawMessage) Validate() error {
	switch {
	case m.ID.IsZero():
		return &DecodeError{Record: "message", Field: "id", Reason: "missing"}
	case m.Chat == "":
		return &DecodeError{Record: "message", Field: "chat", Reason: "missing"}
	case m.Timestamp < 0:
		return &DecodeError{Record: "message", Field: "timestamp", Reason: "negative"}
	}
	return nil
}

// RawContact is a backend contact.
type RawContact struct {
	ID        string
	Name      string
	PushName  string
	ShortName string
	Number    string
}

// Validate checks the contact carries an id.
func (c RawContact) Validate() error {
	if c.ID == "" {
		return &DecodeError{Record: "contact", Field: "id", Reason: "missing"}
	}
	return nil
}

// RawChat is a backend chat.
type RawChat struct {
	ID             string
	Name           string
	IsGroup        bool
	Participants   int
	LastMessage    string
	HasLastMessage bool
}

// Validate checks the chat carries an id.
func (c RawChat) Validate() error {
	if c.ID == "" {
		return &DecodeError{Record: "chat", Field: "id", Reason: "missing"}
	}
	return nil
}
