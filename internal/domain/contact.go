package domain

// ContactKind distinguishes people from chat threads in contact listings.
type ContactKind string

const (
	KindContact ContactKind = "contact"
	KindChat    ContactKind = "chat"
	KindGroup   ContactKind = "group"
)

// ConversationKind distinguishes direct chats from groups.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Contact is a snapshot of a person or chat known to a provider.
type Contact struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	FormattedID  string      `json:"formatted_id,omitempty"`
	Kind         ContactKind `json:"kind,omitempty"`
	MembersCount int         `json:"members_count,omitempty"`
}

// Conversation is a snapshot of a chat thread.
type Conversation struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Status       string           `json:"status,omitempty"`
	Preview      string           `json:"preview,omitempty"`
	FormattedID  string           `json:"formatted_id,omitempty"`
	Kind         ConversationKind `json:"kind,omitempty"`
	MembersCount int              `json:"members_count,omitempty"`
}
