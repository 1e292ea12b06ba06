package backend

import "time"

// Pairing states reported through StateChange.
const (
	StateConnected    = "CONNECTED"
	StateUnpaired     = "UNPAIRED"
	StateUnpairedIdle = "UNPAIRED_IDLE"
)

// Event is a backend lifecycle event. The concrete types are listed below.
type Event interface {
	isEvent()
}

// Ready means the session is usable for messaging.
type Ready struct{}

// Authenticated means credentials were accepted but data is still loading.
type Authenticated struct{}

type AuthFailure struct {
	Message string
}

type Disconnected struct {
	Reason string
}

type StateChange struct {
	State string
}

// Failure is an unexpected backend error.
type Failure struct {
	Err error
}

// PairingCode carries a code the user enters on their phone.
type PairingCode struct {
	Code string
}

// QRCode carries a QR payload the user scans with their phone.
type QRCode struct {
	Code    string
	Timeout time.Duration
}

// Loading reports initial sync progress in percent.
type Loading struct {
	Percent int
}

type MessageReceived struct {
	Message RawMessage
}

// MessageRevoked carries the message as it was before being revoked.
type MessageRevoked struct {
	Message RawMessage
}

// ChatPresence reports typing state of a participant in a chat.
type ChatPresence struct {
	ChatID        string
	ParticipantID string
	Composing     bool
}

// Presence reports online state of a contact.
type Presence struct {
	ContactID string
	Available bool
	LastSeen  time.Time
}

func (Ready) isEvent()           {}
func (Authenticated) isEvent()   {}
func (AuthFailure) isEvent()     {}
func (Disconnected) isEvent()    {}
func (StateChange) isEvent()     {}
func (Failure) isEvent()         {}
func (PairingCode) isEvent()     {}
func (QRCode) isEvent()          {}
func (Loading) isEvent()         {}
func (MessageReceived) isEvent() {}
func (MessageRevoked) isEvent()  {}
func (ChatPresence) isEvent()    {}
func (Presence) isEvent()        {}
