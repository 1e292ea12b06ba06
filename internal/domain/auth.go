package domain

import (
	"encoding/json"
	"fmt"
)

// AuthStatus is the coarse authentication state of a client.
type AuthStatus string

const (
	AuthOffline       AuthStatus = "offline"
	AuthIdle          AuthStatus = "idle"
	AuthPending       AuthStatus = "pending"
	AuthAuthenticated AuthStatus = "authenticated"
	AuthExpired       AuthStatus = "expired"
	AuthFailed        AuthStatus = "failed"
)

// AuthMethod names a way of authenticating or a kind of auth submission.
type AuthMethod string

const (
	MethodQR          AuthMethod = "qr"
	MethodOTP         AuthMethod = "otp"
	MethodToken       AuthMethod = "token"
	MethodText        AuthMethod = "text"
	MethodPhoneNumber AuthMethod = "phone_number"
	MethodPairingCode AuthMethod = "pairing_code"
)

// AuthPrompt describes what the user must currently provide or look at.
// It is one of QRPrompt, OTPPrompt, PhoneNumberPrompt, TextPrompt or TokenPrompt.
type AuthPrompt interface {
	PromptType() AuthMethod
	isPrompt()
}

// QRPrompt carries a QR code to scan.
type QRPrompt struct {
	Value     string `json:"value"`
	Format    string `json:"format,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// OTPPrompt carries a one-time code. When InputRequired is false the code is
// shown to the user rather than collected.
type OTPPrompt struct {
	Code          string `json:"code"`
	Label         string `json:"label,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
	InputRequired bool   `json:"input_required"`
}

// PhoneNumberPrompt asks for a phone number.
type PhoneNumberPrompt struct {
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// TextField is one input of a TextPrompt.
type TextField struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Secret      bool   `json:"secret,omitempty"`
}

// TextPrompt asks for a set of named text fields.
type TextPrompt struct {
	Title  string      `json:"title,omitempty"`
	Fields []TextField `json:"fields"`
}

// TokenPrompt asks for a single token value.
type TokenPrompt struct {
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Masked      bool   `json:"masked,omitempty"`
}

func (QRPrompt) PromptType() AuthMethod          { return MethodQR }
func (OTPPrompt) PromptType() AuthMethod         { return MethodOTP }
func (PhoneNumberPrompt) PromptType() AuthMethod { return MethodPhoneNumber }
func (TextPrompt) PromptType() AuthMethod        { return MethodText }
func (TokenPrompt) PromptType() AuthMethod       { return MethodToken }

func (QRPrompt) isPrompt()          {}
func (OTPPrompt) isPrompt()         {}
func (PhoneNumberPrompt) isPrompt() {}
func (TextPrompt) isPrompt()        {}
func (TokenPrompt) isPrompt()       {}

func (p QRPrompt) MarshalJSON() ([]byte, error) {
	type plain QRPrompt
	return marshalTagged(p.PromptType(), plain(p))
}

func (p OTPPrompt) MarshalJSON() ([]byte, error) {
	type plain OTPPrompt
	return marshalTagged(p.PromptType(), plain(p))
}

func (p PhoneNumberPrompt) MarshalJSON() ([]byte, error) {
	type plain PhoneNumberPrompt
	return marshalTagged(p.PromptType(), plain(p))
}

func (p TextPrompt) MarshalJSON() ([]byte, error) {
	type plain TextPrompt
	return marshalTagged(p.PromptType(), plain(p))
}

func (p TokenPrompt) MarshalJSON() ([]byte, error) {
	type plain TokenPrompt
	return marshalTagged(p.PromptType(), plain(p))
}

// marshalTagged encodes v with an extra "type" discriminator.
func marshalTagged[T any](kind AuthMethod, v T) ([]byte, error) {
	return json.Marshal(struct {
		Type AuthMethod `json:"type"`
		Body T          `json:"prompt"`
	}{kind, v})
}

// AuthSubmission is a value the user submits in answer to a prompt. Values is
// only used by text submissions.
type AuthSubmission struct {
	Type   AuthMethod        `json:"type"`
	Value  string            `json:"value,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// DecodePrompt reverses the tagged encoding produced by the prompt
// MarshalJSON methods. A JSON null decodes to a nil prompt.
func DecodePrompt(data []byte) (AuthPrompt, error) {
	var env struct {
		Type AuthMethod      `json:"type"`
		Body json.RawMessage `json:"prompt"`
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case MethodQR:
		return decodeBody[QRPrompt](env.Body)
	case MethodOTP:
		return decodeBody[OTPPrompt](env.Body)
	case MethodPhoneNumber:
		return decodeBody[PhoneNumberPrompt](env.Body)
	case MethodText:
		return decodeBody[TextPrompt](env.Body)
	case MethodToken:
		return decodeBody[TokenPrompt](env.Body)
	}
	return nil, fmt.Errorf("unknown prompt type %q", env.Type)
}

func decodeBody[T AuthPrompt](body json.RawMessage) (AuthPrompt, error) {
	var p T
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return p, nil
}
