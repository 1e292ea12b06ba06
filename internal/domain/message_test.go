package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeBadgesUnionByID(t *testing.T) {
	prior := []Badge{{ID: "type:image", Label: "Image"}, {ID: BadgeEdited, Label: "Edited"}}
	next := []Badge{{ID: "type:image", Label: "Image"}, {ID: BadgeDeleted, Label: "DELETED"}}

	got := MergeBadges(prior, next)

	require.Equal(t, []Badge{
		{ID: "type:image", Label: "Image"},
		{ID: BadgeEdited, Label: "Edited"},
		{ID: BadgeDeleted, Label: "DELETED"},
	}, got)
}

func TestMergeBadgesNextLabelWins(t *testing.T) {
	got := MergeBadges([]Badge{{ID: "a", Label: "old"}}, []Badge{{ID: "a", Label: "new"}})
	require.Equal(t, []Badge{{ID: "a", Label: "new"}}, got)
}

func TestMergeBadgesEmpty(t *testing.T) {
	require.Nil(t, MergeBadges(nil, nil))
}

func TestAppendBadgeIdempotent(t *testing.T) {
	badges := AppendBadge(nil, Badge{ID: BadgeDeleted, Label: "DELETED"})
	badges = AppendBadge(badges, Badge{ID: BadgeDeleted, Label: "DELETED"})
	require.Len(t, badges, 1)
}

func TestConversationKey(t *testing.T) {
	m := ChatMessage{ClientID: "mock-client-1", ContactID: "c1"}
	require.Equal(t, "mock-client-1:c1", m.ConversationKey())
}

func TestPromptJSONCarriesType(t *testing.T) {
	tests := []struct {
		prompt AuthPrompt
		want   AuthMethod
	}{
		{QRPrompt{Value: "x", Format: "ascii"}, MethodQR},
		{OTPPrompt{Code: "ABCD-EFGH"}, MethodOTP},
		{PhoneNumberPrompt{Label: "phone"}, MethodPhoneNumber},
		{TextPrompt{Fields: []TextField{{ID: "user", Label: "User"}}}, MethodText},
		{TokenPrompt{Masked: true}, MethodToken},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			raw, err := json.Marshal(AuthPromptEvent{ClientID: "c", Prompt: tt.prompt})
			require.NoError(t, err)

			var decoded struct {
				Prompt struct {
					Type AuthMethod `json:"type"`
				} `json:"prompt"`
			}
			require.NoError(t, json.Unmarshal(raw, &decoded))
			require.Equal(t, tt.want, decoded.Prompt.Type)
		})
	}
}

func TestDecodePrompt(t *testing.T) {
	prompts := []AuthPrompt{
		QRPrompt{Value: "██", Format: "ascii", ExpiresAt: 1700000000000},
		OTPPrompt{Code: "ABCD-1234", Label: "WhatsApp pairing code"},
		PhoneNumberPrompt{Label: "WhatsApp phone", Placeholder: "5511999999999"},
		TextPrompt{Title: "Login", Fields: []TextField{{ID: "user", Label: "User", Required: true}}},
		TokenPrompt{Label: "Bot token", Masked: true},
	}
	for _, p := range prompts {
		t.Run(string(p.PromptType()), func(t *testing.T) {
			data, err := json.Marshal(p)
			require.NoError(t, err)
			got, err := DecodePrompt(data)
			require.NoError(t, err)
			require.Equal(t, p, got)
		})
	}

	got, err := DecodePrompt([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = DecodePrompt([]byte(`{"type":"carrier_pigeon","prompt":{}}`))
	require.Error(t, err)
}
