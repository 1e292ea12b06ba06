package normalize

import (
	"strings"
	"testing"
)

func TestMentionHandle(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"João Silva", "@joao-silva"},
		{"  Ana   Costa ", "@ana-costa"},
		{"Zoë_99!", "@zoe_99"},
		{"😀", MentionHandleFallback},
		{"", MentionHandleFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MentionHandle(tt.name); got != tt.want {
				t.Errorf("MentionHandle(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestMentionTokenStripsDelimiters(t *testing.T) {
	got := MentionToken("a|b]c@c.us", "x]y")
	want := "[[badge:v1|type=mention|id=abc@c.us|label=xy]]"
	if got != want {
		t.Errorf("MentionToken = %q, want %q", got, want)
	}
}

func TestInlineTokenIsLossyForDelimiters(t *testing.T) {
	got := InlineToken("link", "id|x]", "a|b]")
	want := "[[badge:v1|type=link|id=idx|label=a|b]]"
	if got != want {
		t.Errorf("InlineToken = %q, want %q", got, want)
	}
}

func TestMentionRoundTrip(t *testing.T) {
	original := "hi @5511999 and @5511999, also @5522888 bye"
	encoded := ReplaceMentions(original, []Mention{
		{ID: "5511999@s.whatsapp.net", Handle: "@ana-costa"},
		{ID: "5522888@s.whatsapp.net", Handle: "@bruno-lima"},
	})

	parts := ParseInline(encoded)

	var plain strings.Builder
	badges := 0
	for _, p := range parts {
		if p.Badge != nil {
			badges++
			if p.Badge.Type != "mention" {
				t.Errorf("badge type = %q", p.Badge.Type)
			}
			continue
		}
		plain.WriteString(p.Text)
	}
	if badges != 3 {
		t.Errorf("got %d badge parts, want 3", badges)
	}
	stripped := strings.NewReplacer("@5511999", "", "@5522888", "").Replace(original)
	if plain.String() != stripped {
		t.Errorf("plain text = %q, want %q", plain.String(), stripped)
	}
}

func TestReplaceMentionsIgnoresDuplicates(t *testing.T) {
	encoded := ReplaceMentions("@5511", []Mention{
		{ID: "5511@c.us", Handle: "@5511"},
		{ID: "5511@c.us", Handle: "@5511"},
	})
	if parts := ParseInline(encoded); len(parts) != 1 || parts[0].Badge == nil {
		t.Errorf("parts = %+v, want a single badge", parts)
	}
}

func TestParseInlinePlainText(t *testing.T) {
	parts := ParseInline("no tokens [[badge:v2|x]] here")
	if len(parts) != 1 || parts[0].Text != "no tokens [[badge:v2|x]] here" {
		t.Errorf("parts = %+v", parts)
	}
	if ParseInline("") != nil {
		t.Error("empty content should have no parts")
	}
}

func TestDisplay(t *testing.T) {
	content := "ping " + MentionToken("1@c.us", "@ana") + "!"
	if got := Display(content); got != "ping @ana!" {
		t.Errorf("Display = %q", got)
	}
}
