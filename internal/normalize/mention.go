package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MentionHandleFallback is used when a name normalizes to nothing.
const MentionHandleFallback = "@contact"

var (
	whitespace    = regexp.MustCompile(`\s+`)
	handleIllegal = regexp.MustCompile(`[^a-z0-9\-_]`)
	inlineToken   = regexp.MustCompile(`\[\[badge:v1\|type=([^|\]]+)\|id=([^|\]]*)\|label=([^\]]*)\]\]`)
)

// MentionHandle turns a display name into an ASCII handle such as "@joao-silva".
func MentionHandle(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	s := strings.ToLower(strings.TrimSpace(stripped))
	s = whitespace.ReplaceAllString(s, "-")
	s = handleIllegal.ReplaceAllString(s, "")
	if s == "" {
		return MentionHandleFallback
	}
	return "@" + s
}

// MentionToken encodes a mention as an inline badge token. Characters that
// would end a field early are removed.
func MentionToken(id, label string) string {
	return InlineToken("mention", id, label)
}

// InlineToken encodes a typed inline badge. Delimiters are stripped, not
// escaped: "|" and "]" are dropped from id and "]" from label, so values
// containing them do not decode back to the original.
func InlineToken(kind, id, label string) string {
	safeID := strings.NewReplacer("]", "", "|", "").Replace(id)
	safeLabel := strings.ReplaceAll(label, "]", "")
	return "[[badge:v1|type=" + kind + "|id=" + safeID + "|label=" + safeLabel + "]]"
}

// Mention is a resolved mention of a backend user id.
type Mention struct {
	ID     string
	Handle string
}

// ReplaceMentions substitutes every "@<number>" placeholder, where number is
// the user part of the mention id, with the mention's inline token.
func ReplaceMentions(content string, mentions []Mention) string {
	seen := make(map[string]bool, len(mentions))
	for _, m := range mentions {
		number, _, _ := strings.Cut(m.ID, "@")
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true
		content = strings.ReplaceAll(content, "@"+number, MentionToken(m.ID, m.Handle))
	}
	return content
}

// InlineBadge is a decoded inline token.
type InlineBadge struct {
	Type  string
	ID    string
	Label string
}

// Part is a run of plain text or a single inline badge.
type Part struct {
	Text  string
	Badge *InlineBadge
}

// ParseInline splits content into plain text and inline badge parts.
// Plain segments are returned verbatim.
func ParseInline(content string) []Part {
	var parts []Part
	last := 0
	for _, loc := range inlineToken.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > last {
			parts = append(parts, Part{Text: content[last:loc[0]]})
		}
		parts = append(parts, Part{Badge: &InlineBadge{
			Type:  content[loc[2]:loc[3]],
			ID:    content[loc[4]:loc[5]],
			Label: content[loc[6]:loc[7]],
		}})
		last = loc[1]
	}
	if last < len(content) {
		parts = append(parts, Part{Text: content[last:]})
	}
	return parts
}

// Display renders content for plain text output, replacing inline badges with
// their labels.
func Display(content string) string {
	var b strings.Builder
	for _, p := range ParseInline(content) {
		if p.Badge != nil {
			b.WriteString(p.Badge.Label)
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
