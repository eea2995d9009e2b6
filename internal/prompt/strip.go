package prompt

import (
	"regexp"
	"strings"
)

// tagRE matches any opening or closing micro-format tag.
var tagRE = regexp.MustCompile(`\[/?(?:recipe-card|shopping-list|product-card)\]`)

// cardRE matches a "Title|URL" card payload so stripping can rewrite it into
// readable plain text instead of leaving a bare pipe.
var cardRE = regexp.MustCompile(`\[(recipe-card|product-card)\]([^|\[\]]+)\|([^\[\]]+)\[/(?:recipe-card|product-card)\]`)

// StripTags converts a tagged model reply into plain text for channels that
// cannot render the micro-format (WhatsApp, voice). Card payloads become
// "Title: URL" lines; list tags are simply removed; whitespace is collapsed.
func StripTags(s string) string {
	s = cardRE.ReplaceAllString(s, "$2: $3")
	s = tagRE.ReplaceAllString(s, "")

	// Collapse runs of blank lines left behind by removed tags.
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
