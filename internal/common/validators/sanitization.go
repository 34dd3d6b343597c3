package validators

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
	identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
)

// invisible runes that survive a naive printable-character filter
var invisibleRunes = []rune{
	'\u200B', // zero width space
	'\u200C', // zero width non-joiner
	'\u200D', // zero width joiner
	'\uFEFF', // zero width no-break space
	'\u00AD', // soft hyphen
}

// RemoveInvisibleChars strips zero-width and soft-hyphen characters.
func RemoveInvisibleChars(input string) string {
	for _, r := range invisibleRunes {
		input = strings.ReplaceAll(input, string(r), "")
	}
	return input
}

// RemoveNonPrintable drops every non-printable rune.
func RemoveNonPrintable(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, input)
}

// NormalizeWhitespace collapses runs of whitespace to single spaces.
func NormalizeWhitespace(input string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(input, " "))
}

// StripHTML removes markup from free-text fields such as problem names
// and job descriptions, which end up rendered in dashboards.
func StripHTML(input string) string {
	stripped := htmlTagPattern.ReplaceAllString(input, "")
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// LimitLength truncates input to maxLength, marking the cut.
func LimitLength(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	if maxLength < 3 {
		return input[:maxLength]
	}
	return input[:maxLength-3] + "..."
}

// SanitizeIdentifier reduces a caller-supplied id (run id, problem id,
// matrix profile name) to the character set those ids are minted from.
func SanitizeIdentifier(input string) string {
	input = identifierPattern.ReplaceAllString(input, "")
	if len(input) > 128 {
		input = input[:128]
	}
	return input
}

// Sanitizer bundles the cleanup pipeline applied to query parameters and
// free-text request fields.
type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// SanitizeInput runs the base pipeline: invisible chars, non-printables,
// whitespace.
func (s *Sanitizer) SanitizeInput(input string) string {
	input = RemoveInvisibleChars(input)
	input = RemoveNonPrintable(input)
	return NormalizeWhitespace(input)
}

// SanitizeUserInput cleans free text and bounds its length.
func (s *Sanitizer) SanitizeUserInput(input string, maxLength int) string {
	input = s.SanitizeInput(input)
	input = StripHTML(input)
	if maxLength > 0 {
		input = LimitLength(input, maxLength)
	}
	return input
}
