package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns for text cleaning.
const (
	referenceRegexPattern  = `(?:\[\d+\]|\(\d+\)|[¹²³⁴⁵⁶⁷⁸⁹⁰]+|\b\d+\s*\.\s*$)`
	citationRegexPattern   = `\([^)]*\d{4}[^)]*\)|\b\w+\s+et\s+al\.`
	whitespaceRegexPattern = `\s+`
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Cleaner normalizes raw book text before vocabulary extraction. Scanned
// sources carry page references, academic citations and typographic marks
// that would otherwise leak into the learning set. Numbers and
// abbreviations pass through untouched; the input language is not known
// at this point.
type Cleaner struct {
	referencePattern  *regexp.Regexp
	citationPattern   *regexp.Regexp
	whitespacePattern *regexp.Regexp
	quoteReplacer     *strings.Replacer
}

// NewCleaner creates a cleaner with compiled patterns and replacers.
func NewCleaner() *Cleaner {
	return &Cleaner{
		referencePattern:  regexp.MustCompile(referenceRegexPattern),
		citationPattern:   regexp.MustCompile(citationRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		quoteReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`, // Smart quotes to standard quotes
			"„", `"`, // Low-9 quotes used in Slavic and German typography
			"‘", "'", "’", "'", // Smart single quotes to standard
		),
	}
}

// Clean normalizes text for extraction: references and citations are
// removed, typographic marks are standardized and whitespace is collapsed.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return text
	}

	cleaned := c.referencePattern.ReplaceAllString(text, "")
	cleaned = c.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = c.quoteReplacer.Replace(cleaned)
	cleaned = c.whitespacePattern.ReplaceAllString(cleaned, " ")

	return ensureSentenceEnding(strings.TrimSpace(cleaned))
}

// ensureSentenceEnding closes the text with sentence punctuation, so a page
// fragment cut mid-line still reads as a complete unit.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)
	if !unicode.IsPunct(lastChar) {
		return text + "."
	}

	switch lastChar {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
