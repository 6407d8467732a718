// Package textutil cleans user supplied text before it is stored, logged or echoed back.
package textutil

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const (
	maxLabelKey   = 64
	maxLabelValue = 256
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	richPolicy  = newRichPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// PlainText NFC-normalises value, strips all markup and collapses whitespace runs.
func PlainText(value string) string {
	cleaned := html.UnescapeString(plainPolicy.Sanitize(norm.NFC.String(value)))
	return strings.Join(strings.Fields(cleaned), " ")
}

// RichText NFC-normalises value and keeps only user-generated-content safe markup.
func RichText(value string) string {
	return strings.TrimSpace(richPolicy.Sanitize(norm.NFC.String(value)))
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

// SingleLine makes value safe for a log field or header: control characters become spaces,
// the result is trimmed and cut to limit runes.
func SingleLine(value string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, value)
	return Truncate(strings.TrimSpace(cleaned), limit)
}

// Labels normalises free-form key/value labels. Keys are trimmed and blank keys dropped;
// values are reduced to plain text. It returns nil when nothing survives.
func Labels(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		key = Truncate(strings.TrimSpace(key), maxLabelKey)
		if key == "" {
			continue
		}
		out[key] = Truncate(PlainText(value), maxLabelValue)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
