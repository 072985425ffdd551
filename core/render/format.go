package render

import (
	"github.com/citekit/citekit/core/encoding"
	"github.com/citekit/citekit/core/errors"
)

// Format selects the output markup dialect and its escaping rules.
type Format string

const (
	// FormatPlain emits unescaped text.
	FormatPlain Format = "plain"
	// FormatHTML emits HTML-escaped text.
	FormatHTML Format = "html"
	// FormatRTF emits RTF-escaped text.
	FormatRTF Format = "rtf"
)

// ParseFormat validates a format name from configuration.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatPlain, FormatHTML, FormatRTF:
		return Format(name), nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupported, "output format %q", name)
	}
}

// Escape applies the format's escaping rules to literal text. Every piece of
// rendered output passes through here: literals, substituted variable and
// term values, affixes, and delimiters.
func (f Format) Escape(s string) string {
	switch f {
	case FormatHTML:
		return encoding.EscapeHTML(s)
	case FormatRTF:
		return encoding.EscapeRTF(s)
	default:
		return s
	}
}
