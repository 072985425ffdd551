// Package encoding provides shared text encoding and escaping utilities.
package encoding

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// EscapeXML escapes special characters for XML content.
// Uses the standard library's xml.EscapeText for proper escaping.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// EscapeXMLText escapes only the basic XML entities for text content.
// This is a lighter-weight alternative to EscapeXML.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in XML attributes.
// Includes quote escaping in addition to basic XML entities.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// EscapeHTML escapes special characters for HTML content.
// Escapes: & < > "
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// EscapeRTF escapes special characters for RTF documents.
// Escapes \ { } and encodes characters outside 7-bit ASCII as \uN? control
// words (the ? is the fallback character for readers without Unicode support).
func EscapeRTF(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '{':
			b.WriteString(`\{`)
		case r == '}':
			b.WriteString(`\}`)
		case r < 0x80:
			b.WriteRune(r)
		default:
			// RTF \u takes a signed 16-bit decimal; code points above the
			// BMP are emitted as surrogate pairs.
			if r > 0xFFFF {
				r -= 0x10000
				hi := 0xD800 + (r >> 10)
				lo := 0xDC00 + (r & 0x3FF)
				writeRTFUnicode(&b, int16(hi))
				writeRTFUnicode(&b, int16(lo))
			} else {
				writeRTFUnicode(&b, int16(r))
			}
		}
	}
	return b.String()
}

func writeRTFUnicode(b *strings.Builder, n int16) {
	b.WriteString(`\u`)
	b.WriteString(strconv.Itoa(int(n)))
	b.WriteString("?")
}
