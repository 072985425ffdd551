// Package locale parses CSL locale definitions and resolves localized terms
// through a language fallback chain.
package locale

import (
	"fmt"
	"strings"

	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/xml"
)

// Locale is a parsed set of localized terms for one language tag.
type Locale struct {
	Lang  string
	terms map[string]termDef
}

type termDef struct {
	single      string
	multiple    string
	hasMultiple bool
}

// Parse parses CSL locale XML into a Locale. A term is defined either by the
// element's text content or by <single>/<multiple> children for
// pluralizable terms.
func Parse(data []byte) (*Locale, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewParse("CSL locale", "", err.Error())
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.NewParse("CSL locale", "", "document has no root element")
	}
	if root.Name() != "locale" {
		return nil, errors.NewParse("CSL locale", "", fmt.Sprintf("root element is <%s>, want <locale>", root.Name()))
	}

	l := &Locale{
		Lang:  root.Attr("lang"),
		terms: make(map[string]termDef),
	}

	termNodes, err := doc.XPath("//terms/term")
	if err != nil {
		return nil, errors.NewParse("CSL locale", "", err.Error())
	}
	for _, node := range termNodes {
		name := node.Attr("name")
		if name == "" {
			return nil, errors.NewParse("CSL locale", "", "<term> is missing the name attribute")
		}

		def := termDef{}
		if single := node.Child("single"); single != nil {
			def.single = single.Text()
			if multiple := node.Child("multiple"); multiple != nil {
				def.multiple = multiple.Text()
				def.hasMultiple = true
			}
		} else {
			def.single = node.Text()
		}

		// Later definitions of the same term win, matching locale merge order.
		l.terms[name] = def
	}

	return l, nil
}

// Term looks up a term by name. When plural is requested but the term has no
// plural form, the singular form is returned.
func (l *Locale) Term(name string, plural bool) (string, bool) {
	def, ok := l.terms[name]
	if !ok {
		return "", false
	}
	if plural && def.hasMultiple {
		return def.multiple, true
	}
	return def.single, true
}

// Terms returns the names of all defined terms.
func (l *Locale) Terms() []string {
	names := make([]string, 0, len(l.terms))
	for name := range l.terms {
		names = append(names, name)
	}
	return names
}

// FallbackChain returns the ordered list of language tags consulted when
// resolving a term for lang: the exact tag, its bare language subtag, the
// style default locale (and its bare subtag), then "en-US". Duplicates and
// empty tags are dropped.
func FallbackChain(lang, styleDefault string) []string {
	var chain []string
	seen := make(map[string]bool)
	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		chain = append(chain, tag)
	}

	add(lang)
	add(baseLang(lang))
	add(styleDefault)
	add(baseLang(styleDefault))
	add("en-US")
	add("en")
	return chain
}

// baseLang strips the region from a language tag: "fr-FR" -> "fr".
func baseLang(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return ""
}
