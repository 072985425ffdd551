// Package style parses CSL style definitions into an immutable layout tree.
//
// A style is parsed once, at driver construction, and never mutated
// afterwards. Only the subset of CSL needed for citation layouts is
// supported: text literals, variable references, term references, and
// delimited groups, all with optional prefix/suffix affixes. Anything
// else in a <layout> fails parsing rather than rendering incorrectly.
package style

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/xml"
)

// DefaultLocale is the locale assumed when a style does not declare one.
const DefaultLocale = "en-US"

// Style is a parsed CSL style definition.
type Style struct {
	Version       string
	Class         string
	DefaultLocale string
	Title         string
	ID            string
	Citation      Citation

	// Hash is the hex-encoded BLAKE3 digest of the style source text.
	// It identifies a style for caching and diagnostics.
	Hash string
}

// Citation holds the citation-level rendering rules.
type Citation struct {
	Layout Layout
}

// Layout is the per-cite rendering template plus the inter-cite delimiter
// and citation affixes.
type Layout struct {
	Prefix    string
	Suffix    string
	Delimiter string
	Nodes     []Node
}

// Node is one element of a layout tree.
type Node interface {
	node()
}

// Text renders a literal string.
type Text struct {
	Value  string
	Prefix string
	Suffix string
}

// Variable renders a bibliographic field of the cited reference.
type Variable struct {
	Name   string
	Prefix string
	Suffix string
}

// Term renders a localized term looked up in the resolved locale.
type Term struct {
	Name   string
	Plural bool
	Prefix string
	Suffix string
}

// Group renders its children joined by a delimiter. A group whose children
// all render empty is omitted entirely, affixes included.
type Group struct {
	Delimiter string
	Prefix    string
	Suffix    string
	Children  []Node
}

func (Text) node()     {}
func (Variable) node() {}
func (Term) node()     {}
func (Group) node()    {}

// Parse parses CSL style XML into a Style. Malformed XML, a missing
// <citation>/<layout>, or an unsupported layout construct fails with a
// ParseError wrapping ErrInvalidInput.
func Parse(styleText []byte) (*Style, error) {
	doc, err := xml.Parse(styleText)
	if err != nil {
		return nil, errors.NewParse("CSL style", "", err.Error())
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.NewParse("CSL style", "", "document has no root element")
	}
	if root.Name() != "style" {
		return nil, errors.NewParse("CSL style", "", fmt.Sprintf("root element is <%s>, want <style>", root.Name()))
	}

	version := root.Attr("version")
	if version == "" {
		return nil, errors.NewParse("CSL style", "", "<style> is missing the version attribute")
	}

	s := &Style{
		Version:       version,
		Class:         root.Attr("class"),
		DefaultLocale: root.Attr("default-locale"),
		Hash:          hashSource(styleText),
	}
	if s.DefaultLocale == "" {
		s.DefaultLocale = DefaultLocale
	}

	if info := root.Child("info"); info != nil {
		if title := info.Child("title"); title != nil {
			s.Title = title.Text()
		}
		if id := info.Child("id"); id != nil {
			s.ID = id.Text()
		}
	}

	citation := root.Child("citation")
	if citation == nil {
		return nil, errors.NewParse("CSL style", "", "<style> has no <citation> element")
	}
	layout := citation.Child("layout")
	if layout == nil {
		return nil, errors.NewParse("CSL style", "", "<citation> has no <layout> element")
	}

	s.Citation.Layout = Layout{
		Prefix:    layout.Attr("prefix"),
		Suffix:    layout.Attr("suffix"),
		Delimiter: layout.Attr("delimiter"),
	}
	// The layout delimiter wins over a citation-level one when both are set.
	if s.Citation.Layout.Delimiter == "" {
		s.Citation.Layout.Delimiter = citation.Attr("delimiter")
	}

	nodes, err := parseChildren(layout)
	if err != nil {
		return nil, err
	}
	s.Citation.Layout.Nodes = nodes

	return s, nil
}

func parseChildren(parent *xml.Node) ([]Node, error) {
	var nodes []Node
	for _, child := range parent.Children() {
		node, err := parseNode(child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseNode(el *xml.Node) (Node, error) {
	prefix := el.Attr("prefix")
	suffix := el.Attr("suffix")

	switch el.Name() {
	case "text":
		switch {
		case el.HasAttr("value"):
			return Text{Value: el.Attr("value"), Prefix: prefix, Suffix: suffix}, nil
		case el.HasAttr("variable"):
			name := el.Attr("variable")
			if name == "" {
				return nil, errors.NewParse("CSL style", "", "<text> has an empty variable attribute")
			}
			return Variable{Name: name, Prefix: prefix, Suffix: suffix}, nil
		case el.HasAttr("term"):
			name := el.Attr("term")
			if name == "" {
				return nil, errors.NewParse("CSL style", "", "<text> has an empty term attribute")
			}
			return Term{
				Name:   name,
				Plural: el.Attr("plural") == "true",
				Prefix: prefix,
				Suffix: suffix,
			}, nil
		default:
			return nil, errors.NewParse("CSL style", "", "<text> needs one of value, variable, or term")
		}

	case "group":
		children, err := parseChildren(el)
		if err != nil {
			return nil, err
		}
		return Group{
			Delimiter: el.Attr("delimiter"),
			Prefix:    prefix,
			Suffix:    suffix,
			Children:  children,
		}, nil

	default:
		return nil, errors.NewParse("CSL style", "", fmt.Sprintf("unsupported layout element <%s>", el.Name()))
	}
}

func hashSource(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
