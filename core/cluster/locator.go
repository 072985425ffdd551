package cluster

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/citekit/citekit/core/errors"
)

// Locator is a parsed cite locator such as "p. 12-14" or "chap. 3".
type Locator struct {
	Label string // normalized label: "page", "chapter", "section", ...
	Start string
	End   string // empty for a single position
	Raw   string // original input text
}

// Plural reports whether the locator spans a range.
func (l Locator) Plural() bool {
	return l.End != ""
}

// locatorExpr is the participle AST for a locator string.
type locatorExpr struct {
	Label string `parser:"@Label?"`
	Start string `parser:"@Number"`
	End   string `parser:"( Dash @Number )?"`
}

// locatorLexer tokenizes locator strings.
var locatorLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Labels: "p.", "pp.", "chap.", "sec", "§", ...
	{Name: "Label", Pattern: `(?:[A-Za-z]+\.?|§)`},
	// Positions: plain numbers, optionally with a trailing subdivision letter ("12a")
	{Name: "Number", Pattern: `\d+[a-z]?`},
	{Name: "Dash", Pattern: `[-–]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var locatorParser = participle.MustBuild[locatorExpr](
	participle.Lexer(locatorLexer),
	participle.Elide("Whitespace"),
)

// locatorLabels maps label spellings to their normalized CSL locator names.
var locatorLabels = map[string]string{
	"p":          "page",
	"pp":         "page",
	"page":       "page",
	"pages":      "page",
	"ch":         "chapter",
	"chap":       "chapter",
	"chapter":    "chapter",
	"chapters":   "chapter",
	"sec":        "section",
	"section":    "section",
	"sections":   "section",
	"§":          "section",
	"vol":        "volume",
	"vols":       "volume",
	"volume":     "volume",
	"volumes":    "volume",
	"fig":        "figure",
	"figure":     "figure",
	"figures":    "figure",
	"para":       "paragraph",
	"paragraph":  "paragraph",
	"paragraphs": "paragraph",
	"pt":         "part",
	"part":       "part",
	"parts":      "part",
	"n":          "note",
	"note":       "note",
	"notes":      "note",
}

// ParseLocator parses a locator string into its label and position range.
// The label defaults to "page" when only positions are given ("12-14").
// Unknown labels and unparseable inputs fail; callers keep the raw text
// verbatim in that case.
func ParseLocator(input string) (Locator, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Locator{}, errors.Wrap(errors.ErrInvalidInput, "empty locator")
	}

	expr, err := locatorParser.ParseString("", trimmed)
	if err != nil {
		return Locator{}, errors.Wrapf(errors.ErrInvalidInput, "unparseable locator %q", input)
	}

	loc := Locator{
		Label: "page",
		Start: expr.Start,
		End:   expr.End,
		Raw:   input,
	}
	if expr.Label != "" {
		spelled := strings.ToLower(strings.TrimSuffix(expr.Label, "."))
		normalized, ok := locatorLabels[spelled]
		if !ok {
			return Locator{}, errors.Wrapf(errors.ErrInvalidInput, "unknown locator label %q", expr.Label)
		}
		loc.Label = normalized
	}
	return loc, nil
}
