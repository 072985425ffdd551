// Package render composes the parsed style, resolved locales, reference
// store, and cluster graph into formatted citation text.
package render

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/citekit/citekit/core/cache"
	"github.com/citekit/citekit/core/cluster"
	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/locale"
	"github.com/citekit/citekit/core/reference"
	"github.com/citekit/citekit/core/style"
)

// Engine renders clusters. Build is a pure function of the engine's inputs:
// identical style, locales, references, and cluster contents always produce
// identical output.
type Engine struct {
	style    *style.Style
	refs     *reference.Store
	clusters *cluster.Graph
	locales  *locale.Resolver
	format   Format

	// memo caches built clusters per generation. Mutating any upstream
	// input bumps the generation, which orphans stale entries; the LRU
	// bound reclaims them.
	memo        cache.Cache[string, string]
	generation  atomic.Uint64
	fingerprint string
}

// NewEngine creates an Engine over the given components.
func NewEngine(s *style.Style, refs *reference.Store, clusters *cluster.Graph, locales *locale.Resolver, format Format) *Engine {
	sum := blake3.Sum256([]byte(s.Hash + "|" + string(format)))
	return &Engine{
		style:       s,
		refs:        refs,
		clusters:    clusters,
		locales:     locales,
		format:      format,
		memo:        cache.NewLRUCache[string, string](cache.DefaultConfig()),
		fingerprint: fmt.Sprintf("%x", sum[:8]),
	}
}

// Format returns the engine's output format.
func (e *Engine) Format() Format {
	return e.format
}

// Invalidate marks every memoized build stale. Callers invoke it after any
// mutation of references, clusters, order, or locales.
func (e *Engine) Invalidate() {
	e.generation.Add(1)
}

// Build renders one cluster. The locale for every cited reference's language
// tag (or the style default for untagged references) must already be cached;
// otherwise Build fails with ErrLocaleNotLoaded rather than silently
// rendering without terms.
func (e *Engine) Build(clusterID int) (string, error) {
	key := fmt.Sprintf("%s:%d:%d", e.fingerprint, e.generation.Load(), clusterID)
	if built, ok := e.memo.Get(key); ok {
		return built, nil
	}

	c, err := e.clusters.Get(clusterID)
	if err != nil {
		return "", err
	}

	layout := e.style.Citation.Layout
	var rendered []string
	for _, cite := range c.Cites {
		text, err := e.buildCite(cite)
		if err != nil {
			return "", errors.Wrapf(err, "cluster %d", clusterID)
		}
		if text != "" {
			rendered = append(rendered, text)
		}
	}

	out := strings.Join(rendered, e.format.Escape(layout.Delimiter))
	if out != "" {
		out = e.format.Escape(layout.Prefix) + out + e.format.Escape(layout.Suffix)
	}

	e.memo.Put(key, out)
	return out, nil
}

// citeContext carries the per-cite inputs through the layout walk.
type citeContext struct {
	ref  reference.Reference
	cite cluster.Cite
	lang string
}

func (e *Engine) buildCite(cite cluster.Cite) (string, error) {
	ref, err := e.refs.Get(cite.RefID)
	if err != nil {
		return "", err
	}

	lang := ref.Language()
	if lang == "" {
		lang = e.style.DefaultLocale
	}
	if !e.locales.Cached(lang) {
		return "", errors.Wrapf(errors.ErrLocaleNotLoaded, "language %s", lang)
	}

	ctx := citeContext{ref: ref, cite: cite, lang: lang}
	body := e.renderNodes(e.style.Citation.Layout.Nodes, "", ctx)

	// A locator the style never consumed is appended after the body, the
	// way citeproc merges it into the cite suffix.
	if cite.Locator != "" && !layoutUsesLocator(e.style.Citation.Layout.Nodes) {
		loc := e.renderLocator(ctx)
		if loc != "" {
			if body != "" {
				body += e.format.Escape(", ")
			}
			body += loc
		}
	}

	if body == "" {
		return "", nil
	}
	return e.format.Escape(cite.Prefix) + body + e.format.Escape(cite.Suffix), nil
}

// renderNodes renders a node list and joins the non-empty results with the
// delimiter. Used for both the layout root (no delimiter) and groups.
func (e *Engine) renderNodes(nodes []style.Node, delimiter string, ctx citeContext) string {
	var parts []string
	for _, node := range nodes {
		if text := e.renderNode(node, ctx); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, e.format.Escape(delimiter))
}

func (e *Engine) renderNode(node style.Node, ctx citeContext) string {
	switch n := node.(type) {
	case style.Text:
		return e.affix(e.format.Escape(n.Value), n.Prefix, n.Suffix)

	case style.Variable:
		var value string
		if n.Name == "locator" {
			value = e.renderLocator(ctx)
			return e.affix(value, n.Prefix, n.Suffix)
		}
		value = ctx.ref.Field(n.Name)
		return e.affix(e.format.Escape(value), n.Prefix, n.Suffix)

	case style.Term:
		value, ok := e.locales.ResolveTerm(ctx.lang, n.Name, n.Plural)
		if !ok {
			return ""
		}
		return e.affix(e.format.Escape(value), n.Prefix, n.Suffix)

	case style.Group:
		// Suppression rule: a group whose children all render empty is
		// omitted entirely, affixes included.
		body := e.renderNodes(n.Children, n.Delimiter, ctx)
		return e.affix(body, n.Prefix, n.Suffix)

	default:
		return ""
	}
}

// affix wraps non-empty content in its escaped affixes. Empty content stays
// empty; affixes never render on their own.
func (e *Engine) affix(content, prefix, suffix string) string {
	if content == "" {
		return ""
	}
	return e.format.Escape(prefix) + content + e.format.Escape(suffix)
}

// renderLocator renders a cite locator. Parseable locators render as a
// localized label plus the position range; anything else passes through
// verbatim.
func (e *Engine) renderLocator(ctx citeContext) string {
	raw := ctx.cite.Locator
	if raw == "" {
		return ""
	}

	loc, err := cluster.ParseLocator(raw)
	if err != nil {
		return e.format.Escape(raw)
	}

	label, ok := e.locales.ResolveTerm(ctx.lang, loc.Label, loc.Plural())
	if !ok {
		label = loc.Label
	}

	position := loc.Start
	if loc.End != "" {
		position += "–" + loc.End
	}
	return e.format.Escape(label + " " + position)
}

func layoutUsesLocator(nodes []style.Node) bool {
	for _, node := range nodes {
		switch n := node.(type) {
		case style.Variable:
			if n.Name == "locator" {
				return true
			}
		case style.Group:
			if layoutUsesLocator(n.Children) {
				return true
			}
		}
	}
	return false
}
