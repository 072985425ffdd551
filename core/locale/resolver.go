package locale

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/citekit/citekit/core/cache"
	"github.com/citekit/citekit/core/errors"
)

// Fetcher is the externally supplied capability that retrieves raw locale
// definition text for a language tag. Implementations must be safe for
// concurrent use; FetchAll invokes them from one goroutine per tag.
type Fetcher interface {
	FetchLocale(ctx context.Context, lang string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, lang string) (string, error)

// FetchLocale implements Fetcher.
func (f FetcherFunc) FetchLocale(ctx context.Context, lang string) (string, error) {
	return f(ctx, lang)
}

// Resolver caches parsed locales for a session and resolves terms through
// the fallback chain. The cache is unbounded and never invalidated: locale
// content is stateless for a given tag.
//
// The fetch capability is borrowed only for the duration of FetchAll; the
// Resolver holds no reference to it afterwards.
type Resolver struct {
	styleDefault string
	locales      cache.Cache[string, *Locale]
}

// NewResolver creates a Resolver whose fallback chain ends at the style's
// default locale.
func NewResolver(styleDefault string) *Resolver {
	return &Resolver{
		styleDefault: styleDefault,
		locales:      cache.NewLRUCache[string, *Locale](cache.UnboundedConfig()),
	}
}

// Cached reports whether the locale for lang has been fetched and parsed.
func (r *Resolver) Cached(lang string) bool {
	_, ok := r.locales.Get(lang)
	return ok
}

// Get returns the cached locale for lang.
func (r *Resolver) Get(lang string) (*Locale, bool) {
	return r.locales.Get(lang)
}

// FetchAll fetches and parses every not-yet-cached tag in langs, one
// concurrent sub-task per distinct tag. The first fetch or parse failure
// cancels the shared context and is returned once; in-flight sibling fetches
// observe the cancellation through ctx. A failed bulk fetch stores nothing
// from the failing tag but keeps whatever sibling tags completed.
func (r *Resolver) FetchAll(ctx context.Context, fetcher Fetcher, langs []string) error {
	distinct := dedupe(langs)

	g, ctx := errgroup.WithContext(ctx)
	for _, lang := range distinct {
		if r.Cached(lang) {
			continue
		}
		lang := lang
		g.Go(func() error {
			text, err := fetcher.FetchLocale(ctx, lang)
			if err != nil {
				return errors.NewFetch(lang, err)
			}
			parsed, err := Parse([]byte(text))
			if err != nil {
				return errors.Wrapf(err, "locale %s", lang)
			}
			r.locales.Put(lang, parsed)
			return nil
		})
	}
	return g.Wait()
}

// ResolveTerm resolves a term for lang by walking the fallback chain
// (exact tag, bare language, style default, "en-US") across cached locales.
// Only cached locales participate; an uncached tag in the chain is skipped,
// it is the renderer's job to require the cite's own locale up front.
func (r *Resolver) ResolveTerm(lang, name string, plural bool) (string, bool) {
	for _, tag := range FallbackChain(lang, r.styleDefault) {
		if loc, ok := r.locales.Get(tag); ok {
			if value, ok := loc.Term(name, plural); ok {
				return value, true
			}
		}
	}
	return "", false
}

// CachedCount returns how many locales are cached. Primarily for diagnostics.
func (r *Resolver) CachedCount() int {
	return r.locales.Len()
}

func dedupe(langs []string) []string {
	seen := make(map[string]bool, len(langs))
	var out []string
	for _, lang := range langs {
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
