// Package fetch provides locale fetch capabilities for the driver: an
// in-memory map, a directory of locale files, and compressed locale packs.
// The driver itself never performs I/O; it only sees the Fetcher interface.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ulikunitz/xz"

	"github.com/citekit/citekit/core/errors"
)

// localeFileName is the conventional file name for a locale, following the
// CSL locales distribution ("locales-fr-FR.xml").
func localeFileName(lang string) string {
	return "locales-" + lang + ".xml"
}

// MapFetcher serves locale XML from memory. It is the fetcher of choice for
// tests and for embedding a fixed locale set into a binary.
type MapFetcher map[string]string

// FetchLocale returns the locale XML for lang, or a not-found error.
func (m MapFetcher) FetchLocale(ctx context.Context, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, ok := m[lang]
	if !ok {
		return "", errors.NewNotFound("locale", lang)
	}
	return text, nil
}

// Languages returns the sorted language tags the fetcher can serve.
func (m MapFetcher) Languages() []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DirFetcher reads locale files from a directory. For each language tag it
// looks for locales-<lang>.xml first, then locales-<lang>.xml.xz.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher over dir. The directory must exist.
func NewDirFetcher(dir string) (*DirFetcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("locale directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("locale directory: %s is not a directory", dir)
	}
	return &DirFetcher{dir: dir}, nil
}

// FetchLocale reads the locale file for lang, decompressing .xml.xz variants.
func (f *DirFetcher) FetchLocale(ctx context.Context, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := localeFileName(lang)
	plain := filepath.Join(f.dir, name)
	if data, err := os.ReadFile(plain); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read locale %s: %w", lang, err)
	}

	compressed := plain + ".xz"
	file, err := os.Open(compressed)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound("locale", lang)
		}
		return "", fmt.Errorf("read locale %s: %w", lang, err)
	}
	defer file.Close()

	xzr, err := xz.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("xz reader for %s: %w", compressed, err)
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		return "", fmt.Errorf("decompress locale %s: %w", lang, err)
	}
	return string(data), nil
}

// Languages scans the directory for locale files and returns the sorted
// distinct language tags found.
func (f *DirFetcher) Languages() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("scan locale directory: %w", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if lang, ok := parseLocaleName(entry.Name()); ok {
			seen[lang] = true
		}
	}

	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

// parseLocaleName extracts the language tag from locales-<lang>.xml or
// locales-<lang>.xml.xz; ok is false for any other name.
func parseLocaleName(name string) (lang string, ok bool) {
	const prefix = "locales-"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return "", false
	}
	rest := name[len(prefix):]
	for _, suffix := range []string{".xml", ".xml.xz"} {
		if len(rest) > len(suffix) && rest[len(rest)-len(suffix):] == suffix {
			return rest[:len(rest)-len(suffix)], true
		}
	}
	return "", false
}
