package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ulikunitz/xz"

	"github.com/citekit/citekit/core/errors"
)

// PackFetcher serves locales from a compressed locale pack: a .tar.gz or
// .tar.xz archive of locales-<lang>.xml files. The whole pack is indexed
// into memory on first use, so repeated fetches never reopen the archive.
type PackFetcher struct {
	path string

	once    sync.Once
	loadErr error
	locales map[string]string
}

// NewPackFetcher creates a fetcher over the pack at path. The archive is not
// opened until the first fetch.
func NewPackFetcher(packPath string) *PackFetcher {
	return &PackFetcher{path: packPath}
}

// FetchLocale returns the locale XML for lang from the pack.
func (p *PackFetcher) FetchLocale(ctx context.Context, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p.load(); err != nil {
		return "", err
	}
	text, ok := p.locales[lang]
	if !ok {
		return "", errors.NewNotFound("locale", lang)
	}
	return text, nil
}

// Languages returns the sorted language tags present in the pack.
func (p *PackFetcher) Languages() ([]string, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(p.locales))
	for lang := range p.locales {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

func (p *PackFetcher) load() error {
	p.once.Do(func() {
		p.locales = make(map[string]string)
		p.loadErr = iteratePack(p.path, func(name string, content io.Reader) error {
			lang, ok := parseLocaleName(path.Base(name))
			if !ok {
				return nil
			}
			data, err := io.ReadAll(content)
			if err != nil {
				return fmt.Errorf("read pack entry %s: %w", name, err)
			}
			p.locales[lang] = string(data)
			return nil
		})
	})
	return p.loadErr
}

// iteratePack walks the entries of a .tar.gz or .tar.xz archive.
func iteratePack(packPath string, visit func(name string, content io.Reader) error) error {
	f, err := os.Open(packPath)
	if err != nil {
		return fmt.Errorf("open locale pack: %w", err)
	}
	defer f.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(packPath, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case strings.HasSuffix(packPath, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	default:
		return fmt.Errorf("unsupported locale pack format: %s", packPath)
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pack header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if err := visit(header.Name, tr); err != nil {
			return err
		}
	}
}
