// Command citekit is the CLI for the CiteKit citation engine.
// It renders citation clusters, validates styles, inspects locales, and
// manages a persistent reference library.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/citekit/citekit/core/cluster"
	"github.com/citekit/citekit/core/driver"
	"github.com/citekit/citekit/core/locale"
	"github.com/citekit/citekit/core/reference"
	"github.com/citekit/citekit/core/render"
	"github.com/citekit/citekit/core/style"
	"github.com/citekit/citekit/internal/api"
	"github.com/citekit/citekit/internal/fetch"
	"github.com/citekit/citekit/internal/library"
	"github.com/citekit/citekit/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for citekit.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"text"`

	// Command groups (noun-first organization)
	Render  RenderCmd   `cmd:"" help:"Render citation clusters from a style, references, and clusters file"`
	Style   StyleGroup  `cmd:"" help:"Style operations"`
	Locale  LocaleGroup `cmd:"" help:"Locale operations"`
	Refs    RefsGroup   `cmd:"" help:"Reference library management"`
	Serve   ServeCmd    `cmd:"" help:"Start the WebSocket session service"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// StyleGroup contains style operations.
type StyleGroup struct {
	Validate StyleValidateCmd `cmd:"" help:"Parse a style and print its metadata"`
}

// LocaleGroup contains locale operations.
type LocaleGroup struct {
	Show LocaleShowCmd `cmd:"" help:"Fetch a locale and print its terms"`
}

// RefsGroup contains reference library operations.
type RefsGroup struct {
	Import RefsImportCmd `cmd:"" help:"Import CSL-JSON references into the library"`
	List   RefsListCmd   `cmd:"" help:"List references in the library"`
	Get    RefsGetCmd    `cmd:"" help:"Print one reference as JSON"`
	Delete RefsDeleteCmd `cmd:"" help:"Delete a reference from the library"`
}

// newFetcher picks a fetcher for the given locales path: a directory of
// locale files, or a .tar.gz/.tar.xz locale pack.
func newFetcher(path string) (locale.Fetcher, error) {
	if strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tar.xz") {
		return fetch.NewPackFetcher(path), nil
	}
	return fetch.NewDirFetcher(path)
}

// RenderCmd renders clusters end to end.
type RenderCmd struct {
	Style    string `arg:"" help:"Path to CSL style XML" type:"existingfile"`
	Refs     string `required:"" help:"Path to CSL-JSON references file" type:"existingfile"`
	Clusters string `required:"" help:"Path to clusters JSON file" type:"existingfile"`
	Locales  string `required:"" help:"Locale directory or .tar.gz/.tar.xz pack" type:"path"`
	Format   string `help:"Output format (plain, html, rtf)" default:"plain"`
	Order    []int  `help:"Cluster order as a comma-separated id list"`
	JSON     bool   `help:"Emit results as JSON instead of tab-separated lines"`
}

func (c *RenderCmd) Run() error {
	format, err := render.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	styleText, err := os.ReadFile(c.Style)
	if err != nil {
		return fmt.Errorf("read style: %w", err)
	}

	fetcher, err := newFetcher(c.Locales)
	if err != nil {
		return err
	}

	d, err := driver.New(styleText, fetcher, format)
	if err != nil {
		return err
	}

	refsFile, err := os.Open(c.Refs)
	if err != nil {
		return fmt.Errorf("open references: %w", err)
	}
	defer refsFile.Close()
	refs, err := reference.DecodeJSON(refsFile)
	if err != nil {
		return err
	}
	if err := d.InsertReferences(refs...); err != nil {
		return err
	}

	clustersData, err := os.ReadFile(c.Clusters)
	if err != nil {
		return fmt.Errorf("read clusters: %w", err)
	}
	var clusters []cluster.Cluster
	if err := json.Unmarshal(clustersData, &clusters); err != nil {
		return fmt.Errorf("decode clusters: %w", err)
	}
	if err := d.InitClusters(clusters); err != nil {
		return err
	}

	if len(c.Order) > 0 {
		if err := d.SetClusterOrder(c.Order); err != nil {
			return err
		}
	}

	if err := d.FetchLocales(context.Background()); err != nil {
		return err
	}

	built, err := d.BuildAll()
	if err != nil {
		return err
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(built)
	}
	for _, b := range built {
		fmt.Printf("%d\t%s\n", b.ID, b.Text)
	}
	return nil
}

// StyleValidateCmd parses a style and prints its metadata.
type StyleValidateCmd struct {
	Path string `arg:"" help:"Path to CSL style XML" type:"existingfile"`
}

func (c *StyleValidateCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read style: %w", err)
	}
	s, err := style.Parse(data)
	if err != nil {
		return err
	}

	fmt.Printf("Style: %s\n", c.Path)
	if s.Title != "" {
		fmt.Printf("  Title: %s\n", s.Title)
	}
	if s.ID != "" {
		fmt.Printf("  ID: %s\n", s.ID)
	}
	fmt.Printf("  Version: %s\n", s.Version)
	if s.Class != "" {
		fmt.Printf("  Class: %s\n", s.Class)
	}
	fmt.Printf("  Default locale: %s\n", s.DefaultLocale)
	fmt.Printf("  Hash: %s\n", s.Hash)
	return nil
}

// LocaleShowCmd fetches one locale and prints its terms.
type LocaleShowCmd struct {
	Lang    string `arg:"" help:"Language tag (e.g. fr-FR)"`
	Locales string `required:"" help:"Locale directory or .tar.gz/.tar.xz pack" type:"path"`
	Term    string `help:"Print only this term"`
}

func (c *LocaleShowCmd) Run() error {
	fetcher, err := newFetcher(c.Locales)
	if err != nil {
		return err
	}
	text, err := fetcher.FetchLocale(context.Background(), c.Lang)
	if err != nil {
		return err
	}
	loc, err := locale.Parse([]byte(text))
	if err != nil {
		return err
	}

	if c.Term != "" {
		value, ok := loc.Term(c.Term, false)
		if !ok {
			return fmt.Errorf("term %q not defined in %s", c.Term, c.Lang)
		}
		fmt.Println(value)
		return nil
	}

	fmt.Printf("Locale: %s\n", loc.Lang)
	for _, name := range loc.Terms() {
		value, _ := loc.Term(name, false)
		fmt.Printf("  %s: %s\n", name, value)
	}
	return nil
}

// RefsImportCmd imports CSL-JSON references into the library.
type RefsImportCmd struct {
	File string `arg:"" help:"Path to CSL-JSON references file" type:"existingfile"`
	DB   string `help:"Library database path" default:"citekit.db" type:"path"`
}

func (c *RefsImportCmd) Run() error {
	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("open references: %w", err)
	}
	defer f.Close()

	refs, err := reference.DecodeJSON(f)
	if err != nil {
		return err
	}

	lib, err := library.Open(c.DB)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Upsert(refs...); err != nil {
		return err
	}
	fmt.Printf("Imported %d references into %s\n", len(refs), c.DB)
	return nil
}

// RefsListCmd lists references in the library.
type RefsListCmd struct {
	DB string `help:"Library database path" default:"citekit.db" type:"path"`
}

func (c *RefsListCmd) Run() error {
	lib, err := library.Open(c.DB)
	if err != nil {
		return err
	}
	defer lib.Close()

	refs, err := lib.List()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		title := ref.Title()
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s\t%s\n", ref.ID, title)
	}
	return nil
}

// RefsGetCmd prints one reference as JSON.
type RefsGetCmd struct {
	ID string `arg:"" help:"Reference id"`
	DB string `help:"Library database path" default:"citekit.db" type:"path"`
}

func (c *RefsGetCmd) Run() error {
	lib, err := library.Open(c.DB)
	if err != nil {
		return err
	}
	defer lib.Close()

	ref, err := lib.Get(c.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ref)
}

// RefsDeleteCmd deletes a reference from the library.
type RefsDeleteCmd struct {
	ID string `arg:"" help:"Reference id"`
	DB string `help:"Library database path" default:"citekit.db" type:"path"`
}

func (c *RefsDeleteCmd) Run() error {
	lib, err := library.Open(c.DB)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Delete(c.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted: %s\n", c.ID)
	return nil
}

// ServeCmd starts the WebSocket session service.
type ServeCmd struct {
	Port    int      `help:"HTTP server port" default:"8080"`
	Locales string   `required:"" help:"Locale directory or .tar.gz/.tar.xz pack" type:"path"`
	DB      string   `help:"Library database path (optional)" type:"path"`
	Origins []string `help:"Allowed WebSocket origins (empty allows all)"`
}

func (c *ServeCmd) Run() error {
	fetcher, err := newFetcher(c.Locales)
	if err != nil {
		return err
	}

	cfg := api.Config{
		Port:           c.Port,
		Fetcher:        fetcher,
		AllowedOrigins: c.Origins,
	}
	if c.DB != "" {
		lib, err := library.Open(c.DB)
		if err != nil {
			return err
		}
		defer lib.Close()
		cfg.Library = lib
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		return err
	}
	return srv.Start()
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("citekit version %s (sqlite: %s)\n", version, library.DriverType())
	return nil
}

func initLogging() {
	level := logging.LevelWarn
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("citekit"),
		kong.Description("CiteKit - CSL citation cluster rendering"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
