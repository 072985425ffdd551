// Package driver exposes the engine's public operations behind a single
// session façade: load a style, insert references, initialize clusters, set
// their order, fetch locales, and build formatted output per cluster.
package driver

import (
	"context"

	"github.com/google/uuid"

	"github.com/citekit/citekit/core/cluster"
	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/locale"
	"github.com/citekit/citekit/core/reference"
	"github.com/citekit/citekit/core/render"
	"github.com/citekit/citekit/core/style"
	"github.com/citekit/citekit/internal/logging"
)

// State is the session lifecycle position. Operations that arrive before
// their prerequisite state fail explicitly instead of lazily triggering the
// missing steps.
type State int

const (
	// Uninitialized is the zero value; a constructed Driver starts at
	// StyleLoaded.
	Uninitialized State = iota
	// StyleLoaded means the style parsed successfully.
	StyleLoaded
	// ReferencesLoaded means at least one insert succeeded.
	ReferencesLoaded
	// ClustersInitialized means the cluster graph is populated.
	ClustersInitialized
	// LocalesFetched means the bulk locale fetch completed.
	LocalesFetched
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StyleLoaded:
		return "StyleLoaded"
	case ReferencesLoaded:
		return "ReferencesLoaded"
	case ClustersInitialized:
		return "ClustersInitialized"
	case LocalesFetched:
		return "LocalesFetched"
	default:
		return "Uninitialized"
	}
}

// Driver owns the style, reference store, cluster graph, and locale cache
// for one session. It is designed for a single logical caller; the bulk
// locale fetch is the only operation that runs concurrent sub-tasks.
// Multiple Driver instances are fully independent.
type Driver struct {
	sessionID string
	style     *style.Style
	refs      *reference.Store
	clusters  *cluster.Graph
	locales   *locale.Resolver
	fetcher   locale.Fetcher
	engine    *render.Engine
	state     State
}

// New constructs a Driver. The style is parsed synchronously and a malformed
// style fails construction; locales are not fetched eagerly.
func New(styleText []byte, fetcher locale.Fetcher, format render.Format) (*Driver, error) {
	s, err := style.Parse(styleText)
	if err != nil {
		return nil, err
	}

	refs := reference.NewStore()
	clusters := cluster.NewGraph()
	locales := locale.NewResolver(s.DefaultLocale)

	d := &Driver{
		sessionID: uuid.NewString(),
		style:     s,
		refs:      refs,
		clusters:  clusters,
		locales:   locales,
		fetcher:   fetcher,
		engine:    render.NewEngine(s, refs, clusters, locales, format),
		state:     StyleLoaded,
	}

	logging.SessionEvent("session_started", d.sessionID,
		"style_id", s.ID,
		"style_hash", s.Hash,
		"format", string(format),
	)
	return d, nil
}

// SessionID returns the session's unique id, used in structured logs.
func (d *Driver) SessionID() string {
	return d.sessionID
}

// State returns the current session state.
func (d *Driver) State() State {
	return d.state
}

// Ready reports whether Build is guaranteed correct: locales fetched over an
// initialized cluster graph.
func (d *Driver) Ready() bool {
	return d.state >= LocalesFetched && d.clusters.Len() > 0
}

// Style returns the parsed style.
func (d *Driver) Style() *style.Style {
	return d.style
}

// InsertReferences validates and upserts references. Re-inserting an id
// overwrites the prior entry.
func (d *Driver) InsertReferences(refs ...reference.Reference) error {
	if err := d.refs.Insert(refs...); err != nil {
		return err
	}
	if d.state < ReferencesLoaded {
		d.state = ReferencesLoaded
	}
	d.engine.Invalidate()

	logging.SessionEvent("references_inserted", d.sessionID,
		"count", len(refs),
		"total", d.refs.Len(),
	)
	return nil
}

// InitClusters replaces the full cluster set. Every cite must name a
// reference already inserted; an unknown id fails the whole call.
func (d *Driver) InitClusters(clusters []cluster.Cluster) error {
	if d.state < ReferencesLoaded {
		return errors.NewState(d.state.String(), "init clusters")
	}
	if err := d.clusters.Init(clusters, d.refs); err != nil {
		return err
	}
	if d.state < ClustersInitialized {
		d.state = ClustersInitialized
	}
	d.engine.Invalidate()

	logging.SessionEvent("clusters_initialized", d.sessionID, "count", len(clusters))
	return nil
}

// SetClusterOrder redefines the total order over cluster ids. The list must
// be a bijection with the existing clusters.
func (d *Driver) SetClusterOrder(ids []int) error {
	if d.state < ClustersInitialized {
		return errors.NewState(d.state.String(), "set cluster order")
	}
	if err := d.clusters.SetOrder(ids); err != nil {
		return err
	}
	d.engine.Invalidate()

	logging.SessionEvent("cluster_order_set", d.sessionID, "count", len(ids))
	return nil
}

// FetchLocales fetches and caches the locale for every distinct language tag
// carried by a cited reference, plus the style default. Fetches run
// concurrently, at most once per tag; the first failure aborts the bulk
// operation and surfaces once.
func (d *Driver) FetchLocales(ctx context.Context) error {
	if d.state < ClustersInitialized {
		return errors.NewState(d.state.String(), "fetch locales")
	}

	langs := append(d.citedLanguages(), d.style.DefaultLocale)
	if err := d.locales.FetchAll(ctx, d.fetcher, langs); err != nil {
		logging.SessionEvent("locale_fetch_failed", d.sessionID, "error", err.Error())
		return err
	}

	if d.state < LocalesFetched {
		d.state = LocalesFetched
	}
	d.engine.Invalidate()

	logging.SessionEvent("locales_fetched", d.sessionID, "cached", d.locales.CachedCount())
	return nil
}

// Build renders one cluster in the configured output format. It fails with
// a NotReady state error before FetchLocales has completed.
func (d *Driver) Build(clusterID int) (string, error) {
	if !d.Ready() {
		return "", errors.NewState(d.state.String(), "build")
	}
	return d.engine.Build(clusterID)
}

// Built is one rendered cluster.
type Built struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// BuildAll renders every cluster in the current total order.
func (d *Driver) BuildAll() ([]Built, error) {
	if !d.Ready() {
		return nil, errors.NewState(d.state.String(), "build")
	}

	ids := d.clusters.IDs()
	out := make([]Built, 0, len(ids))
	for _, id := range ids {
		text, err := d.engine.Build(id)
		if err != nil {
			return nil, err
		}
		out = append(out, Built{ID: id, Text: text})
	}
	return out, nil
}

// citedLanguages returns the distinct language tags of references cited by
// any cluster. Stored-but-uncited references do not force a fetch.
func (d *Driver) citedLanguages() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, id := range d.clusters.RefIDs() {
		ref, err := d.refs.Get(id)
		if err != nil {
			continue
		}
		if lang := ref.Language(); lang != "" && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
