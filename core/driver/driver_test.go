package driver

import (
	"context"
	"fmt"
	"testing"

	"github.com/citekit/citekit/core/cluster"
	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/reference"
	"github.com/citekit/citekit/core/render"
)

const testStyle = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="note" version="1.0" default-locale="en-US">
  <citation delimiter="; ">
    <layout>
      <group delimiter=" ">
        <text variable="title"/>
        <text term="edition"/>
      </group>
    </layout>
  </citation>
</style>`

// mapFetcher serves locales from an in-memory map, like the harness mock.
type mapFetcher map[string]string

func (m mapFetcher) FetchLocale(ctx context.Context, lang string) (string, error) {
	text, ok := m[lang]
	if !ok {
		return "", fmt.Errorf("no locale for %s", lang)
	}
	return text, nil
}

var testFetcher = mapFetcher{
	"fr-FR": `<locale xml:lang="fr-FR"><terms><term name="edition">édition (fr)</term></terms></locale>`,
	"en-US": `<locale xml:lang="en-US"><terms><term name="edition">edition</term></terms></locale>`,
}

func newReadyDriver(t *testing.T) *Driver {
	t.Helper()

	d, err := New([]byte(testStyle), testFetcher, render.FormatPlain)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := d.InsertReferences(
		reference.New("citekey", map[string]string{"title": "Hello", "language": "fr-FR"}),
		reference.New("other", map[string]string{"title": "World"}),
	); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}
	if err := d.InitClusters([]cluster.Cluster{
		{ID: 1, Cites: []cluster.Cite{{RefID: "citekey"}}},
		{ID: 2, Cites: []cluster.Cite{{RefID: "other"}}},
	}); err != nil {
		t.Fatalf("InitClusters() error: %v", err)
	}
	if err := d.FetchLocales(context.Background()); err != nil {
		t.Fatalf("FetchLocales() error: %v", err)
	}
	return d
}

func TestNewMalformedStyle(t *testing.T) {
	_, err := New([]byte("<style><citation>"), testFetcher, render.FormatPlain)
	if err == nil {
		t.Fatal("New() should fail on a malformed style")
	}
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error %v should unwrap to ErrInvalidInput", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	d, err := New([]byte(testStyle), testFetcher, render.FormatPlain)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if d.State() != StyleLoaded {
		t.Errorf("state after New = %v, want StyleLoaded", d.State())
	}
	if d.SessionID() == "" {
		t.Error("SessionID should be set")
	}
	if d.Ready() {
		t.Error("driver should not be Ready before locales are fetched")
	}

	if err := d.InsertReferences(reference.New("citekey", map[string]string{"title": "Hello"})); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}
	if d.State() != ReferencesLoaded {
		t.Errorf("state = %v, want ReferencesLoaded", d.State())
	}

	if err := d.InitClusters([]cluster.Cluster{{ID: 1, Cites: []cluster.Cite{{RefID: "citekey"}}}}); err != nil {
		t.Fatalf("InitClusters() error: %v", err)
	}
	if d.State() != ClustersInitialized {
		t.Errorf("state = %v, want ClustersInitialized", d.State())
	}

	if err := d.FetchLocales(context.Background()); err != nil {
		t.Fatalf("FetchLocales() error: %v", err)
	}
	if d.State() != LocalesFetched {
		t.Errorf("state = %v, want LocalesFetched", d.State())
	}
	if !d.Ready() {
		t.Error("driver should be Ready after FetchLocales")
	}
}

func TestOperationsOutOfOrder(t *testing.T) {
	d, err := New([]byte(testStyle), testFetcher, render.FormatPlain)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	assertNotReady := func(name string, opErr error) {
		t.Helper()
		if opErr == nil {
			t.Fatalf("%s should fail before its prerequisite state", name)
		}
		if !errors.Is(opErr, errors.ErrNotReady) {
			t.Errorf("%s error %v should unwrap to ErrNotReady", name, opErr)
		}
	}

	err = d.InitClusters([]cluster.Cluster{{ID: 1, Cites: []cluster.Cite{{RefID: "citekey"}}}})
	assertNotReady("InitClusters", err)

	assertNotReady("SetClusterOrder", d.SetClusterOrder([]int{1}))
	assertNotReady("FetchLocales", d.FetchLocales(context.Background()))

	_, err = d.Build(1)
	assertNotReady("Build", err)

	_, err = d.BuildAll()
	assertNotReady("BuildAll", err)
}

func TestBuild(t *testing.T) {
	d := newReadyDriver(t)

	got, err := d.Build(1)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if want := "Hello édition (fr)"; got != want {
		t.Errorf("Build(1) = %q, want %q", got, want)
	}

	// Determinism: repeated builds with no intervening mutation.
	again, err := d.Build(1)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if again != got {
		t.Errorf("repeated Build differs: %q then %q", got, again)
	}
}

func TestSetClusterOrderAndBuildAll(t *testing.T) {
	d := newReadyDriver(t)

	if err := d.SetClusterOrder([]int{2, 1}); err != nil {
		t.Fatalf("SetClusterOrder() error: %v", err)
	}

	built, err := d.BuildAll()
	if err != nil {
		t.Fatalf("BuildAll() error: %v", err)
	}
	if len(built) != 2 {
		t.Fatalf("BuildAll() returned %d clusters, want 2", len(built))
	}
	if built[0].ID != 2 || built[1].ID != 1 {
		t.Errorf("BuildAll() order = [%d %d], want [2 1]", built[0].ID, built[1].ID)
	}
	if built[0].Text != "World edition" {
		t.Errorf("BuildAll()[0].Text = %q, want %q", built[0].Text, "World edition")
	}
}

func TestSetClusterOrderMismatch(t *testing.T) {
	d := newReadyDriver(t)

	err := d.SetClusterOrder([]int{1, 2, 3})
	if err == nil {
		t.Fatal("SetClusterOrder() should fail on a non-bijective order")
	}
	if !errors.Is(err, errors.ErrOrderMismatch) {
		t.Errorf("error %v should unwrap to ErrOrderMismatch", err)
	}
}

func TestInitClustersUnknownReference(t *testing.T) {
	d, err := New([]byte(testStyle), testFetcher, render.FormatPlain)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := d.InsertReferences(reference.New("citekey", nil)); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}

	err = d.InitClusters([]cluster.Cluster{{ID: 1, Cites: []cluster.Cite{{RefID: "never-inserted"}}}})
	if err == nil {
		t.Fatal("InitClusters() should fail for an unknown reference id")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error %v should unwrap to ErrNotFound", err)
	}
}

func TestFetchFailureThenBuildFails(t *testing.T) {
	failing := mapFetcher{
		"en-US": testFetcher["en-US"],
		// fr-FR deliberately absent: its fetch fails.
	}

	d, err := New([]byte(testStyle), failing, render.FormatPlain)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := d.InsertReferences(reference.New("citekey", map[string]string{"title": "Hello", "language": "fr-FR"})); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}
	if err := d.InitClusters([]cluster.Cluster{{ID: 1, Cites: []cluster.Cite{{RefID: "citekey"}}}}); err != nil {
		t.Fatalf("InitClusters() error: %v", err)
	}

	err = d.FetchLocales(context.Background())
	if err == nil {
		t.Fatal("FetchLocales() should fail when a tag cannot be fetched")
	}
	if !errors.Is(err, errors.ErrFetchFailure) {
		t.Errorf("error %v should unwrap to ErrFetchFailure", err)
	}

	// The session never reached LocalesFetched, so Build fails with
	// NotReady rather than silently rendering without the term.
	_, err = d.Build(1)
	if err == nil {
		t.Fatal("Build() should fail after a failed bulk fetch")
	}
	if !errors.Is(err, errors.ErrNotReady) {
		t.Errorf("error %v should unwrap to ErrNotReady", err)
	}
}

func TestUpsertInvalidatesBuild(t *testing.T) {
	d := newReadyDriver(t)

	before, err := d.Build(1)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if before != "Hello édition (fr)" {
		t.Fatalf("Build() = %q", before)
	}

	if err := d.InsertReferences(reference.New("citekey", map[string]string{"title": "Bonjour", "language": "fr-FR"})); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}

	after, err := d.Build(1)
	if err != nil {
		t.Fatalf("Build() after upsert error: %v", err)
	}
	if want := "Bonjour édition (fr)"; after != want {
		t.Errorf("Build() after upsert = %q, want %q", after, want)
	}
}

func TestBuildNewLanguageRequiresFetch(t *testing.T) {
	d := newReadyDriver(t)

	// A reference in a language never fetched: Build must refuse rather
	// than render without its locale.
	if err := d.InsertReferences(reference.New("de", map[string]string{"title": "Hallo", "language": "de-DE"})); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}
	if err := d.InitClusters([]cluster.Cluster{{ID: 1, Cites: []cluster.Cite{{RefID: "de"}}}}); err != nil {
		t.Fatalf("InitClusters() error: %v", err)
	}

	_, err := d.Build(1)
	if err == nil {
		t.Fatal("Build() should fail for an uncached language")
	}
	if !errors.Is(err, errors.ErrLocaleNotLoaded) {
		t.Errorf("error %v should unwrap to ErrLocaleNotLoaded", err)
	}
}

func TestIndependentDrivers(t *testing.T) {
	a := newReadyDriver(t)
	b := newReadyDriver(t)

	if a.SessionID() == b.SessionID() {
		t.Error("independent drivers must have distinct session ids")
	}

	if err := a.InsertReferences(reference.New("citekey", map[string]string{"title": "Changed", "language": "fr-FR"})); err != nil {
		t.Fatalf("InsertReferences() error: %v", err)
	}

	got, err := b.Build(1)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if want := "Hello édition (fr)"; got != want {
		t.Errorf("driver b sees %q, want %q (no shared state between drivers)", got, want)
	}
}
