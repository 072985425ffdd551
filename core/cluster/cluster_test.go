package cluster

import (
	"reflect"
	"testing"

	"github.com/citekit/citekit/core/errors"
)

// fakeRefs satisfies RefChecker with a fixed id set.
type fakeRefs map[string]bool

func (f fakeRefs) Has(id string) bool { return f[id] }

var knownRefs = fakeRefs{"citekey": true, "other": true, "third": true}

func TestInit(t *testing.T) {
	g := NewGraph()
	clusters := []Cluster{
		{ID: 1, Cites: []Cite{{RefID: "citekey"}, {RefID: "other"}}},
		{ID: 2, Cites: []Cite{{RefID: "third", Locator: "p. 3"}}},
	}

	if err := g.Init(clusters, knownRefs); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}

	got, err := g.Get(2)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Cites[0].Locator != "p. 3" {
		t.Errorf("cite locator = %q, want %q", got.Cites[0].Locator, "p. 3")
	}

	if got, want := g.IDs(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v (insertion order before SetOrder)", got, want)
	}
}

func TestInitReplacesExistingSet(t *testing.T) {
	g := NewGraph()
	if err := g.Init([]Cluster{{ID: 1, Cites: []Cite{{RefID: "citekey"}}}}, knownRefs); err != nil {
		t.Fatalf("first Init() error: %v", err)
	}
	if err := g.Init([]Cluster{{ID: 9, Cites: []Cite{{RefID: "other"}}}}, knownRefs); err != nil {
		t.Fatalf("second Init() error: %v", err)
	}

	if _, err := g.Get(1); err == nil {
		t.Error("cluster 1 should be gone after re-Init")
	}
	if _, err := g.Get(9); err != nil {
		t.Errorf("cluster 9 should exist: %v", err)
	}
}

func TestInitUnknownReference(t *testing.T) {
	g := NewGraph()
	err := g.Init([]Cluster{{ID: 1, Cites: []Cite{{RefID: "never-inserted"}}}}, knownRefs)
	if err == nil {
		t.Fatal("Init() should fail on a cite to an unknown reference id")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error %v should unwrap to ErrNotFound", err)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "never-inserted" {
		t.Errorf("error should name the unknown id, got %v", err)
	}
	if g.Len() != 0 {
		t.Error("a failed Init must not modify the graph")
	}
}

func TestInitInvalidClusters(t *testing.T) {
	tests := []struct {
		name     string
		clusters []Cluster
	}{
		{"duplicate id", []Cluster{
			{ID: 1, Cites: []Cite{{RefID: "citekey"}}},
			{ID: 1, Cites: []Cite{{RefID: "other"}}},
		}},
		{"no cites", []Cluster{{ID: 1}}},
		{"empty ref id", []Cluster{{ID: 1, Cites: []Cite{{}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			err := g.Init(tt.clusters, knownRefs)
			if err == nil {
				t.Fatal("Init() should fail")
			}
			if !errors.Is(err, errors.ErrInvalidInput) && !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func TestSetOrder(t *testing.T) {
	g := NewGraph()
	clusters := []Cluster{
		{ID: 1, Cites: []Cite{{RefID: "citekey"}}},
		{ID: 2, Cites: []Cite{{RefID: "other"}}},
		{ID: 3, Cites: []Cite{{RefID: "third"}}},
	}
	if err := g.Init(clusters, knownRefs); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	if err := g.SetOrder([]int{3, 1, 2}); err != nil {
		t.Fatalf("SetOrder() error: %v", err)
	}
	if got, want := g.IDs(), []int{3, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}

	ordered := g.Ordered()
	if len(ordered) != 3 || ordered[0].ID != 3 {
		t.Errorf("Ordered() first = %d, want 3", ordered[0].ID)
	}
}

func TestSetOrderMismatch(t *testing.T) {
	newGraph := func(t *testing.T) *Graph {
		t.Helper()
		g := NewGraph()
		clusters := []Cluster{
			{ID: 1, Cites: []Cite{{RefID: "citekey"}}},
			{ID: 2, Cites: []Cite{{RefID: "other"}}},
		}
		if err := g.Init(clusters, knownRefs); err != nil {
			t.Fatalf("Init() error: %v", err)
		}
		return g
	}

	tests := []struct {
		name        string
		order       []int
		wantMissing []int
		wantExtra   []int
	}{
		{"missing id", []int{1}, []int{2}, nil},
		{"extra id", []int{1, 2, 7}, nil, []int{7}},
		{"duplicate id", []int{1, 2, 2}, nil, []int{2}},
		{"empty order", []int{}, []int{1, 2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			err := g.SetOrder(tt.order)
			if err == nil {
				t.Fatal("SetOrder() should fail")
			}
			if !errors.Is(err, errors.ErrOrderMismatch) {
				t.Errorf("error %v should unwrap to ErrOrderMismatch", err)
			}
			var oe *errors.OrderError
			if !errors.As(err, &oe) {
				t.Fatalf("error %v should be an OrderError", err)
			}
			sortInts := func(s []int) []int { return append([]int(nil), s...) }
			if len(oe.Missing) != len(tt.wantMissing) || len(oe.Extra) != len(tt.wantExtra) {
				t.Errorf("OrderError = missing %v extra %v, want missing %v extra %v",
					sortInts(oe.Missing), sortInts(oe.Extra), tt.wantMissing, tt.wantExtra)
			}

			// A failed SetOrder must not disturb the previous order.
			if got, want := g.IDs(), []int{1, 2}; !reflect.DeepEqual(got, want) {
				t.Errorf("IDs() after failed SetOrder = %v, want %v", got, want)
			}
		})
	}
}

func TestRefIDs(t *testing.T) {
	g := NewGraph()
	clusters := []Cluster{
		{ID: 1, Cites: []Cite{{RefID: "citekey"}, {RefID: "other"}}},
		{ID: 2, Cites: []Cite{{RefID: "citekey"}}},
	}
	if err := g.Init(clusters, knownRefs); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	ids := g.RefIDs()
	if len(ids) != 2 {
		t.Errorf("RefIDs() = %v, want 2 distinct ids", ids)
	}
}

func TestGetNotFound(t *testing.T) {
	g := NewGraph()
	_, err := g.Get(42)
	if err == nil {
		t.Fatal("Get() should fail on an empty graph")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error %v should unwrap to ErrNotFound", err)
	}
}
