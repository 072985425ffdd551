// Package cluster maintains the ordered collection of citation clusters and
// their cites into the reference store.
package cluster

import (
	"strconv"
	"sync"

	"github.com/citekit/citekit/core/errors"
)

// Cite points a cluster at one reference, optionally with locator and affix
// metadata. The locator is kept as raw text; rendering parses it on demand.
type Cite struct {
	RefID   string `json:"id"`
	Locator string `json:"locator,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
}

// Cluster is an ordered sequence of cites rendered together as one citation
// instance.
type Cluster struct {
	ID    int    `json:"id"`
	Cites []Cite `json:"cites"`
}

// RefChecker reports whether a reference id exists. The reference store
// satisfies this.
type RefChecker interface {
	Has(id string) bool
}

// Graph holds the full set of clusters and their total order.
type Graph struct {
	mu       sync.RWMutex
	clusters map[int]Cluster
	order    []int
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{clusters: make(map[int]Cluster)}
}

// Init replaces the full set of clusters. It fails without modifying the
// graph if a cluster repeats an id, has no cites, or cites a reference id
// unknown to refs. The initial order is the order of the given list;
// SetOrder redefines it.
func (g *Graph) Init(clusters []Cluster, refs RefChecker) error {
	next := make(map[int]Cluster, len(clusters))
	order := make([]int, 0, len(clusters))

	for _, c := range clusters {
		if _, dup := next[c.ID]; dup {
			return errors.Wrapf(errors.ErrInvalidInput, "duplicate cluster id %d", c.ID)
		}
		if len(c.Cites) == 0 {
			return errors.Wrapf(errors.ErrInvalidInput, "cluster %d has no cites", c.ID)
		}
		for _, cite := range c.Cites {
			if cite.RefID == "" {
				return errors.Wrapf(errors.ErrInvalidInput, "cluster %d has a cite with an empty reference id", c.ID)
			}
			if !refs.Has(cite.RefID) {
				return errors.NewNotFound("reference", cite.RefID)
			}
		}
		next[c.ID] = c
		order = append(order, c.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.clusters = next
	g.order = order
	return nil
}

// SetOrder defines the total order over cluster ids. The id list must be a
// bijection with the existing clusters: every existing cluster exactly once,
// no unknown ids. Violations fail with an OrderError and leave the previous
// order in place.
func (g *Graph) SetOrder(ids []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[int]bool, len(ids))
	var extra []int
	for _, id := range ids {
		if _, ok := g.clusters[id]; !ok || seen[id] {
			extra = append(extra, id)
			continue
		}
		seen[id] = true
	}

	var missing []int
	for id := range g.clusters {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	if len(extra) > 0 || len(missing) > 0 {
		return &errors.OrderError{Missing: missing, Extra: extra}
	}

	g.order = append([]int(nil), ids...)
	return nil
}

// Get looks up a cluster by id.
func (g *Graph) Get(id int) (Cluster, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.clusters[id]
	if !ok {
		return Cluster{}, errors.NewNotFound("cluster", strconv.Itoa(id))
	}
	return c, nil
}

// Ordered returns all clusters in the current total order.
func (g *Graph) Ordered() []Cluster {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Cluster, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.clusters[id])
	}
	return out
}

// IDs returns cluster ids in the current total order.
func (g *Graph) IDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.order...)
}

// Len returns the number of clusters.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clusters)
}

// RefIDs returns the distinct reference ids cited by any cluster.
func (g *Graph) RefIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, c := range g.clusters {
		for _, cite := range c.Cites {
			if !seen[cite.RefID] {
				seen[cite.RefID] = true
				ids = append(ids, cite.RefID)
			}
		}
	}
	return ids
}
