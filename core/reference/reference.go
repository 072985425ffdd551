// Package reference holds bibliographic entries keyed by citation key.
package reference

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/citekit/citekit/core/errors"
)

// Reference is one bibliographic entry. Fields holds every bibliographic
// field by CSL variable name; ID is kept separate because it is the store
// key.
type Reference struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// New creates a Reference with the given id and field map. The map is
// copied; nil is allowed.
func New(id string, fields map[string]string) Reference {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Reference{ID: id, Fields: copied}
}

// Field returns the named bibliographic field, or "".
func (r Reference) Field(name string) string {
	return r.Fields[name]
}

// Title returns the title field.
func (r Reference) Title() string {
	return r.Fields["title"]
}

// Language returns the reference's language tag, or "".
func (r Reference) Language() string {
	return r.Fields["language"]
}

// Validate checks that the reference can be stored.
func (r Reference) Validate() error {
	if r.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "reference has an empty id")
	}
	return nil
}

// Store is an id-indexed collection of references. Re-inserting an existing
// id overwrites the prior entry (last-write-wins upsert).
type Store struct {
	mu   sync.RWMutex
	refs map[string]Reference
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{refs: make(map[string]Reference)}
}

// Insert validates and upserts the given references. On a validation error
// nothing is inserted.
func (s *Store) Insert(refs ...Reference) error {
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.refs[ref.ID] = ref
	}
	return nil
}

// Get looks up a reference by id.
func (s *Store) Get(id string) (Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.refs[id]
	if !ok {
		return Reference{}, errors.NewNotFound("reference", id)
	}
	return ref, nil
}

// Has reports whether the store contains id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refs[id]
	return ok
}

// Len returns the number of stored references.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// IDs returns the sorted ids of all stored references.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Languages returns the sorted distinct language tags across all stored
// references, omitting references with no language field.
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var langs []string
	for _, ref := range s.refs {
		lang := ref.Language()
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DecodeJSON decodes a CSL-JSON array of references. Scalar fields (strings,
// numbers, booleans) are kept; structured fields such as name and date
// arrays are outside this engine's variable set and are skipped.
func DecodeJSON(r io.Reader) ([]Reference, error) {
	var raw []map[string]interface{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewParse("CSL-JSON", "", err.Error())
	}

	refs := make([]Reference, 0, len(raw))
	for i, entry := range raw {
		fields := make(map[string]string)
		var id string
		for key, value := range entry {
			text, ok := scalarString(value)
			if !ok {
				continue
			}
			if key == "id" {
				id = text
				continue
			}
			fields[key] = text
		}
		if id == "" {
			return nil, errors.NewParse("CSL-JSON", "", fmt.Sprintf("entry %d has no id", i))
		}
		refs = append(refs, Reference{ID: id, Fields: fields})
	}
	return refs, nil
}

func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
