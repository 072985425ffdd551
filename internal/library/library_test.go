package library

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/reference"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "refs.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestUpsertAndGet(t *testing.T) {
	lib := openTestLibrary(t)

	ref := reference.New("citekey", map[string]string{"title": "Hello", "language": "fr-FR"})
	if err := lib.Upsert(ref); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := lib.Get("citekey")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ID != "citekey" || got.Field("title") != "Hello" || got.Language() != "fr-FR" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	lib := openTestLibrary(t)
	if _, err := lib.Get("nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Upsert(reference.New("citekey", map[string]string{"title": "First"})); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := lib.Upsert(reference.New("citekey", map[string]string{"title": "Second"})); err != nil {
		t.Fatalf("Upsert() overwrite error: %v", err)
	}

	got, err := lib.Get("citekey")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Field("title") != "Second" {
		t.Errorf("title after overwrite = %q, want Second", got.Field("title"))
	}

	n, err := lib.Len()
	if err != nil {
		t.Fatalf("Len() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestUpsertValidatesBeforeWriting(t *testing.T) {
	lib := openTestLibrary(t)

	err := lib.Upsert(
		reference.New("good", map[string]string{"title": "Fine"}),
		reference.New("", nil),
	)
	if err == nil {
		t.Fatal("Upsert() should fail on an invalid reference")
	}

	// The batch fails as a whole: the valid reference was not written.
	n, err := lib.Len()
	if err != nil {
		t.Fatalf("Len() error: %v", err)
	}
	if n != 0 {
		t.Errorf("Len() = %d after failed batch, want 0", n)
	}
}

func TestDelete(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Upsert(reference.New("citekey", nil)); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := lib.Delete("citekey"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := lib.Delete("citekey"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListAndIDs(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Upsert(
		reference.New("b", map[string]string{"title": "B", "language": "de-DE"}),
		reference.New("a", map[string]string{"title": "A", "language": "fr-FR"}),
		reference.New("c", map[string]string{"title": "C", "language": "fr-FR"}),
	); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	ids, err := lib.IDs()
	if err != nil {
		t.Fatalf("IDs() error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("IDs() = %v", ids)
	}

	refs, err := lib.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(refs) != 3 || refs[0].ID != "a" || refs[2].ID != "c" {
		t.Errorf("List() = %+v", refs)
	}

	langs, err := lib.Languages()
	if err != nil {
		t.Fatalf("Languages() error: %v", err)
	}
	if !reflect.DeepEqual(langs, []string{"de-DE", "fr-FR"}) {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestLoadInto(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Upsert(
		reference.New("a", map[string]string{"title": "A"}),
		reference.New("b", map[string]string{"title": "B"}),
	); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	store := reference.NewStore()
	n, err := lib.LoadInto(store)
	if err != nil {
		t.Fatalf("LoadInto() error: %v", err)
	}
	if n != 2 || store.Len() != 2 {
		t.Errorf("LoadInto() = %d, store.Len() = %d, want 2 and 2", n, store.Len())
	}
	if !store.Has("a") || !store.Has("b") {
		t.Error("store should contain both references")
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.db")

	lib, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := lib.Upsert(reference.New("citekey", map[string]string{"title": "Hello"})); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("citekey")
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if got.Field("title") != "Hello" {
		t.Errorf("title after reopen = %q", got.Field("title"))
	}
}

func TestDriverType(t *testing.T) {
	if dt := DriverType(); dt != "purego" && dt != "cgo" {
		t.Errorf("DriverType() = %q", dt)
	}
}
