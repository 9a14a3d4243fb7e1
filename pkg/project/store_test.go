package project

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zurustar/blockstage/pkg/actor"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "docs.db")
	s, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func TestStoreOpenCreatesFile(t *testing.T) {
	_, dbPath := openTestStore(t)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.LoadDocument("cat"); !errors.Is(err, ErrNoDocument) {
		t.Errorf("LoadDocument() on empty store error = %v, want ErrNoDocument", err)
	}

	if err := s.SaveDocument("cat", []byte{1, 2, 3}); err != nil {
		t.Fatalf("SaveDocument() failed: %v", err)
	}
	if err := s.SaveDocument("cat", []byte{4, 5}); err != nil {
		t.Fatalf("SaveDocument() overwrite failed: %v", err)
	}
	if err := s.SaveDocument("dog", []byte{9}); err != nil {
		t.Fatalf("SaveDocument() failed: %v", err)
	}

	got, err := s.LoadDocument("cat")
	if err != nil {
		t.Fatalf("LoadDocument() failed: %v", err)
	}
	if !bytes.Equal(got, []byte{4, 5}) {
		t.Errorf("LoadDocument() = %v, want [4 5]", got)
	}

	docs, err := s.Documents()
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(Documents()) = %d, want 2", len(docs))
	}
}

func TestStoreReopen(t *testing.T) {
	s, dbPath := openTestStore(t)
	if err := s.SaveDocument("cat", []byte("doc")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	got, err := s2.LoadDocument("cat")
	if err != nil || string(got) != "doc" {
		t.Errorf("LoadDocument() after reopen = %q, %v", got, err)
	}
}

func TestStoreApplyOverridesScripts(t *testing.T) {
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore(:memory:) failed: %v", err)
	}
	defer s.Close()

	cat := actor.New("cat", "Cat")
	cat.Script = []byte("yaml")
	dog := actor.New("dog", "Dog")
	dog.Script = []byte("yaml")

	if err := s.SaveDocument("cat", []byte("stored")); err != nil {
		t.Fatal(err)
	}
	n, err := s.Apply([]*actor.Actor{cat, dog})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Apply() = %d, want 1", n)
	}
	if string(cat.Script) != "stored" {
		t.Errorf("cat.Script = %q, want stored", cat.Script)
	}
	if string(dog.Script) != "yaml" {
		t.Errorf("dog.Script = %q, want yaml", dog.Script)
	}
}
