package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	t.Run("Drafts", func(t *testing.T) {
		if err := store.SaveDraft("c1", "half a thought"); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		if err := store.SaveDraft("c2", "another"); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}

		text, err := store.Draft("c1")
		if err != nil {
			t.Fatalf("Draft failed: %v", err)
		}
		if text != "half a thought" {
			t.Errorf("expected draft %q, got %q", "half a thought", text)
		}

		// Overwrite
		if err := store.SaveDraft("c1", "a whole thought"); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		drafts, err := store.ListDrafts()
		if err != nil {
			t.Fatalf("ListDrafts failed: %v", err)
		}
		if len(drafts) != 2 {
			t.Errorf("expected 2 drafts, got %d", len(drafts))
		}
		if drafts["c1"] != "a whole thought" {
			t.Errorf("expected overwritten draft, got %q", drafts["c1"])
		}

		// Empty text removes the draft
		if err := store.SaveDraft("c2", ""); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		text, err = store.Draft("c2")
		if err != nil {
			t.Fatalf("Draft failed: %v", err)
		}
		if text != "" {
			t.Errorf("expected no draft, got %q", text)
		}

		if err := store.DeleteDraft("c1"); err != nil {
			t.Fatalf("DeleteDraft failed: %v", err)
		}
		// Deleting twice is not an error
		if err := store.DeleteDraft("c1"); err != nil {
			t.Fatalf("DeleteDraft failed: %v", err)
		}
		drafts, err = store.ListDrafts()
		if err != nil {
			t.Fatalf("ListDrafts failed: %v", err)
		}
		if len(drafts) != 0 {
			t.Errorf("expected no drafts, got %v", drafts)
		}
	})

	t.Run("LastActive", func(t *testing.T) {
		last, err := store.LastActive("u1")
		if err != nil {
			t.Fatalf("LastActive failed: %v", err)
		}
		if last != "" {
			t.Errorf("expected nothing for a new user, got %q", last)
		}

		if err := store.SetLastActive("u1", "c1"); err != nil {
			t.Fatalf("SetLastActive failed: %v", err)
		}
		if err := store.SetLastActive("u2", "c7"); err != nil {
			t.Fatalf("SetLastActive failed: %v", err)
		}
		if last, _ := store.LastActive("u1"); last != "c1" {
			t.Errorf("expected c1, got %q", last)
		}
		if last, _ := store.LastActive("u2"); last != "c7" {
			t.Errorf("expected c7, got %q", last)
		}

		if err := store.SetLastActive("u1", ""); err != nil {
			t.Fatalf("SetLastActive failed: %v", err)
		}
		if last, _ := store.LastActive("u1"); last != "" {
			t.Errorf("expected cleared, got %q", last)
		}
	})
}

func TestStoragePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.SaveDraft("c1", "survives restarts"); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	if err := store.SetLastActive("u1", "c1"); err != nil {
		t.Fatalf("SetLastActive failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	if text, _ := store.Draft("c1"); text != "survives restarts" {
		t.Errorf("draft lost after reopen, got %q", text)
	}
	if last, _ := store.LastActive("u1"); last != "c1" {
		t.Errorf("last active lost after reopen, got %q", last)
	}
}

func TestDraftEncoding(t *testing.T) {
	in := &DBDraft{ConversationID: "c1", Text: "hi", UpdatedAt: 42}
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	var out DBDraft
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if out != *in {
		t.Errorf("expected %+v, got %+v", *in, out)
	}
	if string(out.Key()) != "c1" {
		t.Errorf("unexpected key %q", out.Key())
	}
}
