package contents

import (
	"context"
	"errors"
	"testing"
	"time"

	"gallery-go/internal/gallery"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// testStoreBehaviour runs the behaviour every local ContentStore shares.
func testStoreBehaviour(t *testing.T, newStore func(t *testing.T) gallery.ContentStore) {
	ctx := context.Background()

	t.Run("empty root lists nothing", func(t *testing.T) {
		s := newStore(t)
		entries, err := s.ListDirectory(ctx, "")
		if err != nil {
			t.Fatalf("ListDirectory() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("len(entries) = %d, want 0", len(entries))
		}
	})

	t.Run("missing directory is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ListDirectory(ctx, "nope")
		if !errors.Is(err, gallery.ErrNotFound) {
			t.Errorf("ListDirectory() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("write creates directories", func(t *testing.T) {
		s := newStore(t)
		hash, err := s.WriteFile(ctx, "photos/.keep", nil, "", "Create folder 'photos'")
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if hash != BlobHash(nil) {
			t.Errorf("hash = %q, want %q", hash, BlobHash(nil))
		}
		if _, err := s.WriteFile(ctx, "photos/cat.png", []byte("meow"), "", "Add image cat.png"); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		root, err := s.ListDirectory(ctx, "")
		if err != nil {
			t.Fatalf("ListDirectory(root) error = %v", err)
		}
		if len(root) != 1 || root[0].Name != "photos" || !root[0].IsDir() {
			t.Fatalf("root = %+v, want one dir photos", root)
		}

		entries, err := s.ListDirectory(ctx, "photos")
		if err != nil {
			t.Fatalf("ListDirectory(photos) error = %v", err)
		}
		names := map[string]gallery.Entry{}
		for _, e := range entries {
			names[e.Name] = e
		}
		cat, ok := names["cat.png"]
		if !ok || len(entries) != 2 {
			t.Fatalf("entries = %+v, want .keep and cat.png", entries)
		}
		if cat.Path != "photos/cat.png" || cat.Hash != BlobHash([]byte("meow")) || cat.Size != 4 {
			t.Errorf("cat.png = %+v", cat)
		}
		if cat.URL == "" {
			t.Error("cat.png has no URL")
		}
	})

	t.Run("read returns content and hash", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.WriteFile(ctx, "a/b.jpg", []byte("data"), "", "add"); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		got, err := s.ReadFile(ctx, "a/b.jpg")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got.Content) != "data" || got.Hash != BlobHash([]byte("data")) || got.Path != "a/b.jpg" {
			t.Errorf("ReadFile() = %+v", got)
		}

		if _, err := s.ReadFile(ctx, "a/missing.jpg"); !errors.Is(err, gallery.ErrNotFound) {
			t.Errorf("ReadFile(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("write without hash overwrites", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.WriteFile(ctx, "a/b.jpg", []byte("one"), "", "add"); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := s.WriteFile(ctx, "a/b.jpg", []byte("two"), "", "add"); err != nil {
			t.Fatalf("second WriteFile() error = %v", err)
		}
		got, err := s.ReadFile(ctx, "a/b.jpg")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got.Content) != "two" {
			t.Errorf("content = %q, want %q", got.Content, "two")
		}
	})

	t.Run("write with stale hash conflicts", func(t *testing.T) {
		s := newStore(t)
		first, err := s.WriteFile(ctx, "a/b.jpg", []byte("one"), "", "add")
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := s.WriteFile(ctx, "a/b.jpg", []byte("two"), first, "update"); err != nil {
			t.Fatalf("WriteFile() with current hash error = %v", err)
		}
		_, err = s.WriteFile(ctx, "a/b.jpg", []byte("three"), first, "update")
		if !errors.Is(err, gallery.ErrConflict) {
			t.Errorf("WriteFile() with stale hash error = %v, want ErrConflict", err)
		}
	})

	t.Run("delete requires current hash", func(t *testing.T) {
		s := newStore(t)
		hash, err := s.WriteFile(ctx, "a/b.jpg", []byte("one"), "", "add")
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		err = s.DeleteFile(ctx, "a/b.jpg", BlobHash([]byte("other")), "delete")
		if !errors.Is(err, gallery.ErrConflict) {
			t.Fatalf("DeleteFile() with stale hash error = %v, want ErrConflict", err)
		}
		if errors.Is(err, gallery.ErrNotFound) {
			t.Error("stale hash reported as not found")
		}

		if err := s.DeleteFile(ctx, "a/b.jpg", hash, "delete"); err != nil {
			t.Fatalf("DeleteFile() error = %v", err)
		}
		if _, err := s.ListDirectory(ctx, "a"); !errors.Is(err, gallery.ErrNotFound) {
			t.Errorf("ListDirectory() of emptied dir error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteFile(ctx, "a/b.jpg", hash, "delete"); !errors.Is(err, gallery.ErrNotFound) {
			t.Errorf("second DeleteFile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("history of missing path is empty", func(t *testing.T) {
		s := newStore(t)
		h, err := s.ListHistory(ctx, "a/none.png", 1)
		if err != nil {
			t.Fatalf("ListHistory() error = %v", err)
		}
		if len(h) != 0 {
			t.Errorf("len(history) = %d, want 0", len(h))
		}
	})

	t.Run("history has a time", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.WriteFile(ctx, "a/b.jpg", []byte("x"), "", "add"); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		h, err := s.ListHistory(ctx, "a/b.jpg", 1)
		if err != nil {
			t.Fatalf("ListHistory() error = %v", err)
		}
		if len(h) != 1 || h[0].Time.IsZero() {
			t.Errorf("history = %+v, want one entry with a time", h)
		}
	})

	t.Run("rejects relative segments", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.WriteFile(ctx, "a/../b.jpg", []byte("x"), "", "add"); err == nil {
			t.Error("WriteFile() with .. segment expected error")
		}
	})

	t.Run("verify", func(t *testing.T) {
		if err := newStore(t).Verify(ctx); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})
}
