package gallery_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gallery-go/internal/gallery"
	"gallery-go/internal/testutil"
)

func upload(names ...string) []gallery.UploadFile {
	files := make([]gallery.UploadFile, len(names))
	for i, name := range names {
		files[i] = gallery.UploadFile{Name: name, Content: []byte("new " + name)}
	}
	return files
}

func TestEngine_UploadBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "photos/a.jpg")
	f.load(t)

	files := upload("a.jpg", "b.jpg", "c.png", "b.jpg", "notes.txt", "../x.jpg")
	results, err := f.engine.Upload(context.Background(), "photos", files)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	wantErr := []error{gallery.ErrDuplicate, nil, nil, gallery.ErrDuplicate, gallery.ErrUnsupportedType, gallery.ErrInvalidName}
	for i, r := range results {
		if wantErr[i] == nil {
			if r.Err != nil || r.Hash == "" {
				t.Errorf("result %d (%s) = %+v, want success", i, r.Name, r)
			}
			continue
		}
		if !errors.Is(r.Err, wantErr[i]) {
			t.Errorf("result %d (%s) error = %v, want %v", i, r.Name, r.Err, wantErr[i])
		}
	}

	if got := f.store.Paths(testutil.MethodWrite); len(got) != 2 {
		t.Errorf("writes = %v, want exactly 2", got)
	}
	if got := f.store.Paths(testutil.MethodList); !slices.Equal(got, []string{"photos"}) {
		t.Errorf("list calls = %v, want one reload of photos", got)
	}
	if got := imageNames(f.engine.Index().Images()); !slices.Equal(got, []string{"a.jpg", "b.jpg", "c.png"}) {
		t.Errorf("Images() = %v", got)
	}

	last, _ := f.ops.Last()
	if last.Kind != gallery.OpUpload || last.State != gallery.StateFailed || last.Done != 2 || last.Total != 6 {
		t.Errorf("last operation = %+v, want failed upload 2 of 6", last)
	}
	if n := f.notes.Count(gallery.LevelSuccess); n != 2 {
		t.Errorf("success notifications = %d, want 2", n)
	}
	if n := f.notes.Count(gallery.LevelError); n != 4 {
		t.Errorf("error notifications = %d, want 4", n)
	}
}

func TestEngine_UploadDuplicateOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "photos/a.jpg")
	f.load(t)
	before := f.engine.Index().Images()

	results, err := f.engine.Upload(context.Background(), "photos", upload("a.jpg"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	var dup *gallery.DuplicateError
	if !errors.As(results[0].Err, &dup) || dup.Name != "a.jpg" {
		t.Errorf("result error = %v, want duplicate a.jpg", results[0].Err)
	}
	if n := f.store.Count(testutil.MethodWrite); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
	if n := f.store.Count(testutil.MethodList); n != 0 {
		t.Errorf("list calls = %d, want no reload", n)
	}
	if after := f.engine.Index().Images(); !slices.Equal(after, before) {
		t.Errorf("Images() changed from %v to %v", before, after)
	}
}

func TestEngine_UploadIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "photos/a.jpg")
	f.load(t)
	f.store.FailPath(testutil.MethodWrite, "photos/b.jpg", errBoom)

	results, err := f.engine.Upload(context.Background(), "photos", upload("b.jpg", "c.jpg"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !errors.Is(results[0].Err, gallery.ErrTransport) {
		t.Errorf("b.jpg error = %v, want ErrTransport", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("c.jpg error = %v", results[1].Err)
	}
	if got := imageNames(f.engine.Index().Images()); !slices.Equal(got, []string{"a.jpg", "c.jpg"}) {
		t.Errorf("Images() = %v, want [a.jpg c.jpg]", got)
	}
	if got := f.store.Paths(testutil.MethodList); len(got) != 1 {
		t.Errorf("list calls = %v, want one reload", got)
	}
}

func TestEngine_UploadAllFailedSkipsReload(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "photos/a.jpg")
	f.load(t)
	f.store.FailPath(testutil.MethodWrite, "photos/b.jpg", errBoom)

	if _, err := f.engine.Upload(context.Background(), "photos", upload("b.jpg")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if n := f.store.Count(testutil.MethodList); n != 0 {
		t.Errorf("list calls = %d, want 0", n)
	}
}

func TestEngine_UploadNeedsActiveFolder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cats/a.jpg", "dogs/b.jpg")
	f.load(t)

	for _, folder := range []string{"", "dogs"} {
		if _, err := f.engine.Upload(context.Background(), folder, upload("c.jpg")); !errors.Is(err, gallery.ErrNoActiveFolder) {
			t.Errorf("Upload(%q) error = %v, want ErrNoActiveFolder", folder, err)
		}
	}
	if n := f.store.Count(testutil.MethodWrite); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestEngine_DeleteImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "photos/a.jpg", "photos/b.jpg")
	f.load(t)

	img, err := f.engine.LookupImage("a.jpg")
	if err != nil {
		t.Fatalf("LookupImage() error = %v", err)
	}
	if err := f.engine.DeleteImage(ctx, img); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	if got := imageNames(f.engine.Index().Images()); !slices.Equal(got, []string{"b.jpg"}) {
		t.Errorf("Images() = %v, want [b.jpg]", got)
	}
	if got := f.backendFiles(t, "photos"); !slices.Equal(got, []string{"b.jpg"}) {
		t.Errorf("backend = %v, want [b.jpg]", got)
	}
	if _, err := f.engine.LookupImage("a.jpg"); !errors.Is(err, gallery.ErrNotFound) {
		t.Errorf("LookupImage(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestEngine_DeleteImageStaleHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "photos/a.jpg", "photos/b.jpg")
	f.load(t)

	if _, err := f.mem.WriteFile(ctx, "photos/b.jpg", []byte("changed elsewhere"), "", "edit"); err != nil {
		t.Fatalf("overwriting b.jpg: %v", err)
	}

	img, _ := f.engine.LookupImage("b.jpg")
	err := f.engine.DeleteImage(ctx, img)
	if err == nil {
		t.Fatal("DeleteImage() with a stale hash succeeded")
	}
	if errors.Is(err, gallery.ErrNotFound) {
		t.Errorf("error = %v, want a non-NotFound rejection", err)
	}
	if !errors.Is(err, gallery.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
	if !f.engine.Index().HasImage("b.jpg") {
		t.Error("b.jpg removed from the image set")
	}
	if got := f.backendFiles(t, "photos"); !slices.Equal(got, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("backend = %v", got)
	}
	if n := f.notes.Count(gallery.LevelError); n != 1 {
		t.Errorf("error notifications = %d, want 1", n)
	}
}
