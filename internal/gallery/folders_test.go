package gallery_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gallery-go/internal/contents"
	"gallery-go/internal/gallery"
	"gallery-go/internal/testutil"
)

func TestEngine_CreateFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.load(t)

	id, err := f.engine.CreateFolder(ctx, "Ảnh Đẹp")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	if id != "anhdep" {
		t.Errorf("id = %q, want anhdep", id)
	}
	if got := f.store.Paths(testutil.MethodWrite); !slices.Equal(got, []string{"anhdep/.keep"}) {
		t.Errorf("writes = %v, want the placeholder only", got)
	}
	if f.engine.Index().Active() != "anhdep" {
		t.Errorf("Active() = %q, want anhdep", f.engine.Index().Active())
	}

	var states []gallery.OperationState
	for _, op := range f.ops.Transitions() {
		if op.Kind != gallery.OpCreateFolder || op.ID != "op-1" {
			t.Errorf("unexpected operation %s %s", op.ID, op.Kind)
		}
		states = append(states, op.State)
	}
	want := []gallery.OperationState{gallery.StateIdle, gallery.StateInProgress, gallery.StateCommitted}
	if !slices.Equal(states, want) {
		t.Errorf("transitions = %v, want %v", states, want)
	}
	if n := f.notes.Count(gallery.LevelSuccess); n != 1 {
		t.Errorf("success notifications = %d, want 1", n)
	}
}

func TestEngine_CreateFolderRejected(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "normalizes to nothing", raw: "!!! ???", wantErr: gallery.ErrInvalidName},
		{name: "only diacritics", raw: "̀́", wantErr: gallery.ErrInvalidName},
		{name: "existing folder", raw: "Cats", wantErr: gallery.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "cats/a.jpg")
			f.load(t)

			_, err := f.engine.CreateFolder(context.Background(), tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateFolder(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if n := f.store.Count(testutil.MethodWrite); n != 0 {
				t.Errorf("writes = %d, want 0", n)
			}
			if n := f.notes.Count(gallery.LevelError); n != 1 {
				t.Errorf("error notifications = %d, want 1", n)
			}
			if got := f.engine.Index().Folders(); !slices.Equal(got, []string{"cats"}) {
				t.Errorf("Folders() = %v, want [cats]", got)
			}
		})
	}
}

func TestEngine_CreateFolderWriteFails(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.store.FailNth(testutil.MethodWrite, 1, errBoom)

	if _, err := f.engine.CreateFolder(context.Background(), "cats"); !errors.Is(err, gallery.ErrTransport) {
		t.Fatalf("CreateFolder() error = %v, want ErrTransport", err)
	}
	if f.engine.Index().HasFolder("cats") {
		t.Error("folder added although the store rejected it")
	}
	last, _ := f.ops.Last()
	if last.State != gallery.StateFailed {
		t.Errorf("last state = %s, want failed", last.State)
	}
}

func TestEngine_FolderSetFollowsBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "alpha/x.jpg")
	f.load(t)

	steps := []struct {
		name string
		run  func() error
	}{
		{"create beta", func() error { _, err := f.engine.CreateFolder(ctx, "beta"); return err }},
		{"create gamma", func() error { _, err := f.engine.CreateFolder(ctx, "Gamma"); return err }},
		{"rename alpha", func() error { _, err := f.engine.RenameFolder(ctx, "alpha", "delta"); return err }},
		{"delete beta", func() error { return f.engine.DeleteFolder(ctx, "beta") }},
		{"rename empty gamma", func() error { _, err := f.engine.RenameFolder(ctx, "gamma", "epsilon"); return err }},
		{"delete delta", func() error { return f.engine.DeleteFolder(ctx, "delta") }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		local := f.engine.Index().Folders()
		backend := f.backendFolders(t)
		if !slices.Equal(local, backend) {
			t.Fatalf("after %s: folders = %v, backend = %v", step.name, local, backend)
		}
	}

	if got := f.engine.Index().Folders(); !slices.Equal(got, []string{"epsilon"}) {
		t.Errorf("final folders = %v, want [epsilon]", got)
	}
}

func TestEngine_RenameFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "photos/a.jpg", "photos/b.jpg")
	f.load(t)

	newID, err := f.engine.RenameFolder(ctx, "photos", "Fotos")
	if err != nil {
		t.Fatalf("RenameFolder() error = %v", err)
	}
	if newID != "fotos" {
		t.Errorf("newID = %q, want fotos", newID)
	}

	if _, err := f.mem.ListDirectory(ctx, "photos"); !errors.Is(err, gallery.ErrNotFound) {
		t.Errorf("listing photos error = %v, want ErrNotFound", err)
	}
	for _, name := range []string{"a.jpg", "b.jpg"} {
		file, err := f.mem.ReadFile(ctx, "fotos/"+name)
		if err != nil {
			t.Fatalf("reading fotos/%s: %v", name, err)
		}
		if want := "content of photos/" + name; string(file.Content) != want {
			t.Errorf("fotos/%s = %q, want %q", name, file.Content, want)
		}
		if file.Hash != contents.BlobHash(file.Content) {
			t.Errorf("fotos/%s hash = %s, want the blob hash of its content", name, file.Hash)
		}
	}

	idx := f.engine.Index()
	if got := idx.Folders(); !slices.Equal(got, []string{"fotos"}) {
		t.Errorf("Folders() = %v, want [fotos]", got)
	}
	if idx.Active() != "fotos" {
		t.Errorf("Active() = %q, want fotos", idx.Active())
	}
	if got := imageNames(idx.Images()); !slices.Equal(got, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("Images() = %v", got)
	}

	last, _ := f.ops.Last()
	if last.Kind != gallery.OpRenameFolder || last.State != gallery.StateCommitted || last.Done != 2 || last.Total != 2 {
		t.Errorf("last operation = %+v", last)
	}
}

func TestEngine_RenameFolderPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "photos/a.jpg", "photos/b.jpg", "photos/c.jpg", "photos/d.jpg")
	f.load(t)
	f.store.FailNth(testutil.MethodWrite, 3, errBoom)

	_, err := f.engine.RenameFolder(ctx, "photos", "fotos")
	var moveErr *gallery.MoveError
	if !errors.As(err, &moveErr) {
		t.Fatalf("RenameFolder() error = %v, want *MoveError", err)
	}
	if moveErr.Moved != 2 || moveErr.Total != 4 {
		t.Errorf("moved %d of %d, want 2 of 4", moveErr.Moved, moveErr.Total)
	}
	if !errors.Is(err, gallery.ErrTransport) {
		t.Errorf("error = %v, want to wrap ErrTransport", err)
	}

	if got := f.backendFiles(t, "fotos"); !slices.Equal(got, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("fotos = %v, want [a.jpg b.jpg]", got)
	}
	if got := f.backendFiles(t, "photos"); !slices.Equal(got, []string{"c.jpg", "d.jpg"}) {
		t.Errorf("photos = %v, want [c.jpg d.jpg]", got)
	}

	want := []string{"fotos", "photos"}
	if got := f.engine.Index().Folders(); !slices.Equal(got, want) {
		t.Errorf("Folders() after failure = %v, want %v", got, want)
	}
	if err := f.engine.LoadFolders(ctx); err != nil {
		t.Fatalf("LoadFolders() error = %v", err)
	}
	if got := f.engine.Index().Folders(); !slices.Equal(got, want) {
		t.Errorf("Folders() after reload = %v, want %v", got, want)
	}

	last, _ := f.ops.Last()
	if last.State != gallery.StateFailed || last.Done != 2 {
		t.Errorf("last operation = %+v, want failed after 2", last)
	}
}

func TestEngine_RenameFolderRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cats/a.jpg", "dogs/b.jpg")
	f.load(t)

	if _, err := f.engine.RenameFolder(context.Background(), "cats", "DOGS"); !errors.Is(err, gallery.ErrDuplicate) {
		t.Errorf("RenameFolder(onto dogs) error = %v, want ErrDuplicate", err)
	}
	if _, err := f.engine.RenameFolder(context.Background(), "cats", "@@"); !errors.Is(err, gallery.ErrInvalidName) {
		t.Errorf("RenameFolder(@@) error = %v, want ErrInvalidName", err)
	}
	if n := f.store.Count(testutil.MethodList); n != 0 {
		t.Errorf("list calls = %d, want 0", n)
	}

	id, err := f.engine.RenameFolder(context.Background(), "cats", "Cats")
	if err != nil || id != "cats" {
		t.Errorf("RenameFolder(same id) = %q, %v", id, err)
	}
	if n := f.store.Count(testutil.MethodWrite); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestEngine_RenameLegacyPlaceholderFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "cats/a.jpg", "drafts/.gitkeep")
	f.load(t)

	if _, err := f.engine.RenameFolder(ctx, "drafts", "sketches"); err != nil {
		t.Fatalf("RenameFolder() error = %v", err)
	}
	if n := f.store.Count(testutil.MethodRead); n != 0 {
		t.Errorf("reads = %d, want 0", n)
	}
	if got := f.store.Paths(testutil.MethodWrite); !slices.Equal(got, []string{"sketches/.keep"}) {
		t.Errorf("writes = %v, want [sketches/.keep]", got)
	}
	if got := f.store.Paths(testutil.MethodDelete); !slices.Equal(got, []string{"drafts/.gitkeep"}) {
		t.Errorf("deletes = %v, want [drafts/.gitkeep]", got)
	}
	if got := f.backendFolders(t); !slices.Equal(got, []string{"cats", "sketches"}) {
		t.Errorf("backend folders = %v, want [cats sketches]", got)
	}
}

func TestEngine_RenameMissingFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "cats/a.jpg")
	f.load(t)

	_, err := f.engine.RenameFolder(ctx, "ghost", "phantom")
	if !errors.Is(err, gallery.ErrNotFound) {
		t.Fatalf("RenameFolder(ghost) error = %v, want ErrNotFound", err)
	}
	if n := f.store.Count(testutil.MethodWrite); n != 0 {
		t.Errorf("writes = %v, want none", f.store.Paths(testutil.MethodWrite))
	}
	if got := f.backendFolders(t); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("backend folders = %v, want [cats]", got)
	}
	if got := f.engine.Index().Folders(); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("Folders() = %v, want [cats]", got)
	}
	if got := f.ops.Transitions(); len(got) != 0 {
		t.Errorf("operations = %+v, want none", got)
	}
	if n := f.notes.Count(gallery.LevelError); n != 1 {
		t.Errorf("error notifications = %d, want 1", n)
	}
}

func TestEngine_RenameVanishedFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "cats/a.jpg")
	f.load(t)
	// Deleted elsewhere after the folder set was loaded.
	f.engine.Index().AddFolder("ghost")

	_, err := f.engine.RenameFolder(ctx, "ghost", "phantom")
	var moveErr *gallery.MoveError
	if !errors.As(err, &moveErr) {
		t.Fatalf("RenameFolder(ghost) error = %v, want *MoveError", err)
	}
	if !errors.Is(err, gallery.ErrNotFound) {
		t.Errorf("error = %v, want to wrap ErrNotFound", err)
	}
	if n := f.store.Count(testutil.MethodWrite); n != 0 {
		t.Errorf("writes = %v, want none", f.store.Paths(testutil.MethodWrite))
	}
	if got := f.backendFolders(t); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("backend folders = %v, want [cats]", got)
	}
	if got := f.engine.Index().Folders(); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("Folders() after resync = %v, want [cats]", got)
	}

	last, _ := f.ops.Last()
	if last.Kind != gallery.OpRenameFolder || last.State != gallery.StateFailed {
		t.Errorf("last operation = %+v, want failed rename", last)
	}
}

func TestEngine_DeleteFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "cats/c.jpg", "photos/a.jpg", "photos/b.jpg", "photos/raw/x.jpg")
	f.load(t)

	if err := f.engine.DeleteFolder(ctx, "photos"); err != nil {
		t.Fatalf("DeleteFolder() error = %v", err)
	}
	if n := f.store.Count(testutil.MethodDelete); n != 3 {
		t.Errorf("deletes = %d, want 3", n)
	}
	if got := f.backendFolders(t); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("backend folders = %v, want [cats]", got)
	}
	if got := f.engine.Index().Folders(); !slices.Equal(got, []string{"cats"}) {
		t.Errorf("Folders() = %v, want [cats]", got)
	}
}

func TestEngine_DeleteActiveFolderSelectsNext(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cats/a.jpg", "dogs/b.jpg")
	f.load(t)

	if err := f.engine.DeleteFolder(context.Background(), "cats"); err != nil {
		t.Fatalf("DeleteFolder() error = %v", err)
	}
	idx := f.engine.Index()
	if idx.Active() != "dogs" {
		t.Errorf("Active() = %q, want dogs", idx.Active())
	}
	if got := imageNames(idx.Images()); !slices.Equal(got, []string{"b.jpg"}) {
		t.Errorf("Images() = %v, want [b.jpg]", got)
	}
}

func TestEngine_DeleteMissingFolder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cats/a.jpg")
	f.load(t)
	f.engine.Index().AddFolder("ghost")

	if err := f.engine.DeleteFolder(context.Background(), "ghost"); err != nil {
		t.Fatalf("DeleteFolder(ghost) error = %v", err)
	}
	if n := f.store.Count(testutil.MethodDelete); n != 0 {
		t.Errorf("deletes = %d, want 0", n)
	}
	if f.engine.Index().HasFolder("ghost") {
		t.Error("ghost still in the folder set")
	}
	if n := f.notes.Count(gallery.LevelSuccess); n != 1 {
		t.Errorf("success notifications = %d, want 1", n)
	}
}

func TestEngine_DeleteFolderPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "photos/a.jpg", "photos/b.jpg", "photos/c.jpg")
	f.load(t)
	f.store.FailNth(testutil.MethodDelete, 2, errBoom)

	err := f.engine.DeleteFolder(context.Background(), "photos")
	var delErr *gallery.DeleteFolderError
	if !errors.As(err, &delErr) {
		t.Fatalf("DeleteFolder() error = %v, want *DeleteFolderError", err)
	}
	if delErr.Deleted != 1 || delErr.Total != 3 {
		t.Errorf("deleted %d of %d, want 1 of 3", delErr.Deleted, delErr.Total)
	}
	if !f.engine.Index().HasFolder("photos") {
		t.Error("photos dropped from the folder set")
	}
	if got := f.backendFiles(t, "photos"); !slices.Equal(got, []string{"b.jpg", "c.jpg"}) {
		t.Errorf("photos = %v, want [b.jpg c.jpg]", got)
	}
}
