package gallery_test

import (
	"errors"
	"regexp"
	"testing"

	"gallery-go/internal/gallery"
)

var folderIDPattern = regexp.MustCompile(`^[a-z0-9-]*$`)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Holiday", want: "holiday"},
		{raw: "Summer 2024", want: "summer2024"},
		{raw: "Ảnh Đẹp", want: "anhdep"},
		{raw: "Đà Lạt", want: "dalat"},
		{raw: "crème-brûlée", want: "creme-brulee"},
		{raw: "a_b.c/d", want: "abcd"},
		{raw: "---", want: "---"},
		{raw: "", want: ""},
		{raw: "́̃", want: ""},
		{raw: "日本", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := gallery.NormalizeName(tt.raw); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func FuzzNormalizeName(f *testing.F) {
	for _, seed := range []string{"", "Ảnh Đẹp 2024", "́", "ǅ", "İstanbul", "Ⅻ", "ß", "x\x00y", "\xff\xfe"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once := gallery.NormalizeName(raw)
		if !folderIDPattern.MatchString(once) {
			t.Fatalf("NormalizeName(%q) = %q, outside [a-z0-9-]", raw, once)
		}
		if twice := gallery.NormalizeName(once); twice != once {
			t.Fatalf("NormalizeName not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	})
}

func TestFolderID(t *testing.T) {
	if _, err := gallery.FolderID("!!!"); !errors.Is(err, gallery.ErrInvalidName) {
		t.Errorf("FolderID(!!!) error = %v, want ErrInvalidName", err)
	}
	id, err := gallery.FolderID("Cats & Dogs")
	if err != nil || id != "catsdogs" {
		t.Errorf("FolderID() = %q, %v", id, err)
	}
}
