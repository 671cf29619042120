package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"gallery-go/internal/gallery"
)

func TestConsoleNotifier(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	n.Notify(gallery.Notification{Level: gallery.LevelSuccess, Message: `Folder "cats" created`})
	n.Notify(gallery.Notification{Level: gallery.LevelError, Message: "uploading a.png: already exists"})

	want := "Folder \"cats\" created\nerror: uploading a.png: already exists\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestConsoleNotifier_PlainWhenNotTerminal(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	NewConsoleNotifier(&buf).Notify(gallery.Notification{Level: gallery.LevelError, Message: "boom"})
	if got := buf.String(); got != "error: boom\n" {
		t.Errorf("buffer output = %q, want plain text", got)
	}

	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating output file: %v", err)
	}
	NewConsoleNotifier(f).Notify(gallery.Notification{Level: gallery.LevelSuccess, Message: "done"})
	if err := f.Close(); err != nil {
		t.Fatalf("closing output file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Errorf("file output = %q, want no escape codes", data)
	}
}
