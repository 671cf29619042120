package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// redactedKeys name attributes whose values never reach the log.
var redactedKeys = map[string]bool{
	"token":         true,
	"pass":          true,
	"password":      true,
	"authorization": true,
}

// galleryHandler writes one tab-separated line per record:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// Upload and delete workers log concurrently, so handlers derived from one
// another share a lock around the writer.
type galleryHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	runID  string
	level  slog.Level
	prefix string
	attrs  []slog.Attr
}

func newGalleryHandler(w io.Writer, runID string, level slog.Level) *galleryHandler {
	return &galleryHandler{mu: &sync.Mutex{}, w: w, runID: runID, level: level}
}

func (h *galleryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *galleryHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteByte('\t')
	b.WriteString(r.Level.String())
	b.WriteByte('\t')
	b.WriteString(h.runID)
	b.WriteByte('\t')
	b.WriteString(flatten(r.Message))

	for _, a := range h.attrs {
		appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *galleryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *galleryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}

	b.WriteByte('\t')
	b.WriteString(key)
	b.WriteByte('=')
	if redactedKeys[strings.ToLower(a.Key)] {
		b.WriteString("[redacted]")
		return
	}
	b.WriteString(flatten(a.Value.String()))
}

// flatten keeps a value on one line and inside its column.
func flatten(s string) string {
	if !strings.ContainsAny(s, "\t\n\r") {
		return s
	}
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

// newLogger opens logDir/gallery.log for appending and returns a logger
// writing every level to it. With verbose set, records are mirrored to
// stderr. The returned file must be closed by the caller.
func newLogger(logDir string, runID string, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, "gallery.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	return slog.New(newGalleryHandler(w, runID, slog.LevelDebug)), f, nil
}

// slogAdapter satisfies gallery.Logger with a *slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
