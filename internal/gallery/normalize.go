package gallery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName maps an arbitrary user-entered folder name to a folder
// identifier made of [a-z0-9-]. Diacritics are stripped, "đ" becomes "d"
// and every other character is dropped. The result may be empty; callers
// reject that before issuing any backend call.
func NormalizeName(raw string) string {
	lowered := strings.ToLower(raw)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r == 'đ':
			b.WriteByte('d')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FolderID normalizes raw and rejects names that normalize to nothing.
func FolderID(raw string) (string, error) {
	id := NormalizeName(raw)
	if id == "" {
		return "", ErrInvalidName
	}
	return id, nil
}
