package gallery

import (
	"path"
	"strings"
	"time"
)

// PlaceholderName is the marker blob that keeps an empty folder listable.
const PlaceholderName = ".keep"

// legacyPlaceholderName marks empty folders in repositories written by the
// web gallery.
const legacyPlaceholderName = ".gitkeep"

// IsPlaceholder reports whether name is a folder marker blob.
func IsPlaceholder(name string) bool {
	return name == PlaceholderName || name == legacyPlaceholderName
}

// imageExtensions are the file extensions the gallery shows, lower case.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Image is a blob in a folder that the gallery displays.
type Image struct {
	Path       string
	Name       string
	Hash       string
	URL        string
	Size       int64
	ModifiedAt time.Time // zero when the history lookup failed
}

// HasModTime reports whether the modification time was resolved.
func (img Image) HasModTime() bool { return !img.ModifiedAt.IsZero() }

// IsImageName reports whether name has a recognized image extension.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

// PlaceholderPath returns the placeholder blob path of a folder.
func PlaceholderPath(folder string) string {
	return folder + "/" + PlaceholderName
}

// ImagePath returns the blob path of an image in a folder.
func ImagePath(folder, name string) string {
	return folder + "/" + name
}
