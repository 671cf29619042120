package gallery

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultPageSize is the number of images per page.
const DefaultPageSize = 15

// SortKey selects the ordering of the visible images.
type SortKey string

const (
	SortNameAsc  SortKey = "name-asc"
	SortNameDesc SortKey = "name-desc"
	SortTimeAsc  SortKey = "time-asc"
	SortTimeDesc SortKey = "time-desc"
)

// ParseSortKey validates a sort key string.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNameAsc, SortNameDesc, SortTimeAsc, SortTimeDesc:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// View is one page of the filtered, sorted image set.
type View struct {
	Folder     string
	Items      []Image
	Page       int
	TotalPages int
	Total      int
	Filter     string
	Sort       SortKey
}

// Index is the in-memory model of the gallery: the folder set and, for the
// active folder, the known images plus the view state. It is safe for
// concurrent use.
type Index struct {
	mu       sync.Mutex
	folders  map[string]bool
	active   string
	images   []Image
	filter   string
	sort     SortKey
	page     int
	pageSize int
	gen      uint64
}

// NewIndex creates an empty index. A pageSize below 1 uses DefaultPageSize.
func NewIndex(pageSize int) *Index {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Index{
		folders:  make(map[string]bool),
		sort:     SortNameAsc,
		page:     1,
		pageSize: pageSize,
	}
}

// SetFolders replaces the folder set.
func (x *Index) SetFolders(ids []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.folders = make(map[string]bool, len(ids))
	for _, id := range ids {
		x.folders[id] = true
	}
}

// Folders returns the folder identifiers in ascending order.
func (x *Index) Folders() []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := make([]string, 0, len(x.folders))
	for id := range x.folders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasFolder reports whether id is in the folder set.
func (x *Index) HasFolder(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.folders[id]
}

// AddFolder adds id to the folder set.
func (x *Index) AddFolder(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.folders[id] = true
}

// RemoveFolder removes id from the folder set. If id was active, nothing is
// active afterwards.
func (x *Index) RemoveFolder(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.folders, id)
	if x.active == id {
		x.clearActiveLocked("")
	}
}

// ReplaceFolder swaps oldID for newID in the folder set.
func (x *Index) ReplaceFolder(oldID, newID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.folders, oldID)
	x.folders[newID] = true
}

// Active returns the active folder, or "" when none is selected.
func (x *Index) Active() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.active
}

// SetActive selects a folder. The image set, filter and page are cleared
// immediately so images of the previous folder are never shown, and any
// load still in flight becomes stale. It returns the token the next load
// must present to PublishImages.
func (x *Index) SetActive(id string) uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.clearActiveLocked(id)
	return x.gen
}

func (x *Index) clearActiveLocked(id string) {
	x.active = id
	x.images = nil
	x.filter = ""
	x.page = 1
	x.gen++
}

// BeginLoad starts a reload of the active folder's images and returns the
// token that load must present. Any older load in flight becomes stale.
func (x *Index) BeginLoad() (uint64, string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.gen++
	return x.gen, x.active
}

// PublishImages installs the result of a load. It returns false, and
// changes nothing, if the load was superseded or the folder is no longer
// active.
func (x *Index) PublishImages(gen uint64, folder string, images []Image) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if gen != x.gen || folder != x.active {
		return false
	}
	x.images = slices.Clone(images)
	x.clampLocked()
	return true
}

// Images returns a copy of the active folder's image set in load order.
func (x *Index) Images() []Image {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.images)
}

// HasImage reports whether the active folder's image set contains name.
// Names are compared case-sensitively.
func (x *Index) HasImage(name string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, img := range x.images {
		if img.Name == name {
			return true
		}
	}
	return false
}

// LookupImage returns the image named name in the active folder.
func (x *Index) LookupImage(name string) (Image, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, img := range x.images {
		if img.Name == name {
			return img, true
		}
	}
	return Image{}, false
}

// RemoveImage drops the image at path from the active folder's image set.
func (x *Index) RemoveImage(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.images = slices.DeleteFunc(x.images, func(img Image) bool { return img.Path == path })
	x.clampLocked()
}

// SetFilter sets the filename filter and resets to the first page.
func (x *Index) SetFilter(filter string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.filter = filter
	x.page = 1
	x.clampLocked()
}

// SetSort sets the sort key.
func (x *Index) SetSort(key SortKey) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.sort = key
}

// SetPage moves to page, clamped to the valid range.
func (x *Index) SetPage(page int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.page = page
	x.clampLocked()
}

// View returns the current page of the filtered, sorted image set.
func (x *Index) View() View {
	x.mu.Lock()
	defer x.mu.Unlock()

	matched := x.filteredLocked()
	sortImages(matched, x.sort)

	total := len(matched)
	totalPages := x.totalPages(total)

	start := (x.page - 1) * x.pageSize
	end := min(start+x.pageSize, total)
	var items []Image
	if start < end {
		items = matched[start:end]
	}

	return View{
		Folder:     x.active,
		Items:      items,
		Page:       x.page,
		TotalPages: totalPages,
		Total:      total,
		Filter:     x.filter,
		Sort:       x.sort,
	}
}

func (x *Index) filteredLocked() []Image {
	needle := strings.ToLower(x.filter)
	matched := make([]Image, 0, len(x.images))
	for _, img := range x.images {
		if needle == "" || strings.Contains(strings.ToLower(img.Name), needle) {
			matched = append(matched, img)
		}
	}
	return matched
}

func (x *Index) totalPages(n int) int {
	return (n + x.pageSize - 1) / x.pageSize
}

// clampLocked keeps page within [1, max(1, totalPages)].
func (x *Index) clampLocked() {
	last := max(1, x.totalPages(len(x.filteredLocked())))
	x.page = max(1, min(x.page, last))
}

// sortImages orders images in place. Unresolved modification times are the
// oldest possible instant. Ties fall back to ascending name.
func sortImages(images []Image, key SortKey) {
	byName := func(a, b Image) int { return strings.Compare(a.Name, b.Name) }
	byTime := func(a, b Image) int { return a.ModifiedAt.Compare(b.ModifiedAt) }

	slices.SortStableFunc(images, func(a, b Image) int {
		var c int
		switch key {
		case SortNameDesc:
			c = -byName(a, b)
		case SortTimeAsc:
			c = byTime(a, b)
		case SortTimeDesc:
			c = -byTime(a, b)
		default:
			c = byName(a, b)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}
