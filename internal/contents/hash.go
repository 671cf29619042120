package contents

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// BlobHash returns the git blob hash of content, the same value the GitHub
// contents API reports as a file's sha.
func BlobHash(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// cleanPath trims surrounding slashes and rejects relative segments.
func cleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid path %q", p)
		}
	}
	return p, nil
}

// joinPath joins a directory and a name, treating "" as the root.
func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
