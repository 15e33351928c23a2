package converter

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	registry = make(map[string]string) // lowercase extension without dot -> format name
	mu       sync.RWMutex
)

// Register adds a source extension to the allow-list. ext may carry a
// leading dot and any case.
func Register(ext string, format string) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalizeExt(ext)] = format
}

// Supported reports whether path has a registered extension (case-insensitive)
func Supported(path string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[normalizeExt(filepath.Ext(path))]
	return ok
}

// FormatFor returns the format registered for the extension of path
func FormatFor(path string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[normalizeExt(filepath.Ext(path))]
	return f, ok
}

// Extensions returns the registered extensions, sorted
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
