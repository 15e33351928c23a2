// Package naming derives output names for converted images.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxStemLength is the longest source stem kept verbatim, in characters.
	MaxStemLength = 8
	// TruncationMarker is appended to stems cut at MaxStemLength.
	TruncationMarker = "..."
	// Prefix is prepended to every output name.
	Prefix = "new_"
)

// Resolver picks output base names that do not collide with existing
// entries in the target directory. It checks the filesystem at call time
// only, which is enough for a single sequential pipeline.
type Resolver struct {
	ext string
}

// NewResolver creates a resolver for outputs with the given extension
// (without dot, e.g. "webp").
func NewResolver(ext string) *Resolver {
	return &Resolver{ext: strings.TrimPrefix(ext, ".")}
}

// Ext returns the output extension without the dot.
func (r *Resolver) Ext() string { return r.ext }

// Candidate returns the preferred base name for sourceFilename:
// "new_" + stem, with stems longer than MaxStemLength cut and marked.
func Candidate(sourceFilename string) string {
	name := filepath.Base(sourceFilename)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if runes := []rune(stem); len(runes) > MaxStemLength {
		stem = string(runes[:MaxStemLength]) + TruncationMarker
	}
	return Prefix + stem
}

// Resolve returns a base name (no extension) for sourceFilename whose
// output path does not exist in directory. On collision it tries
// root_1, root_2, ... where root is the candidate without the truncation
// marker; every attempt is built from root, not from the previous attempt.
func (r *Resolver) Resolve(directory, sourceFilename string) string {
	base := Candidate(sourceFilename)
	if !r.exists(directory, base) {
		return base
	}
	root := strings.TrimSuffix(base, TruncationMarker)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", root, n)
		if !r.exists(directory, candidate) {
			return candidate
		}
	}
}

// OutputPath joins directory, base name and the resolver's extension.
func (r *Resolver) OutputPath(directory, baseName string) string {
	return filepath.Join(directory, baseName+"."+r.ext)
}

// ResolvePath resolves the output path for a source file, placing it in
// the source's own directory.
func (r *Resolver) ResolvePath(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	return r.OutputPath(dir, r.Resolve(dir, filepath.Base(sourcePath)))
}

func (r *Resolver) exists(directory, baseName string) bool {
	_, err := os.Lstat(r.OutputPath(directory, baseName))
	return err == nil || !os.IsNotExist(err)
}
