package worker

import (
	"io/fs"
	"path/filepath"

	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// Discover walks root and returns every regular file with an allow-listed
// extension, in directory-walk (lexical) order. Unreadable subdirectories
// are logged and skipped; an unreadable root is an error.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !converter.Supported(path) {
			return nil
		}
		if !d.Type().IsRegular() {
			log.Debug().Str("path", path).Msg("Skipping non-regular file")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	return files, nil
}
