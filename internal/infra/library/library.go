// Package library finds audio files on disk and watches folders for new ones.
package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// NormalizeExtensions lower-cases extensions and gives each a leading dot.
func NormalizeExtensions(exts []string) []string {
	return lo.Uniq(lo.FilterMap(exts, func(e string, _ int) (string, bool) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			return "", false
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		return e, true
	}))
}

// Matches reports whether path has one of the normalized extensions.
func Matches(path string, exts []string) bool {
	return lo.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// FindFiles returns the audio files below root in lexical order. A root that
// is a file is returned as is when its extension matches.
func FindFiles(root string, extensions []string) ([]string, error) {
	exts := NormalizeExtensions(extensions)

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		if Matches(root, exts) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Matches(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", root)
	}

	sort.Strings(files)
	return files, nil
}
