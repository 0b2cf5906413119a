package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ThemeAssetPattern matches the theme files a packaged book carries.
const ThemeAssetPattern = "**/*.{css,otf,ttf,woff,woff2,png,jpg,jpeg,gif,svg}"

// ImagePattern matches manuscript images.
const ImagePattern = "**/*.{png,jpg,jpeg,gif,svg,webp}"

// Glob returns the regular files under dir matching pattern, relative to
// dir and sorted. A missing dir yields no matches.
func Glob(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(doublestar.EscapeMeta(filepath.ToSlash(dir)), pattern))
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(dir, m)
		if err != nil {
			return nil, err
		}
		files = append(files, filepath.ToSlash(rel))
	}
	sort.Strings(files)
	return files, nil
}
