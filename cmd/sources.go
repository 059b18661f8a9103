package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"imgpilot/pkg/imgutil"
)

var sourceExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true, ".avif": true,
}

// collectSources expands args into source files. Files named directly are
// kept as given; directories are walked and only files with a known image
// extension and signature are kept. Hidden directories are skipped.
func collectSources(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var sources []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			sources = append(sources, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			kind, err := imgutil.SniffFile(path)
			if err != nil {
				return err
			}
			if kind.Decodable() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", strings.Join(args, ", "))
	}
	return sources, nil
}
