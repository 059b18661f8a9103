package processor

import (
	"os"
	"path/filepath"
	"strings"

	"imgpilot/internal/failure"
)

const backgroundSuffix = "_no_bg"

// DestinationFor derives the output path of a (source, target) pair.
// Background removal always produces PNG.
func DestinationFor(source string, target Target, outputDir string) string {
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if target.BackgroundRemoval {
		return filepath.Join(dir, stem+backgroundSuffix+"."+FormatPNG.Ext())
	}
	return filepath.Join(dir, stem+"."+target.Format.Ext())
}

// sourceSet holds every source of a run so no unit writes over any of them,
// whatever the overwrite setting.
type sourceSet struct {
	paths map[string]string
	infos []sourceInfo
}

type sourceInfo struct {
	path string
	info os.FileInfo
}

func newSourceSet(sources []string) *sourceSet {
	s := &sourceSet{paths: make(map[string]string, len(sources))}
	for _, src := range sources {
		s.paths[pathKey(src)] = src
		if info, err := os.Stat(src); err == nil {
			s.infos = append(s.infos, sourceInfo{path: src, info: info})
		}
	}
	return s
}

// lookup returns the source stored at dest, if any. Links and alternate
// spellings of a source path are matched through os.SameFile.
func (s *sourceSet) lookup(dest string) (string, bool) {
	if src, ok := s.paths[pathKey(dest)]; ok {
		return src, true
	}
	info, err := os.Stat(dest)
	if err != nil {
		return "", false
	}
	for _, si := range s.infos {
		if os.SameFile(info, si.info) {
			return si.path, true
		}
	}
	return "", false
}

// resolveDestinations marks units that cannot be written. A destination that
// is any source of the run conflicts. When several units share a destination,
// the first in submission order keeps it and the rest conflict.
func resolveDestinations(units []workUnit, sources []string) {
	set := newSourceSet(sources)
	owners := make(map[string]int, len(units))
	for i := range units {
		u := &units[i]
		if src, ok := set.lookup(u.dest); ok {
			if samePath(src, u.source) {
				u.conflict = failure.New(failure.DestinationConflict, "plan", "%s would overwrite its source", u.dest)
			} else {
				u.conflict = failure.New(failure.DestinationConflict, "plan", "%s would overwrite source %s", u.dest, src)
			}
			continue
		}
		key := pathKey(u.dest)
		if owner, ok := owners[key]; ok {
			u.conflict = failure.New(failure.DestinationConflict, "plan", "%s is also the destination of %s, submitted earlier", u.dest, units[owner].source)
			continue
		}
		owners[key] = i
	}
}

func pathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
