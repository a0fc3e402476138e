package glob

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Expand walks base joined with p's segments, returning every matching
// path, sorted and deduplicated. Paths are returned
// relative to base using '/' separators.
func Expand(p Pattern, base string, opts ExpandOptions) ([]string, error) {
	var out []string
	seen := map[string]bool{}

	err := expandSegments(base, "", p.Segments, 0, opts, func(rel string) {
		if !seen[rel] {
			seen[rel] = true
			out = append(out, rel)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

// expandSegments recursively consumes pattern segments against the
// filesystem rooted at dir (an absolute-or-relative OS path), calling
// emit with the accumulated '/'-joined relative path whenever all
// segments have been consumed by an existing filesystem entry.
func expandSegments(dir, rel string, segs []Segment, idx int, opts ExpandOptions, emit func(string)) error {
	if idx >= len(segs) {
		if rel != "" {
			emit(rel)
		}
		return nil
	}

	seg := segs[idx]

	if seg.IsDoubleStarOnly() {
		// Zero-directory case: advance the pattern without descending.
		if err := expandSegments(dir, rel, segs, idx+1, opts, emit); err != nil {
			return err
		}
		entries, err := readDirSorted(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if !includeEntry(e.Name(), false, opts) {
				continue
			}
			if !opts.FollowSymlinks && isSymlink(e) {
				continue
			}
			if err := expandSegments(filepath.Join(dir, e.Name()), joinRel(rel, e.Name()), segs, idx, opts, emit); err != nil {
				return err
			}
		}
		return nil
	}

	if lit, ok := literalOnly(seg); ok {
		// A literal segment is resolved by direct existence check rather
		// than directory enumeration; the dotfile filter
		// does not apply since the name was named explicitly.
		full := filepath.Join(dir, lit)
		info, err := os.Lstat(full)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !opts.FollowSymlinks && info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return expandSegments(full, joinRel(rel, lit), segs, idx+1, opts, emit)
	}

	segStartsWithDot := len(seg.Atoms) > 0 && seg.Atoms[0].Kind == Literal && strings.HasPrefix(seg.Atoms[0].Literal, ".")

	entries, err := readDirSorted(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !includeEntry(name, segStartsWithDot, opts) {
			continue
		}
		if !matchSegment(seg.Atoms, name) {
			continue
		}
		if !opts.FollowSymlinks && isSymlink(e) {
			continue
		}
		if idx+1 < len(segs) && !e.IsDir() {
			continue
		}
		if err := expandSegments(filepath.Join(dir, name), joinRel(rel, name), segs, idx+1, opts, emit); err != nil {
			return err
		}
	}
	return nil
}

func literalOnly(seg Segment) (string, bool) {
	if len(seg.Atoms) != 1 || seg.Atoms[0].Kind != Literal {
		return "", false
	}
	return seg.Atoms[0].Literal, true
}

func includeEntry(name string, segStartsWithDot bool, opts ExpandOptions) bool {
	if opts.IncludeDotfiles || segStartsWithDot {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return true
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}

func isSymlink(e os.DirEntry) bool {
	info, err := e.Info()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

func readDirSorted(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}
