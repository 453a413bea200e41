package discover

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Assignment pairs a candidate with its output path.
type Assignment struct {
	Candidate
	Output string
}

// AssignOutputs mirrors each candidate's relative path under outputRoot as
// <dir>/<stem><suffix><ext>. When two inputs map to the same output, the
// later one gets its source extension appended to the stem, then a counter.
// Candidates are processed in the given order, so the result is stable.
func AssignOutputs(candidates []Candidate, outputRoot, suffix, ext string) []Assignment {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	claimed := make(map[string]struct{}, len(candidates))
	out := make([]Assignment, 0, len(candidates))
	for _, c := range candidates {
		rel := filepath.FromSlash(c.RelPath)
		dir := filepath.Dir(rel)
		srcExt := path.Ext(c.RelPath)
		stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))

		build := func(s string) string {
			return filepath.Join(outputRoot, dir, s+suffix+ext)
		}
		target := build(stem)
		if _, taken := claimed[key(target)]; taken {
			withExt := stem + "_" + strings.TrimPrefix(strings.ToLower(srcExt), ".")
			target = build(withExt)
			for n := 2; ; n++ {
				if _, taken := claimed[key(target)]; !taken {
					break
				}
				target = build(fmt.Sprintf("%s_%d", withExt, n))
			}
		}
		claimed[key(target)] = struct{}{}
		out = append(out, Assignment{Candidate: c, Output: target})
	}
	return out
}

// key folds case so outputs stay distinct on case-insensitive filesystems.
func key(p string) string {
	return strings.ToLower(filepath.Clean(p))
}
