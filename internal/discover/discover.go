package discover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hdvapourize/internal/services"
)

// Candidate is one discovered input file.
type Candidate struct {
	// Path is the cleaned absolute path with symlinks resolved.
	Path string
	// RelPath is slash-separated and relative to the input root. For a single
	// file input it is the file's base name.
	RelPath string
	Size    int64
}

// Options controls the directory walk.
type Options struct {
	Recursive bool
	// Extensions are lowercase with a leading dot. Empty means the default set.
	Extensions []string
	// ExcludeDir is skipped when nested under the input, typically the
	// output root.
	ExcludeDir string
}

// DefaultExtensions are the container formats DV and HDV material arrives in.
var DefaultExtensions = []string{
	".avi", ".dv", ".hdv", ".m2ts", ".mkv", ".mov", ".mp4",
	".mpeg", ".mpg", ".mts", ".mxf", ".ts",
}

// Discover lists the inputs for a batch. A single file always yields exactly
// one candidate. A directory with no matching files yields an empty slice.
func Discover(input string, opts Options) ([]Candidate, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, services.Wrap(services.ErrValidation, "discover", "input", "input path is required", nil)
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discover", "resolve input", input, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrPathNotFound, "discover", "stat input", abs, err)
		}
		return nil, services.Wrap(services.ErrValidation, "discover", "stat input", abs, err)
	}
	if !info.IsDir() {
		resolved := resolve(abs)
		return []Candidate{{Path: resolved, RelPath: filepath.Base(abs), Size: info.Size()}}, nil
	}

	allowed := extensionSet(opts.Extensions)
	root := resolve(abs)
	exclude := ""
	if strings.TrimSpace(opts.ExcludeDir) != "" {
		if ex, err := filepath.Abs(opts.ExcludeDir); err == nil {
			exclude = resolve(ex)
		}
	}

	seen := make(map[string]struct{})
	var out []Candidate
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped rather than failing the batch.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || (exclude != "" && path == exclude) {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		target := resolve(path)
		fi, err := os.Stat(target)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		if _, dup := seen[target]; dup {
			return nil
		}
		seen[target] = struct{}{}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		out = append(out, Candidate{Path: target, RelPath: filepath.ToSlash(rel), Size: fi.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrValidation, "discover", "walk input", root, walkErr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	if out == nil {
		out = []Candidate{}
	}
	return out, nil
}

func resolve(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return filepath.Clean(real)
	}
	return filepath.Clean(path)
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
