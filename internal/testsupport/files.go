package testsupport

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// MalformedMarker makes the stub ffprobe reject a file.
const MalformedMarker = "malformed"

// dvBlock stands in for one DIF block of camera footage.
var dvBlock = bytes.Repeat([]byte{0x1f, 0x07, 0x00, 0x3f}, 20)

// WriteFile creates path, and any missing parents, holding size bytes of
// placeholder footage. Sizes below one are rounded up.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	data := make([]byte, 0, max(size, 1))
	for int64(len(data)) < max(size, 1) {
		data = append(data, dvBlock...)
	}
	writeBytes(t, path, data[:max(size, 1)])
}

// WriteMalformed writes an input the stub ffprobe cannot parse.
func WriteMalformed(t testing.TB, path string) {
	t.Helper()
	writeBytes(t, path, []byte(MalformedMarker+"\n"))
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ListFiles returns the sorted, slash-separated paths of regular files
// under root. A missing root yields nil.
func ListFiles(t testing.TB, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("walk %s: %v", root, err)
	}
	slices.Sort(out)
	return out
}
