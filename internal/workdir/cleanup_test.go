package workdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hdvapourize/internal/logging"
)

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(path, when, when); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir := filepath.Join(tmpDir, "old-run")
	recentDir := filepath.Join(tmpDir, "recent-run")
	mkdirAged(t, oldDir, 2*time.Hour)
	mkdirAged(t, recentDir, 0)

	result := CleanStale(context.Background(), tmpDir, time.Hour, nil, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
}

func TestCleanStaleHonoursKeepAndDisable(t *testing.T) {
	tmpDir := t.TempDir()
	active := filepath.Join(tmpDir, "active-run")
	mkdirAged(t, active, 3*time.Hour)

	if r := CleanStale(context.Background(), tmpDir, time.Hour, []string{"active-run"}, nil); len(r.Removed) != 0 {
		t.Fatalf("kept directory removed: %v", r.Removed)
	}
	if r := CleanStale(context.Background(), tmpDir, 0, nil, nil); len(r.Removed) != 0 {
		t.Fatalf("zero max age should disable the sweep: %v", r.Removed)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("directory should survive: %v", err)
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()
	oldFile := filepath.Join(tmpDir, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, nil, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
}

func TestCleanStaleStopsOnCancel(t *testing.T) {
	tmpDir := t.TempDir()
	mkdirAged(t, filepath.Join(tmpDir, "old-run"), 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := CleanStale(ctx, tmpDir, time.Hour, nil, nil); len(r.Removed) != 0 {
		t.Fatalf("cancelled sweep removed %v", r.Removed)
	}
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}

func TestListDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	dir1 := filepath.Join(tmpDir, "run-1")
	dir2 := filepath.Join(tmpDir, "run-2")
	mkdirAged(t, filepath.Join(dir1, "job-a"), 0)
	mkdirAged(t, dir2, 0)

	if err := os.WriteFile(filepath.Join(tmpDir, "not-a-dir.txt"), []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "job-a", "rewrap.mov"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("create inner file: %v", err)
	}

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d", len(dirs))
	}

	var found bool
	for _, d := range dirs {
		if d.Name == "run-1" {
			found = true
			if d.Size != 5 {
				t.Errorf("run-1 size = %d, want 5", d.Size)
			}
			if d.Path != dir1 || d.ModTime.IsZero() {
				t.Errorf("unexpected info %+v", d)
			}
		}
	}
	if !found {
		t.Error("did not find run-1 in results")
	}
	if TotalSize(dirs) != 5 {
		t.Errorf("TotalSize = %d, want 5", TotalSize(dirs))
	}
}
