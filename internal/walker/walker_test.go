package walker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}

func collect(t *testing.T, w *Walker, root string) (map[string]models.FileChunks, *Stats) {
	t.Helper()
	out, stats, wait := w.Walk(context.Background(), root)

	groups := make(map[string]models.FileChunks)
	for group := range out {
		groups[group.Path] = group
	}
	if err := wait(); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	return groups, stats
}

// padded makes file content long enough to clear the minimum-length rule.
func padded(body string) string {
	return body + "\n# " + strings.Repeat("padding ", 20) + "\n"
}

func TestWalkSkipPolicy(t *testing.T) {
	bigFile := strings.Repeat("x = 1\n", 400000) // ~2.4 MiB, over the 1 MiB cap

	root := writeTree(t, map[string]string{
		"src/app.py":              padded("def run():\n    a = 1\n    b = 2\n    c = 3\n    return a + b + c"),
		"node_modules/lib.js":     padded("function ignored() { return 1 }"),
		"build/out.py":            padded("def built(): pass"),
		"gen/huge.py":             bigFile,
		"README.md":               padded("# readme, unrecognized extension"),
		"src/tiny.py":             "x=1\n", // under 100 bytes after strip
		"assets/app.min.js":       padded("var minified=1;"),
	})

	cfg := config.DefaultConfig()
	w := New(&cfg.Walker, slog.Default())

	groups, stats := collect(t, w, root)

	if _, ok := groups["src/app.py"]; !ok {
		t.Errorf("src/app.py not retained")
	}
	if len(groups) != 1 {
		paths := make([]string, 0, len(groups))
		for p := range groups {
			paths = append(paths, p)
		}
		t.Errorf("retained %v, want only src/app.py", paths)
	}

	if got := stats.RetainedFiles.Load(); got != 1 {
		t.Errorf("retained count = %d, want 1", got)
	}
	if stats.SkippedFiles.Load() == 0 {
		t.Errorf("no files counted skipped")
	}
}

func TestWalkEmitsRelativeSlashPaths(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pkg/sub/mod.py": padded("def f():\n    a = 1\n    b = 2\n    c = 3\n    return a"),
	})

	cfg := config.DefaultConfig()
	w := New(&cfg.Walker, slog.Default())

	groups, _ := collect(t, w, root)

	group, ok := groups["pkg/sub/mod.py"]
	if !ok {
		t.Fatalf("expected pkg/sub/mod.py, got %v", groups)
	}
	for _, chunk := range group.Chunks {
		if chunk.Path != "pkg/sub/mod.py" {
			t.Errorf("chunk path = %q", chunk.Path)
		}
	}
}

func TestWalkHonorsCancellation(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 50; i++ {
		files[filepath.Join("src", "f"+string(rune('a'+i%26))+strings.Repeat("x", i)+".py")] =
			padded("def f():\n    a = 1\n    b = 2\n    c = 3\n    return a")
	}
	root := writeTree(t, files)

	cfg := config.DefaultConfig()
	cfg.Walker.ChunkChannelSize = 1
	w := New(&cfg.Walker, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	out, _, wait := w.Walk(ctx, root)

	// Read one group, then cancel; the walk must terminate.
	<-out
	cancel()
	for range out {
	}
	// Either nil (walk finished before observing cancel) or context error.
	if err := wait(); err != nil && err != context.Canceled {
		t.Errorf("wait: %v", err)
	}
}

func TestWalkRejectsNonDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"only.py": padded("def f():\n    return 1")})

	cfg := config.DefaultConfig()
	w := New(&cfg.Walker, slog.Default())

	out, _, wait := w.Walk(context.Background(), filepath.Join(root, "only.py"))
	for range out {
	}
	if err := wait(); err == nil {
		t.Errorf("expected error for non-directory root")
	}
}
