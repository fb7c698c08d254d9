package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, ignore ...string) <-chan []string {
	t.Helper()
	batches := make(chan []string, 8)
	w, err := New(Config{Paths: []string{dir}, Ignore: ignore, Debounce: 50 * time.Millisecond}, func(paths []string) {
		batches <- paths
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})

	// Let Run register the directories.
	time.Sleep(100 * time.Millisecond)
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestWatcherReportsGoChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nav.go")
	require.NoError(t, os.WriteFile(file, []byte("package nav\n"), 0644))

	batches := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(file, []byte("package nav\n\nfunc A() {}\n"), 0644))
	assert.Equal(t, []string{file}, waitBatch(t, batches))
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("package x\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("package x\n"), 0644))

	assert.Equal(t, []string{a, b}, waitBatch(t, batches))
}

func TestWatcherNewDirectory(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	sub := filepath.Join(dir, "shop")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "orders.go")
	require.NoError(t, os.WriteFile(file, []byte("package shop\n"), 0644))
	assert.Contains(t, waitBatch(t, batches), file)
}

func TestWatcherSkipsIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, "telepath_gen.go")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nav_test.go"), []byte("package nav\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "telepath_gen.go"), []byte("package nav\n"), 0644))

	select {
	case b := <-batches:
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestShouldIgnore(t *testing.T) {
	w, err := New(Config{
		Paths:  []string{"/src/vendor/app"},
		Ignore: []string{"legacy", "telepath_gen.go"},
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		path   string
		ignore bool
	}{
		{"/src/vendor/app/nav/foo_test.go", true},
		{"/src/vendor/app/vendor/lib.go", true},
		{"/src/vendor/app/legacy/old.go", true},
		{"/src/vendor/app/routes/telepath_gen.go", true},
		{"/src/vendor/app/.git/HEAD", true},
		{"/src/vendor/app/nav/main.go", false},
		{"/src/vendor/app/nav/legacy.go", false},
		{"/src/vendor/app", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ignore, w.shouldIgnore(tt.path), tt.path)
	}
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant("/p/nav.go"))
	assert.True(t, relevant("/p/go.mod"))
	assert.False(t, relevant("/p/go.sum"))
	assert.False(t, relevant("/p/readme.md"))
}
