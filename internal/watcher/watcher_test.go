package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu          sync.Mutex
	indexed     []string
	deleted     []string
	deletedDirs []string
}

func (r *recorder) IndexFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return nil
}

func (r *recorder) DeleteFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, path)
	return nil
}

func (r *recorder) DeleteDirectory(_ context.Context, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedDirs = append(r.deletedDirs, dir)
	return nil
}

func (r *recorder) removedDirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deletedDirs...)
}

func (r *recorder) snapshot() (indexed, deleted []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...), append([]string(nil), r.deleted...)
}

func startWatcher(t *testing.T, root string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(root, []string{".htm"}, rec, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	return w
}

func contains(paths []string, suffix string) bool {
	for _, p := range paths {
		if filepath.Base(p) == suffix {
			return true
		}
	}
	return false
}

func TestWatcher_IndexesNewDocument(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.htm"), []byte("<title>A</title>"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0600))

	assert.Eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return contains(indexed, "a.htm")
	}, 2*time.Second, 20*time.Millisecond)

	indexed, _ := rec.snapshot()
	assert.False(t, contains(indexed, "skip.txt"))
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, []string{".htm"}, rec, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "a.htm")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<title>A</title>"), 0600))
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(700 * time.Millisecond)

	indexed, _ := rec.snapshot()
	assert.Len(t, indexed, 1)
}

func TestWatcher_RemovesDeletedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.htm")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	rec := &recorder{}
	startWatcher(t, dir, rec)
	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		_, deleted := rec.snapshot()
		return contains(deleted, "gone.htm")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	nested := filepath.Join(dir, "level1", "level2")
	require.NoError(t, os.MkdirAll(nested, 0755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.htm"), []byte("x"), 0600))

	assert.Eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return contains(indexed, "deep.htm")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_RemovesDeletedDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2024", "world")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.htm"), []byte("x"), 0600))

	rec := &recorder{}
	startWatcher(t, dir, rec)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "2024")))

	assert.Eventually(t, func() bool {
		return contains(rec.removedDirs(), "2024")
	}, 2*time.Second, 20*time.Millisecond)
	assert.NotContains(t, rec.removedDirs(), dir, "root is never dropped")
}

func TestWatcher_Sync(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.htm"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xyz"), []byte("x"), 0600))

	rec := &recorder{}
	w := startWatcher(t, dir, rec)
	require.NoError(t, w.Sync())

	assert.Eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return len(indexed) == 1 && contains(indexed, "a.htm")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, root, &recorder{})

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWatcher_StopTwice(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, &recorder{})
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.htm", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/ab", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
