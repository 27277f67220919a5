package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/testutil"
	"github.com/Norgate-AV/winpilot/internal/watch"
)

type changes struct {
	mu    sync.Mutex
	paths []string
}

func (c *changes) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.paths = append(c.paths, path)
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.paths)
}

func newWatcher(t *testing.T) (*watch.Watcher, *changes) {
	t.Helper()

	w, err := watch.New(nil, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	c := &changes{}
	w.OnChange(c.add)

	return w, c
}

func TestWatch_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "tasks.yaml", "tasks: []")

	w, c := newWatcher(t)
	require.NoError(t, w.Watch(context.Background(), path))

	require.NoError(t, os.WriteFile(path, []byte("tasks: [{}]"), 0o644))

	assert.Eventually(t, func() bool { return c.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	c.mu.Lock()
	assert.Equal(t, abs, c.paths[0])
	c.mu.Unlock()
}

func TestWatch_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "tasks.yaml", "a")

	w, c := newWatcher(t)
	require.NoError(t, w.Watch(context.Background(), path))

	for range 5 {
		require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	}

	assert.Eventually(t, func() bool { return c.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestWatch_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "tasks.yaml", "a")
	sibling := testutil.WriteFile(t, dir, "other.yaml", "a")

	w, c := newWatcher(t)
	require.NoError(t, w.Watch(context.Background(), path))

	require.NoError(t, os.WriteFile(sibling, []byte("b"), 0o644))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 0, c.count())
}

func TestWatch_ReplacedFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "settings.yaml", "a: 1")

	w, c := newWatcher(t)
	require.NoError(t, w.Watch(context.Background(), path))

	tmp := testutil.WriteFile(t, dir, "settings.yaml.tmp", "a: 2")
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return c.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_StopsWhenContextDone(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "tasks.yaml", "a")

	w, c := newWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Watch(ctx, path))
	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 0, c.count())
}

func TestClose_IsIdempotent(t *testing.T) {
	w, err := watch.New(nil)
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
