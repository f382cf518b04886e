package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("jira:\n  url_base: https://a\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	fired := make(chan struct{}, 1)
	w.Start(t.Context(), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("jira:\n  url_base: https://b\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after config file write")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))
	other := filepath.Join(dir, "unrelated.txt")

	w, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	fired := make(chan struct{}, 1)
	w.Start(t.Context(), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("irrelevant"), 0o644))

	select {
	case <-fired:
		t.Fatal("onChange fired for a write to an unrelated file")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path)
	require.NoError(t, err)

	w.Start(t.Context(), func() {})
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
