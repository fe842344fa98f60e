package configwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgevec/schedcore/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestWatchChangesPublishesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "policy: greedy\n")

	initial, err := config.Load(path)
	require.NoError(t, err)

	w, err := New(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, errs := w.WatchChanges(ctx, initial)

	// give fsnotify a moment to register the watch before writing.
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "policy: quickLR\n")

	select {
	case cfg := <-changes:
		require.Equal(t, config.PolicyQuickLR, cfg.Policy)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config change")
	}
}

func TestWatchChangesRejectsSecondCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "policy: greedy\n")

	initial, err := config.Load(path)
	require.NoError(t, err)

	w, err := New(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = w.WatchChanges(ctx, initial)
	changes, errs := w.WatchChanges(ctx, initial)

	_, chOpen := <-changes
	_, errOpen := <-errs
	require.False(t, chOpen)
	require.False(t, errOpen)
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "policy: greedy\n")

	w, err := New(path)
	require.NoError(t, err)

	initial, err := config.Load(path)
	require.NoError(t, err)
	_, _ = w.WatchChanges(context.Background(), initial)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
