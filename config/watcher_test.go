package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsExternalChanges(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save())

	changed := make(chan struct{}, 1)
	store.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	w, err := NewWatcher(store)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// another process edits the same file
	other := NewStore(store.Path())
	require.NoError(t, other.SetAppSetting("refresh_interval", 9))

	assert.Eventually(t, func() bool {
		return store.AppSettings().RefreshInterval == 9
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("change listener was not called")
	}
}

func TestWatcher_KeepsStateOnBrokenFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetAppSetting("refresh_interval", 7))

	w, err := NewWatcher(store)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))
	w.pending = time.Now().Add(-time.Second)
	w.flush()

	assert.Equal(t, 7, store.AppSettings().RefreshInterval)
	require.NoError(t, w.watcher.Close())
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	store := newTestStore(t)
	w, err := NewWatcher(store)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
