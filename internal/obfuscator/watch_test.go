package obfuscator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

func waitForEvent(t *testing.T, events <-chan obfuscator.WatchEvent, op, path string) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Op == op && ev.Path == path {
				require.NoError(t, ev.Err)
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s of %s", op, path)
		}
	}
}

func TestWatcher_SyncsChanges(t *testing.T) {
	verifyNoLeaks(t)
	src, dst := t.TempDir(), t.TempDir()
	octx := newDirContext(t, nil)

	w, err := octx.NewWatcher(src, dst)
	require.NoError(t, err)
	events := make(chan obfuscator.WatchEvent, 64)
	w.OnEvent = func(ev obfuscator.WatchEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	app := filepath.Join(src, "app.js")
	require.NoError(t, os.WriteFile(app, []byte(`print("watched");`), 0644))
	waitForEvent(t, events, "obfuscate", app)
	out := readFile(t, filepath.Join(dst, "app.js"))
	assert.NotContains(t, out, "watched")
	assert.Equal(t, "watched", runJS(t, out))

	sub := filepath.Join(src, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	notes := filepath.Join(sub, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0644))
	waitForEvent(t, events, "copy", notes)
	assert.Equal(t, "hello", readFile(t, filepath.Join(dst, "sub", "notes.txt")))

	require.NoError(t, os.Remove(app))
	waitForEvent(t, events, "remove", app)
	assert.NoFileExists(t, filepath.Join(dst, "app.js"))
}
