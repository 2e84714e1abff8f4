package gwsvc

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// unitFileClient is implemented by backends whose unit definition
// lives in a watchable file
type unitFileClient interface {
	ServiceClient
	unitFilePath() string
}

// watchState manages the state of a watch operation
type watchState struct {
	mu        sync.Mutex
	last      *CommandSnapshot
	primed    bool
	debouncer *time.Timer
}

// watchImpl provides the common watch loop for file-backed backends
func watchImpl(ctx context.Context, client unitFileClient) (<-chan WatchEvent, WatchCleanupFunc, error) {
	unitPath := client.unitFilePath()
	unitDir := filepath.Dir(unitPath)

	// Watch the directory rather than the file: atomic writes replace
	// the inode a file watch would be pinned to, and a watch started
	// before the first install has no file yet.
	if err := os.MkdirAll(unitDir, DirMode); err != nil {
		return nil, nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := watcher.Add(unitDir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan WatchEvent, 10)

	// Create stopper context for managing goroutine lifecycle
	sctx := stopper.WithContext(ctx)

	// Register watcher cleanup with stopper
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	state := &watchState{}

	// Create cleanup function using stopper
	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond) // Graceful stop with 100ms grace period
		return sctx.Wait()
	}

	// Re-read the definition and send it when it differs from the last
	// one delivered. The first read always sends.
	readAndSend := func() {
		if sctx.IsStopping() {
			return
		}

		snap := client.ReadCommand(ctx)

		state.mu.Lock()
		changed := !state.primed || !snapshotsEqual(snap, state.last)
		if changed {
			state.last = snap
			state.primed = true
		}
		state.mu.Unlock()

		if changed && !sctx.IsStopping() {
			select {
			case ch <- WatchEvent{Snapshot: snap}:
			case <-sctx.Stopping():
			}
		}
	}

	// Initial read
	readAndSend()

	// Launch watcher goroutine using stopper
	sctx.Go(func(sctx *stopper.Context) error {
		// Register debouncer cleanup
		sctx.Defer(func() {
			state.mu.Lock()
			if state.debouncer != nil {
				state.debouncer.Stop()
			}
			state.mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}

				if filepath.Base(event.Name) == filepath.Base(unitPath) {
					state.mu.Lock()
					if state.debouncer != nil {
						state.debouncer.Stop()
					}
					state.debouncer = time.AfterFunc(DefaultWatchDebounce, readAndSend)
					state.mu.Unlock()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- WatchEvent{Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}

// snapshotsEqual reports whether two snapshots describe the same
// installed invocation
func snapshotsEqual(a, b *CommandSnapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.ProgramArguments) != len(b.ProgramArguments) {
		return false
	}
	for i := range a.ProgramArguments {
		if a.ProgramArguments[i] != b.ProgramArguments[i] {
			return false
		}
	}
	if a.WorkingDirectory != b.WorkingDirectory || a.SourcePath != b.SourcePath {
		return false
	}
	if len(a.Environment) != len(b.Environment) {
		return false
	}
	for k, v := range a.Environment {
		if b.Environment[k] != v {
			return false
		}
	}
	return true
}

// Adapter implementations for each file-backed client type

func (c *ClientSystemdUser) unitFilePath() string {
	return c.Builder.UnitPath()
}

func (c *ClientLaunchd) unitFilePath() string {
	return c.Builder.PlistPath()
}
