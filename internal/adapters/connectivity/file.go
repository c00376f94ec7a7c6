package connectivity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/offsync/internal/ports"
)

// FileSignal reports connectivity from a status file whose content is
// "online" or "offline". A missing file means offline. The file is typically
// written by a network dispatcher hook on the host.
type FileSignal struct {
	*broadcaster

	path   string
	logger ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileSignal creates a FileSignal for path. Call Start to begin watching.
func NewFileSignal(path string, logger ports.Logger) *FileSignal {
	f := &FileSignal{
		path:   path,
		logger: logger,
	}
	f.broadcaster = newBroadcaster(f.read())
	return f
}

// Start watches the status file's directory until ctx is done or Stop is called.
func (f *FileSignal) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory so atomic replace (write temp + rename) is seen
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	// pick up a change made between construction and Start
	f.refresh()

	f.wg.Add(1)
	go f.watchLoop(watchCtx, watcher)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (f *FileSignal) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

func (f *FileSignal) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer f.wg.Done()
	defer watcher.Close()

	name := filepath.Base(f.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.refresh()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error("connectivity watcher error", ports.Err(err))
		}
	}
}

func (f *FileSignal) refresh() {
	online := f.read()
	if f.set(online) {
		f.logger.Info("connectivity changed",
			ports.Bool("online", online),
			ports.String("source", f.path),
		)
	}
}

func (f *FileSignal) read() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && f.logger != nil {
			f.logger.Warn("read connectivity file", ports.Err(err))
		}
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(data)), "online")
}
