// Package observer keeps workspace idle timestamps honest: filesystem
// activity inside a watched workspace bumps its LastTouched via the
// registry, which defers the stale sweep for workspaces still in use.
package observer

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Toucher is the registry surface the watcher needs
type Toucher interface {
	Touch(id string) error
}

// TouchWatcher monitors workspace directories and records activity
type TouchWatcher struct {
	watcher  *fsnotify.Watcher
	toucher  Toucher
	debounce time.Duration

	// workspace path -> workspace ID
	workspaces map[string]string

	// Debounce state - workspace IDs with pending activity
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewTouchWatcher creates a watcher that reports activity to the given toucher
func NewTouchWatcher(toucher Toucher) (*TouchWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &TouchWatcher{
		watcher:    watcher,
		toucher:    toucher,
		debounce:   500 * time.Millisecond, // Debounce rapid changes
		workspaces: make(map[string]string),
		pending:    make(map[string]struct{}),
	}, nil
}

// AddWorkspace starts watching a workspace directory
func (tw *TouchWatcher) AddWorkspace(id, path string) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if _, exists := tw.workspaces[path]; exists {
		return nil // Already watching
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Checkout not on disk, nothing to watch
	}

	// Watch the workspace root and all subdirectories, skipping .git
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return tw.watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	tw.workspaces[path] = id
	return nil
}

// RemoveWorkspace stops watching a workspace directory
func (tw *TouchWatcher) RemoveWorkspace(path string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	id, exists := tw.workspaces[path]
	if !exists {
		return
	}

	filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			tw.watcher.Remove(p)
		}
		return nil
	})

	delete(tw.workspaces, path)
	delete(tw.pending, id)
}

// Start begins watching for file changes
func (tw *TouchWatcher) Start(ctx context.Context) {
	ctx, tw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-tw.watcher.Events:
				if !ok {
					return
				}
				tw.handleEvent(event)
			case err, ok := <-tw.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("observer: watch error: %v", err)
			}
		}
	}()
}

// Stop stops watching for file changes
func (tw *TouchWatcher) Stop() {
	if tw.cancel != nil {
		tw.cancel()
	}
	tw.watcher.Close()
}

func (tw *TouchWatcher) handleEvent(event fsnotify.Event) {
	// Only writes and creates count as activity
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	id := tw.findWorkspace(event.Name)
	if id == "" {
		return // Not in a watched workspace
	}

	tw.pending[id] = struct{}{}

	// Reset or start debounce timer
	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.timer = time.AfterFunc(tw.debounce, tw.flush)
}

// findWorkspace returns the ID of the workspace containing the given path
func (tw *TouchWatcher) findWorkspace(filePath string) string {
	for path, id := range tw.workspaces {
		if strings.HasPrefix(filePath, path+string(filepath.Separator)) || filePath == path {
			return id
		}
	}
	return ""
}

func (tw *TouchWatcher) flush() {
	tw.mu.Lock()
	pending := tw.pending
	tw.pending = make(map[string]struct{})
	tw.mu.Unlock()

	for id := range pending {
		if err := tw.toucher.Touch(id); err != nil {
			log.Printf("observer: touch %s: %v", id, err)
		}
	}
}

// SetDebounce sets the debounce duration for batching activity
func (tw *TouchWatcher) SetDebounce(d time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.debounce = d
}
