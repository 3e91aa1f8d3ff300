package decision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source provides policy documents by id and notifies about changes.
type Source interface {
	// Load returns the current document for a policy and a path label
	// for diagnostics.
	Load(ctx context.Context, policyID string) (data []byte, sourcePath string, err error)

	// Watch delivers the ids of changed policies to onChange until ctx
	// is cancelled. Implementations without change detection return
	// immediately.
	Watch(ctx context.Context, onChange func(policyID string)) error
}

// FileSource serves policies from a directory: policy id "base" maps to
// base.yaml (or base.yml). Changes are detected with fsnotify and
// debounced to prevent invalidation storms during editor saves.
type FileSource struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
}

// NewFileSource creates a file-backed policy source.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("policy directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy path %q is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		dir:      dir,
		debounce: 100 * time.Millisecond,
		logger:   logger.With("component", "decision.source"),
	}, nil
}

// NewFileSourceWithDebounce creates a file-backed policy source with a
// custom change-event debounce interval.
func NewFileSourceWithDebounce(dir string, debounce time.Duration, logger *slog.Logger) (*FileSource, error) {
	source, err := NewFileSource(dir, logger)
	if err != nil {
		return nil, err
	}
	if debounce > 0 {
		source.debounce = debounce
	}
	return source, nil
}

// Load reads the document for a policy id.
func (f *FileSource) Load(ctx context.Context, policyID string) ([]byte, string, error) {
	if strings.ContainsAny(policyID, `/\`) {
		return nil, "", fmt.Errorf("invalid policy id %q", policyID)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(f.dir, policyID+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("reading policy %q: %w", policyID, err)
		}
	}
	return nil, "", fmt.Errorf("policy %q not found in %s", policyID, f.dir)
}

// Watch reports changed policy ids until ctx is cancelled.
func (f *FileSource) Watch(ctx context.Context, onChange func(policyID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}
	f.logger.Info("policy watcher started", "dir", f.dir)

	// Debounce per policy id: rapid write sequences collapse to one
	// notification.
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	notify := func(policyID string) {
		mu.Lock()
		defer mu.Unlock()
		if timer, ok := pending[policyID]; ok {
			timer.Stop()
		}
		pending[policyID] = time.AfterFunc(f.debounce, func() {
			mu.Lock()
			delete(pending, policyID)
			mu.Unlock()
			onChange(policyID)
		})
	}

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			policyID, ok := policyIDFromPath(event.Name)
			if !ok {
				continue
			}
			f.logger.Debug("policy file changed", "policy_id", policyID, "op", event.Op.String())
			notify(policyID)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			f.logger.Warn("policy watcher error", "error", err)
		}
	}
}

// policyIDFromPath maps a changed file back to a policy id.
func policyIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	ext := filepath.Ext(base)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}

// MemorySource is an in-memory Source for tests and embedding.
type MemorySource struct {
	mu       sync.RWMutex
	policies map[string][]byte
	watchers []func(string)
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{policies: make(map[string][]byte)}
}

// Put stores a document and notifies watchers.
func (m *MemorySource) Put(policyID string, data []byte) {
	m.mu.Lock()
	m.policies[policyID] = data
	watchers := make([]func(string), len(m.watchers))
	copy(watchers, m.watchers)
	m.mu.Unlock()

	for _, onChange := range watchers {
		onChange(policyID)
	}
}

// Load returns the stored document.
func (m *MemorySource) Load(ctx context.Context, policyID string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.policies[policyID]
	if !ok {
		return nil, "", fmt.Errorf("policy %q not found", policyID)
	}
	return data, policyID + ".yaml", nil
}

// Watch registers onChange and blocks until ctx is cancelled.
func (m *MemorySource) Watch(ctx context.Context, onChange func(policyID string)) error {
	m.mu.Lock()
	m.watchers = append(m.watchers, onChange)
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}
