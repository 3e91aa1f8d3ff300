package decision

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// FileSource Tests
// ============================================================================

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("policy_id: base"), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "alt.yml"), []byte("policy_id: alt"), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	source, err := NewFileSource(dir, nil)
	if err != nil {
		t.Fatalf("NewFileSource() failed: %v", err)
	}
	ctx := context.Background()

	data, path, err := source.Load(ctx, "base")
	if err != nil {
		t.Fatalf("Load(base) failed: %v", err)
	}
	if string(data) != "policy_id: base" {
		t.Errorf("data = %q", data)
	}
	if filepath.Base(path) != "base.yaml" {
		t.Errorf("path = %q, want base.yaml", path)
	}

	// .yml fallback when .yaml does not exist.
	if _, path, err = source.Load(ctx, "alt"); err != nil {
		t.Fatalf("Load(alt) failed: %v", err)
	}
	if filepath.Base(path) != "alt.yml" {
		t.Errorf("path = %q, want alt.yml", path)
	}

	if _, _, err = source.Load(ctx, "absent"); err == nil {
		t.Error("Load(absent) succeeded, want error")
	}
	if _, _, err = source.Load(ctx, "../etc/passwd"); err == nil {
		t.Error("Load() accepted a path-traversal policy id")
	}
}

func TestNewFileSource_RejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := NewFileSource(file, nil); err == nil {
		t.Error("NewFileSource() accepted a regular file")
	}
	if _, err := NewFileSource(filepath.Join(file, "missing"), nil); err == nil {
		t.Error("NewFileSource() accepted a missing directory")
	}
}

func TestFileSource_WatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	source, err := NewFileSourceWithDebounce(dir, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileSourceWithDebounce() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 8)
	go func() {
		_ = source.Watch(ctx, func(policyID string) { changed <- policyID })
	}()

	// The watcher needs a moment to register before the write.
	deadline := time.After(5 * time.Second)
	for {
		if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("policy_id: base"), 0o644); err != nil {
			t.Fatalf("failed to write policy: %v", err)
		}
		select {
		case id := <-changed:
			if id != "base" {
				t.Errorf("changed policy = %q, want base", id)
			}
			return
		case <-deadline:
			t.Fatal("no change notification within deadline")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestPolicyIDFromPath(t *testing.T) {
	tests := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{"policies/base.yaml", "base", true},
		{"policies/base.yml", "base", true},
		{"/abs/dir/nested.yaml", "nested", true},
		{"policies/.base.yaml.swp", "", false},
		{"policies/readme.txt", "", false},
		{"policies/notes.md", "", false},
	}

	for _, tt := range tests {
		id, ok := policyIDFromPath(tt.path)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("policyIDFromPath(%q) = (%q, %v), want (%q, %v)",
				tt.path, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

// ============================================================================
// MemorySource Tests
// ============================================================================

func TestMemorySource_PutNotifiesWatchers(t *testing.T) {
	source := NewMemorySource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 1)
	registered := make(chan struct{})
	go func() {
		close(registered)
		_ = source.Watch(ctx, func(policyID string) { changed <- policyID })
	}()
	<-registered

	// Watch registers under its own lock; retry until the callback is in.
	deadline := time.After(5 * time.Second)
	for {
		source.Put("base", []byte("policy_id: base"))
		select {
		case id := <-changed:
			if id != "base" {
				t.Errorf("changed policy = %q, want base", id)
			}
			data, _, err := source.Load(ctx, "base")
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if string(data) != "policy_id: base" {
				t.Errorf("data = %q", data)
			}
			return
		case <-deadline:
			t.Fatal("no change notification within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMemorySource_LoadUnknown(t *testing.T) {
	if _, _, err := NewMemorySource().Load(context.Background(), "absent"); err == nil {
		t.Error("Load(absent) succeeded, want error")
	}
}
