package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/pdl/ast"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEvent(id string, ts time.Time) *decision.Event {
	return &decision.Event{
		EventID:        id,
		RequestID:      "req-" + id,
		Timestamp:      ts,
		PolicyID:       "base",
		PolicyVersion:  "1.0.0",
		AgentID:        "agent-1",
		Operation:      "read",
		Verdict:        ast.VerdictAllow,
		Reason:         decision.ReasonRuleMatch,
		MatchedRuleIDs: []string{"allow-reads"},
		Latency:        3 * time.Millisecond,
	}
}

// ============================================================================
// Store Tests
// ============================================================================

func TestSQLiteStore_RecordAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := store.Record(ctx, sampleEvent("e1", now)); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	events, err := store.Events(ctx, Query{PolicyID: "base"})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.EventID != "e1" || got.RequestID != "req-e1" {
		t.Errorf("identity = %s/%s, want e1/req-e1", got.EventID, got.RequestID)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
	if got.Verdict != ast.VerdictAllow || got.Reason != decision.ReasonRuleMatch {
		t.Errorf("verdict/reason = %s/%s, want allow/rule_match", got.Verdict, got.Reason)
	}
	if len(got.MatchedRuleIDs) != 1 || got.MatchedRuleIDs[0] != "allow-reads" {
		t.Errorf("MatchedRuleIDs = %v, want [allow-reads]", got.MatchedRuleIDs)
	}
	if got.Latency != 3*time.Millisecond {
		t.Errorf("Latency = %v, want 3ms", got.Latency)
	}
}

func TestSQLiteStore_QueryFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := sampleEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			ev.AgentID = "agent-2"
			ev.Verdict = ast.VerdictDeny
			ev.Reason = decision.ReasonDefaultVerdict
		}
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"all", Query{}, 5},
		{"by agent", Query{AgentID: "agent-2"}, 2},
		{"by verdict", Query{Verdict: ast.VerdictDeny}, 2},
		{"time range", Query{Since: base.Add(time.Minute), Until: base.Add(3 * time.Minute)}, 2},
		{"limit", Query{Limit: 2}, 2},
		{"no match", Query{PolicyID: "other"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Events(ctx, tt.query)
			if err != nil {
				t.Fatalf("Events() failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestSQLiteStore_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := sampleEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second))
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	events, err := store.Events(ctx, Query{})
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if events[0].EventID != "e2" || events[2].EventID != "e0" {
		t.Errorf("order = [%s %s %s], want newest first",
			events[0].EventID, events[1].EventID, events[2].EventID)
	}
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		ev := sampleEvent(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	pruned, err := store.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned %d events, want 2", pruned)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

// ============================================================================
// Recorder Tests
// ============================================================================

func TestRecorder_WritesAsync(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, RecorderConfig{}, nil)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		recorder.Emit(ctx, sampleEvent(fmt.Sprintf("e%d", i), time.Now().UTC()))
	}
	recorder.Close()

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Count() = %d, want 10 after Close drain", count)
	}
	if recorder.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", recorder.Dropped())
	}
}

func TestRecorder_DropsWhenFullWithoutBlocking(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, RecorderConfig{Buffer: 1}, nil)
	defer recorder.Close()

	// A burst far beyond the buffer must return promptly even if some
	// events are discarded.
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		for i := 0; i < 500; i++ {
			recorder.Emit(ctx, sampleEvent(fmt.Sprintf("e%d", i), time.Now().UTC()))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}
