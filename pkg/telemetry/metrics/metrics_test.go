package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestCollector_ServesRegisteredMetrics(t *testing.T) {
	collector := NewCollector(nil)

	counter := promauto.With(collector.Registry()).NewCounter(prometheus.CounterOpts{
		Name: "saturn_test_events_total",
		Help: "Test counter.",
	})
	counter.Add(3)

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(body), "saturn_test_events_total 3") {
		t.Errorf("exposition missing counter:\n%s", body)
	}
}

func TestCollector_IncludesRuntimeCollectors(t *testing.T) {
	collector := NewCollector(nil)

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
			break
		}
	}
	if !found {
		t.Error("go_goroutines not registered")
	}
}
