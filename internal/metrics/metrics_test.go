package metrics

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/prober"
)

func aliveCandidate(protocol candidate.Protocol, anonymity candidate.Anonymity, latency int) *candidate.Candidate {
	c := candidate.New("203.0.113.10", 8080)
	c.Tested = true
	c.Alive = true
	c.Protocol = protocol
	c.Anonymity = anonymity
	c.Latency = latency
	return c
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.registry == nil {
		t.Error("NewCollector() did not initialize registry")
	}
}

func TestRecordProbe(t *testing.T) {
	collector := NewCollector()

	report := prober.Report{Attempts: []prober.Attempt{
		{Protocol: candidate.ProtocolHTTP, Kind: prober.KindRefused, Err: errors.New("refused")},
		{Protocol: candidate.ProtocolSOCKS4, Kind: prober.KindNone},
	}}
	collector.RecordProbe(aliveCandidate(candidate.ProtocolSOCKS4, candidate.AnonymityElite, 250), report, time.Second)

	if testutil.ToFloat64(collector.candidatesScanned) != 1 {
		t.Errorf("Expected candidatesScanned to be 1, got %f", testutil.ToFloat64(collector.candidatesScanned))
	}
	if v := testutil.ToFloat64(collector.proxiesAlive.WithLabelValues("SOCKS4")); v != 1 {
		t.Errorf("Expected SOCKS4 alive to be 1, got %f", v)
	}
	if v := testutil.ToFloat64(collector.proxiesByLevel.WithLabelValues("Elite")); v != 1 {
		t.Errorf("Expected Elite to be 1, got %f", v)
	}
	if v := testutil.ToFloat64(collector.attempts.WithLabelValues("HTTP", "refused")); v != 1 {
		t.Errorf("Expected one refused HTTP attempt, got %f", v)
	}
	if v := testutil.ToFloat64(collector.attempts.WithLabelValues("SOCKS4", "none")); v != 1 {
		t.Errorf("Expected one successful SOCKS4 attempt, got %f", v)
	}
	if testutil.ToFloat64(collector.proxiesDead) != 0 {
		t.Errorf("Expected proxiesDead to be 0, got %f", testutil.ToFloat64(collector.proxiesDead))
	}
}

func TestRecordDeadProbe(t *testing.T) {
	collector := NewCollector()

	dead := candidate.New("203.0.113.11", 80)
	dead.Tested = true
	collector.RecordProbe(dead, prober.Report{
		Attempts:        []prober.Attempt{{Protocol: candidate.ProtocolHTTP, Kind: prober.KindTimeout}},
		TimeoutExceeded: true,
	}, 20*time.Second)
	collector.RecordProbe(dead, prober.Report{Terminated: true}, 0)

	if testutil.ToFloat64(collector.proxiesDead) != 2 {
		t.Errorf("Expected proxiesDead to be 2, got %f", testutil.ToFloat64(collector.proxiesDead))
	}
	if testutil.ToFloat64(collector.probesTimedOut) != 1 {
		t.Errorf("Expected probesTimedOut to be 1, got %f", testutil.ToFloat64(collector.probesTimedOut))
	}
	if testutil.ToFloat64(collector.probesTerminated) != 1 {
		t.Errorf("Expected probesTerminated to be 1, got %f", testutil.ToFloat64(collector.probesTerminated))
	}
}

func TestGaugeUpdates(t *testing.T) {
	collector := NewCollector()

	collector.SetQueueRemaining(100)
	collector.SetWorkersActive(10)
	collector.SetPaused(true)

	if testutil.ToFloat64(collector.queueRemaining) != 100 {
		t.Errorf("Expected queueRemaining to be 100, got %f", testutil.ToFloat64(collector.queueRemaining))
	}

	if testutil.ToFloat64(collector.workersActive) != 10 {
		t.Errorf("Expected workersActive to be 10, got %f", testutil.ToFloat64(collector.workersActive))
	}

	if testutil.ToFloat64(collector.scanPaused) != 1 {
		t.Errorf("Expected scanPaused to be 1, got %f", testutil.ToFloat64(collector.scanPaused))
	}

	collector.SetPaused(false)
	if testutil.ToFloat64(collector.scanPaused) != 0 {
		t.Errorf("Expected scanPaused to be 0, got %f", testutil.ToFloat64(collector.scanPaused))
	}
}

func TestStartStopServer(t *testing.T) {
	collector := NewCollector()

	// Use port 0 to let OS choose
	err := collector.StartServer(ServerConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if collector.Addr() == "" {
		t.Error("Expected a bound address")
	}

	err = collector.StopServer()
	if err != nil {
		t.Errorf("Failed to stop server: %v", err)
	}

	// Stopping an already stopped server should not error
	err = collector.StopServer()
	if err != nil {
		t.Errorf("Unexpected error stopping already stopped server: %v", err)
	}
}

func TestStartServerTwice(t *testing.T) {
	collector := NewCollector()

	err := collector.StartServer(ServerConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Failed to start server first time: %v", err)
	}
	defer collector.StopServer()

	err = collector.StartServer(ServerConfig{Addr: "127.0.0.1:0"})
	if err == nil {
		t.Error("Expected error when starting server twice, but got nil")
	}
}

func TestStartServerBadAddress(t *testing.T) {
	collector := NewCollector()
	err := collector.StartServer(ServerConfig{Addr: "256.0.0.1:bogus"})
	if err == nil {
		collector.StopServer()
		t.Fatal("Expected listen error for bad address")
	}
	if !perrors.IsNetworkError(err) {
		t.Errorf("Expected network error, got %v", err)
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	collector := NewCollector()
	collector.RecordProbe(aliveCandidate(candidate.ProtocolHTTP, candidate.AnonymityHigh, 120), prober.Report{}, time.Second)

	feed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "feed")
	})
	err := collector.StartServer(ServerConfig{Addr: "127.0.0.1:0", Path: "/stats", FeedPath: "/feed", Feed: feed})
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer collector.StopServer()

	base := "http://" + collector.Addr()

	status, body := get(t, base+"/stats")
	if status != http.StatusOK || !strings.Contains(body, "proxyjudge_proxies_alive_total") {
		t.Errorf("Unexpected metrics response %d: %s", status, body)
	}

	status, body = get(t, base+"/health")
	if status != http.StatusOK || body != "OK" {
		t.Errorf("Unexpected health response %d: %s", status, body)
	}

	status, body = get(t, base+"/feed")
	if status != http.StatusOK || body != "feed" {
		t.Errorf("Unexpected feed response %d: %s", status, body)
	}
}

func TestMetricsGather(t *testing.T) {
	collector := NewCollector()
	collector.RecordProbe(aliveCandidate(candidate.ProtocolSOCKS5, candidate.AnonymityHigh, 800), prober.Report{}, time.Second)
	collector.SetWorkersActive(3)

	gatherer := prometheus.Gatherers{collector.GetRegistry()}
	metricFamilies, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	var foundScanned, foundWorkers, foundLatency bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "proxyjudge_candidates_scanned_total":
			foundScanned = true
			if mf.Metric[0].Counter.GetValue() != 1 {
				t.Errorf("Expected candidates_scanned_total to be 1, got %f", mf.Metric[0].Counter.GetValue())
			}
		case "proxyjudge_workers_active":
			foundWorkers = true
			if mf.Metric[0].Gauge.GetValue() != 3 {
				t.Errorf("Expected workers_active to be 3, got %f", mf.Metric[0].Gauge.GetValue())
			}
		case "proxyjudge_proxy_latency_seconds":
			foundLatency = true
			if mf.Metric[0].Histogram.GetSampleCount() != 1 {
				t.Errorf("Expected one latency sample, got %d", mf.Metric[0].Histogram.GetSampleCount())
			}
		}
	}

	if !foundScanned {
		t.Error("Did not find proxyjudge_candidates_scanned_total metric")
	}
	if !foundWorkers {
		t.Error("Did not find proxyjudge_workers_active metric")
	}
	if !foundLatency {
		t.Error("Did not find proxyjudge_proxy_latency_seconds metric")
	}
}

// Benchmark tests
func BenchmarkRecordProbe(b *testing.B) {
	collector := NewCollector()
	c := aliveCandidate(candidate.ProtocolHTTP, candidate.AnonymityElite, 100)
	report := prober.Report{Attempts: []prober.Attempt{{Protocol: candidate.ProtocolHTTP, Kind: prober.KindNone}}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.RecordProbe(c, report, time.Millisecond*100)
	}
}

func BenchmarkSetGauges(b *testing.B) {
	collector := NewCollector()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.SetQueueRemaining(i % 1000)
		collector.SetWorkersActive(i % 50)
	}
}
