package prober

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/pool"
	"github.com/ResistanceIsUseless/proxyjudge/internal/testhelpers"
)

func candidateFor(t *testing.T, addr string) *candidate.Candidate {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("bad address %q: %v", addr, err)
	}
	port, _ := strconv.Atoi(portStr)
	return candidate.New(host, port)
}

func newTestProber(config Config, ownIP string) *Prober {
	clients := pool.NewConnectionPool(pool.Config{Timeout: config.Timeout})
	resolver := NewOwnIP(http.DefaultClient, "", "")
	if ownIP != "" {
		resolver.Set(ownIP)
	}
	return New(config, clients, resolver)
}

func TestSequence(t *testing.T) {
	H, S4, S4a, S5 := candidate.ProtocolHTTP, candidate.ProtocolSOCKS4, candidate.ProtocolSOCKS4a, candidate.ProtocolSOCKS5

	tests := []struct {
		name   string
		http   bool
		socks  bool
		port   int
		expect []candidate.Protocol
	}{
		{"http only on 8080", true, false, 8080, []candidate.Protocol{H}},
		{"http only on 1080", true, false, 1080, []candidate.Protocol{H}},
		{"both on 80", true, true, 80, []candidate.Protocol{H, S4, S5, S4a}},
		{"both on 3128", true, true, 3128, []candidate.Protocol{H, S4, S5, S4a}},
		{"both on 9999", true, true, 9999, []candidate.Protocol{H, S4, S5, S4a}},
		{"both above 53000", true, true, 53001, []candidate.Protocol{H, S4, S5, S4a}},
		{"both on 53000", true, true, 53000, []candidate.Protocol{S4, S5, H, S4a}},
		{"both on 1080", true, true, 1080, []candidate.Protocol{S4, S5, H, S4a}},
		{"socks only on 80", false, true, 80, []candidate.Protocol{S4, S5, S4a}},
		{"nothing enabled", false, false, 80, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sequence(Config{ScanHTTP: tt.http, ScanSOCKS: tt.socks}, tt.port)
			if diff := cmp.Diff(tt.expect, got); diff != "" {
				t.Errorf("Sequence mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ownIP  string
		host   string
		expect candidate.Anonymity
	}{
		{"own ip leaked", "REMOTE_ADDR=203.0.113.7 HTTP_X_FORWARDED_FOR=198.51.100.2", "203.0.113.7", "198.51.100.2", candidate.AnonymityTransparent},
		{"proxy host only", "REMOTE_ADDR=198.51.100.2", "203.0.113.7", "198.51.100.2", candidate.AnonymityHigh},
		{"neither", "REMOTE_ADDR=192.0.2.99", "203.0.113.7", "198.51.100.2", candidate.AnonymityElite},
		{"unknown own ip", "REMOTE_ADDR=192.0.2.99", "", "198.51.100.2", candidate.AnonymityElite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.body, tt.ownIP, tt.host); got != tt.expect {
				t.Errorf("Expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{ScanHTTP: true, Timeout: time.Second, JudgeURL: "http://judge"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	invalid := []Config{
		{Timeout: time.Second, JudgeURL: "http://judge"},
		{ScanSOCKS: true, JudgeURL: "http://judge"},
		{ScanSOCKS: true, Timeout: time.Second},
	}
	for i, cfg := range invalid {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Config %d: expected validation error", i)
		}
	}
}

func TestProbePortOutOfRange(t *testing.T) {
	p := newTestProber(Config{ScanHTTP: true, ScanSOCKS: true, Timeout: time.Second, JudgeURL: "http://127.0.0.1:1"}, "")

	for _, port := range []int{0, 9, 65536} {
		c := candidate.New("127.0.0.1", port)
		report := p.Probe(context.Background(), c)

		if !c.Tested {
			t.Errorf("Port %d: expected tested=true", port)
		}
		if c.Alive {
			t.Errorf("Port %d: expected alive=false", port)
		}
		if len(report.Attempts) != 1 || report.Attempts[0].Kind != KindPortRange {
			t.Errorf("Port %d: expected a single port range rejection, got %+v", port, report.Attempts)
		}
	}
}

func TestProbeHTTPProxyAnonymity(t *testing.T) {
	const ownIP = "203.0.113.7"

	tests := []struct {
		name   string
		body   string
		expect candidate.Anonymity
	}{
		{"transparent", "REMOTE_ADDR = 127.0.0.1 FORWARDED_FOR = " + ownIP, candidate.AnonymityTransparent},
		{"high", "REMOTE_ADDR = 127.0.0.1", candidate.AnonymityHigh},
		{"elite", "hello from the judge", candidate.AnonymityElite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := testhelpers.NewJudge(t, http.StatusOK, tt.body)
			proxyAddr := testhelpers.NewHTTPProxy(t)
			p := newTestProber(Config{ScanHTTP: true, Timeout: 5 * time.Second, JudgeURL: judge.URL}, ownIP)

			c := candidateFor(t, proxyAddr)
			report := p.Probe(context.Background(), c)

			if !c.Alive {
				t.Fatalf("Expected alive, attempts: %+v", report.Attempts)
			}
			if !c.Tested {
				t.Error("Expected tested=true")
			}
			if c.Protocol != candidate.ProtocolHTTP {
				t.Errorf("Expected HTTP, got %s", c.Protocol)
			}
			if c.Anonymity != tt.expect {
				t.Errorf("Expected %s, got %s", tt.expect, c.Anonymity)
			}
			if c.Latency < 0 {
				t.Errorf("Expected non-negative latency, got %d", c.Latency)
			}
		})
	}
}

func TestProbeSOCKS5FallsThroughSOCKS4(t *testing.T) {
	judge := testhelpers.NewJudge(t, http.StatusOK, "ok")
	proxyAddr := testhelpers.NewSOCKS5Proxy(t)
	p := newTestProber(Config{ScanSOCKS: true, Timeout: 5 * time.Second, JudgeURL: judge.URL}, "")

	c := candidateFor(t, proxyAddr)
	report := p.Probe(context.Background(), c)

	if !c.Alive {
		t.Fatalf("Expected alive, attempts: %+v", report.Attempts)
	}
	if c.Protocol != candidate.ProtocolSOCKS5 {
		t.Errorf("Expected SOCKS5, got %s", c.Protocol)
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(report.Attempts))
	}
	if report.Attempts[0].Protocol != candidate.ProtocolSOCKS4 || report.Attempts[0].Kind == KindNone {
		t.Errorf("Expected failed SOCKS4 attempt first, got %+v", report.Attempts[0])
	}
}

func TestProbeSOCKS4(t *testing.T) {
	judge := testhelpers.NewJudge(t, http.StatusOK, "ok")
	proxyAddr := testhelpers.NewSOCKS4Proxy(t)
	p := newTestProber(Config{ScanSOCKS: true, Timeout: 5 * time.Second, JudgeURL: judge.URL}, "")

	c := candidateFor(t, proxyAddr)
	report := p.Probe(context.Background(), c)

	if !c.Alive || c.Protocol != candidate.ProtocolSOCKS4 {
		t.Fatalf("Expected alive SOCKS4, got alive=%v protocol=%s attempts=%+v", c.Alive, c.Protocol, report.Attempts)
	}
	if len(report.Attempts) != 1 {
		t.Errorf("Expected first success to stop the cycle, got %d attempts", len(report.Attempts))
	}
}

func TestAttemptSOCKS4a(t *testing.T) {
	judge := testhelpers.NewJudge(t, http.StatusOK, "ok")
	proxyAddr := testhelpers.NewSOCKS4Proxy(t)
	p := newTestProber(Config{ScanSOCKS: true, Timeout: 5 * time.Second, JudgeURL: judge.URL}, "")

	attempt, body := p.attempt(context.Background(), candidate.ProtocolSOCKS4a, proxyAddr)
	if attempt.Kind != KindNone {
		t.Fatalf("Expected SOCKS4a success, got %s: %v", attempt.Kind, attempt.Err)
	}
	if body != "ok" {
		t.Errorf("Expected body ok, got %q", body)
	}
}

func TestProbeRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"empty body", http.StatusOK, "", KindEmptyBody},
		{"non ok status", http.StatusServiceUnavailable, "try later", KindBadStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := testhelpers.NewJudge(t, tt.status, tt.body)
			proxyAddr := testhelpers.NewHTTPProxy(t)
			p := newTestProber(Config{ScanHTTP: true, Timeout: 5 * time.Second, JudgeURL: judge.URL}, "")

			c := candidateFor(t, proxyAddr)
			report := p.Probe(context.Background(), c)

			if c.Alive {
				t.Error("Expected dead candidate")
			}
			if !c.Tested {
				t.Error("Expected tested=true")
			}
			if c.Latency != -1 {
				t.Errorf("Expected latency -1 for dead candidate, got %d", c.Latency)
			}
			if len(report.Attempts) != 1 || report.Attempts[0].Kind != tt.kind {
				t.Errorf("Expected one %s attempt, got %+v", tt.kind, report.Attempts)
			}
		})
	}
}

func TestProbeStopsAfterTimeout(t *testing.T) {
	hole := testhelpers.NewBlackHole(t)
	judge := testhelpers.NewJudge(t, http.StatusOK, "ok")
	p := newTestProber(Config{ScanHTTP: true, ScanSOCKS: true, Timeout: 300 * time.Millisecond, JudgeURL: judge.URL}, "")

	c := candidateFor(t, hole)
	start := time.Now()
	report := p.Probe(context.Background(), c)

	if !report.TimeoutExceeded {
		t.Error("Expected timeout to be flagged")
	}
	if len(report.Attempts) != 1 {
		t.Errorf("Expected probing to stop after the slow attempt, got %d attempts", len(report.Attempts))
	}
	if c.Alive || !c.Tested {
		t.Errorf("Expected tested dead candidate, got %+v", c)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Probe cycle took too long: %v", elapsed)
	}
}

func TestProbeRefusedTriesEveryVariant(t *testing.T) {
	judge := testhelpers.NewJudge(t, http.StatusOK, "ok")
	p := newTestProber(Config{ScanSOCKS: true, Timeout: 2 * time.Second, JudgeURL: judge.URL}, "")

	c := candidateFor(t, testhelpers.ClosedAddr(t))
	report := p.Probe(context.Background(), c)

	if c.Alive || !c.Tested {
		t.Errorf("Expected tested dead candidate, got %+v", c)
	}
	if len(report.Attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", len(report.Attempts))
	}
	for _, attempt := range report.Attempts {
		if attempt.Kind == KindNone || attempt.Err == nil {
			t.Errorf("Expected failed attempt, got %+v", attempt)
		}
	}
	if report.LastError() == nil {
		t.Error("Expected LastError() to report the final failure")
	}
}

func TestProbeTerminated(t *testing.T) {
	p := newTestProber(Config{ScanHTTP: true, ScanSOCKS: true, Timeout: time.Second, JudgeURL: "http://127.0.0.1:1"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := candidate.New("127.0.0.1", 8080)
	report := p.Probe(ctx, c)

	if !report.Terminated {
		t.Error("Expected terminated report")
	}
	if len(report.Attempts) != 0 {
		t.Errorf("Expected no attempts after termination, got %d", len(report.Attempts))
	}
	if !c.Tested {
		t.Error("Expected tested=true even when terminated")
	}
}

func TestClassifyError(t *testing.T) {
	if classifyError(nil) != KindNone {
		t.Error("nil error should classify as none")
	}
	if classifyError(context.Canceled) != KindCanceled {
		t.Error("context.Canceled should classify as canceled")
	}
	if classifyError(context.DeadlineExceeded) != KindTimeout {
		t.Error("context.DeadlineExceeded should classify as timeout")
	}

	tests := []struct {
		name string
		err  error
		kind ErrorKind
		code perrors.ErrorCode
	}{
		{
			name: "unknown host",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}},
			kind: KindDNS,
			code: perrors.ErrorDNSResolutionFailed,
		},
		{
			name: "unreachable network",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("network is unreachable")},
			kind: KindDial,
			code: perrors.ErrorProbeDialFailed,
		},
		{
			name: "socks handshake",
			err:  &net.OpError{Op: "socks connect", Net: "tcp", Err: errors.New("unknown error general SOCKS server failure")},
			kind: KindProtocol,
			code: perrors.ErrorProbeHandshakeFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := classifyError(tt.err)
			if kind != tt.kind {
				t.Errorf("Expected %s, got %s", tt.kind, kind)
			}
			if code := errorCode(kind); code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, code)
			}
		})
	}
}
