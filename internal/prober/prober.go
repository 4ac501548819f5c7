// Package prober decides whether a candidate is a working proxy, which
// protocol it speaks, how fast it answers and how much it reveals about the
// requester.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corpix/uarand"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

const (
	MinPort = 10
	MaxPort = 65535

	maxBodyBytes = 1 << 20
)

// DefaultUserAgent is sent on every probe unless randomisation is enabled
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config is captured once at scan start and shared read-only by all workers
type Config struct {
	ScanHTTP        bool
	ScanSOCKS       bool
	Timeout         time.Duration
	JudgeURL        string
	UserAgent       string
	RandomUserAgent bool
}

// Validate reports whether the configuration allows any probing at all
func (c Config) Validate() error {
	if !c.ScanHTTP && !c.ScanSOCKS {
		return perrors.NewConfigError(perrors.ErrorConfigInvalid, "at least one of HTTP or SOCKS probing must be enabled", nil)
	}
	if c.Timeout <= 0 {
		return perrors.NewConfigError(perrors.ErrorConfigInvalid, "probe timeout must be positive", nil).
			WithDetail("timeout", c.Timeout.String())
	}
	if c.JudgeURL == "" {
		return perrors.NewConfigError(perrors.ErrorConfigInvalid, "judge URL is required", nil)
	}
	return nil
}

// ClientSource builds an HTTP client that routes through addr using protocol
type ClientSource interface {
	GetClient(protocol candidate.Protocol, addr string) (*http.Client, error)
}

// Prober runs probe cycles against the judge endpoint
type Prober struct {
	config  Config
	clients ClientSource
	ownIP   *OwnIP
}

// New creates a prober. ownIP may be nil, in which case no candidate is ever
// classified as transparent.
func New(config Config, clients ClientSource, ownIP *OwnIP) *Prober {
	return &Prober{
		config:  config,
		clients: clients,
		ownIP:   ownIP,
	}
}

// Config returns the configuration the prober was built with
func (p *Prober) Config() Config {
	return p.config
}

// IsHTTPPort reports whether port is conventionally used by HTTP proxies
func IsHTTPPort(port int) bool {
	switch port {
	case 80, 8080, 3128, 9999:
		return true
	}
	return port > 53000
}

// Sequence returns the protocol variants to try for a candidate on port, in
// order of likelihood.
func Sequence(config Config, port int) []candidate.Protocol {
	switch {
	case config.ScanHTTP && config.ScanSOCKS:
		if IsHTTPPort(port) {
			return []candidate.Protocol{candidate.ProtocolHTTP, candidate.ProtocolSOCKS4, candidate.ProtocolSOCKS5, candidate.ProtocolSOCKS4a}
		}
		return []candidate.Protocol{candidate.ProtocolSOCKS4, candidate.ProtocolSOCKS5, candidate.ProtocolHTTP, candidate.ProtocolSOCKS4a}
	case config.ScanHTTP:
		return []candidate.Protocol{candidate.ProtocolHTTP}
	case config.ScanSOCKS:
		return []candidate.Protocol{candidate.ProtocolSOCKS4, candidate.ProtocolSOCKS5, candidate.ProtocolSOCKS4a}
	}
	return nil
}

// Classify derives the anonymity level from what the judge echoed back
func Classify(body, ownIP, host string) candidate.Anonymity {
	if ownIP != "" && strings.Contains(body, ownIP) {
		return candidate.AnonymityTransparent
	}
	if host != "" && strings.Contains(body, host) {
		return candidate.AnonymityHigh
	}
	return candidate.AnonymityElite
}

// Probe runs one probe cycle for c and records the outcome on it. Cancelling
// ctx stops further variants from starting but never interrupts the attempt
// already in flight. Probe never fails; Tested is always set on return.
func (p *Prober) Probe(ctx context.Context, c *candidate.Candidate) Report {
	var report Report
	c.ResetResult()
	defer func() { c.Tested = true }()

	if c.Port < MinPort || c.Port > MaxPort {
		report.Attempts = append(report.Attempts, Attempt{
			Kind: KindPortRange,
			Err: perrors.NewProbeError(perrors.ErrorProbePortOutOfRange, "port out of range", c.Key(), "", nil).
				WithDetail("port", c.Port),
		})
		return report
	}

	addr := c.Key()
	for _, protocol := range Sequence(p.config, c.Port) {
		if report.TimeoutExceeded {
			break
		}
		if ctx.Err() != nil {
			report.Terminated = true
			break
		}

		attempt, body := p.attempt(ctx, protocol, addr)
		if attempt.Elapsed > p.config.Timeout {
			report.TimeoutExceeded = true
		}
		report.Attempts = append(report.Attempts, attempt)

		if attempt.Kind != KindNone {
			continue
		}

		ownIP := ""
		if p.ownIP != nil {
			ownIP, _ = p.ownIP.Get(context.WithoutCancel(ctx))
		}

		c.Alive = true
		c.Protocol = protocol
		c.Latency = int(attempt.Elapsed.Milliseconds())
		c.Anonymity = Classify(body, ownIP, c.Host)
		break
	}

	return report
}

func (p *Prober) attempt(ctx context.Context, protocol candidate.Protocol, addr string) (Attempt, string) {
	attempt := Attempt{Protocol: protocol}
	start := time.Now()

	fail := func(kind ErrorKind, message string, cause error) (Attempt, string) {
		attempt.Elapsed = time.Since(start)
		attempt.Kind = kind
		attempt.Err = perrors.NewProbeError(errorCode(kind), message, addr, string(protocol), cause).
			WithURL(p.config.JudgeURL)
		return attempt, ""
	}

	client, err := p.clients.GetClient(protocol, addr)
	if err != nil {
		return fail(KindProtocol, "cannot build client", err)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, p.config.JudgeURL, nil)
	if err != nil {
		return fail(KindProtocol, "cannot build request", err)
	}
	req.Header.Set("User-Agent", p.userAgent())

	start = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fail(classifyError(err), "request through proxy failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(classifyError(err), "reading judge response failed", err)
	}
	attempt.Status = resp.StatusCode

	if len(raw) == 0 {
		return fail(KindEmptyBody, "judge returned empty body", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return fail(KindBadStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	attempt.Elapsed = time.Since(start)
	attempt.Kind = KindNone
	return attempt, string(raw)
}

func (p *Prober) userAgent() string {
	if p.config.RandomUserAgent {
		return uarand.GetRandom()
	}
	if p.config.UserAgent != "" {
		return p.config.UserAgent
	}
	return DefaultUserAgent
}
