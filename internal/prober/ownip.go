package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// DefaultOwnIPURL answers with the caller's public IPv4 as plain text
const DefaultOwnIPURL = "http://v4.ipv6-test.com/api/myip.php"

var ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// OwnIP resolves and caches the caller's public IPv4 address. A successful
// lookup is kept for the lifetime of the value. Failures are not cached
// unless MarkUnavailable is called, after which Get stops going to the
// network. Concurrent first callers may each perform a lookup, which is
// harmless because the result is the same.
type OwnIP struct {
	client   *http.Client
	myIPURL  string
	judgeURL string

	mutex       sync.RWMutex
	value       string
	unavailable error
}

// NewOwnIP creates a resolver that asks myIPURL first and falls back to
// scraping the first IPv4 from the judge page.
func NewOwnIP(client *http.Client, myIPURL, judgeURL string) *OwnIP {
	return &OwnIP{
		client:   client,
		myIPURL:  myIPURL,
		judgeURL: judgeURL,
	}
}

// Known returns the cached address without triggering a lookup
func (o *OwnIP) Known() string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.value
}

// Set primes the cache, for callers that already know their address
func (o *OwnIP) Set(ip string) {
	o.mutex.Lock()
	o.value = ip
	o.unavailable = nil
	o.mutex.Unlock()
}

// MarkUnavailable makes every later Get fail with err without a lookup.
// Used once the address is known to be unreachable for the rest of a run.
func (o *OwnIP) MarkUnavailable(err error) {
	o.mutex.Lock()
	o.unavailable = err
	o.mutex.Unlock()
}

// Get returns the cached address, resolving it on first use
func (o *OwnIP) Get(ctx context.Context) (string, error) {
	o.mutex.RLock()
	ip, unavailable := o.value, o.unavailable
	o.mutex.RUnlock()
	if ip != "" {
		return ip, nil
	}
	if unavailable != nil {
		return "", unavailable
	}

	ip, err := o.resolve(ctx)
	if err != nil {
		return "", err
	}

	o.mutex.Lock()
	if o.value == "" {
		o.value = ip
	}
	ip = o.value
	o.mutex.Unlock()

	return ip, nil
}

func (o *OwnIP) resolve(ctx context.Context) (string, error) {
	if o.myIPURL != "" {
		body, err := o.fetch(ctx, o.myIPURL)
		ip := strings.TrimSpace(body)
		if err == nil && strings.Contains(ip, ".") && len(ip) >= 7 {
			return ip, nil
		}
	}

	if o.judgeURL != "" {
		body, err := o.fetch(ctx, o.judgeURL)
		if err == nil {
			if match := ipv4Pattern.FindString(body); match != "" {
				return match, nil
			}
		}
	}

	return "", perrors.NewNetworkError(perrors.ErrorOwnIPUnavailable,
		"cannot determine own IPv4 address", o.judgeURL, nil).
		WithDetail("myip_url", o.myIPURL)
}

func (o *OwnIP) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
