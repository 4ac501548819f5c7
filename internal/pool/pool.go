package pool

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
)

// ConnectionPool builds HTTP clients that route through a candidate proxy
// using a specific protocol variant. Probe clients never keep connections
// alive; the direct client used for own-IP resolution is cached.
type ConnectionPool struct {
	timeout             time.Duration
	tlsHandshakeTimeout time.Duration
	insecureSkipVerify  bool

	direct      *http.Client
	directMutex sync.Mutex

	built atomic.Int64
}

// Config represents connection pool configuration
type Config struct {
	Timeout             time.Duration `yaml:"timeout"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
	InsecureSkipVerify  bool          `yaml:"insecure_skip_verify"`
}

// DefaultConfig returns a connection pool configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:             20 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		InsecureSkipVerify:  true,
	}
}

// NewConnectionPool creates a new connection pool with the given configuration
func NewConnectionPool(config Config) *ConnectionPool {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.TLSHandshakeTimeout <= 0 || config.TLSHandshakeTimeout > config.Timeout {
		config.TLSHandshakeTimeout = config.Timeout
	}
	return &ConnectionPool{
		timeout:             config.Timeout,
		tlsHandshakeTimeout: config.TLSHandshakeTimeout,
		insecureSkipVerify:  config.InsecureSkipVerify,
	}
}

// Timeout returns the per-attempt timeout applied to every client
func (p *ConnectionPool) Timeout() time.Duration {
	return p.timeout
}

// GetClient returns a client that reaches the network through the proxy at
// addr speaking the given protocol. Connect and read/write are both bounded
// by the pool timeout.
func (p *ConnectionPool) GetClient(protocol candidate.Protocol, addr string) (*http.Client, error) {
	transport := p.baseTransport()

	switch protocol {
	case candidate.ProtocolHTTP:
		proxyURL, err := url.Parse("http://" + addr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", addr, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		dialer := &net.Dialer{Timeout: p.timeout}
		transport.DialContext = dialer.DialContext

	case candidate.ProtocolSOCKS4, candidate.ProtocolSOCKS4a:
		dialSocksProxy := socks.Dial(fmt.Sprintf("%s://%s?timeout=%s", protocol.Scheme(), addr, p.timeout))
		transport.DialContext = func(ctx context.Context, network, target string) (net.Conn, error) {
			conn, err := dialSocksProxy(network, target)
			if err != nil {
				return nil, err
			}
			conn.SetDeadline(time.Now().Add(p.timeout))
			return conn, nil
		}

	case candidate.ProtocolSOCKS5:
		forward := &net.Dialer{Timeout: p.timeout}
		dialer, err := proxy.SOCKS5("tcp", addr, nil, forward)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = func(ctx context.Context, network, target string) (net.Conn, error) {
			conn, err := contextDialer.DialContext(ctx, network, target)
			if err != nil {
				return nil, err
			}
			conn.SetDeadline(time.Now().Add(p.timeout))
			return conn, nil
		}

	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}

	p.built.Add(1)

	return &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// GetDirectClient returns the cached client for unproxied requests
func (p *ConnectionPool) GetDirectClient() *http.Client {
	p.directMutex.Lock()
	defer p.directMutex.Unlock()

	if p.direct == nil {
		transport := p.baseTransport()
		transport.DisableKeepAlives = false
		dialer := &net.Dialer{Timeout: p.timeout}
		transport.DialContext = dialer.DialContext
		p.direct = &http.Client{
			Transport: transport,
			Timeout:   p.timeout,
		}
	}
	return p.direct
}

func (p *ConnectionPool) baseTransport() *http.Transport {
	return &http.Transport{
		TLSHandshakeTimeout:   p.tlsHandshakeTimeout,
		ResponseHeaderTimeout: p.timeout,
		DisableKeepAlives:     true,
		ForceAttemptHTTP2:     false,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: p.insecureSkipVerify,
		},
	}
}

// CloseIdleConnections closes idle connections held by the direct client
func (p *ConnectionPool) CloseIdleConnections() {
	p.directMutex.Lock()
	defer p.directMutex.Unlock()

	if p.direct != nil {
		p.direct.CloseIdleConnections()
	}
}

// PoolStats contains statistics about the connection pool
type PoolStats struct {
	ClientsBuilt int64         `json:"clients_built"`
	Timeout      time.Duration `json:"timeout"`
}

// GetStats returns statistics about the connection pool
func (p *ConnectionPool) GetStats() PoolStats {
	return PoolStats{
		ClientsBuilt: p.built.Load(),
		Timeout:      p.timeout,
	}
}
