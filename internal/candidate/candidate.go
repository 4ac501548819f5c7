package candidate

import (
	"strconv"
	"strings"
)

// DefaultPort is assigned when the port cannot be recovered from the input
const DefaultPort = 80

// Protocol is the proxy wire protocol a candidate answered on
type Protocol string

const (
	ProtocolHTTP    Protocol = "HTTP"
	ProtocolSOCKS4  Protocol = "SOCKS4"
	ProtocolSOCKS4a Protocol = "SOCKS4a"
	ProtocolSOCKS5  Protocol = "SOCKS5"
)

// IsSOCKS reports whether the protocol belongs to the SOCKS family
func (p Protocol) IsSOCKS() bool {
	return p == ProtocolSOCKS4 || p == ProtocolSOCKS4a || p == ProtocolSOCKS5
}

// Scheme returns the URL scheme used to address a proxy of this protocol
func (p Protocol) Scheme() string {
	switch p {
	case ProtocolSOCKS4:
		return "socks4"
	case ProtocolSOCKS4a:
		return "socks4a"
	case ProtocolSOCKS5:
		return "socks5"
	default:
		return "http"
	}
}

// Anonymity is how much a proxy leaks about the requester
type Anonymity string

const (
	AnonymityTransparent Anonymity = "Transparent"
	AnonymityHigh        Anonymity = "High"
	AnonymityElite       Anonymity = "Elite"
	AnonymityUnknown     Anonymity = "Unknown"
)

// IsAnonymous reports whether the level hides the requester's address
func (a Anonymity) IsAnonymous() bool {
	return a == AnonymityHigh || a == AnonymityElite
}

// Candidate is a host/port pair together with the results of probing it.
// A candidate is mutated only by the worker that dequeued it.
type Candidate struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Malformed bool      `json:"malformed"`
	Tested    bool      `json:"tested"`
	Alive     bool      `json:"alive"`
	Latency   int       `json:"latency_ms"`
	Protocol  Protocol  `json:"protocol,omitempty"`
	Anonymity Anonymity `json:"anonymity"`
	Country   string    `json:"country,omitempty"`
}

// New creates an untested candidate for host and port
func New(host string, port int) *Candidate {
	c := &Candidate{
		Host:      host,
		Port:      port,
		Latency:   -1,
		Protocol:  ProtocolHTTP,
		Anonymity: AnonymityUnknown,
	}
	if strings.HasPrefix(host, "0.") {
		c.Malformed = true
	}
	return c
}

// Parse builds a candidate from "host:port" or "port:host". The token holding
// a dot is taken as the host. Anything other than exactly two non-empty tokens
// yields a malformed candidate holding the raw input and DefaultPort.
func Parse(s string) *Candidate {
	s = strings.TrimSpace(s)

	var parts []string
	for _, p := range strings.Split(s, ":") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) != 2 {
		c := New(s, DefaultPort)
		c.Malformed = true
		return c
	}

	host, portStr := parts[0], parts[1]
	if !strings.Contains(parts[0], ".") && strings.Contains(parts[1], ".") {
		host, portStr = parts[1], parts[0]
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		c := New(host, DefaultPort)
		c.Malformed = true
		return c
	}

	return New(host, port)
}

// Key is the normalized identity used for deduplication
func (c *Candidate) Key() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// String returns the canonical host:port form
func (c *Candidate) String() string {
	return c.Key()
}

// ResetResult clears probe results so the candidate can be scanned again
func (c *Candidate) ResetResult() {
	c.Tested = false
	c.Alive = false
	c.Latency = -1
	c.Protocol = ProtocolHTTP
	c.Anonymity = AnonymityUnknown
	c.Country = ""
}
