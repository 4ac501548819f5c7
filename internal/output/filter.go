package output

import (
	"fmt"
	"strings"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// Filter selects which working proxies are exported
type Filter struct {
	// Type is one of http, socks, socks4, socks5 or all. Empty means all.
	Type string `json:"type,omitempty"`

	// When none of these are set every anonymity level is exported
	Elite       bool `json:"elite,omitempty"`
	High        bool `json:"high,omitempty"`
	Transparent bool `json:"transparent,omitempty"`
}

var filterTypes = map[string]bool{"": true, "all": true, "http": true, "socks": true, "socks4": true, "socks5": true}

// Validate checks the type name
func (f Filter) Validate() error {
	if !filterTypes[strings.ToLower(f.Type)] {
		return errors.NewConfigError(errors.ErrorConfigInvalid,
			fmt.Sprintf("unknown proxy type %q (want http, socks, socks4, socks5 or all)", f.Type), nil)
	}
	return nil
}

// Match reports whether an alive candidate passes the filter
func (f Filter) Match(c *candidate.Candidate) bool {
	if !c.Alive {
		return false
	}

	switch strings.ToLower(f.Type) {
	case "http":
		if c.Protocol != candidate.ProtocolHTTP {
			return false
		}
	case "socks":
		if !c.Protocol.IsSOCKS() {
			return false
		}
	case "socks4":
		if c.Protocol != candidate.ProtocolSOCKS4 && c.Protocol != candidate.ProtocolSOCKS4a {
			return false
		}
	case "socks5":
		if c.Protocol != candidate.ProtocolSOCKS5 {
			return false
		}
	}

	if !f.Elite && !f.High && !f.Transparent {
		return true
	}
	switch c.Anonymity {
	case candidate.AnonymityElite:
		return f.Elite
	case candidate.AnonymityHigh:
		return f.High
	case candidate.AnonymityTransparent:
		return f.Transparent
	}
	return false
}

// Select returns the candidates that pass the filter, keeping their order
func (f Filter) Select(cands []*candidate.Candidate) []*candidate.Candidate {
	var out []*candidate.Candidate
	for _, c := range cands {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// String describes a non-default filter, or returns ""
func (f Filter) String() string {
	var parts []string
	if t := strings.ToLower(f.Type); t != "" && t != "all" {
		parts = append(parts, "type="+t)
	}
	var levels []string
	if f.Elite {
		levels = append(levels, "elite")
	}
	if f.High {
		levels = append(levels, "high")
	}
	if f.Transparent {
		levels = append(levels, "transparent")
	}
	if len(levels) > 0 {
		parts = append(parts, "anonymity="+strings.Join(levels, ","))
	}
	return strings.Join(parts, " ")
}
