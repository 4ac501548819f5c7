// Package filter flags candidates whose address falls inside a list of
// dangerous IPv4 ranges, such as government or law-enforcement networks.
package filter

import (
	"bufio"
	"io"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go4.org/netipx"

	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// rangePattern matches the leading range expression of a line. Accepted forms
// are a partial prefix ("127."), a full address, a CIDR block, or two
// addresses separated by an en dash or hyphen.
var rangePattern = regexp.MustCompile(`^\s*(\d{1,3}(?:\.\d{1,3}){0,3}\.?)(?:\s*[–-]\s*(\d{1,3}(?:\.\d{1,3}){0,3}\.?)|/(\d{1,2}))?`)

// minCandidateLength is the shortest input worth looking up
const minCandidateLength = 8

// Filter answers whether an address lies in a dangerous range. The zero
// value is an uninitialised filter that never matches.
type Filter struct {
	set     *netipx.IPSet
	entries int
}

// Load reads a ranges file
func Load(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.NewFileError(perrors.ErrorFileNotFound, "dangerous ranges file not found", path, err)
		}
		return nil, perrors.NewFileError(perrors.ErrorFileReadFailed, "failed to open dangerous ranges file", path, err)
	}
	defer file.Close()

	f, err := Parse(file)
	if err != nil {
		return nil, perrors.NewFileError(perrors.ErrorFileReadFailed, "failed to read dangerous ranges file", path, err)
	}
	return f, nil
}

// Parse builds a filter from ranges, one per line. Lines that do not start
// with a digit are ignored, as is anything after the range expression.
func Parse(r io.Reader) (*Filter, error) {
	var builder netipx.IPSetBuilder
	entries := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		ipRange, ok := ParseRange(line)
		if !ok {
			continue
		}
		builder.AddRange(ipRange)
		entries++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	set, err := builder.IPSet()
	if err != nil {
		return nil, err
	}
	return &Filter{set: set, entries: entries}, nil
}

// ParseRange turns a single range expression into an address range
func ParseRange(line string) (netipx.IPRange, bool) {
	m := rangePattern.FindStringSubmatch(line)
	if m == nil {
		return netipx.IPRange{}, false
	}

	if m[3] != "" {
		bits, err := strconv.Atoi(m[3])
		if err != nil {
			return netipx.IPRange{}, false
		}
		addr, ok := padAddr(m[1], 0)
		if !ok {
			return netipx.IPRange{}, false
		}
		prefix, err := addr.Prefix(bits)
		if err != nil {
			return netipx.IPRange{}, false
		}
		return netipx.RangeOfPrefix(prefix), true
	}

	second := m[2]
	if second == "" {
		second = m[1]
	}

	from, ok := padAddr(m[1], 0)
	if !ok {
		return netipx.IPRange{}, false
	}
	to, ok := padAddr(second, 255)
	if !ok {
		return netipx.IPRange{}, false
	}
	if to.Less(from) {
		from, _ = padAddr(second, 0)
		to, _ = padAddr(m[1], 255)
	}

	r := netipx.IPRangeFrom(from, to)
	return r, r.IsValid()
}

// padAddr completes a partial dotted address, filling missing octets
func padAddr(s string, fill byte) (netip.Addr, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' })
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, false
	}

	octets := [4]byte{fill, fill, fill, fill}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return netip.Addr{}, false
		}
		octets[i] = byte(n)
	}
	return netip.AddrFrom4(octets), true
}

// Initialized reports whether ranges were loaded
func (f *Filter) Initialized() bool {
	return f != nil && f.set != nil
}

// Len returns the number of range lines loaded
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return f.entries
}

// IsDangerous reports whether the host of a candidate lies in a loaded
// range. It accepts a bare host, host:port or port:host.
func (f *Filter) IsDangerous(hostOrKey string) bool {
	if !f.Initialized() || len(hostOrKey) < minCandidateLength {
		return false
	}

	host := hostOrKey
	for _, token := range strings.Split(hostOrKey, ":") {
		if strings.Contains(token, ".") {
			host = token
			break
		}
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil {
		return false
	}
	return f.set.Contains(addr.Unmap())
}
