// Package geo tags working proxies with the country of their exit address.
package geo

import (
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// countryRecord is the subset of a GeoIP2/GeoLite2/db-ip record we read
type countryRecord struct {
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

// Tagger looks up countries in a MaxMind-format database. A nil Tagger is
// valid and tags nothing.
type Tagger struct {
	mutex  sync.RWMutex
	reader *maxminddb.Reader
}

// Open loads the database at path. An empty path yields a nil Tagger.
func Open(path string) (*Tagger, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, perrors.NewFileError(perrors.ErrorFileInvalidFormat, "cannot open geoip database", path, err)
	}
	return &Tagger{reader: reader}, nil
}

// FromBytes loads a database held in memory
func FromBytes(data []byte) (*Tagger, error) {
	reader, err := maxminddb.FromBytes(data)
	if err != nil {
		return nil, perrors.NewFileError(perrors.ErrorFileInvalidFormat, "cannot parse geoip database", "", err)
	}
	return &Tagger{reader: reader}, nil
}

// LookupCC maps ip to an ISO country code, or "" when unknown
func (t *Tagger) LookupCC(ip string) (string, error) {
	if t == nil {
		return "", nil
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return "", nil
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if t.reader == nil {
		return "", nil
	}

	var record countryRecord
	if err := t.reader.Lookup(addr, &record); err != nil {
		return "", err
	}
	// db-ip style databases leave registered_country empty
	if record.Country.IsoCode != "" {
		return record.Country.IsoCode, nil
	}
	return record.RegisteredCountry.IsoCode, nil
}

// Enrich sets the country of c. Lookup failures leave it empty.
func (t *Tagger) Enrich(c *candidate.Candidate) {
	if t == nil || c == nil {
		return
	}
	if cc, err := t.LookupCC(c.Host); err == nil {
		c.Country = cc
	}
}

// Close releases the database
func (t *Tagger) Close() error {
	if t == nil {
		return nil
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.reader == nil {
		return nil
	}
	err := t.reader.Close()
	t.reader = nil
	return err
}
