package geo

import (
	"path/filepath"
	"testing"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/testhelpers"
)

func TestOpenEmptyPath(t *testing.T) {
	tagger, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error = %v", err)
	}
	if tagger != nil {
		t.Error("Expected nil tagger for empty path")
	}

	c := candidate.New("8.8.8.8", 80)
	tagger.Enrich(c)
	if c.Country != "" {
		t.Errorf("Expected no country from nil tagger, got %q", c.Country)
	}
	if cc, err := tagger.LookupCC("8.8.8.8"); cc != "" || err != nil {
		t.Errorf("Expected empty lookup, got %q, %v", cc, err)
	}
	if err := tagger.Close(); err != nil {
		t.Errorf("Close() on nil tagger error = %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	if err == nil {
		t.Fatal("Expected error for missing database")
	}
	if !perrors.IsFileError(err) {
		t.Errorf("Expected file error, got %v", err)
	}
}

func TestOpenInvalidFile(t *testing.T) {
	path := testhelpers.WriteLines(t, "bogus.mmdb", "this is not a maxmind database")
	if _, err := Open(path); err == nil {
		t.Error("Expected error for invalid database")
	}
	if _, err := FromBytes([]byte("garbage")); err == nil {
		t.Error("Expected error for invalid bytes")
	}
}

func TestClosedTaggerTagsNothing(t *testing.T) {
	tagger := &Tagger{}
	if cc, err := tagger.LookupCC("1.1.1.1"); cc != "" || err != nil {
		t.Errorf("Expected empty lookup, got %q, %v", cc, err)
	}
	if cc, _ := tagger.LookupCC("not-an-ip"); cc != "" {
		t.Errorf("Expected empty lookup for hostname, got %q", cc)
	}
}
