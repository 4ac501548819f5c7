package loader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/filter"
	"github.com/ResistanceIsUseless/proxyjudge/internal/sanitizer"
)

// Options control which lines survive an import
type Options struct {
	// KeepMalformed retains entries the parser flags as malformed. They are
	// still probed, against port 80.
	KeepMalformed bool

	// Filter drops candidates inside dangerous ranges. Nil disables it.
	Filter *filter.Filter

	Sanitizer *sanitizer.Sanitizer
}

// Import is the outcome of reading a candidate list
type Import struct {
	Candidates []*candidate.Candidate
	Lines      int
	Bad        int
	Duplicate  int
	Dangerous  int
	Warnings   []string
}

// LoadCandidates reads candidates from a file, one per line. Blank lines and
// lines starting with '#' are skipped, and only the first field of a line is used.
func LoadCandidates(filename string, opts Options) (*Import, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, errors.NewFileError(errors.ErrorFileNotFound, "candidate file not found", filename, err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewFileError(errors.ErrorFileReadFailed, "failed to open candidate file", filename, err)
	}
	defer file.Close()

	clean := opts.Sanitizer
	if clean == nil {
		clean = sanitizer.DefaultSanitizer()
	}

	result := &Import{}
	seen := make(map[string]struct{})
	lineCount := 0
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result.Lines++

		token := clean.SanitizeLine(line)
		if token == "" {
			continue
		}

		c := candidate.Parse(token)
		if c.Malformed {
			result.Bad++
			result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: malformed candidate %q", lineCount, token))
			if !opts.KeepMalformed {
				continue
			}
		}

		// dangerous entries are counted on every occurrence, before dedupe
		if opts.Filter.IsDangerous(c.Key()) {
			result.Dangerous++
			continue
		}

		if _, dup := seen[c.Key()]; dup {
			result.Duplicate++
			continue
		}
		seen[c.Key()] = struct{}{}

		result.Candidates = append(result.Candidates, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.NewFileError(errors.ErrorFileReadFailed, "error reading candidate file", filename, err)
	}

	if len(result.Candidates) == 0 {
		if result.Lines == 0 {
			return result, errors.NewFileError(errors.ErrorFileEmpty, "candidate file is empty", filename, nil)
		}
		return result, errors.NewFileError(errors.ErrorFileInvalidFormat, "no usable candidates found in file", filename, nil).
			WithDetail("lines_read", lineCount).
			WithDetail("bad", result.Bad).
			WithDetail("dangerous", result.Dangerous)
	}

	return result, nil
}
