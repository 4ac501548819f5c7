package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

// Sanitizer cleans untrusted text read from candidate lists and written to reports
type Sanitizer struct {
	maxLength int
}

// Config represents sanitizer configuration
type Config struct {
	MaxLength int // Maximum length for string fields (default: 256)
}

// NewSanitizer creates a new sanitizer with the given configuration
func NewSanitizer(config Config) *Sanitizer {
	if config.MaxLength <= 0 {
		config.MaxLength = 256
	}
	return &Sanitizer{maxLength: config.MaxLength}
}

// DefaultSanitizer returns a sanitizer with default limits
func DefaultSanitizer() *Sanitizer {
	return NewSanitizer(Config{})
}

var (
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)

	// schemePattern matches a leading proxy URL scheme such as "socks5://"
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// SanitizeString strips control characters, collapses whitespace and limits length
func (s *Sanitizer) SanitizeString(input string) string {
	if input == "" {
		return input
	}

	input = controlCharPattern.ReplaceAllString(input, "")
	input = strings.TrimSpace(whitespacePattern.ReplaceAllString(input, " "))

	if len(input) > s.maxLength {
		input = input[:s.maxLength] + "..."
	}
	return input
}

// SanitizeLine reduces a raw list line to a bare candidate token. Byte order
// marks, control characters, a URL scheme, credentials and any trailing path
// are removed. Lines are not validated here; malformed results are left for
// the candidate parser to flag.
func (s *Sanitizer) SanitizeLine(line string) string {
	line = strings.TrimPrefix(line, "\uFEFF")
	line = strings.TrimFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || IsControlCharacter(r)
	})
	if line == "" {
		return line
	}

	if fields := strings.Fields(line); len(fields) > 0 {
		line = fields[0]
	}
	line = controlCharPattern.ReplaceAllString(line, "")
	line = schemePattern.ReplaceAllString(line, "")

	if at := strings.LastIndex(line, "@"); at >= 0 {
		line = line[at+1:]
	}
	if slash := strings.Index(line, "/"); slash >= 0 {
		line = line[:slash]
	}

	if len(line) > s.maxLength {
		line = line[:s.maxLength]
	}
	return line
}

// IsControlCharacter checks if a rune is a control character
func IsControlCharacter(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}
