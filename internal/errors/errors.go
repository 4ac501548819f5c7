package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents different types of errors that can occur
type ErrorCode int

const (
	// Configuration errors
	ErrorConfigNotFound ErrorCode = iota + 1000
	ErrorConfigInvalid
	ErrorConfigParsingFailed

	// File I/O errors
	ErrorFileNotFound
	ErrorFileReadFailed
	ErrorFileWriteFailed
	ErrorFileEmpty
	ErrorFileInvalidFormat

	// Network/Connection errors
	ErrorConnectionFailed
	ErrorConnectionTimeout
	ErrorConnectionRefused
	ErrorDNSResolutionFailed
	ErrorOwnIPUnavailable

	// Probe errors
	ErrorProbePortOutOfRange
	ErrorProbeDialFailed
	ErrorProbeHandshakeFailed
	ErrorProbeEmptyResponse
	ErrorProbeUnexpectedStatus
	ErrorProbeCanceled

	// System errors
	ErrorSystemResourceExhausted
	ErrorSystemShutdown
	ErrorUnexpectedPanic
)

// ProxyError represents a structured error with context and error codes
type ProxyError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	Proxy     string                 `json:"proxy,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *ProxyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", e.Code, e.Message)

	var context []string
	for _, kv := range [][2]string{{"operation", e.Operation}, {"proxy", e.Proxy}, {"url", e.URL}} {
		if kv[1] != "" {
			context = append(context, kv[0]+"="+kv[1])
		}
	}
	if len(context) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(context, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is()
func (e *ProxyError) Is(target error) bool {
	if pe, ok := target.(*ProxyError); ok {
		return e.Code == pe.Code
	}
	return false
}

// WithDetail adds a detail to the error
func (e *ProxyError) WithDetail(key string, value interface{}) *ProxyError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithProxy adds proxy context to the error
func (e *ProxyError) WithProxy(proxy string) *ProxyError {
	e.Proxy = proxy
	return e
}

// WithURL adds URL context to the error
func (e *ProxyError) WithURL(url string) *ProxyError {
	e.URL = url
	return e
}

// NewConfigError creates a configuration-related error
func NewConfigError(code ErrorCode, message string, cause error) *ProxyError {
	return &ProxyError{
		Code:      code,
		Message:   message,
		Operation: "config",
		Cause:     cause,
	}
}

// NewFileError creates a file I/O related error
func NewFileError(code ErrorCode, message string, filename string, cause error) *ProxyError {
	return &ProxyError{
		Code:      code,
		Message:   message,
		Operation: "file",
		Cause:     cause,
		Details:   map[string]interface{}{"filename": filename},
	}
}

// NewNetworkError creates a network-related error
func NewNetworkError(code ErrorCode, message string, url string, cause error) *ProxyError {
	return &ProxyError{
		Code:      code,
		Message:   message,
		Operation: "network",
		URL:       url,
		Cause:     cause,
	}
}

// NewProbeError creates an error for a single protocol attempt against a candidate
func NewProbeError(code ErrorCode, message string, proxy string, protocol string, cause error) *ProxyError {
	return &ProxyError{
		Code:      code,
		Message:   message,
		Operation: "probe",
		Proxy:     proxy,
		Cause:     cause,
		Details:   map[string]interface{}{"protocol": protocol},
	}
}

// NewSystemError creates a system-level error
func NewSystemError(code ErrorCode, message string, cause error) *ProxyError {
	return &ProxyError{
		Code:      code,
		Message:   message,
		Operation: "system",
		Cause:     cause,
	}
}

// category is a contiguous range of codes sharing a name
type category struct {
	name     string
	from, to ErrorCode
}

var categories = []category{
	{"Configuration", ErrorConfigNotFound, ErrorConfigParsingFailed},
	{"File I/O", ErrorFileNotFound, ErrorFileInvalidFormat},
	{"Network", ErrorConnectionFailed, ErrorOwnIPUnavailable},
	{"Probe", ErrorProbePortOutOfRange, ErrorProbeCanceled},
	{"System", ErrorSystemResourceExhausted, ErrorUnexpectedPanic},
}

var (
	retryable = map[ErrorCode]bool{
		ErrorConnectionTimeout: true,
		ErrorConnectionRefused: true,
		ErrorOwnIPUnavailable:  true,
		ErrorProbeDialFailed:   true,
	}
	critical = map[ErrorCode]bool{
		ErrorConfigNotFound:          true,
		ErrorConfigInvalid:           true,
		ErrorFileNotFound:            true,
		ErrorSystemResourceExhausted: true,
		ErrorSystemShutdown:          true,
		ErrorUnexpectedPanic:         true,
	}
)

// codeOf finds the first ProxyError in err's chain
func codeOf(err error) (ErrorCode, bool) {
	var pe *ProxyError
	if stderrors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

func inCategory(err error, name string) bool {
	code, ok := codeOf(err)
	if !ok {
		return false
	}
	for _, c := range categories {
		if c.name == name {
			return code >= c.from && code <= c.to
		}
	}
	return false
}

// IsConfigError checks if the error is configuration-related
func IsConfigError(err error) bool { return inCategory(err, "Configuration") }

// IsFileError checks if the error is file I/O related
func IsFileError(err error) bool { return inCategory(err, "File I/O") }

// IsNetworkError checks if the error is network-related
func IsNetworkError(err error) bool { return inCategory(err, "Network") }

// IsSystemError checks if the error is system-related
func IsSystemError(err error) bool { return inCategory(err, "System") }

// IsRetryable reports whether repeating the operation may succeed
func IsRetryable(err error) bool {
	code, ok := codeOf(err)
	return ok && retryable[code]
}

// IsCritical reports whether the error should stop the program
func IsCritical(err error) bool {
	code, ok := codeOf(err)
	return ok && critical[code]
}

// GetErrorCategory returns a human-readable category for the error
func GetErrorCategory(err error) string {
	code, ok := codeOf(err)
	if !ok {
		return "Generic"
	}
	for _, c := range categories {
		if code >= c.from && code <= c.to {
			return c.name
		}
	}
	return fmt.Sprintf("Unknown (%d)", code)
}
