package prober

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
)

// ErrorKind classifies why a single protocol attempt failed
type ErrorKind string

const (
	KindNone      ErrorKind = "none"
	KindTimeout   ErrorKind = "timeout"
	KindRefused   ErrorKind = "refused"
	KindDNS       ErrorKind = "dns"
	KindDial      ErrorKind = "dial"
	KindProtocol  ErrorKind = "protocol"
	KindEmptyBody ErrorKind = "empty_body"
	KindBadStatus ErrorKind = "bad_status"
	KindCanceled  ErrorKind = "canceled"
	KindPortRange ErrorKind = "port_range"
)

// Attempt records the outcome of trying one protocol variant
type Attempt struct {
	Protocol candidate.Protocol
	Kind     ErrorKind
	Status   int
	Elapsed  time.Duration
	Err      error
}

// Report lists every attempt made during one probe cycle
type Report struct {
	Attempts        []Attempt
	TimeoutExceeded bool
	Terminated      bool
}

// LastError returns the error of the final attempt, if any
func (r Report) LastError() error {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1].Err
}

func classifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	if strings.Contains(err.Error(), "connection refused") {
		return KindRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	// a plain dial failure, such as an unreachable network; SOCKS handshake
	// errors carry their own op name and stay protocol failures
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	return KindProtocol
}

func errorCode(kind ErrorKind) perrors.ErrorCode {
	switch kind {
	case KindTimeout:
		return perrors.ErrorConnectionTimeout
	case KindRefused:
		return perrors.ErrorConnectionRefused
	case KindDNS:
		return perrors.ErrorDNSResolutionFailed
	case KindDial:
		return perrors.ErrorProbeDialFailed
	case KindEmptyBody:
		return perrors.ErrorProbeEmptyResponse
	case KindBadStatus:
		return perrors.ErrorProbeUnexpectedStatus
	case KindCanceled:
		return perrors.ErrorProbeCanceled
	case KindPortRange:
		return perrors.ErrorProbePortOutOfRange
	default:
		return perrors.ErrorProbeHandshakeFailed
	}
}
