package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// A TransientError marks a failure worth retrying: a provider rate limit,
// a 5xx response, or a flaky network path. Clients wrap retryable HTTP
// failures in one so DoVal can tell them apart from hard errors.
type TransientError struct {
	Err    error
	Status int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient. status is the HTTP status that
// triggered it, or 0 for non-HTTP failures.
func NewTransientError(err error, status int) *TransientError {
	return &TransientError{Err: err, Status: status}
}

// IsTransientHTTPStatus reports whether a provider response status is worth
// retrying. 429 covers the NCBI and NewsAPI rate limits; the rest are
// upstream flaps.
func IsTransientHTTPStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// connFailures are socket-level errors that show up when a provider drops
// or refuses a connection mid-run.
var connFailures = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// netFailureHints match wrapped transport errors whose concrete types are
// lost by the time they reach the retry loop.
var netFailureHints = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err (anywhere in its chain) is a
// TransientError, a network timeout, or a known flaky transport failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, cf := range connFailures {
		if errors.Is(err, cf) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range netFailureHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
