package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTimeout is returned when a call exceeds its deadline. It is never
	// wrapped inside an AdapterError, so the two stay distinguishable.
	ErrTimeout = errors.New("provider call timed out")

	// ErrMissingAPIKey is returned by constructors given no credential.
	ErrMissingAPIKey = errors.New("api key is required")
)

// AdapterError is a provider failure other than a timeout: a non-2xx
// response, an unusable body, or a transport error.
type AdapterError struct {
	Status    int
	Body      string
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	switch {
	case e == nil:
		return "provider error"
	case e.Err != nil:
		return e.Err.Error()
	case e.Body != "":
		return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorClass buckets provider failures for logs and telemetry.
type ErrorClass string

const (
	ClassNone        ErrorClass = ""
	ClassTimeout     ErrorClass = "timeout"
	ClassCanceled    ErrorClass = "canceled"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassServer      ErrorClass = "server"
	ClassClient      ErrorClass = "client"
	ClassNetwork     ErrorClass = "network"
	ClassOther       ErrorClass = "other"
)

// Classify returns the class of err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if status := StatusCode(err); status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			return ClassRateLimited
		case status >= 500:
			return ClassServer
		case status >= 400:
			return ClassClient
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}
	return ClassOther
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Status
	}
	return 0
}

// IsTransient reports whether a later call to the same provider could
// succeed.
func IsTransient(err error) bool {
	switch Classify(err) {
	case ClassTimeout, ClassRateLimited, ClassServer, ClassNetwork:
		return true
	case ClassNone, ClassCanceled:
		return false
	}
	var adapterErr *AdapterError
	return errors.As(err, &adapterErr) && adapterErr.Temporary
}
