// Package classifier assigns a closed taxonomy of error types to
// arbitrary errors coming back from generation-backend calls, and carries
// the retry policy associated with each type. It is grounded on
// error_classifier.py's ErrorType/ClassifiedError/ErrorClassifier and on
// the teacher's own stdlib-only classification helpers in
// common/httpErrors.go.
package classifier

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorType is the closed set of classification buckets. Keep in sync
// with SPEC_FULL.md §4.4 / §7.
type ErrorType int

const (
	Unknown ErrorType = iota
	Network
	RateLimit
	InvalidInput
	Transient
	Permanent
)

func (t ErrorType) String() string {
	switch t {
	case Network:
		return "NETWORK"
	case RateLimit:
		return "RATE_LIMIT"
	case InvalidInput:
		return "INVALID_INPUT"
	case Transient:
		return "TRANSIENT"
	case Permanent:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// RetryPolicy is the fixed per-type retry behavior, mirroring
// ClassifiedError.__post_init__'s table in error_classifier.py exactly.
type RetryPolicy struct {
	Retryable  bool
	MaxRetries int
	BaseDelay  time.Duration
}

var policies = map[ErrorType]RetryPolicy{
	Network:      {Retryable: true, MaxRetries: 5, BaseDelay: 1 * time.Second},
	RateLimit:    {Retryable: true, MaxRetries: 5, BaseDelay: 30 * time.Second},
	InvalidInput: {Retryable: false, MaxRetries: 0, BaseDelay: 0},
	Transient:    {Retryable: true, MaxRetries: 3, BaseDelay: 2 * time.Second},
	Permanent:    {Retryable: false, MaxRetries: 0, BaseDelay: 0},
	Unknown:      {Retryable: true, MaxRetries: 2, BaseDelay: 5 * time.Second},
}

const maxRetryDelay = 300 * time.Second

// ClassifiedError pairs an underlying error with its assigned type and
// retry policy, same shape as error_classifier.py's ClassifiedError.
type ClassifiedError struct {
	Type       ErrorType
	Err        error
	StatusCode int
	RetryPolicy
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Type.String()
	}
	return e.Type.String() + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// RetryDelay returns the backoff delay for the given 1-indexed attempt,
// capped at 300s — the same cap error_classifier.py's get_retry_delay uses.
func (e *ClassifiedError) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := e.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// statusCodeMap mirrors ErrorClassifier.STATUS_CODE_MAP exactly.
var statusCodeMap = map[int]ErrorType{
	http.StatusTooManyRequests:     RateLimit,
	http.StatusBadRequest:          InvalidInput,
	http.StatusNotFound:            InvalidInput,
	http.StatusMethodNotAllowed:    InvalidInput,
	422:                            InvalidInput,
	http.StatusUnauthorized:        Permanent,
	http.StatusForbidden:           Permanent,
	http.StatusPaymentRequired:     Permanent,
	http.StatusInternalServerError: Transient,
	http.StatusBadGateway:          Transient,
	http.StatusServiceUnavailable:  Transient,
	http.StatusGatewayTimeout:      Transient,
}

// StatusCode, when not zero, lets a caller pass the HTTP status code that
// came back alongside the error, since Go errors don't carry one the way
// an httpx exception does.
func Classify(err error, statusCode int) *ClassifiedError {
	t := determineType(err, statusCode)
	p := policies[t]
	return &ClassifiedError{Type: t, Err: err, StatusCode: statusCode, RetryPolicy: p}
}

func determineType(err error, statusCode int) ErrorType {
	if err == nil && statusCode == 0 {
		return Unknown
	}

	// 1. context / network-level errors, checked before the status map so
	// a timeout reported alongside a misleading status code is still
	// classified as NETWORK, as error_classifier.py prioritizes exception
	// type over status code.
	if errors.Is(err, context.DeadlineExceeded) {
		return Network
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Network
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Network
	}

	// 2. status code table.
	if statusCode != 0 {
		if t, ok := statusCodeMap[statusCode]; ok {
			return t
		}
	}

	// 3. substring fallback against the error message, mirroring
	// error_classifier.py's _determine_type final branch.
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "timeout"):
			return Network
		case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
			return RateLimit
		case strings.Contains(msg, "invalid"), strings.Contains(msg, "validation"):
			return InvalidInput
		case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"), strings.Contains(msg, "api key"):
			return Permanent
		}
	}

	return Unknown
}
