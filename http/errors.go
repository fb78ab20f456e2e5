package http

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConnectionError reports a request that failed before any HTTP response
// was received: DNS failures, refused connections, TLS errors and timeouts.
// Responses with 4xx or 5xx statuses are never reported this way.
type ConnectionError struct {
	Method string
	URL    string

	// Err is the underlying transport error.
	Err error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("connection failed")
	if e.Method != "" {
		b.WriteString(": ")
		b.WriteString(e.Method)
		b.WriteString(" ")
		b.WriteString(e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a timeout or an expired
// deadline.
func (e *ConnectionError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError reports a response body that could not be decoded as JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("decode response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AsConnectionError extracts *ConnectionError.
func AsConnectionError(err error) (*ConnectionError, bool) {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func IsConnectionError(err error) bool {
	_, ok := AsConnectionError(err)
	return ok
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
