package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Timing stores how long each phase of a request took. Phases that did not
// happen (for example TLS on plain HTTP, or DNS on a reused connection) are
// zero.
type Timing struct {
	// DNSLookup is the time spent resolving the host name
	DNSLookup time.Duration

	// TCPConnect is the time spent establishing the TCP connection
	TCPConnect time.Duration

	// TLSHandshake is the time spent on the TLS handshake
	TLSHandshake time.Duration

	// ServerTime is the time between sending the request and the first response byte
	ServerTime time.Duration

	// Total is the time from request start to the end of the body
	Total time.Duration

	// ConnReused reports whether an idle connection was reused
	ConnReused bool
}

// Headers is a single-value view of response headers, keyed by canonical
// header name. Get matches names case-insensitively.
type Headers map[string]string

// Get returns the value for name, or "" when absent.
func (h Headers) Get(name string) string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

// Response is an immutable view of an HTTP response.
//
// The status-class predicates are mutually exclusive. Codes outside 200-599
// (informational 1xx, or anything nonstandard) satisfy none of them.
type Response struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
	timing     Timing
}

// NewResponse wraps a status, header set and fully read body.
func NewResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		status:     status,
		statusText: statusLine(status),
		header:     header.Clone(),
		body:       append([]byte(nil), body...),
	}
}

func statusLine(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return strconv.Itoa(status)
}

// Status returns the HTTP status code.
func (r *Response) Status() int {
	return r.status
}

// StatusText returns the status line as sent by the server, e.g. "200 OK".
func (r *Response) StatusText() string {
	return r.statusText
}

// Header returns the first value of the named header, matched
// case-insensitively. Returns "" if the header is absent.
func (r *Response) Header(name string) string {
	return r.header.Get(name)
}

// Headers returns every header with its first value.
func (r *Response) Headers() Headers {
	headers := make(Headers, len(r.header))
	for name, values := range r.header {
		if len(values) > 0 {
			headers[textproto.CanonicalMIMEHeaderKey(name)] = values[0]
		}
	}
	return headers
}

// Body returns the raw response body as text.
func (r *Response) Body() string {
	return string(r.body)
}

// Bytes returns a copy of the raw response body.
func (r *Response) Bytes() []byte {
	return append([]byte(nil), r.body...)
}

// JSON decodes the body into generic Go values (maps, slices, strings,
// float64, bool, nil). The body is decoded on every call.
func (r *Response) JSON() (any, error) {
	var v any
	if err := r.DecodeJSON(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeJSON unmarshals the body into v.
//
// Example:
//
//	var user struct {
//	    Name string `json:"name"`
//	}
//	if err := resp.DecodeJSON(&user); err != nil {
//	    log.Fatal(err)
//	}
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// Get looks up a value in a JSON body using gjson path syntax, e.g.
// "args.foo" or "items.0.id". The body is not validated first; use JSON to
// detect malformed bodies.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.body, path)
}

// Timing returns the per-phase durations of the request.
func (r *Response) Timing() Timing {
	return r.timing
}

// IsSuccess returns true if the response status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.status >= 200 && r.status < 300
}

// IsOK is an alias for IsSuccess.
func (r *Response) IsOK() bool {
	return r.IsSuccess()
}

// IsRedirect returns true if the response status code is in the 3xx range.
func (r *Response) IsRedirect() bool {
	return r.status >= 300 && r.status < 400
}

// IsClientError returns true if the response status code is in the 4xx range.
func (r *Response) IsClientError() bool {
	return r.status >= 400 && r.status < 500
}

// IsServerError returns true if the response status code is in the 5xx range.
func (r *Response) IsServerError() bool {
	return r.status >= 500 && r.status < 600
}
