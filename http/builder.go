package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// BodyFormat selects how request bodies are encoded.
type BodyFormat int

const (
	// FormatJSON encodes the body as JSON. This is the default.
	FormatJSON BodyFormat = iota
	// FormatForm encodes the body as application/x-www-form-urlencoded.
	FormatForm
	// FormatMultipart encodes the body as multipart/form-data.
	FormatMultipart
)

// String returns the lower-case name of the format.
func (f BodyFormat) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatForm:
		return "form"
	case FormatMultipart:
		return "multipart"
	default:
		return "unknown"
	}
}

// AuthScheme identifies the HTTP authentication scheme.
type AuthScheme string

const (
	AuthBasic  AuthScheme = "basic"
	AuthDigest AuthScheme = "digest"
)

// Auth holds the credentials sent with every request made by a Builder.
type Auth struct {
	Username string
	Password string
	Scheme   AuthScheme
}

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

type requestConfig struct {
	format     BodyFormat
	header     http.Header
	auth       *Auth
	timeout    time.Duration
	noRedirect bool
	httpClient *http.Client
	logger     *slog.Logger
}

// Builder accumulates request configuration through chained calls and
// sends requests with it. The zero value is usable and equivalent to New().
//
// Builder is a value: every configuration method returns an updated copy
// and leaves the receiver untouched. Send-time data (query and body
// parameters) is never stored, so reusing a Builder for several requests
// does not carry parameters from one request into the next.
type Builder struct {
	cfg requestConfig
}

// Option configures a Builder at construction time.
type Option func(*requestConfig)

// WithHTTPClient sets the base *http.Client used for sending. The client is
// cloned for every request, so its Timeout and CheckRedirect are never
// modified.
func WithHTTPClient(client *http.Client) Option {
	return func(c *requestConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for request tracing and transport
// warnings. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *requestConfig) {
		c.logger = logger
	}
}

// New creates a Builder with the defaults: JSON bodies, redirects followed,
// and 4xx/5xx statuses returned as ordinary responses.
//
// Example:
//
//	b := http.New().Accept("application/json").Timeout(5 * time.Second)
func New(options ...Option) Builder {
	cfg := requestConfig{
		format: FormatJSON,
		header: make(http.Header),
	}

	for _, option := range options {
		option(&cfg)
	}

	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return Builder{cfg: cfg}
}

// with returns a copy of b whose header map may be modified freely.
func (b Builder) with(fn func(*requestConfig)) Builder {
	cfg := b.cfg
	cfg.header = b.cfg.header.Clone()
	if cfg.header == nil {
		cfg.header = make(http.Header)
	}
	fn(&cfg)
	return Builder{cfg: cfg}
}

// WithoutRedirecting disables redirect following. 3xx responses are
// returned to the caller as they are.
func (b Builder) WithoutRedirecting() Builder {
	return b.with(func(c *requestConfig) {
		c.noRedirect = true
	})
}

// AsJSON encodes request bodies as JSON.
func (b Builder) AsJSON() Builder {
	return b.with(func(c *requestConfig) {
		c.format = FormatJSON
		c.header.Set("Content-Type", contentTypeJSON)
	})
}

// AsFormParams encodes request bodies as URL-encoded form fields.
func (b Builder) AsFormParams() Builder {
	return b.with(func(c *requestConfig) {
		c.format = FormatForm
		c.header.Set("Content-Type", contentTypeForm)
	})
}

// AsMultipart encodes request bodies as multipart/form-data. Any explicit
// Content-Type is dropped because the transport supplies one carrying the
// part boundary.
func (b Builder) AsMultipart() Builder {
	return b.with(func(c *requestConfig) {
		c.format = FormatMultipart
		c.header.Del("Content-Type")
	})
}

// ContentType sets the Content-Type header.
func (b Builder) ContentType(contentType string) Builder {
	return b.WithHeader("Content-Type", contentType)
}

// Accept sets the Accept header.
func (b Builder) Accept(value string) Builder {
	return b.WithHeader("Accept", value)
}

// WithHeader sets a single header, replacing any earlier value for the same
// (case-insensitive) name.
func (b Builder) WithHeader(key, value string) Builder {
	return b.WithHeaders(map[string]string{key: value})
}

// WithHeaders merges headers into the configuration. Names are matched
// case-insensitively and the later value wins.
func (b Builder) WithHeaders(headers map[string]string) Builder {
	return b.with(func(c *requestConfig) {
		for key, value := range headers {
			c.header.Set(key, value)
		}
	})
}

// WithBasicAuth sends credentials using HTTP basic authentication,
// replacing any earlier credentials.
func (b Builder) WithBasicAuth(username, password string) Builder {
	return b.withAuth(username, password, AuthBasic)
}

// WithDigestAuth sends credentials using HTTP digest authentication,
// replacing any earlier credentials.
func (b Builder) WithDigestAuth(username, password string) Builder {
	return b.withAuth(username, password, AuthDigest)
}

func (b Builder) withAuth(username, password string, scheme AuthScheme) Builder {
	return b.with(func(c *requestConfig) {
		c.auth = &Auth{Username: username, Password: password, Scheme: scheme}
	})
}

// Timeout limits how long a request may take, including connection setup,
// redirects and reading the response body. Zero means no limit.
func (b Builder) Timeout(timeout time.Duration) Builder {
	return b.with(func(c *requestConfig) {
		c.timeout = timeout
	})
}

// Format returns the configured body format.
func (b Builder) Format() BodyFormat {
	return b.cfg.format
}

// Header returns a copy of the configured headers.
func (b Builder) Header() http.Header {
	return b.cfg.header.Clone()
}
