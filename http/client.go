package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// Get sends a GET request. query is merged into the URL's query string;
// explicit keys replace keys of the same name already in the URL. No body
// is sent whatever the configured format.
func (b Builder) Get(ctx context.Context, rawURL string, query any) (*Response, error) {
	return b.Send(ctx, http.MethodGet, rawURL, query)
}

// Head sends a HEAD request. The returned body is always empty.
func (b Builder) Head(ctx context.Context, rawURL string) (*Response, error) {
	return b.Send(ctx, http.MethodHead, rawURL, nil)
}

// Post sends a POST request with body encoded in the configured format.
func (b Builder) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	return b.Send(ctx, http.MethodPost, rawURL, body)
}

// Put sends a PUT request with body encoded in the configured format.
func (b Builder) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return b.Send(ctx, http.MethodPut, rawURL, body)
}

// Patch sends a PATCH request with body encoded in the configured format.
func (b Builder) Patch(ctx context.Context, rawURL string, body any) (*Response, error) {
	return b.Send(ctx, http.MethodPatch, rawURL, body)
}

// Delete sends a DELETE request with body encoded in the configured format.
func (b Builder) Delete(ctx context.Context, rawURL string, body any) (*Response, error) {
	return b.Send(ctx, http.MethodDelete, rawURL, body)
}

// Send prepares and executes a request with any method.
//
// A non-nil error is either a *ConnectionError, when the transport could not
// obtain a response, or a plain error describing an invalid URL or body
// argument, in which case nothing was sent. Responses with error statuses are
// returned with a nil error.
func (b Builder) Send(ctx context.Context, method, rawURL string, body any) (*Response, error) {
	prepared, err := b.Prepare(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	return b.Do(ctx, prepared)
}

// Do executes a request produced by Prepare.
func (b Builder) Do(ctx context.Context, prepared *PreparedRequest) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := b.logger()

	client := newRestyClient(b.cfg.httpClient, prepared, logger)
	req := client.R().SetContext(ctx)

	for key, values := range prepared.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if len(prepared.Query) > 0 {
		req.SetQueryParamsFromValues(prepared.Query)
	}
	if prepared.Auth != nil && prepared.Auth.Scheme != AuthDigest {
		req.SetBasicAuth(prepared.Auth.Username, prepared.Auth.Password)
	}

	switch {
	case prepared.Parts != nil && !restyMultipartMethod(prepared.Method):
		// resty only writes multipart bodies for POST, PUT and PATCH
		body, contentType, err := encodeMultipart(prepared.Parts)
		if err != nil {
			return nil, fmt.Errorf("%s %s: multipart body: %w", prepared.Method, prepared.FullURL(), err)
		}
		req.Header.Set("Content-Type", contentType)
		req.SetBody(body)
	case prepared.Parts != nil:
		req.SetMultipartFields(multipartFields(prepared.Parts)...)
	case prepared.Form != nil:
		req.SetFormDataFromValues(prepared.Form)
	case prepared.Body != nil:
		req.SetBody(prepared.Body)
	}

	logger.Debug("sending request",
		"method", prepared.Method,
		"url", prepared.FullURL(),
		"format", prepared.Format.String())

	restyResp, err := req.Execute(prepared.Method, prepared.URL)
	if err != nil {
		return nil, classifyError(prepared, err)
	}

	resp := wrapResponse(restyResp)

	logger.Debug("received response",
		"method", prepared.Method,
		"url", prepared.FullURL(),
		"status", resp.Status(),
		"duration", resp.timing.Total)

	return resp, nil
}

func (b Builder) logger() *slog.Logger {
	if b.cfg.logger != nil {
		return b.cfg.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRestyClient builds a single-use resty client on a copy of base, so the
// per-request timeout and redirect policy never touch the caller's client.
func newRestyClient(base *http.Client, prepared *PreparedRequest, logger *slog.Logger) *resty.Client {
	httpClient := &http.Client{}
	if base != nil {
		clone := *base
		httpClient = &clone
	}

	client := resty.NewWithClient(httpClient).
		SetLogger(restyLogger{logger: logger}).
		EnableTrace()

	if prepared.Timeout > 0 {
		client.SetTimeout(prepared.Timeout)
	}
	if !prepared.FollowRedirects {
		client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}
	if prepared.Auth != nil && prepared.Auth.Scheme == AuthDigest {
		client.SetDigestAuth(prepared.Auth.Username, prepared.Auth.Password)
	}

	return client
}

func restyMultipartMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func multipartFields(parts []Part) []*resty.MultipartField {
	fields := make([]*resty.MultipartField, 0, len(parts))
	for _, part := range parts {
		fields = append(fields, &resty.MultipartField{
			Param:       part.Name,
			FileName:    part.Filename,
			ContentType: part.contentType(),
			Reader:      part.Contents,
		})
	}
	return fields
}

// classifyError turns failures of the underlying http.Client into
// *ConnectionError. Anything else happened before the request left.
func classifyError(prepared *PreparedRequest, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ConnectionError{
			Method: prepared.Method,
			URL:    prepared.FullURL(),
			Err:    err,
		}
	}
	return fmt.Errorf("%s %s: %w", prepared.Method, prepared.FullURL(), err)
}

func wrapResponse(r *resty.Response) *Response {
	resp := &Response{
		status:     r.StatusCode(),
		statusText: r.Status(),
		header:     r.Header().Clone(),
		body:       r.Body(),
	}
	if resp.statusText == "" {
		resp.statusText = statusLine(resp.status)
	}
	if resp.header == nil {
		resp.header = make(http.Header)
	}

	trace := r.Request.TraceInfo()
	resp.timing = Timing{
		DNSLookup:    trace.DNSLookup,
		TCPConnect:   trace.TCPConnTime,
		TLSHandshake: trace.TLSHandshake,
		ServerTime:   trace.ServerTime,
		Total:        trace.TotalTime,
		ConnReused:   trace.IsConnReused,
	}
	if resp.timing.Total == 0 {
		resp.timing.Total = r.Time()
	}

	return resp
}

// restyLogger routes resty's own warnings through slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "transport")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "transport")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "transport")
}

var _ resty.Logger = restyLogger{}
