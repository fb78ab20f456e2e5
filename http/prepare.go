package http

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
)

// Params is a convenience type for query and body parameters.
type Params map[string]any

// PreparedRequest is the fully resolved form of a request: the builder's
// configuration combined with the send-time URL and parameters. At most one
// of Body, Form and Parts is set, chosen by Format.
type PreparedRequest struct {
	Method string
	// URL is the target without its query string; see Query.
	URL    string
	Query  url.Values
	Header http.Header
	Format BodyFormat

	Body  any
	Form  url.Values
	Parts []Part

	Auth            *Auth
	Timeout         time.Duration
	FollowRedirects bool
}

// FullURL returns URL with the encoded query string appended.
func (p *PreparedRequest) FullURL() string {
	if len(p.Query) == 0 {
		return p.URL
	}
	return p.URL + "?" + p.Query.Encode()
}

// Prepare resolves a request without sending it. For GET and HEAD, body is
// treated as query parameters; for every other method it fills the body slot
// selected by the builder's format.
//
// Query parameters embedded in rawURL are merged with explicit ones. When
// both name the same key, the explicit values replace the URL's.
func (b Builder) Prepare(method, rawURL string, body any) (*PreparedRequest, error) {
	method = strings.ToUpper(method)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	urlQuery, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid query string in %q: %w", rawURL, err)
	}
	u.RawQuery = ""
	u.ForceQuery = false

	prepared := &PreparedRequest{
		Method:          method,
		URL:             u.String(),
		Query:           urlQuery,
		Header:          b.cfg.header.Clone(),
		Format:          b.cfg.format,
		Timeout:         b.cfg.timeout,
		FollowRedirects: !b.cfg.noRedirect,
	}
	if prepared.Header == nil {
		prepared.Header = make(http.Header)
	}
	if b.cfg.auth != nil {
		auth := *b.cfg.auth
		prepared.Auth = &auth
	}

	if method == http.MethodGet || method == http.MethodHead {
		explicit, err := toValues(body)
		if err != nil {
			return nil, fmt.Errorf("query parameters: %w", err)
		}
		mergeQuery(prepared.Query, explicit)
		return prepared, nil
	}

	if err := prepared.fillBody(body); err != nil {
		return nil, fmt.Errorf("%s body: %w", prepared.Format, err)
	}

	return prepared, nil
}

func (p *PreparedRequest) fillBody(body any) error {
	if isNil(body) {
		return nil
	}

	switch p.Format {
	case FormatForm:
		form, err := toValues(body)
		if err != nil {
			return err
		}
		p.Form = form
		if p.Header.Get("Content-Type") == "" {
			p.Header.Set("Content-Type", contentTypeForm)
		}
	case FormatMultipart:
		parts, err := toParts(body)
		if err != nil {
			return err
		}
		p.Parts = parts
	default:
		p.Body = body
		if p.Header.Get("Content-Type") == "" {
			p.Header.Set("Content-Type", contentTypeJSON)
		}
	}
	return nil
}

// mergeQuery copies explicit into dst. A key present in explicit replaces
// every value dst had for it.
func mergeQuery(dst, explicit url.Values) {
	for key, values := range explicit {
		dst[key] = append([]string(nil), values...)
	}
}

// toValues converts query or form parameters into url.Values. Structs are
// encoded with their `url` tags.
func toValues(v any) (url.Values, error) {
	values := make(url.Values)
	if isNil(v) {
		return values, nil
	}

	switch params := v.(type) {
	case url.Values:
		for key, vals := range params {
			values[key] = append([]string(nil), vals...)
		}
	case map[string]string:
		for key, val := range params {
			values.Set(key, val)
		}
	case map[string][]string:
		for key, vals := range params {
			values[key] = append([]string(nil), vals...)
		}
	case Params:
		return anyMapValues(params)
	case map[string]any:
		return anyMapValues(params)
	default:
		rv := reflect.Indirect(reflect.ValueOf(v))
		if rv.Kind() != reflect.Struct {
			return nil, fmt.Errorf("unsupported parameter type %T", v)
		}
		encoded, err := query.Values(v)
		if err != nil {
			return nil, err
		}
		return encoded, nil
	}

	return values, nil
}

func anyMapValues(params map[string]any) (url.Values, error) {
	values := make(url.Values)
	for key, val := range params {
		switch typed := val.(type) {
		case nil:
			values.Set(key, "")
		case string:
			values.Set(key, typed)
		case []string:
			values[key] = append([]string(nil), typed...)
		case []any:
			for _, item := range typed {
				values.Add(key, fmt.Sprint(item))
			}
		case fmt.Stringer:
			values.Set(key, typed.String())
		default:
			rv := reflect.ValueOf(val)
			switch rv.Kind() {
			case reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
				return nil, fmt.Errorf("unsupported value for %q: %T", key, val)
			}
			values.Set(key, fmt.Sprint(val))
		}
	}
	return values, nil
}

// sortedKeys returns the keys of values in lexical order, matching
// url.Values.Encode.
func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
