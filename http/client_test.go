package http

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRealm = "fling@example.com"
	testNonce = "dcd98b7102dd2f0e8b11d0f600bfb0c093"
)

// newEchoServer starts a server that reflects requests back as JSON in the
// shape of httpbin.org: args, headers, json, form and files.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/anything", echoHandler)
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/anything", http.StatusFound)
	})
	mux.HandleFunc("/basic-auth", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "zttp" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"authenticated": true, "user": user})
	})
	mux.HandleFunc("/digest-auth", digestHandler("zttp", "secret"))
	mux.HandleFunc("/delay", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /deny\n")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	result := map[string]any{
		"method":  r.Method,
		"args":    flatten(r.URL.Query()),
		"headers": flatten(r.Header),
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var body any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			result["json"] = body
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		data, _ := io.ReadAll(r.Body)
		result["data"] = string(data)
		if form, err := parseForm(data); err == nil {
			result["form"] = form
		}
	case strings.HasPrefix(contentType, "multipart/"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		files := map[string]any{}
		filenames := map[string]any{}
		for name, headers := range r.MultipartForm.File {
			f, err := headers[0].Open()
			if err != nil {
				continue
			}
			contents, _ := io.ReadAll(f)
			f.Close()
			files[name] = string(contents)
			filenames[name] = headers[0].Filename
		}
		result["form"] = flatten(r.MultipartForm.Value)
		result["files"] = files
		result["filenames"] = filenames
	}

	writeJSON(w, result)
}

func parseForm(data []byte) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	return flatten(req.PostForm), nil
}

func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			out[key] = vals[0]
		} else {
			out[key] = vals
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func digestHandler(user, pass string) http.HandlerFunc {
	challenge := func(w http.ResponseWriter) {
		w.Header().Set("WWW-Authenticate",
			`Digest realm="`+testRealm+`", qop="auth", nonce="`+testNonce+`", opaque="5ccc069c403ebaf9f0171e9517f40e41", algorithm=MD5`)
		w.WriteHeader(http.StatusUnauthorized)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Digest ") {
			challenge(w)
			return
		}
		params := parseDigest(strings.TrimPrefix(auth, "Digest "))
		if params["username"] != user || params["nonce"] != testNonce {
			challenge(w)
			return
		}

		ha1 := md5Hex(user + ":" + testRealm + ":" + pass)
		ha2 := md5Hex(r.Method + ":" + params["uri"])
		expected := md5Hex(strings.Join([]string{ha1, params["nonce"], params["nc"], params["cnonce"], params["qop"], ha2}, ":"))
		if params["response"] != expected {
			challenge(w)
			return
		}
		writeJSON(w, map[string]any{"authenticated": true, "user": user})
	}
}

func parseDigest(header string) map[string]string {
	params := make(map[string]string)
	for _, field := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		params[key] = strings.Trim(value, `"`)
	}
	return params
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestBuilder_QueryParametersAsMap(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/anything", Params{
		"foo": "bar",
		"baz": "qux",
	})
	require.NoError(t, err)

	assert.Equal(t, "bar", resp.Get("args.foo").String())
	assert.Equal(t, "qux", resp.Get("args.baz").String())
}

func TestBuilder_SameQueryMultipleTimes(t *testing.T) {
	server := newEchoServer(t)
	b := New()
	params := Params{"foo": "bar", "baz": "qux"}

	first, err := b.Get(context.Background(), server.URL+"/anything", params)
	require.NoError(t, err)
	second, err := b.Get(context.Background(), server.URL+"/anything", params)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, first.Get("args").Value())
	assert.Equal(t, first.Get("args").Value(), second.Get("args").Value())
}

func TestBuilder_QueryParametersInURL(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/anything?foo=bar&baz=qux", nil)
	require.NoError(t, err)

	assert.Equal(t, "bar", resp.Get("args.foo").String())
	assert.Equal(t, "qux", resp.Get("args.baz").String())
}

func TestBuilder_QueryParametersInURLCombined(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/anything?foo=bar", Params{"baz": "qux"})
	require.NoError(t, err)

	assert.Equal(t, "bar", resp.Get("args.foo").String())
	assert.Equal(t, "qux", resp.Get("args.baz").String())
}

func TestBuilder_ExplicitQueryWinsOverURL(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/anything?foo=bar", Params{"foo": "baz"})
	require.NoError(t, err)

	assert.Equal(t, "baz", resp.Get("args.foo").Value())
}

func TestBuilder_PostIsJSONByDefault(t *testing.T) {
	server := newEchoServer(t)

	for _, b := range []Builder{New(), New().AsJSON()} {
		resp, err := b.Post(context.Background(), server.URL+"/anything", Params{"foo": "bar", "baz": "qux"})
		require.NoError(t, err)

		assert.Equal(t, "application/json", resp.Get("headers.Content-Type").String())
		assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, resp.Get("json").Value())
	}
}

func TestBuilder_PostAsFormParams(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().AsFormParams().Post(context.Background(), server.URL+"/anything", Params{
		"foo": "bar",
		"baz": "qux",
	})
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", resp.Get("headers.Content-Type").String())
	assert.Equal(t, "baz=qux&foo=bar", resp.Get("data").String())
	assert.Equal(t, "bar", resp.Get("form.foo").String())
	assert.Equal(t, "qux", resp.Get("form.baz").String())
}

func TestBuilder_PostAsMultipart(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().AsJSON().AsMultipart().Post(context.Background(), server.URL+"/anything", []Part{
		Field("foo", "bar"),
		Field("baz", "qux"),
		File("test-file", "test-file.txt", strings.NewReader("test contents")),
	})
	require.NoError(t, err)
	require.True(t, resp.IsSuccess(), resp.Body())

	assert.True(t, strings.HasPrefix(resp.Get("headers.Content-Type").String(), "multipart/form-data"))
	assert.Equal(t, "bar", resp.Get("form.foo").String())
	assert.Equal(t, "qux", resp.Get("form.baz").String())
	assert.Equal(t, "test contents", resp.Get("files.test-file").String())
	assert.Equal(t, "test-file.txt", resp.Get("filenames.test-file").String())
	assert.False(t, resp.Get("form.test-file").Exists())
}

func TestBuilder_AdditionalHeaders(t *testing.T) {
	server := newEchoServer(t)
	b := New().WithHeaders(map[string]string{"Custom": "Header"})

	resp, err := b.Get(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "Header", resp.Get("headers.Custom").String())

	resp, err = b.Post(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "Header", resp.Get("headers.Custom").String())
}

func TestBuilder_AcceptShortcut(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Accept("banana/sandwich").Post(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)

	assert.Equal(t, "banana/sandwich", resp.Get("headers.Accept").String())
}

func TestBuilder_ErrorStatusesAreNotErrors(t *testing.T) {
	server := newEchoServer(t)

	for _, code := range []int{404, 418, 500, 508} {
		resp, err := New().Get(context.Background(), server.URL+"/status/"+strconv.Itoa(code), nil)
		require.NoError(t, err)
		assert.Equal(t, code, resp.Status())
	}
}

func TestBuilder_Redirects(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/redirect", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status())

	resp, err = New().WithoutRedirecting().Get(context.Background(), server.URL+"/redirect", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status())
	assert.True(t, resp.IsRedirect())
	assert.Equal(t, "/anything", resp.Header("Location"))
}

func TestBuilder_VerbsSendBodyAndQuery(t *testing.T) {
	server := newEchoServer(t)
	target := server.URL + "/anything?banana=sandwich"

	verbs := []struct {
		method string
		send   func(Builder, context.Context, string, any) (*Response, error)
	}{
		{"POST", Builder.Post},
		{"PUT", Builder.Put},
		{"PATCH", Builder.Patch},
		{"DELETE", Builder.Delete},
	}

	formats := []struct {
		name        string
		builder     Builder
		body        func() any
		contentType string
		assertBody  func(t *testing.T, resp *Response)
	}{
		{
			name:        "json",
			builder:     New(),
			body:        func() any { return Params{"foo": "bar", "baz": "qux"} },
			contentType: "application/json",
			assertBody: func(t *testing.T, resp *Response) {
				assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, resp.Get("json").Value())
			},
		},
		{
			name:        "form",
			builder:     New().AsFormParams(),
			body:        func() any { return Params{"foo": "bar", "baz": "qux"} },
			contentType: "application/x-www-form-urlencoded",
			assertBody: func(t *testing.T, resp *Response) {
				assert.Equal(t, "baz=qux&foo=bar", resp.Get("data").String())
				assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, resp.Get("form").Value())
			},
		},
		{
			name:        "multipart",
			builder:     New().AsMultipart(),
			contentType: "multipart/form-data; boundary=",
			body: func() any {
				return []Part{
					Field("foo", "bar"),
					Field("baz", "qux"),
					File("test-file", "test-file.txt", strings.NewReader("test contents")),
				}
			},
			assertBody: func(t *testing.T, resp *Response) {
				assert.Equal(t, map[string]any{"foo": "bar", "baz": "qux"}, resp.Get("form").Value())
				assert.Equal(t, "test contents", resp.Get("files.test-file").String())
				assert.Equal(t, "test-file.txt", resp.Get("filenames.test-file").String())
			},
		},
	}

	for _, format := range formats {
		for _, verb := range verbs {
			t.Run(format.name+"/"+verb.method, func(t *testing.T) {
				resp, err := verb.send(format.builder, context.Background(), target, format.body())
				require.NoError(t, err)
				require.True(t, resp.IsSuccess(), resp.Body())

				assert.Equal(t, verb.method, resp.Get("method").String())
				assert.Equal(t, map[string]any{"banana": "sandwich"}, resp.Get("args").Value())
				assert.True(t, strings.HasPrefix(resp.Get("headers.Content-Type").String(), format.contentType),
					"content type %q", resp.Get("headers.Content-Type").String())
				format.assertBody(t, resp)
			})
		}
	}
}

func TestBuilder_TransportDefaultHeaders(t *testing.T) {
	server := newEchoServer(t)
	ctx := context.Background()

	// a JSON body without an explicit Accept is sent with Accept: application/json
	resp, err := New().Post(ctx, server.URL+"/anything", Params{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Get("headers.Accept").String())
	assert.True(t, strings.HasPrefix(resp.Get("headers.User-Agent").String(), "go-resty/"))

	resp, err = New().Accept("text/plain").WithHeader("User-Agent", "fling-test").Post(ctx, server.URL+"/anything", Params{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", resp.Get("headers.Accept").String())
	assert.Equal(t, "fling-test", resp.Get("headers.User-Agent").String())

	resp, err = New().AsFormParams().Post(ctx, server.URL+"/anything", Params{"a": "1"})
	require.NoError(t, err)
	assert.False(t, resp.Get("headers.Accept").Exists())
}

func TestBuilder_RawBody(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/robots.txt", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Body(), "User-agent: *"))
	_, err = resp.JSON()
	assert.True(t, IsDecodeError(err))
}

func TestBuilder_ResponseHeaders(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Get(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Equal(t, "application/json", resp.Headers()["Content-Type"])
	assert.True(t, resp.IsSuccess())
	assert.True(t, resp.IsOK())
	assert.False(t, resp.IsRedirect())
	assert.False(t, resp.IsClientError())
	assert.False(t, resp.IsServerError())
	assert.Equal(t, "200 OK", resp.StatusText())
	assert.Greater(t, resp.Timing().Total, time.Duration(0))
}

func TestBuilder_BasicAuth(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().WithBasicAuth("zttp", "secret").Get(context.Background(), server.URL+"/basic-auth", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	resp, err = New().WithBasicAuth("fail", "wrong").Get(context.Background(), server.URL+"/basic-auth", nil)
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.True(t, resp.IsClientError())
}

func TestBuilder_BasicAuthTwiceIsIdempotent(t *testing.T) {
	server := newEchoServer(t)

	once, err := New().WithBasicAuth("zttp", "secret").Get(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)
	twice, err := New().WithBasicAuth("zttp", "secret").WithBasicAuth("zttp", "secret").Get(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, once.Get("headers.Authorization").String())
	assert.Equal(t, once.Get("headers.Authorization").Value(), twice.Get("headers.Authorization").Value())

	resp, err := New().WithBasicAuth("zttp", "secret").WithBasicAuth("zttp", "secret").Get(context.Background(), server.URL+"/basic-auth", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
}

func TestBuilder_DigestAuth(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().WithDigestAuth("zttp", "secret").Get(context.Background(), server.URL+"/digest-auth", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess(), resp.Body())
	assert.True(t, resp.Get("authenticated").Bool())

	resp, err = New().WithDigestAuth("fail", "wrong").Get(context.Background(), server.URL+"/digest-auth", nil)
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.True(t, resp.IsClientError())
}

func TestBuilder_TimeoutIsConnectionError(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Timeout(100*time.Millisecond).Get(context.Background(), server.URL+"/delay", nil)
	require.Error(t, err)
	assert.Nil(t, resp)

	connErr, ok := AsConnectionError(err)
	require.True(t, ok, "expected *ConnectionError, got %T: %v", err, err)
	assert.True(t, connErr.Timeout())
	assert.Equal(t, "GET", connErr.Method)
	assert.Equal(t, server.URL+"/delay", connErr.URL)
}

func TestBuilder_RefusedConnectionIsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	_, err := New().Get(context.Background(), target, nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "connection failed")
}

func TestBuilder_ContextCancellationIsConnectionError(t *testing.T) {
	server := newEchoServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New().Get(ctx, server.URL+"/delay", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestBuilder_HeadHasEmptyBody(t *testing.T) {
	server := newEchoServer(t)

	resp, err := New().Head(context.Background(), server.URL+"/anything")
	require.NoError(t, err)

	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "", resp.Body())
}

func TestBuilder_DoesNotModifyBaseClient(t *testing.T) {
	server := newEchoServer(t)
	base := &http.Client{Timeout: 5 * time.Second}

	_, err := New(WithHTTPClient(base)).
		Timeout(time.Second).
		WithoutRedirecting().
		Get(context.Background(), server.URL+"/redirect", nil)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, base.Timeout)
	assert.Nil(t, base.CheckRedirect)
}

func TestBuilder_LogsRequests(t *testing.T) {
	server := newEchoServer(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := New(WithLogger(logger)).Get(context.Background(), server.URL+"/anything", Params{"a": "1"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "sending request")
	assert.Contains(t, buf.String(), "received response")
	assert.Contains(t, buf.String(), "status=200")
}
