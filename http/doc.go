// Package http provides a fluent request builder over a standard HTTP client
// and a read-only wrapper around the responses it returns.
//
// This package is designed for programmatic use and provides:
//   - An immutable Builder configured through chained calls
//   - JSON, URL-encoded form and multipart request bodies
//   - Query string merging between the URL and explicit parameters
//   - Basic and digest authentication, timeouts and redirect control
//   - A Response with status-class predicates and on-demand JSON decoding
//
// Basic Usage:
//
//	resp, err := http.New().
//	    Accept("application/json").
//	    Timeout(10*time.Second).
//	    Get(ctx, "https://api.example.com/users?page=2", http.Params{"limit": 10})
//	if err != nil {
//	    log.Fatal(err) // *http.ConnectionError: nothing was received
//	}
//
//	if resp.IsClientError() {
//	    fmt.Println("rejected:", resp.Status())
//	}
//
// Form Example:
//
//	resp, err := http.New().
//	    AsFormParams().
//	    WithBasicAuth("client", "secret").
//	    Post(ctx, "https://auth.example.com/oauth/token", http.Params{
//	        "grant_type": "client_credentials",
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	token := resp.Get("access_token").String()
//
// Errors:
//
// HTTP error statuses are not errors. A 404 or a 503 comes back as a normal
// Response. Only failures that prevent any response from arriving (DNS,
// refused connections, TLS, timeouts) are reported, as *ConnectionError.
// Response.JSON reports *DecodeError when, and only when, it is called on a
// body that is not valid JSON.
//
// Default Headers:
//
// The transport adds a User-Agent of the form "go-resty/<version>" unless
// one is configured with WithHeader. When the request body is JSON and no
// Accept header is configured, Accept is set to the request's JSON
// Content-Type. Form and multipart requests get no default Accept. Set Accept
// explicitly to control it.
//
// Multipart bodies are sent for POST, PUT, PATCH and DELETE alike.
//
// Thread Safety:
//
// Builder is a value type and every configuration method returns a new copy,
// so a Builder may be shared between goroutines and reused for any number of
// sends. Response is immutable.
package http
