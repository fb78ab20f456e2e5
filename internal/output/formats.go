package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	http "github.com/wesleyorama2/fling/http"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat converts a flag value into an OutputFormat
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(req *http.PreparedRequest) string
	FormatResponse(resp *http.Response) string
}

// RequestData represents the structured data of an HTTP request
type RequestData struct {
	Method    string            `json:"method" yaml:"method"`
	URL       string            `json:"url" yaml:"url"`
	Format    string            `json:"format" yaml:"format"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
}

// TimingData represents detailed timing information for an HTTP request
type TimingData struct {
	DNSLookup    int64 `json:"dnsLookupMs,omitempty" yaml:"dnsLookupMs,omitempty"`
	TCPConnect   int64 `json:"tcpConnectMs,omitempty" yaml:"tcpConnectMs,omitempty"`
	TLSHandshake int64 `json:"tlsHandshakeMs,omitempty" yaml:"tlsHandshakeMs,omitempty"`
	ServerTime   int64 `json:"serverTimeMs,omitempty" yaml:"serverTimeMs,omitempty"`
	Total        int64 `json:"totalMs" yaml:"totalMs"`
	ConnReused   bool  `json:"connReused,omitempty" yaml:"connReused,omitempty"`
}

// ResponseData represents the structured data of an HTTP response
type ResponseData struct {
	StatusCode    int               `json:"statusCode" yaml:"statusCode"`
	Status        string            `json:"status" yaml:"status"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body          interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Timing        TimingData        `json:"timing" yaml:"timing"`
	ContentLength int64             `json:"contentLength,omitempty" yaml:"contentLength,omitempty"`
	Timestamp     string            `json:"timestamp" yaml:"timestamp"`
}

// NewRequestData converts a prepared request into its serializable form
func NewRequestData(req *http.PreparedRequest) RequestData {
	headers := make(map[string]string)
	for key, values := range req.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return RequestData{
		Method:    req.Method,
		URL:       req.FullURL(),
		Format:    req.Format.String(),
		Headers:   headers,
		Body:      requestBody(req),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewResponseData converts a response into its serializable form. JSON
// bodies are embedded as values, anything else as a string.
func NewResponseData(resp *http.Response) ResponseData {
	var body interface{}
	if raw := resp.Body(); raw != "" {
		decoded, err := resp.JSON()
		if err != nil {
			body = raw
		} else {
			body = decoded
		}
	}

	timing := resp.Timing()
	data := ResponseData{
		StatusCode: resp.Status(),
		Status:     resp.StatusText(),
		Headers:    resp.Headers(),
		Body:       body,
		Timing: TimingData{
			DNSLookup:    timing.DNSLookup.Milliseconds(),
			TCPConnect:   timing.TCPConnect.Milliseconds(),
			TLSHandshake: timing.TLSHandshake.Milliseconds(),
			ServerTime:   timing.ServerTime.Milliseconds(),
			Total:        timing.Total.Milliseconds(),
			ConnReused:   timing.ConnReused,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if contentLength := resp.Header("Content-Length"); contentLength != "" {
		if length, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
			data.ContentLength = length
		}
	}

	return data
}

// requestBody returns whichever body slot the request carries
func requestBody(req *http.PreparedRequest) interface{} {
	switch {
	case req.Parts != nil:
		parts := make([]map[string]string, 0, len(req.Parts))
		for _, part := range req.Parts {
			entry := map[string]string{"name": part.Name}
			if part.IsFile() {
				entry["filename"] = part.Filename
			}
			parts = append(parts, entry)
		}
		return parts
	case req.Form != nil:
		return req.Form.Encode()
	default:
		return req.Body
	}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(req *http.PreparedRequest) string {
	return f.marshal(NewRequestData(req), "request")
}

// FormatResponse formats a response as JSON
func (f *JSONFormatter) FormatResponse(resp *http.Response) string {
	return f.marshal(NewResponseData(resp), "response")
}

func (f *JSONFormatter) marshal(v interface{}, what string) string {
	var output []byte
	var err error
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Sprintf(`{"error":"Failed to marshal %s: %s"}`, what, err)
	}

	return string(output)
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(req *http.PreparedRequest) string {
	return f.marshal(NewRequestData(req), "request")
}

// FormatResponse formats a response as YAML
func (f *YAMLFormatter) FormatResponse(resp *http.Response) string {
	return f.marshal(NewResponseData(resp), "response")
}

func (f *YAMLFormatter) marshal(v interface{}, what string) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: Failed to marshal %s: %s", what, err)
	}
	return string(output)
}

// GetFormatter returns a formatter for the specified format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return NewFormatter(verbose, noColor)
	}
}

func sortedHeaderKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatValues renders named values, such as extraction results, under a
// title in the given format
func FormatValues(format OutputFormat, title string, values map[string]string, noColor bool) string {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(map[string]map[string]string{title: values}, "", "  ")
		if err != nil {
			return fmt.Sprintf(`{"error":"Failed to marshal %s: %s"}`, title, err)
		}
		return string(out) + "\n"
	case FormatYAML:
		out, err := yaml.Marshal(map[string]map[string]string{title: values})
		if err != nil {
			return fmt.Sprintf("error: Failed to marshal %s: %s", title, err)
		}
		return "---\n" + string(out)
	}

	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(title[:1]) + title[1:] + ":\n")
	for _, key := range sortedHeaderKeys(values) {
		b.WriteString(fmt.Sprintf("  %s: %s\n", scheme.Label.Sprint(key), values[key]))
	}
	return b.String()
}
