package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	http "github.com/wesleyorama2/fling/http"
)

// Formatter is responsible for formatting HTTP requests and responses in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  scheme,
	}
}

func (f *Formatter) colors() *ColorScheme {
	if f.scheme == nil {
		f.scheme = DefaultColorScheme()
		if f.NoColor {
			f.scheme = NoColorScheme()
		}
	}
	return f.scheme
}

// FormatRequest formats a prepared request for display
func (f *Formatter) FormatRequest(req *http.PreparedRequest) string {
	var buf strings.Builder
	c := f.colors()

	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n", c.Method.Sprint(req.Method), c.URL.Sprint(req.FullURL())))

	data := NewRequestData(req)
	if f.Verbose || len(data.Headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedHeaderKeys(data.Headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", c.HeaderKey.Sprint(key), data.Headers[key]))
		}
	}

	if data.Body != nil {
		buf.WriteString(fmt.Sprintf("  Body (%s): ", req.Format))
		switch body := data.Body.(type) {
		case string:
			buf.WriteString(formatJSONString(body))
		case []byte:
			buf.WriteString(formatJSONString(string(body)))
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				buf.WriteString(fmt.Sprintf("%v", body))
			} else {
				buf.WriteString(formatJSONString(string(jsonBody)))
			}
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResponse formats an HTTP response for display
func (f *Formatter) FormatResponse(resp *http.Response) string {
	var buf strings.Builder
	c := f.colors()

	statusColor := c.StatusError
	if resp.IsSuccess() {
		statusColor = c.StatusOK
	} else if resp.IsRedirect() {
		statusColor = c.StatusWarn
	}

	timing := resp.Timing()
	buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%dms)\n",
		statusColor.Sprint(resp.StatusText()),
		timing.Total.Milliseconds()))

	if f.Verbose {
		buf.WriteString("  Timing:\n")
		buf.WriteString(fmt.Sprintf("    DNS Lookup:      %dms\n", timing.DNSLookup.Milliseconds()))
		buf.WriteString(fmt.Sprintf("    TCP Connection:  %dms\n", timing.TCPConnect.Milliseconds()))
		buf.WriteString(fmt.Sprintf("    TLS Handshake:   %dms\n", timing.TLSHandshake.Milliseconds()))
		buf.WriteString(fmt.Sprintf("    Server Time:     %dms\n", timing.ServerTime.Milliseconds()))
		buf.WriteString(fmt.Sprintf("    Total:           %dms\n", timing.Total.Milliseconds()))
		if timing.ConnReused {
			buf.WriteString("    Connection reused\n")
		}

		headers := resp.Headers()
		buf.WriteString("  Headers:\n")
		for _, key := range sortedHeaderKeys(headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", c.HeaderKey.Sprint(key), headers[key]))
		}
	}

	if body := resp.Body(); body != "" {
		buf.WriteString("  Body:\n")
		buf.WriteString(formatJSONString(body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}
