package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/fling/http"
	"github.com/wesleyorama2/fling/internal/config"
	"github.com/wesleyorama2/fling/internal/extract"
	"github.com/wesleyorama2/fling/internal/output"
	"github.com/wesleyorama2/fling/internal/stats"
	"github.com/wesleyorama2/fling/internal/validate"
)

const defaultTimeout = 30 * time.Second

// requestOptions holds the flags shared by every verb command
type requestOptions struct {
	headers    []string
	query      []string
	data       []string
	files      []string
	asJSON     bool
	asForm     bool
	multipart  bool
	accept     string
	user       string
	digest     bool
	timeout    time.Duration
	noRedirect bool
	format     string
	extract    []string
	schema     string
	repeat     int
	configPath string
	profile    string
	verbose    bool
	noColor    bool
}

func addRequestFlags(cmd *cobra.Command, opts *requestOptions) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "HTTP headers to include, \"Name: value\" (can be used multiple times)")
	flags.StringArrayVarP(&opts.query, "query", "q", nil, "Query parameter key=value (can be used multiple times)")
	flags.StringArrayVarP(&opts.data, "data", "d", nil, "Body field key=value, or a raw body (@file reads a file)")
	flags.StringArrayVarP(&opts.files, "file", "F", nil, "Multipart part name=@path or name=value")
	flags.BoolVar(&opts.asJSON, "json", false, "Send the body as JSON (default)")
	flags.BoolVar(&opts.asForm, "form", false, "Send the body as URL-encoded form parameters")
	flags.BoolVar(&opts.multipart, "multipart", false, "Send the body as multipart/form-data")
	flags.StringVar(&opts.accept, "accept", "", "Accept header value")
	flags.StringVarP(&opts.user, "user", "u", "", "Credentials user:password (basic auth)")
	flags.BoolVar(&opts.digest, "digest", false, "Use digest auth for --user")
	flags.DurationVarP(&opts.timeout, "timeout", "t", defaultTimeout, "Request timeout")
	flags.BoolVar(&opts.noRedirect, "no-redirect", false, "Do not follow redirects")
	flags.StringVarP(&opts.format, "output", "o", string(output.FormatText), "Output format: text, json or yaml")
	flags.StringArrayVarP(&opts.extract, "extract", "e", nil, "Extract a value from the JSON response, name=$.path")
	flags.StringVar(&opts.schema, "schema", "", "Validate the response body against a JSON Schema file")
	flags.IntVarP(&opts.repeat, "repeat", "n", 1, "Send the request N times and print latency statistics")
	flags.StringVarP(&opts.configPath, "config", "c", "", "Profiles file (YAML or JSON)")
	flags.StringVarP(&opts.profile, "profile", "p", "", "Profile to apply from the config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.MarkFlagsMutuallyExclusive("json", "form", "multipart")
}

// runRequest executes one verb command
func runRequest(cmd *cobra.Command, method, rawURL string, opts *requestOptions) error {
	out := cmd.OutOrStdout()

	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)

	profile, err := loadProfile(opts)
	if err != nil {
		return err
	}

	builder, err := buildRequest(cmd, opts, profile, logger)
	if err != nil {
		return err
	}

	query, err := parseKeyValues(opts.query, "query")
	if err != nil {
		return err
	}
	target, err := withQuery(normalizeURL(profile.ResolveURL(rawURL)), query)
	if err != nil {
		return err
	}

	body, err := newBodySource(method, builder.Format(), opts)
	if err != nil {
		return err
	}

	var schema *validate.Schema
	if opts.schema != "" {
		if schema, err = validate.LoadFile(opts.schema); err != nil {
			return err
		}
	}

	paths := make(map[string]string)
	for _, expr := range opts.extract {
		name, path, err := extract.ParseExpression(expr)
		if err != nil {
			return err
		}
		paths[name] = path
	}

	noColor := !colorEnabled(out, opts.noColor)
	formatter := output.GetFormatter(format, opts.verbose, noColor)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	recorder := stats.NewRecorder()
	var resp *http.Response
	var lastErr error

	for i := 0; i < opts.repeat; i++ {
		prepared, err := builder.Prepare(method, target, body.next())
		if err != nil {
			return err
		}

		if i == 0 && opts.verbose {
			fmt.Fprintln(out, formatter.FormatRequest(prepared))
		}

		start := time.Now()
		r, err := builder.Do(ctx, prepared)
		if err != nil {
			if !http.IsConnectionError(err) || opts.repeat == 1 {
				return err
			}
			recorder.RecordFailure(time.Since(start))
			logger.Warn("request failed", "attempt", i+1, "error", err)
			lastErr = err
			continue
		}

		resp = r
		latency := r.Timing().Total
		if latency == 0 {
			latency = time.Since(start)
		}
		recorder.RecordResponse(r.Status(), latency, int64(len(r.Bytes())))
	}

	if resp != nil {
		fmt.Fprintln(out, formatter.FormatResponse(resp))
	}

	if opts.repeat > 1 {
		fmt.Fprint(out, recorder.Summary().String())
	}

	if resp == nil {
		return lastErr
	}

	if len(paths) > 0 {
		values, err := extract.ExtractAll(resp, paths)
		if len(values) > 0 {
			fmt.Fprint(out, output.FormatValues(format, "extracted", values, noColor))
		}
		if err != nil {
			return err
		}
	}

	if schema != nil {
		if err := schema.ValidateResponse(resp); err != nil {
			return fmt.Errorf("schema validation failed: %w", err)
		}
		fmt.Fprintf(out, "%s response matches schema %s\n", output.SuccessIcon(noColor), opts.schema)
	}

	if lastErr != nil {
		return fmt.Errorf("%d of %d requests failed, last error: %w", recorder.Summary().Failed, opts.repeat, lastErr)
	}

	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func colorEnabled(w io.Writer, noColor bool) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return output.ColorEnabled(f, noColor)
}

// loadProfile returns the selected profile, or an empty one
func loadProfile(opts *requestOptions) (config.Profile, error) {
	if opts.configPath == "" {
		if opts.profile != "" {
			return config.Profile{}, fmt.Errorf("--profile requires --config")
		}
		return config.Profile{}, nil
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return config.Profile{}, err
	}

	name := opts.profile
	if name == "" {
		names := config.GetProfileNames(cfg)
		if len(names) != 1 {
			return config.Profile{}, fmt.Errorf("config defines %d profiles, select one with --profile", len(names))
		}
		name = names[0]
	}

	return cfg.GetProfile(name)
}

// buildRequest applies the profile and then the flags to a fresh builder.
// Flags that were set explicitly win over profile values.
func buildRequest(cmd *cobra.Command, opts *requestOptions, profile config.Profile, logger *slog.Logger) (http.Builder, error) {
	b := http.New(http.WithLogger(logger))
	flags := cmd.Flags()

	switch profile.Format {
	case "form":
		b = b.AsFormParams()
	case "multipart":
		b = b.AsMultipart()
	}
	switch {
	case opts.asJSON:
		b = b.AsJSON()
	case opts.asForm:
		b = b.AsFormParams()
	case opts.multipart:
		b = b.AsMultipart()
	case len(opts.files) > 0:
		b = b.AsMultipart()
	}

	b = b.WithHeaders(profile.ResolvedHeaders())
	if profile.Accept != "" {
		b = b.Accept(profile.Accept)
	}
	for _, header := range opts.headers {
		name, value, err := parseHeader(header)
		if err != nil {
			return http.Builder{}, err
		}
		b = b.WithHeader(name, value)
	}
	if opts.accept != "" {
		b = b.Accept(opts.accept)
	}

	if profile.Auth != nil {
		if profile.Auth.Scheme == "digest" {
			b = b.WithDigestAuth(profile.Auth.Username, profile.Auth.Password)
		} else {
			b = b.WithBasicAuth(profile.Auth.Username, profile.Auth.Password)
		}
	}
	if opts.user != "" {
		username, password := parseUser(opts.user)
		if opts.digest {
			b = b.WithDigestAuth(username, password)
		} else {
			b = b.WithBasicAuth(username, password)
		}
	} else if opts.digest {
		return http.Builder{}, fmt.Errorf("--digest requires --user")
	}

	timeout := defaultTimeout
	if profile.Timeout != "" {
		d, err := profile.TimeoutDuration()
		if err != nil {
			return http.Builder{}, err
		}
		timeout = d
	}
	if flags.Changed("timeout") {
		timeout = opts.timeout
	}
	b = b.Timeout(timeout)

	followRedirects := true
	if profile.FollowRedirects != nil {
		followRedirects = *profile.FollowRedirects
	}
	if flags.Changed("no-redirect") {
		followRedirects = !opts.noRedirect
	}
	if !followRedirects {
		b = b.WithoutRedirecting()
	}

	return b, nil
}

// bodySource produces a fresh body value for every send, so multipart
// readers can be replayed by --repeat.
type bodySource struct {
	values url.Values
	raw    []byte
	files  []fileArg
	format http.BodyFormat
	query  bool
}

func newBodySource(method string, format http.BodyFormat, opts *requestOptions) (*bodySource, error) {
	values, raw, err := splitData(opts.data)
	if err != nil {
		return nil, err
	}
	files, err := parseFiles(opts.files)
	if err != nil {
		return nil, err
	}

	src := &bodySource{
		values: values,
		raw:    raw,
		files:  files,
		format: format,
		query:  method == "GET" || method == "HEAD",
	}

	if src.query && (raw != nil || len(files) > 0) {
		return nil, fmt.Errorf("%s requests cannot carry a body; use key=value --data or --query", method)
	}
	if len(files) > 0 && format != http.FormatMultipart {
		return nil, fmt.Errorf("--file requires a multipart body")
	}
	if raw != nil && format == http.FormatMultipart {
		return nil, fmt.Errorf("a raw --data body cannot be sent as multipart")
	}
	if raw != nil && format == http.FormatForm {
		parsed, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		src.values, src.raw = parsed, nil
	}

	return src, nil
}

func (s *bodySource) next() any {
	if s.query {
		if len(s.values) == 0 {
			return nil
		}
		return s.values
	}

	switch s.format {
	case http.FormatMultipart:
		if len(s.values) == 0 && len(s.files) == 0 {
			return nil
		}
		parts := make([]http.Part, 0, len(s.values)+len(s.files))
		for _, key := range sortedKeys(s.values) {
			for _, value := range s.values[key] {
				parts = append(parts, http.Field(key, value))
			}
		}
		for _, f := range s.files {
			if f.isFile {
				parts = append(parts, http.File(f.name, f.filename, bytes.NewReader(f.contents)))
			} else {
				parts = append(parts, http.Field(f.name, string(f.contents)))
			}
		}
		return parts
	case http.FormatForm:
		if len(s.values) == 0 {
			return nil
		}
		return s.values
	default:
		if s.raw != nil {
			return s.raw
		}
		if len(s.values) == 0 {
			return nil
		}
		return jsonBody(s.values)
	}
}
