package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// parseHeader splits a "Name: value" flag
func parseHeader(header string) (string, string, error) {
	name, value, found := strings.Cut(header, ":")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", fmt.Errorf("invalid header %q (want \"Name: value\")", header)
	}
	return name, strings.TrimSpace(value), nil
}

// parseKeyValues collects repeated "key=value" flags. Repeated keys keep
// every value in order.
func parseKeyValues(pairs []string, flag string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --%s value %q (want key=value)", flag, pair)
		}
		values.Add(key, value)
	}
	return values, nil
}

// parseUser splits a "user:password" credential
func parseUser(user string) (string, string) {
	username, password, _ := strings.Cut(user, ":")
	return username, password
}

// fileArg is a multipart part from a -F flag, either name=@path or name=value
type fileArg struct {
	name     string
	filename string
	contents []byte
	isFile   bool
}

// parseFiles reads every -F flag. Files are read once so repeated sends can
// replay them.
func parseFiles(args []string) ([]fileArg, error) {
	var files []fileArg
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --file value %q (want name=@path or name=value)", arg)
		}

		if !strings.HasPrefix(value, "@") {
			files = append(files, fileArg{name: name, contents: []byte(value)})
			continue
		}

		path := strings.TrimPrefix(value, "@")
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading file for %s: %w", name, err)
		}
		files = append(files, fileArg{
			name:     name,
			filename: filepath.Base(path),
			contents: contents,
			isFile:   true,
		})
	}
	return files, nil
}

// splitData separates -d flags into key=value pairs and at most one raw
// body. A raw body starting with @ is read from a file.
func splitData(data []string) (url.Values, []byte, error) {
	var pairs []string
	var raw []byte

	for _, d := range data {
		if strings.Contains(d, "=") && !looksLikeJSON(d) {
			pairs = append(pairs, d)
			continue
		}
		if raw != nil {
			return nil, nil, fmt.Errorf("only one raw --data body is allowed")
		}
		if strings.HasPrefix(d, "@") {
			contents, err := os.ReadFile(strings.TrimPrefix(d, "@"))
			if err != nil {
				return nil, nil, fmt.Errorf("error reading data file: %w", err)
			}
			raw = contents
			continue
		}
		raw = []byte(d)
	}

	values, err := parseKeyValues(pairs, "data")
	if err != nil {
		return nil, nil, err
	}
	if raw != nil && len(values) > 0 {
		return nil, nil, fmt.Errorf("cannot combine a raw --data body with key=value pairs")
	}
	return values, raw, nil
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// withQuery merges values into rawURL's query string. Keys in values
// replace keys already present in the URL.
func withQuery(rawURL string, values url.Values) (string, error) {
	if len(values) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid query string in %q: %w", rawURL, err)
	}
	for key, vals := range values {
		query[key] = append([]string(nil), vals...)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// normalizeURL adds http:// to URLs given without a scheme
func normalizeURL(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "http://" + rawURL
}

// jsonBody turns key=value pairs into a JSON object. Repeated keys become
// arrays.
func jsonBody(values url.Values) map[string]any {
	body := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			body[key] = vals[0]
		} else {
			body[key] = append([]string(nil), vals...)
		}
	}
	return body
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
