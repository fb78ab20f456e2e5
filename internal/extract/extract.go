// Package extract pulls values out of JSON response bodies using a subset of
// JSONPath ($.users[0].name, $['key'], $.items[*].id).
package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	http "github.com/wesleyorama2/fling/http"
)

// Extract returns the value at path in the response body
func Extract(resp *http.Response, path string) (string, error) {
	return ExtractString(resp.Body(), path)
}

// ExtractString returns the value at path in a JSON document
func ExtractString(json string, path string) (string, error) {
	if json == "" {
		return "", fmt.Errorf("empty JSON string")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.Valid(json) {
		return "", fmt.Errorf("response body is not valid JSON")
	}

	gpath, err := convertToGjsonPath(path)
	if err != nil {
		return "", err
	}

	result := gjson.Get(json, gpath)
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}

	if result.Type == gjson.Null {
		return "null", nil
	}

	return result.String(), nil
}

// ExtractAll extracts every named path from the response body. Values that
// were found are returned even when others fail.
func ExtractAll(resp *http.Response, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no JSONPath expressions provided")
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string)
	var errors []string

	for _, name := range names {
		value, err := Extract(resp, paths[name])
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}

	if len(errors) > 0 {
		return results, fmt.Errorf("extraction errors: %s", strings.Join(errors, "; "))
	}

	return results, nil
}

// ParseExpression splits a "name=$.path" flag value. A bare path is named
// after itself.
func ParseExpression(expr string) (name, path string, err error) {
	name, path, found := strings.Cut(expr, "=")
	if !found {
		path = strings.TrimSpace(expr)
		name = path
	}
	name = strings.TrimSpace(name)
	path = strings.TrimSpace(path)

	if name == "" || path == "" {
		return "", "", fmt.Errorf("invalid extraction %q (want name=$.path)", expr)
	}
	return name, path, nil
}

// convertToGjsonPath converts a JSONPath expression to gjson syntax:
//
//	$.users[0].name  -> users.0.name
//	$['a.b']         -> a\.b
//	$.items[*].id    -> items.#.id
func convertToGjsonPath(path string) (string, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(path), "$")
	if rest == "" {
		return "@this", nil
	}

	var segments []string
	for rest != "" {
		switch {
		case rest[0] == '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return "", fmt.Errorf("invalid JSONPath %q: empty segment", path)
			}
			segments = append(segments, escapeSegment(rest[:end]))
			rest = rest[end:]

		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("invalid JSONPath %q: unclosed bracket", path)
			}
			inner := strings.TrimSpace(rest[1:end])
			rest = rest[end+1:]

			switch {
			case inner == "*":
				segments = append(segments, "#")
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0]:
				segments = append(segments, escapeSegment(inner[1:len(inner)-1]))
			case inner != "" && isDigits(inner):
				segments = append(segments, inner)
			default:
				return "", fmt.Errorf("invalid JSONPath %q: unsupported selector [%s]", path, inner)
			}

		default:
			// "users.0" without the leading $. is accepted as-is
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			segments = append(segments, escapeSegment(rest[:end]))
			rest = rest[end:]
		}
	}

	return strings.Join(segments, "."), nil
}

func escapeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
