package http

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

// Part is one section of a multipart/form-data body. A Part with a Filename
// is sent as a file upload; otherwise it is a plain form field.
type Part struct {
	Name        string
	Contents    io.Reader
	Filename    string
	ContentType string
}

// Field returns a plain multipart form field.
func Field(name, value string) Part {
	return Part{Name: name, Contents: strings.NewReader(value)}
}

// File returns a multipart file part. The content type is guessed from the
// filename's extension when not set on the returned Part.
func File(name, filename string, contents io.Reader) Part {
	return Part{Name: name, Filename: filename, Contents: contents}
}

// IsFile reports whether the part carries a filename.
func (p Part) IsFile() bool {
	return p.Filename != ""
}

func (p Part) contentType() string {
	if p.ContentType != "" || !p.IsFile() {
		return p.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(p.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// toParts accepts an ordered []Part, a single Part, or any form-like value
// accepted by toValues. Form-like values become text fields in key order.
func toParts(v any) ([]Part, error) {
	switch parts := v.(type) {
	case []Part:
		out := make([]Part, len(parts))
		for i, part := range parts {
			if part.Name == "" {
				return nil, fmt.Errorf("part %d has no name", i)
			}
			if part.Contents == nil {
				part.Contents = strings.NewReader("")
			}
			out[i] = part
		}
		return out, nil
	case Part:
		return toParts([]Part{parts})
	}

	values, err := toValues(v)
	if err != nil {
		return nil, err
	}

	var parts []Part
	for _, key := range sortedKeys(values) {
		for _, value := range values[key] {
			parts = append(parts, Field(key, value))
		}
	}
	return parts, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart writes parts as a multipart/form-data body and returns it
// with its Content-Type, boundary included.
func encodeMultipart(parts []Part) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, part := range parts {
		disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(part.Name))
		if part.IsFile() {
			disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(part.Filename))
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", disposition)
		if ct := part.contentType(); ct != "" {
			header.Set("Content-Type", ct)
		}

		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if part.Contents != nil {
			if _, err := io.Copy(pw, part.Contents); err != nil {
				return nil, "", fmt.Errorf("part %q: %w", part.Name, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
