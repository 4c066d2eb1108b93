// Package parser decodes Micropub request bodies. Dispatch happens on
// the normalized base media type; form-encoded, JSON, and multipart
// bodies all produce the same flat data map plus any uploaded files.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/indiepub/indiepub/pkg/errors"
)

// Supported base media types.
const (
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
)

// maxFieldBytes bounds a single non-file multipart field.
const maxFieldBytes = 1 << 20

// DefaultMaxFileBytes is used when Options.MaxFileBytes is zero.
const DefaultMaxFileBytes = 10 * 1024 * 1024

// File is one uploaded file part, fully buffered.
type File struct {
	// FieldName is the multipart field the file arrived under.
	FieldName string

	// Filename is the client-supplied name. Not trusted for paths.
	Filename string

	// ContentType is the part's declared MIME type.
	ContentType string

	// Data is the file content.
	Data []byte
}

// Result is a decoded request body: the flat data map plus any files.
type Result struct {
	Data  map[string]any
	Files []*File
}

// Options configures parsing limits.
type Options struct {
	// MaxFileBytes is the maximum size of a single uploaded file.
	MaxFileBytes int64
}

// Parse decodes the request body according to its Content-Type.
//
// Failure conditions are distinguished through the error taxonomy:
// malformed bodies and unsupported content types are invalid_request,
// oversized files are file_too_large, and transport-level read failures
// are server errors.
func Parse(r *http.Request, opts Options) (*Result, *errors.Error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.NewInvalidRequestError(
			fmt.Sprintf("unparseable content type %q", contentType), err)
	}

	switch mediaType {
	case ContentTypeForm:
		return parseForm(r.Body)
	case ContentTypeJSON:
		return parseJSON(r.Body)
	case ContentTypeMultipart:
		boundary, ok := params["boundary"]
		if !ok {
			return nil, errors.NewInvalidRequestError("multipart body is missing a boundary", nil)
		}
		return parseMultipart(r.Body, boundary, opts)
	default:
		return nil, errors.NewInvalidRequestError(
			fmt.Sprintf("unsupported content type %q", mediaType), nil)
	}
}

// accumulate stores one decoded key/value pair, applying the two array
// conventions real-world clients use: a "key[]" suffix always produces a
// sequence, and a bare key repeated coerces the slot into a sequence on
// its second occurrence.
func accumulate(data map[string]any, key, value string) {
	if strings.HasSuffix(key, "[]") {
		name := strings.TrimSuffix(key, "[]")
		seq, _ := data[name].([]any)
		data[name] = append(seq, value)
		return
	}

	existing, ok := data[key]
	if !ok {
		data[key] = value
		return
	}
	if seq, ok := existing.([]any); ok {
		data[key] = append(seq, value)
		return
	}
	data[key] = []any{existing, value}
}

func parseForm(body io.Reader) (*Result, *errors.Error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.NewServerError("failed to read request body", err)
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, errors.NewInvalidRequestError("malformed form body", err)
	}

	data := make(map[string]any, len(values))
	for key, vals := range values {
		for _, value := range vals {
			accumulate(data, key, value)
		}
	}

	return &Result{Data: data}, nil
}

func parseJSON(body io.Reader) (*Result, *errors.Error) {
	var data map[string]any
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, errors.NewInvalidRequestError("invalid JSON", err)
	}
	return &Result{Data: data}, nil
}

// parseMultipart stream-decodes a multipart body. File parts are
// buffered against a running byte counter; once a part exceeds the
// limit the remainder is drained without further buffering so the
// connection is fully consumed, then the parse fails.
func parseMultipart(body io.Reader, boundary string, opts Options) (*Result, *errors.Error) {
	maxFileBytes := opts.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}

	reader := multipart.NewReader(body, boundary)
	result := &Result{Data: make(map[string]any)}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInvalidRequestError("malformed multipart body", err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				return nil, errors.NewServerError("failed to read form field", err)
			}
			accumulate(result.Data, part.FormName(), string(value))
			continue
		}

		file, ferr := readFilePart(part, maxFileBytes)
		if ferr != nil {
			return nil, ferr
		}
		result.Files = append(result.Files, file)
	}

	return result, nil
}

func readFilePart(part *multipart.Part, maxFileBytes int64) (*File, *errors.Error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, maxFileBytes+1))
	if err != nil {
		return nil, errors.NewServerError("failed to read file part", err)
	}
	if n > maxFileBytes {
		// Drain the rest of the part before failing so the body is
		// fully consumed.
		if _, err := io.Copy(io.Discard, part); err != nil {
			return nil, errors.NewServerError("failed to drain oversized file", err)
		}
		return nil, errors.NewFileTooLargeError(
			fmt.Sprintf("file %q exceeds the %d byte limit", part.FileName(), maxFileBytes), nil)
	}

	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(buf.Bytes())
	}

	return &File{
		FieldName:   part.FormName(),
		Filename:    part.FileName(),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}
