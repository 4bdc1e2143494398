package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

const contentTypeJSON = "application/json"

// Request is the typed outgoing request context. Path is resolved against the
// client's base URL unless it is already absolute.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   Body
}

// Body is one of NoBody, JSONBody or MultipartBody.
type Body interface {
	// encode returns a fresh reader on every call so requests can be replayed.
	encode() (r io.Reader, contentType string, err error)
}

// NoBody sends no payload.
type NoBody struct{}

func (NoBody) encode() (io.Reader, string, error) { return nil, "", nil }

// JSONBody marshals Value as the request payload.
type JSONBody struct {
	Value interface{}
}

func (b JSONBody) encode() (io.Reader, string, error) {
	raw, err := json.Marshal(b.Value)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(raw), contentTypeJSON, nil
}

// File is one multipart file part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// MultipartBody is a form upload. Its content type carries the boundary chosen
// at encode time and is never replaced with JSON.
type MultipartBody struct {
	Fields map[string]string
	Files  []File
}

func (b MultipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, b.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range b.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": f.Field, "filename": f.Name}))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return bytes.NewReader(buf.Bytes()), w.FormDataContentType(), nil
}

// FileFromPath reads path into a File for field, guessing its content type.
func FileFromPath(field, path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	return File{Field: field, Name: filepath.Base(path), ContentType: ct, Content: content}, nil
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
