package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
)

// FormData is an ordered multipart/form-data body.
type FormData struct {
	parts []formPart
}

type formPart struct {
	name     string
	value    string
	filename string
	content  io.Reader
}

// NewFormData returns an empty form.
func NewFormData() *FormData { return &FormData{} }

// Add appends a text field.
func (f *FormData) Add(name, value string) *FormData {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a binary file field. The part's content type is guessed
// from the filename extension.
func (f *FormData) AddFile(name, filename string, content io.Reader) *FormData {
	f.parts = append(f.parts, formPart{name: name, filename: filename, content: content})
	return f
}

func (f *FormData) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range f.parts {
		if p.content == nil {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", err
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.name, filepath.Base(p.filename)))
		h.Set("Content-Type", fileContentType(p.filename))
		fw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(fw, p.content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", p.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func fileContentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
