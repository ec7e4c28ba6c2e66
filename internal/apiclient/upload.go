package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// File is one part of a multipart upload.
type File struct {
	// Field is the form field name, e.g. "file" or "attachments".
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// FileFromPath reads path into a File for field.
func FileFromPath(field, path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read upload %s: %w", path, err)
	}
	return File{Field: field, Filename: filepath.Base(path), Data: data}, nil
}

// NewUploadRequest builds a multipart/form-data request. The encoded form is
// buffered so a replay resends it unchanged.
func NewUploadRequest(method, path string, files []File, fields map[string]string) (*Request, error) {
	if len(files) == 0 {
		return nil, domain.ErrMissingArgument.WithDetails("upload needs at least one file")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
	}

	for _, f := range files {
		if f.Field == "" || f.Filename == "" {
			return nil, domain.ErrInvalidArgument.WithDetails("upload file needs a field and a filename")
		}
		ct := f.ContentType
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(f.Filename))
		}
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.Field), escapeQuotes(f.Filename)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}

	req := NewRequest(method, path)
	req.Body = buf.Bytes()
	req.ContentType = w.FormDataContentType()
	return req, nil
}

// Upload posts files and fields as multipart/form-data and decodes the
// payload into out.
func (c *Client) Upload(ctx context.Context, path string, files []File, fields map[string]string, out any) error {
	req, err := NewUploadRequest(http.MethodPost, path, files, fields)
	if err != nil {
		return err
	}
	return c.call(ctx, req, out)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
