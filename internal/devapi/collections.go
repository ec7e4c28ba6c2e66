package devapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

const maxUploadMemory = 32 << 20

// routeCollection registers the CRUD routes of c on r.
func (s *Server) routeCollection(r chi.Router, c *Collection) {
	p := c.Entry.Path
	r.Get(p, s.handleList(c))
	r.Post(p, s.requireWrite(c, s.handleCreate(c)))
	r.Get(p+"/{id}", s.handleGet(c))
	r.Put(p+"/{id}", s.requireWrite(c, s.handleReplace(c)))
	r.Patch(p+"/{id}", s.requireWrite(c, s.handleMerge(c)))
	r.Delete(p+"/{id}", s.requireWrite(c, s.handleDelete(c)))
}

// requireWrite rejects roles without the collection's write capability.
func (s *Server) requireWrite(c *Collection, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFrom(r.Context())
		if !ok {
			s.writeError(w, r, domain.ErrNotAuthenticated)
			return
		}
		if c.Entry.Write != 0 && !acct.Role.Can(c.Entry.Write) {
			s.writeError(w, r, domain.ErrPermissionDenied.WithDetails(
				fmt.Sprintf("role %s cannot modify %s", acct.Role, c.Entry.Name)))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleList(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := c.List(r.URL.Query())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, c.Entry.Name+" fetched", list)
	}
}

func (s *Server) handleGet(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := c.Get(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, c.Entry.Name+" fetched", rec)
	}
}

// handleCreate accepts a JSON object or a multipart form.
func (s *Server) handleCreate(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			body Record
			err  error
		)
		if isMultipart(r) {
			body, err = readUpload(r)
		} else {
			err = decodeJSON(r, &body, true)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if body == nil {
			s.writeError(w, r, domain.ErrInvalidArgument.WithDetails("body must be a JSON object"))
			return
		}
		rec := c.Create(body)
		logger.L(r.Context()).Debug("record created", "collection", c.Entry.Name, "id", rec["_id"])
		s.writeJSON(w, r, http.StatusCreated, c.Entry.Name+" created", rec)
	}
}

func (s *Server) handleReplace(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Record
		if err := decodeJSON(r, &body, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		rec, err := c.Replace(chi.URLParam(r, "id"), body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, c.Entry.Name+" replaced", rec)
	}
}

func (s *Server) handleMerge(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch Record
		if err := decodeJSON(r, &patch, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		rec, err := c.Merge(chi.URLParam(r, "id"), patch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, c.Entry.Name+" updated", rec)
	}
}

func (s *Server) handleDelete(c *Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := c.Delete(id); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, c.Entry.Name+" deleted", map[string]any{"_id": id})
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readUpload turns a multipart form into a record. Text fields become
// strings; each file field becomes its metadata, or a list of metadata when
// the field repeats. File contents are discarded.
func readUpload(r *http.Request) (Record, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("malformed multipart form").WithCause(err)
	}
	defer r.MultipartForm.RemoveAll()

	rec := make(Record)
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			rec[k] = vs[0]
		}
	}
	for field, headers := range r.MultipartForm.File {
		files := make([]map[string]any, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, domain.ErrInvalidArgument.WithDetails("file " + fh.Filename).WithCause(err)
			}
			n, err := io.Copy(io.Discard, f)
			f.Close()
			if err != nil {
				return nil, domain.ErrInvalidArgument.WithDetails("file " + fh.Filename).WithCause(err)
			}
			files = append(files, map[string]any{
				"filename":    fh.Filename,
				"size":        n,
				"contentType": contentTypeOf(fh.Header.Get("Content-Type")),
			})
		}
		if len(files) == 1 {
			rec[field] = files[0]
		} else {
			rec[field] = files
		}
	}
	return rec, nil
}

func contentTypeOf(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/octet-stream"
	}
	return ct
}
