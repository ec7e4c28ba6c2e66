package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// Request describes one logical call. The body is held in memory so that a
// replay after a token refresh sends identical bytes. A Request may be
// passed to Do again once Do returns; it must not be shared by concurrent
// calls.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string

	// NoRefresh returns a 401 to the caller without a refresh attempt. Used
	// for exchanges where 401 means bad credentials, such as login.
	NoRefresh bool

	// The fields below are per exchange and reset by every Do.

	// retried is the single-attempt guard; set once a refresh was attempted
	// on behalf of this request.
	retried bool
	// sentWith is the access token attached on the latest dispatch.
	sentWith string
	// id is the X-Request-ID shared by the original dispatch and its replay.
	id string
}

// NewRequest returns a request with no body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, Header: make(http.Header)}
}

// NewJSONRequest returns a request whose body is body encoded as JSON.
// A nil body sends no payload.
func NewJSONRequest(method, path string, body any) (*Request, error) {
	req := NewRequest(method, path)
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("encode request body").WithCause(err)
	}
	req.Body = data
	req.ContentType = "application/json"
	return req, nil
}

// Retried reports whether a refresh was attempted during the latest Do.
func (r *Request) Retried() bool {
	return r.retried
}

// resolve joins the request path onto the fixed origin. Absolute URLs and
// scheme-relative paths are rejected: the origin is not overridable.
func (r *Request) resolve(base *url.URL) (*url.URL, error) {
	if r.Path == "" {
		return nil, domain.ErrMissingArgument.WithDetails("request path")
	}
	ref, err := url.Parse(r.Path)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("request path %q", r.Path)).WithCause(err)
	}
	if ref.IsAbs() || ref.Host != "" || strings.HasPrefix(r.Path, "//") {
		return nil, domain.ErrAbsolutePath.WithDetails(r.Path)
	}

	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""

	q := ref.Query()
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return &u, nil
}
