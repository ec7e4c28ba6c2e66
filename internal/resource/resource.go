package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// Record is one backend record.
type Record = map[string]any

// Resource issues calls for one record family.
type Resource struct {
	Entry
	client *apiclient.Client
	guard  Guard
}

// List fetches the collection. The payload may be a bare array or an
// object wrapping one (e.g. {"courses": [...], "total": 40}).
func (r *Resource) List(ctx context.Context, query url.Values) ([]Record, error) {
	var raw json.RawMessage
	if err := r.client.Get(ctx, r.Path, query, &raw); err != nil {
		return nil, err
	}
	return decodeList(raw)
}

// Get fetches one record.
func (r *Resource) Get(ctx context.Context, id string) (Record, error) {
	p, err := r.itemPath(id)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := r.client.Get(ctx, p, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts body as a new record and returns what the backend stored.
func (r *Resource) Create(ctx context.Context, body any) (Record, error) {
	if err := r.checkWrite(); err != nil {
		return nil, err
	}
	var out Record
	if err := r.client.Post(ctx, r.Path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches the record.
func (r *Resource) Update(ctx context.Context, id string, body any) (Record, error) {
	if err := r.checkWrite(); err != nil {
		return nil, err
	}
	p, err := r.itemPath(id)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := r.client.Patch(ctx, p, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record.
func (r *Resource) Delete(ctx context.Context, id string) error {
	if err := r.checkWrite(); err != nil {
		return err
	}
	p, err := r.itemPath(id)
	if err != nil {
		return err
	}
	return r.client.Delete(ctx, p, nil)
}

// Upload posts files with form fields to the collection path.
func (r *Resource) Upload(ctx context.Context, files []apiclient.File, fields map[string]string) (Record, error) {
	if err := r.checkWrite(); err != nil {
		return nil, err
	}
	var out Record
	if err := r.client.Upload(ctx, r.Path, files, fields, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resource) itemPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrMissingArgument.WithDetails(r.Name + " id")
	}
	return r.Path + "/" + url.PathEscape(id), nil
}

func (r *Resource) checkWrite() error {
	if r.guard == nil || r.Write == 0 {
		return nil
	}
	return r.guard(r.Write)
}

func decodeList(raw json.RawMessage) ([]Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Record{}, nil
	}

	var list []Record
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, domain.ErrDecode.WithCause(err)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !bytes.HasPrefix(bytes.TrimSpace(obj[k]), []byte("[")) {
			continue
		}
		if err := json.Unmarshal(obj[k], &list); err == nil {
			return list, nil
		}
	}
	return nil, domain.ErrDecode.WithDetails("no record array in payload")
}
