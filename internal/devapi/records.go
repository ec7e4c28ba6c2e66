package devapi

import (
	"fmt"
	"maps"
	"net/url"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/resource"
	"github.com/yndnr/unitrack-go/pkg/cmap"
)

// Record is a stored document. "_id", "createdAt" and "updatedAt" are
// owned by the server.
type Record = map[string]any

var reservedFields = []string{"_id", "createdAt", "updatedAt"}

type stored struct {
	seq  uint64
	data Record
}

// Collection holds the records of one catalog entry.
type Collection struct {
	Entry resource.Entry
	items *cmap.Map[string, stored]
	seq   atomic.Uint64
	now   func() time.Time
}

func newCollection(e resource.Entry, now func() time.Time) *Collection {
	return &Collection{Entry: e, items: cmap.New[string, stored](), now: now}
}

// List returns the records in insertion order. Each query parameter other
// than page and limit must equal the record field of the same name, compared
// as text. limit > 0 pages the result; page counts from 1.
func (c *Collection) List(query url.Values) ([]Record, error) {
	page, limit, err := paging(query)
	if err != nil {
		return nil, err
	}

	var matched []stored
	c.items.Range(func(_ string, s stored) bool {
		if matches(s.data, query) {
			matched = append(matched, s)
		}
		return true
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	if limit > 0 {
		start := (page - 1) * limit
		if start >= len(matched) {
			matched = nil
		} else {
			matched = matched[start:min(start+limit, len(matched))]
		}
	}
	out := make([]Record, len(matched))
	for i, s := range matched {
		out[i] = maps.Clone(s.data)
	}
	return out, nil
}

// Get returns a copy of the record with id.
func (c *Collection) Get(id string) (Record, error) {
	s, ok := c.items.Get(id)
	if !ok {
		return nil, c.notFound(id)
	}
	return maps.Clone(s.data), nil
}

// Create stores a new record with a fresh ID.
func (c *Collection) Create(data Record) Record {
	rec := withoutReserved(data)
	now := c.now().UTC().Format(time.RFC3339Nano)
	id := uuid.NewString()
	rec["_id"] = id
	rec["createdAt"] = now
	rec["updatedAt"] = now
	c.items.Set(id, stored{seq: c.seq.Add(1), data: rec})
	return maps.Clone(rec)
}

// Replace overwrites every client field of the record.
func (c *Collection) Replace(id string, data Record) (Record, error) {
	return c.modify(id, func(cur Record) Record {
		rec := withoutReserved(data)
		rec["_id"] = cur["_id"]
		rec["createdAt"] = cur["createdAt"]
		return rec
	})
}

// Merge sets the fields of patch; a null value removes the field.
func (c *Collection) Merge(id string, patch Record) (Record, error) {
	return c.modify(id, func(cur Record) Record {
		rec := maps.Clone(cur)
		for k, v := range withoutReserved(patch) {
			if v == nil {
				delete(rec, k)
				continue
			}
			rec[k] = v
		}
		return rec
	})
}

// Delete removes the record.
func (c *Collection) Delete(id string) error {
	if _, ok := c.items.Pop(id); !ok {
		return c.notFound(id)
	}
	return nil
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return c.items.Count()
}

func (c *Collection) modify(id string, fn func(Record) Record) (Record, error) {
	now := c.now().UTC().Format(time.RFC3339Nano)
	s, ok := c.items.Update(id, func(s stored) stored {
		s.data = fn(s.data)
		s.data["updatedAt"] = now
		return s
	})
	if !ok {
		return nil, c.notFound(id)
	}
	return maps.Clone(s.data), nil
}

func (c *Collection) notFound(id string) error {
	return domain.ErrRecordNotFound.WithDetails(fmt.Sprintf("%s %s", c.Entry.Name, id))
}

// Records maps catalog paths to collections.
type Records struct {
	byPath map[string]*Collection
	names  map[string]*Collection
}

// NewRecords creates an empty collection for every catalog entry.
func NewRecords(now func() time.Time) *Records {
	if now == nil {
		now = time.Now
	}
	r := &Records{byPath: make(map[string]*Collection), names: make(map[string]*Collection)}
	for _, e := range resource.Entries() {
		c := newCollection(e, now)
		r.byPath[e.Path] = c
		r.names[e.Name] = c
	}
	return r
}

// Collections returns every collection sorted by name.
func (r *Records) Collections() []*Collection {
	out := make([]*Collection, 0, len(r.names))
	for _, c := range r.names {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.Name < out[j].Entry.Name })
	return out
}

// Named returns the collection of a catalog name.
func (r *Records) Named(name string) (*Collection, bool) {
	c, ok := r.names[name]
	return c, ok
}

// Total returns the number of records across collections.
func (r *Records) Total() int {
	n := 0
	for _, c := range r.byPath {
		n += c.Len()
	}
	return n
}

func withoutReserved(data Record) Record {
	rec := maps.Clone(data)
	if rec == nil {
		rec = make(Record)
	}
	for _, k := range reservedFields {
		delete(rec, k)
	}
	return rec
}

func matches(rec Record, query url.Values) bool {
	for k, vs := range query {
		if k == "page" || k == "limit" || len(vs) == 0 {
			continue
		}
		v, ok := rec[k]
		if !ok || fmt.Sprint(v) != vs[0] {
			return false
		}
	}
	return true
}

func paging(query url.Values) (page, limit int, err error) {
	page, limit = 1, 0
	if s := query.Get("page"); s != "" {
		if page, err = strconv.Atoi(s); err != nil || page < 1 {
			return 0, 0, domain.ErrInvalidArgument.WithDetails("page must be a positive integer")
		}
	}
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return 0, 0, domain.ErrInvalidArgument.WithDetails("limit must be a non-negative integer")
		}
	}
	return page, limit, nil
}
