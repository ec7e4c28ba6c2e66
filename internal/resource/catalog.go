package resource

import (
	"sort"
	"strings"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// Entry describes one record family.
type Entry struct {
	Name string
	Path string
	// Write is the capability needed to create, update, delete or upload.
	// Zero means any authenticated role may write.
	Write       domain.Capability
	Description string
}

var entries = []Entry{
	{"departments", "/admin/departments", domain.CapManageDepartments, "academic departments"},
	{"courses", "/courses", domain.CapManageCourses, "degree programmes"},
	{"batches", "/batches", domain.CapManageBatches, "student intakes per course"},
	{"subjects", "/subjects", domain.CapManageCourses, "subjects taught in a batch"},
	{"teachers", "/admin/teachers", domain.CapManageUsers, "teaching staff accounts"},
	{"students", "/students", domain.CapManageUsers, "student accounts"},
	{"attendance", "/attendance", domain.CapTakeAttendance, "attendance sheets"},
	{"marks", "/marks", domain.CapEnterMarks, "internal and exam marks"},
	{"assignments", "/assignments", domain.CapPostAssignments, "assignments and submissions"},
	{"announcements", "/announcements", domain.CapPostAnnouncements, "notices"},
	{"study-materials", "/study/materials", domain.CapUploadMaterials, "lecture notes and files"},
	{"doubts", "/doubts", 0, "student questions and answers"},
	{"placements", "/placements", domain.CapManagePlacements, "placement drives"},
	{"exams", "/exams", domain.CapManageCourses, "exam schedules"},
	{"department-admins", "/departmentAdmin", domain.CapManageUsers, "department administrator accounts"},
}

// Entries returns the catalog sorted by name.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted resource names.
func Names() []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Find returns the entry for name. Matching ignores case and treats "_"
// like "-".
func Find(name string) (Entry, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for _, e := range entries {
		if e.Name == norm {
			return e, true
		}
	}
	return Entry{}, false
}

// Guard checks a capability before a write. session.Manager.Require fits.
type Guard func(domain.Capability) error

// Catalog binds the entries to a client.
type Catalog struct {
	client *apiclient.Client
	guard  Guard
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithGuard checks each entry's Write capability before writes. Without a
// guard the backend is the only authority.
func WithGuard(g Guard) CatalogOption {
	return func(c *Catalog) {
		c.guard = g
	}
}

// NewCatalog creates a catalog over client.
func NewCatalog(client *apiclient.Client, opts ...CatalogOption) *Catalog {
	c := &Catalog{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resource returns the named resource, or ErrUnknownResource.
func (c *Catalog) Resource(name string) (*Resource, error) {
	e, ok := Find(name)
	if !ok {
		return nil, domain.ErrUnknownResource.WithDetails(name)
	}
	return &Resource{Entry: e, client: c.client, guard: c.guard}, nil
}
