package domain

import "strings"

// Role is a tagged role variant resolved once from the backend role string.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeacher
	RoleDepartmentAdmin
	RoleStudent
)

// Capability is a coarse permission the UI gated its screens on.
type Capability uint32

const (
	CapManageDepartments Capability = 1 << iota
	CapManageCourses
	CapManageBatches
	CapManageUsers
	CapTakeAttendance
	CapEnterMarks
	CapPostAssignments
	CapPostAnnouncements
	CapUploadMaterials
	CapManagePlacements
	CapViewAnalytics
	CapSubmitAssignments
	CapAskDoubts
)

// MenuEntry is one item of a role's navigation menu.
type MenuEntry struct {
	Label string `json:"label" yaml:"label"`
	Path  string `json:"path" yaml:"path"`
}

type roleSpec struct {
	wire  string
	name  string
	caps  Capability
	menus []MenuEntry
}

var roleSpecs = map[Role]roleSpec{
	RoleAdmin: {
		wire: "admin",
		name: "Admin",
		caps: CapManageDepartments | CapManageCourses | CapManageBatches | CapManageUsers |
			CapPostAnnouncements | CapManagePlacements | CapViewAnalytics,
		menus: []MenuEntry{
			{"Dashboard", "/admin/dashboard"},
			{"Departments", "/admin/departments"},
			{"Courses", "/admin/courses"},
			{"Batches", "/admin/batches"},
			{"Teachers", "/admin/teachers"},
			{"Students", "/admin/students"},
			{"Announcements", "/admin/announcements"},
			{"Placements", "/admin/placements"},
		},
	},
	RoleTeacher: {
		wire: "teacher",
		name: "Teacher",
		caps: CapTakeAttendance | CapEnterMarks | CapPostAssignments | CapPostAnnouncements |
			CapUploadMaterials | CapViewAnalytics,
		menus: []MenuEntry{
			{"Dashboard", "/teacher/dashboard"},
			{"Attendance", "/teacher/attendance"},
			{"Marks", "/teacher/marks"},
			{"Assignments", "/teacher/assignments"},
			{"Study Materials", "/teacher/study-materials"},
			{"Doubts", "/teacher/doubts"},
			{"Announcements", "/teacher/announcements"},
		},
	},
	RoleDepartmentAdmin: {
		wire: "departmentadmin",
		name: "DepartmentAdmin",
		caps: CapManageCourses | CapManageBatches | CapManageUsers | CapPostAnnouncements |
			CapViewAnalytics,
		menus: []MenuEntry{
			{"Dashboard", "/department-admin/dashboard"},
			{"Subjects", "/department-admin/subjects"},
			{"Batches", "/department-admin/batches"},
			{"Teachers", "/department-admin/teachers"},
			{"Students", "/department-admin/students"},
			{"Exams", "/department-admin/exams"},
			{"Performance", "/department-admin/performance"},
		},
	},
	RoleStudent: {
		wire: "student",
		name: "Student",
		caps: CapSubmitAssignments | CapAskDoubts,
		menus: []MenuEntry{
			{"Dashboard", "/student/dashboard"},
			{"Attendance", "/student/attendance"},
			{"Marks", "/student/marks"},
			{"Assignments", "/student/assignments"},
			{"Study Materials", "/student/study-materials"},
			{"Doubts", "/student/doubts"},
			{"Placements", "/student/placements"},
		},
	},
}

// ParseRole maps a backend role string onto a Role. Matching ignores case
// and the separators the backend has used over time.
func ParseRole(s string) Role {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	for r, spec := range roleSpecs {
		if spec.wire == norm {
			return r
		}
	}
	return RoleUnknown
}

// String returns the display name of the role.
func (r Role) String() string {
	if spec, ok := roleSpecs[r]; ok {
		return spec.name
	}
	return "Unknown"
}

// Menu returns a copy of the role's menu entries.
func (r Role) Menu() []MenuEntry {
	spec, ok := roleSpecs[r]
	if !ok {
		return nil
	}
	out := make([]MenuEntry, len(spec.menus))
	copy(out, spec.menus)
	return out
}

// Can reports whether the role holds every capability in c.
func (r Role) Can(c Capability) bool {
	spec, ok := roleSpecs[r]
	if !ok || c == 0 {
		return false
	}
	return spec.caps&c == c
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTeacher, RoleDepartmentAdmin, RoleStudent}
}
