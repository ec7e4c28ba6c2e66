package domain

import (
	"encoding/json"
	"strings"
)

// DefaultStorageKey is the key the persisted session record is stored under.
const DefaultStorageKey = "unitrack.session"

// User is the opaque profile record returned by the backend on login.
//
// Only the fields the client reasons about are typed; everything else the
// backend sends is preserved in Extra so a profile survives a persist and
// rehydrate cycle unchanged.
type User struct {
	ID           string `json:"_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	DepartmentID string `json:"department,omitempty"`
	Avatar       string `json:"avatar,omitempty"`

	// Extra holds role-specific fields (enrollment number, designation, ...).
	Extra map[string]any `json:"-"`
}

var userKnownFields = []string{"_id", "name", "email", "role", "department", "avatar"}

// userWire is the wire shape; department may arrive as an ID or populated.
type userWire struct {
	ID         string          `json:"_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Email      string          `json:"email,omitempty"`
	Role       string          `json:"role,omitempty"`
	Department json.RawMessage `json:"department,omitempty"`
	Avatar     string          `json:"avatar,omitempty"`
}

// MarshalJSON flattens Extra next to the typed fields.
func (u User) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(u.Extra)+len(userKnownFields))
	for k, v := range u.Extra {
		merged[k] = v
	}
	setIf := func(k, v string) {
		if v != "" {
			merged[k] = v
		}
	}
	setIf("_id", u.ID)
	setIf("name", u.Name)
	setIf("email", u.Email)
	setIf("role", u.Role)
	setIf("avatar", u.Avatar)
	// A populated department object kept in Extra wins over the bare ID.
	if _, populated := merged["department"]; !populated {
		setIf("department", u.DepartmentID)
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the typed fields and keeps the rest in Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	out := User{ID: w.ID, Name: w.Name, Email: w.Email, Role: w.Role, Avatar: w.Avatar}
	for _, k := range userKnownFields {
		if k == "department" {
			continue
		}
		delete(all, k)
	}
	switch dept := all["department"].(type) {
	case string:
		out.DepartmentID = dept
		delete(all, "department")
	case map[string]any:
		if id, ok := dept["_id"].(string); ok {
			out.DepartmentID = id
		}
	case nil:
		delete(all, "department")
	}
	if len(all) > 0 {
		out.Extra = all
	}
	*u = out
	return nil
}

// ParsedRole resolves the user's role string into a Role variant.
func (u *User) ParsedRole() Role {
	if u == nil {
		return RoleUnknown
	}
	return ParseRole(u.Role)
}

// Clone returns a deep-enough copy for handing out snapshots.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Session is the current user identity plus both credentials.
//
// AccessToken and RefreshToken are either both set or both empty.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string

	// Hydrated reports whether the session has been initialised from
	// durable storage yet.
	Hydrated bool
}

// IsAuthenticated reports whether the session carries a usable token pair.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// IsEmpty reports whether the session carries no identity and no tokens.
func (s Session) IsEmpty() bool {
	return s.User == nil && s.AccessToken == "" && s.RefreshToken == ""
}

// Validate rejects a half-populated token pair.
func (s Session) Validate() error {
	if ValidateTokenPair(s.AccessToken, s.RefreshToken) != nil {
		return ErrPartialSession
	}
	return nil
}

// ValidateTokenPair checks that access and refresh tokens are paired.
func ValidateTokenPair(access, refresh string) error {
	access = strings.TrimSpace(access)
	refresh = strings.TrimSpace(refresh)
	if (access == "") != (refresh == "") {
		return ErrPartialSession
	}
	return nil
}

// Role returns the resolved role of the session user.
func (s Session) Role() Role {
	return s.User.ParsedRole()
}

// Record converts the session into its durable layout.
func (s Session) Record() *PersistedRecord {
	return &PersistedRecord{
		Data:         s.User.Clone(),
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
}

// PersistedRecord is the single durable record of a session.
//
// The JSON layout is fixed: {"data": <user>, "accessToken": ..., "refreshToken": ...}.
type PersistedRecord struct {
	Data         *User  `json:"data"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session converts the record back into a hydrated session.
func (r *PersistedRecord) Session() Session {
	if r == nil {
		return Session{Hydrated: true}
	}
	return Session{
		User:         r.Data.Clone(),
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Hydrated:     true,
	}
}

// Validate rejects records whose token pair is half-populated.
func (r *PersistedRecord) Validate() error {
	if r == nil {
		return nil
	}
	return ValidateTokenPair(r.AccessToken, r.RefreshToken)
}

// MarshalRecord encodes a record in its durable JSON layout.
func MarshalRecord(r *PersistedRecord) ([]byte, error) {
	if r == nil {
		return nil, ErrInvalidArgument.WithDetails("nil record")
	}
	return json.Marshal(r)
}

// UnmarshalRecord decodes a durable JSON record.
func UnmarshalRecord(data []byte) (*PersistedRecord, error) {
	var r PersistedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, ErrCorruptRecord.WithCause(err)
	}
	return &r, nil
}
