package devapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/pkg/cmap"
)

// Account is a stored user. PasswordHash never leaves the package.
type Account struct {
	ID           string
	Name         string
	Email        string
	Role         domain.Role
	Department   string
	Avatar       string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User returns the profile sent to clients.
func (a Account) User() *domain.User {
	return &domain.User{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Role:         wireRole(a.Role),
		DepartmentID: a.Department,
		Avatar:       a.Avatar,
		Extra: map[string]any{
			"createdAt": a.CreatedAt.UTC().Format(time.RFC3339),
			"updatedAt": a.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Accounts is the in-memory user directory.
type Accounts struct {
	byID    *cmap.Map[string, Account]
	byEmail *cmap.Map[string, string]
	cost    int
	now     func() time.Time
}

// NewAccounts creates an empty directory. cost <= 0 means bcrypt.DefaultCost.
func NewAccounts(cost int, now func() time.Time) *Accounts {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if now == nil {
		now = time.Now
	}
	return &Accounts{
		byID:    cmap.New[string, Account](),
		byEmail: cmap.New[string, string](),
		cost:    cost,
		now:     now,
	}
}

// Add creates an account. E-mail addresses are unique, ignoring case.
func (a *Accounts) Add(name, email string, role domain.Role, password string) (Account, error) {
	email = normalizeEmail(email)
	switch {
	case email == "":
		return Account{}, domain.ErrMissingArgument.WithDetails("email")
	case password == "":
		return Account{}, domain.ErrMissingArgument.WithDetails("password")
	case role == domain.RoleUnknown:
		return Account{}, domain.ErrInvalidArgument.WithDetails("role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Account{}, domain.ErrInternal.WithCause(fmt.Errorf("hash password: %w", err))
	}
	now := a.now()
	acct := Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !a.byEmail.SetIfAbsent(email, acct.ID) {
		return Account{}, domain.ErrConflict.WithDetails("email " + email + " is taken")
	}
	a.byID.Set(acct.ID, acct)
	return acct, nil
}

// Get returns the account with id.
func (a *Accounts) Get(id string) (Account, error) {
	acct, ok := a.byID.Get(id)
	if !ok {
		return Account{}, domain.ErrRecordNotFound.WithDetails("user " + id)
	}
	return acct, nil
}

// Authenticate checks an e-mail and password pair. Unknown e-mail and wrong
// password are indistinguishable to the caller.
func (a *Accounts) Authenticate(email, password string) (Account, error) {
	id, ok := a.byEmail.Get(normalizeEmail(email))
	if !ok {
		return Account{}, domain.ErrInvalidCredentials
	}
	acct, ok := a.byID.Get(id)
	if !ok {
		return Account{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return Account{}, domain.ErrInvalidCredentials
	}
	return acct, nil
}

// Update applies the profile fields of patch: name, email, avatar and
// department. Other keys are rejected.
func (a *Accounts) Update(id string, patch map[string]any) (Account, error) {
	cur, err := a.Get(id)
	if err != nil {
		return Account{}, err
	}
	next := cur
	for k, v := range patch {
		s, ok := v.(string)
		if !ok {
			return Account{}, domain.ErrInvalidArgument.WithDetails(k + " must be a string")
		}
		switch k {
		case "name":
			next.Name = strings.TrimSpace(s)
		case "avatar":
			next.Avatar = s
		case "department":
			next.Department = s
		case "email":
			next.Email = normalizeEmail(s)
			if next.Email == "" {
				return Account{}, domain.ErrMissingArgument.WithDetails("email")
			}
		default:
			return Account{}, domain.ErrInvalidArgument.WithDetails("field " + k + " cannot be updated")
		}
	}

	if next.Email != cur.Email {
		if !a.byEmail.SetIfAbsent(next.Email, id) {
			return Account{}, domain.ErrConflict.WithDetails("email " + next.Email + " is taken")
		}
		a.byEmail.Delete(cur.Email)
	}
	next.UpdatedAt = a.now()
	updated, ok := a.byID.Update(id, func(acct Account) Account {
		acct.Name, acct.Email = next.Name, next.Email
		acct.Avatar, acct.Department = next.Avatar, next.Department
		acct.UpdatedAt = next.UpdatedAt
		return acct
	})
	if !ok {
		return Account{}, domain.ErrRecordNotFound.WithDetails("user " + id)
	}
	return updated, nil
}

// ChangePassword replaces the password after checking the old one.
func (a *Accounts) ChangePassword(id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return domain.ErrMissingArgument.WithDetails("newPassword")
	}
	cur, err := a.Get(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(cur.PasswordHash, []byte(oldPassword)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidArgument.WithDetails("old password is incorrect")
		}
		return domain.ErrInternal.WithCause(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.cost)
	if err != nil {
		return domain.ErrInternal.WithCause(fmt.Errorf("hash password: %w", err))
	}
	_, ok := a.byID.Update(id, func(acct Account) Account {
		acct.PasswordHash = hash
		acct.UpdatedAt = a.now()
		return acct
	})
	if !ok {
		return domain.ErrRecordNotFound.WithDetails("user " + id)
	}
	return nil
}

// Count returns the number of accounts.
func (a *Accounts) Count() int {
	return a.byID.Count()
}

// Seed creates one account per role: admin@<domain>, teacher@<domain>,
// departmentadmin@<domain> and student@<domain>.
func (a *Accounts) Seed(emailDomain, password string) ([]Account, error) {
	names := map[domain.Role]string{
		domain.RoleAdmin:           "Campus Admin",
		domain.RoleTeacher:         "Asha Rao",
		domain.RoleDepartmentAdmin: "Vikram Iyer",
		domain.RoleStudent:         "Meera Nair",
	}
	var out []Account
	for _, r := range domain.Roles() {
		acct, err := a.Add(names[r], wireRole(r)+"@"+emailDomain, r, password)
		if err != nil {
			return out, err
		}
		out = append(out, acct)
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// wireRole is the backend spelling of r.
func wireRole(r domain.Role) string {
	return strings.ToLower(r.String())
}
