package devapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

const maxJSONBody = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type loginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// handleLogin handles POST /users/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, r, domain.ErrMissingArgument.WithDetails("email and password"))
		return
	}

	acct, err := s.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		logger.L(r.Context()).Info("login rejected", "email", req.Email)
		s.writeError(w, r, err)
		return
	}
	if req.Role != "" && domain.ParseRole(req.Role) != acct.Role {
		logger.L(r.Context()).Info("login rejected", "email", req.Email, "reason", "role mismatch")
		s.writeError(w, r, domain.ErrInvalidCredentials)
		return
	}

	access, err := s.tokens.IssueAccess(acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refresh, err := s.tokens.IssueRefresh(acct.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.observeIssued("access")
	s.observeIssued("refresh")

	logger.L(logger.WithUserID(r.Context(), acct.ID)).Info("user logged in", "role", acct.Role.String())
	s.writeJSON(w, r, http.StatusOK, "User logged in successfully", loginResponse{
		User:         acct.User(),
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// handleRefresh handles POST /users/refresh-token. The refresh token is not
// rotated.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		s.writeError(w, r, domain.ErrNotAuthenticated.WithDetails("refresh token required"))
		return
	}

	userID, err := s.tokens.Exchange(req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acct, err := s.accounts.Get(userID)
	if err != nil {
		s.tokens.RevokeUser(userID)
		s.writeError(w, r, domain.ErrNotAuthenticated.WithDetails("account no longer exists"))
		return
	}
	access, err := s.tokens.IssueAccess(acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.observeIssued("access")
	s.writeJSON(w, r, http.StatusOK, "Access token refreshed", refreshResponse{AccessToken: access})
}

// handleLogout handles POST /users/logout. A refreshToken in the body
// revokes only that token; otherwise every refresh token of the user is
// revoked.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFrom(r.Context())
	var req refreshRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	revoked := 0
	if req.RefreshToken != "" {
		if s.tokens.Revoke(req.RefreshToken) {
			revoked = 1
		}
	} else {
		revoked = s.tokens.RevokeUser(acct.ID)
	}
	logger.L(r.Context()).Info("user logged out", "revoked", revoked)
	s.writeJSON(w, r, http.StatusOK, "User logged out", map[string]any{})
}

// handleCurrentUser handles GET /users/current-user.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFrom(r.Context())
	s.writeJSON(w, r, http.StatusOK, "Current user fetched", acct.User())
}

// handleUpdateAccount handles PATCH /users/update-account.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFrom(r.Context())
	var patch map[string]any
	if err := decodeJSON(r, &patch, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(patch) == 0 {
		s.writeError(w, r, domain.ErrMissingArgument.WithDetails("profile fields"))
		return
	}
	updated, err := s.accounts.Update(acct.ID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, "Account updated", updated.User())
}

// handleChangePassword handles POST /users/change-password. Existing
// refresh tokens stay valid.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFrom(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.accounts.ChangePassword(acct.ID, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("password changed")
	s.writeJSON(w, r, http.StatusOK, "Password changed", map[string]any{})
}

func (s *Server) observeIssued(kind string) {
	if s.metrics != nil {
		s.metrics.ObserveTokenIssued(kind)
	}
}

// decodeJSON reads a JSON body into v. An empty body is an error only when
// required is set.
func decodeJSON(r *http.Request, v any, required bool) error {
	if r.Body == nil {
		if required {
			return domain.ErrMissingArgument.WithDetails("request body")
		}
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if required {
				return domain.ErrMissingArgument.WithDetails("request body")
			}
			return nil
		}
		return domain.ErrInvalidArgument.WithDetails("malformed JSON body").WithCause(err)
	}
	return nil
}
