package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/session"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/tracer"
)

// Account endpoints.
const (
	LoginPath          = "/users/login"
	LogoutPath         = "/users/logout"
	CurrentUserPath    = "/users/current-user"
	UpdateAccountPath  = "/users/update-account"
	ChangePasswordPath = "/users/change-password"
)

// Credentials are posted to the login endpoint. Role is optional; some
// deployments use it to pick the account table.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Validate checks that email and password are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return domain.ErrMissingArgument.WithDetails("email")
	}
	if c.Password == "" {
		return domain.ErrMissingArgument.WithDetails("password")
	}
	return nil
}

type loginPayload struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type logoutPayload struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Service runs account exchanges against one client and session.
type Service struct {
	client   *apiclient.Client
	sessions *session.Manager
	logger   logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. The client should take its tokens from
// sessions.
func NewService(client *apiclient.Client, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		client:   client,
		sessions: sessions,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges credentials for a user and token pair and begins the
// session. The session is untouched when the exchange fails.
func (s *Service) Login(ctx context.Context, creds Credentials) (*domain.User, error) {
	ctx, span := tracer.StartSpan(ctx, "auth.login")
	defer span.End()

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	creds.Email = strings.TrimSpace(creds.Email)

	req, err := apiclient.NewJSONRequest(http.MethodPost, LoginPath, creds)
	if err != nil {
		return nil, err
	}
	req.NoRefresh = true

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, apiclient.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials.WithCause(err)
		}
		return nil, err
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, domain.ErrLoginResponse.WithCause(err)
	}
	if payload.User == nil || payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, domain.ErrLoginResponse.WithDetails("response needs user, accessToken and refreshToken")
	}

	if err := s.sessions.Begin(ctx, payload.User, payload.AccessToken, payload.RefreshToken); err != nil {
		return nil, err
	}
	s.logger.Info("logged in", "user_id", payload.User.ID, "role", payload.User.Role)
	return payload.User.Clone(), nil
}

// Logout revokes this session's refresh token on the backend and then
// clears the session locally. Other sessions of the same user stay valid.
// An expired access token is refreshed once so the revocation still reaches
// the backend. Backend failures are logged; only a local failure is
// returned.
func (s *Service) Logout(ctx context.Context) error {
	ctx, span := tracer.StartSpan(ctx, "auth.logout")
	defer span.End()

	if s.sessions.Snapshot().IsAuthenticated() {
		req, err := apiclient.NewJSONRequest(http.MethodPost, LogoutPath, logoutPayload{
			RefreshToken: s.sessions.Tokens().Refresh,
		})
		if err != nil {
			return err
		}
		if _, err := s.client.Do(ctx, req); err != nil {
			span.RecordError(err)
			s.logger.Warn("backend logout failed", "error", err, "retried", req.Retried())
		}
	}
	if err := s.sessions.Clear(ctx); err != nil {
		span.SetStatus(codes.Error, "clear session")
		return err
	}
	s.logger.Info("logged out")
	return nil
}

// Me fetches the current user and stores it in the session.
func (s *Service) Me(ctx context.Context) (*domain.User, error) {
	if !s.sessions.Snapshot().IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	var user domain.User
	if err := s.client.Get(ctx, CurrentUserPath, nil, &user); err != nil {
		return nil, err
	}
	if err := s.storeUser(ctx, &user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// UpdateProfile sends patch to the account endpoint and stores the
// updated user. A response without a user record is followed by Me.
func (s *Service) UpdateProfile(ctx context.Context, patch map[string]any) (*domain.User, error) {
	if len(patch) == 0 {
		return nil, domain.ErrMissingArgument.WithDetails("profile fields")
	}
	if !s.sessions.Snapshot().IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	var user domain.User
	if err := s.client.Patch(ctx, UpdateAccountPath, patch, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return s.Me(ctx)
	}
	if err := s.storeUser(ctx, &user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// ChangePassword changes the account password. The session is kept.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.ErrMissingArgument.WithDetails("old and new password")
	}
	if oldPassword == newPassword {
		return domain.ErrInvalidArgument.WithDetails("new password equals old password")
	}
	if !s.sessions.Snapshot().IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}
	return s.client.Post(ctx, ChangePasswordPath, changePasswordPayload{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	}, nil)
}

// storeUser keeps the user in the session unless the request outlived it.
func (s *Service) storeUser(ctx context.Context, user *domain.User) error {
	err := s.sessions.UpdateUser(ctx, user)
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return domain.ErrSessionExpired.WithCause(err)
	}
	return err
}
