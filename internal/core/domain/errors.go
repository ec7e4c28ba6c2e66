package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a failure with a structured error code.
//
// Codes follow UT-<AREA>-<NNNN>, where the numeric part mirrors the closest
// HTTP status followed by a discriminator digit.
type DomainError struct {
	Code    string // Error code (e.g., "UT-SESS-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Session errors.
var (
	// ErrPartialSession indicates exactly one of the two tokens is present.
	ErrPartialSession = NewDomainError("UT-SESS-4001", "access and refresh tokens must be set together")
	// ErrNotAuthenticated indicates the session carries no credentials.
	ErrNotAuthenticated = NewDomainError("UT-SESS-4010", "not logged in")
	// ErrNoRefreshToken indicates a refresh was attempted without a refresh token.
	ErrNoRefreshToken = NewDomainError("UT-SESS-4011", "no refresh token in session")
	// ErrSessionExpired indicates the refresh exchange was rejected and the session was cleared.
	ErrSessionExpired = NewDomainError("UT-SESS-4012", "session expired, please log in again")
	// ErrCorruptRecord indicates the persisted session record could not be decoded.
	ErrCorruptRecord = NewDomainError("UT-SESS-5001", "persisted session record is corrupt")
	// ErrStoreUnavailable indicates the session store failed.
	ErrStoreUnavailable = NewDomainError("UT-SESS-5030", "session store unavailable")
)

// Authentication errors.
var (
	// ErrInvalidCredentials indicates the login exchange was rejected.
	ErrInvalidCredentials = NewDomainError("UT-AUTH-4010", "invalid credentials")
	// ErrLoginResponse indicates the login response lacked a user or a token.
	ErrLoginResponse = NewDomainError("UT-AUTH-5020", "malformed login response")
	// ErrRefreshResponse indicates the refresh response lacked an access token.
	ErrRefreshResponse = NewDomainError("UT-AUTH-5021", "malformed refresh response")
	// ErrPermissionDenied indicates the role lacks a capability.
	ErrPermissionDenied = NewDomainError("UT-AUTH-4030", "permission denied")
)

// API transport errors.
var (
	// ErrAbsolutePath indicates a request tried to override the fixed origin.
	ErrAbsolutePath = NewDomainError("UT-API-4001", "request path must be relative to the configured origin")
	// ErrInvalidBaseURL indicates the configured origin could not be parsed.
	ErrInvalidBaseURL = NewDomainError("UT-API-4002", "invalid base url")
	// ErrRecordNotFound indicates the addressed record does not exist.
	ErrRecordNotFound = NewDomainError("UT-API-4040", "record not found")
	// ErrConflict indicates the write collides with an existing record.
	ErrConflict = NewDomainError("UT-API-4090", "conflict")
	// ErrDecode indicates a response body could not be decoded.
	ErrDecode = NewDomainError("UT-API-5020", "decode response")
	// ErrTransport indicates the request never produced a response.
	ErrTransport = NewDomainError("UT-API-5030", "transport failure")
)

// Argument errors.
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("UT-ARG-1001", "invalid argument")
	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("UT-ARG-1002", "missing required argument")
	// ErrUnknownResource indicates a resource name outside the catalog.
	ErrUnknownResource = NewDomainError("UT-ARG-1004", "unknown resource")
)

// System errors.
var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("UT-SYS-5000", "internal error")
	// ErrConfig indicates invalid configuration.
	ErrConfig = NewDomainError("UT-SYS-5002", "invalid configuration")
)
