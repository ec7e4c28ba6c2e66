// Package auth implements the account exchanges of the UniTrack backend:
// login, logout, profile reads and updates, and password change. It fills
// and tears down the session held by a session.Manager.
package auth
