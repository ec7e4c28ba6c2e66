// Package buildinfo exposes build information injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/unitrack-go/internal/infra/buildinfo.Version=v1.0.0"
//
// The API client derives its default User-Agent from it.
package buildinfo
