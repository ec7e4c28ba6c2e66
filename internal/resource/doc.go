// Package resource is a typed catalog of the backend's record families
// (courses, batches, attendance, ...) with generic CRUD and upload calls
// over an apiclient.Client.
//
// Records are handled as map[string]any: the backend schemas vary per
// deployment and callers only render them.
package resource
