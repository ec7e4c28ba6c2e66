// Package output renders command results for unitrack-cli as a table,
// JSON or YAML.
//
// Backend records arrive as map[string]any; the table formatter turns a
// slice of them into one column per field and hides nested values unless
// wide output is requested.
package output
