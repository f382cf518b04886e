// Package jsonx implements the dynamic JSON traversal described in
// spec.md §9: upstream issue payloads are arbitrarily nested and
// dynamically typed, so extraction works against plain
// map[string]interface{}/[]interface{} trees decoded by encoding/json
// rather than a fixed struct.
//
// No third-party deep-get library in the example pack fits this need
// (buger/jsonparser and mailru/easyjson operate on raw bytes for
// performance extraction, not on already-decoded generic trees), so
// this package is intentionally standard-library only — recorded in
// DESIGN.md.
package jsonx

import "strings"

// Extract follows a dot-notation path through a decoded JSON value
// (map[string]interface{}, []interface{}, or a scalar). A missing
// intermediate key yields (nil, false) rather than an error, per
// spec.md §4.3 ("missing intermediate key yields null, field omitted
// from output, not an error").
func Extract(path string, value interface{}) (interface{}, bool) {
	if path == "" {
		return value, value != nil
	}
	segments := strings.Split(path, ".")
	return extractSegments(segments, value)
}

func extractSegments(segments []string, value interface{}) (interface{}, bool) {
	if value == nil {
		return nil, false
	}
	if len(segments) == 0 {
		return value, true
	}

	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, false
	}

	next, present := m[segments[0]]
	if !present {
		return nil, false
	}
	if len(segments) == 1 {
		return next, true
	}
	return extractSegments(segments[1:], next)
}

// FirstSegment returns the first dot-separated segment of a path,
// used to derive the set of top-level upstream fields a configured
// jira_field path requires (spec.md §4.3 "Required-fields for
// upstream call").
func FirstSegment(path string) string {
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[:idx]
	}
	return path
}

// AsObject returns value as a map, if it is one.
func AsObject(value interface{}) (map[string]interface{}, bool) {
	m, ok := value.(map[string]interface{})
	return m, ok
}

// AsArray returns value as a slice, if it is one.
func AsArray(value interface{}) ([]interface{}, bool) {
	a, ok := value.([]interface{})
	return a, ok
}

// AsString returns value as a string, if it is one.
func AsString(value interface{}) (string, bool) {
	s, ok := value.(string)
	return s, ok
}
