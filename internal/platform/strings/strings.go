// Package strings holds the few string helpers shared by config and routing
package strings

import std "strings"

// Fields splits s on sep, trims each piece and drops the blanks; nil when
// nothing is left
func Fields(s, sep string) []string {
	var out []string
	for _, p := range std.Split(s, sep) {
		if v := std.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// OrSlice is in unless it is empty, then def
func OrSlice[T any](in, def []T) []T {
	if len(in) > 0 {
		return in
	}
	return def
}

// MustPrefix turns " runs/ " or "//api//v1" into "/runs" and "/api//v1":
// one leading slash, none trailing. A prefix that collapses to "/" panics
// since mounting at root would shadow every other module.
func MustPrefix(s string) string {
	p := std.Trim(std.TrimSpace(s), "/ ")
	if p == "" {
		panic("strings: empty route prefix " + std.TrimSpace(s))
	}
	return "/" + p
}
