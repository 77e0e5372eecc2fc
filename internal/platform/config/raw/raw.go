// Package raw reads the environment without logging, so the logger itself
// can be configured from it
package raw

import (
	"os"
	"strings"
)

// Conf reads env vars under a prefix such as "LOG_"
type Conf struct{ prefix string }

func New() Conf { return Conf{} }

// Prefix nests p under the current prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Key is the full variable name of k
func (c Conf) Key(k string) string { return c.prefix + k }

// Get is the trimmed value of k, def when unset or blank
func (c Conf) Get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(c.Key(k))); v != "" {
		return v
	}
	return def
}

// GetBool treats 1, true, yes and on as true, any other value as false
func (c Conf) GetBool(k string, def bool) bool {
	switch strings.ToLower(c.Get(k, "")) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
