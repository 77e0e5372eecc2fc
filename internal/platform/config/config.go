// Package config reads CORE_* settings from the environment. Bad values never
// fail a read: they are logged and the default is used, so validation stays
// with the options struct that consumes them.
package config

import (
	"strconv"
	"time"

	"commitcrawl/internal/platform/config/raw"
	"commitcrawl/internal/platform/logger"
	pstrings "commitcrawl/internal/platform/strings"
	ptime "commitcrawl/internal/platform/time"
)

// Conf is a prefixed view of the environment, e.g. Prefix("CORE_GITHUB_")
type Conf struct{ env raw.Conf }

func New() Conf { return Conf{env: raw.New()} }

// Prefix nests p under the current prefix
func (c Conf) Prefix(p string) Conf { return Conf{env: c.env.Prefix(p)} }

// Key is the full variable name of k
func (c Conf) Key(k string) string { return c.env.Key(k) }

// may parses key with parse, falling back to def when unset or invalid
func may[T any](c Conf, key string, def T, kind string, parse func(string) (T, error)) T {
	s := c.env.Get(key, "")
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Interface("default", def).
			Msgf("invalid %s; using default", kind)
		return def
	}
	return v
}

// MayString is the trimmed value, def when unset or blank
func (c Conf) MayString(key, def string) string { return c.env.Get(key, def) }

func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi)
}

func (c Conf) MayFloat64(key string, def float64) float64 {
	return may(c, key, def, "float", func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// MayBool accepts what strconv.ParseBool accepts
func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool)
}

// MayDuration accepts Go duration syntax such as 90s or 1h30m
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration)
}

// MayTime reads an ISO-8601 instant, RFC 3339 or a bare date at UTC midnight.
// Unset and invalid values are nil.
func (c Conf) MayTime(key string) *time.Time {
	return may(c, key, (*time.Time)(nil), "ISO-8601 time", func(s string) (*time.Time, error) {
		t, err := ptime.ParseInstant(s)
		if err != nil {
			return nil, err
		}
		return &t, nil
	})
}

// MayCSV splits a comma separated list, dropping blanks; def when nothing is left
func (c Conf) MayCSV(key string, def []string) []string {
	return pstrings.OrSlice(pstrings.Fields(c.env.Get(key, ""), ","), def)
}
