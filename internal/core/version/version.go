// Package version identifies the running binary
package version

import (
	"runtime/debug"
	"sync"
)

// Service names the binary in logs, the forge user agent and the meta API
const Service = "commitcrawl"

// Set with -ldflags "-X commitcrawl/internal/core/version.version=v0.3.0 ...".
// When unset, Info falls back to the VCS stamp the go tool embeds.
var (
	version = ""
	commit  = ""
	date    = ""
)

// BuildInfo is what /version answers
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Dirty   bool   `json:"dirty,omitempty"`
}

var info = sync.OnceValue(func() BuildInfo {
	return resolve(version, commit, date, debug.ReadBuildInfo)
})

// Info is the build identity, resolved once
func Info() BuildInfo { return info() }

func resolve(ver, rev, at string, read func() (*debug.BuildInfo, bool)) BuildInfo {
	b := BuildInfo{Service: Service, Version: ver, Commit: rev, Date: at}
	if bi, ok := read(); ok && bi != nil {
		if b.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			b.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = s.Value
				}
			case "vcs.modified":
				b.Dirty = s.Value == "true"
			}
		}
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Commit == "" {
		b.Commit = "none"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}
