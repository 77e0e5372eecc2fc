package ch

import (
	"os"
	"runtime"
	"strings"

	"commitcrawl/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type product = struct{ Name, Version string }

// ClientInfo names this process in system.query_log: the binary and its
// version (tag overrides it), the role such as "crawl" or "serve", the go
// runtime, the short commit and the host
func ClientInfo(role, tag string) clickhouse.ClientInfo {
	bi := version.Info()
	if tag = strings.TrimSpace(tag); tag == "" {
		tag = bi.Version
	}
	host, _ := os.Hostname()
	return clickhouse.ClientInfo{Products: []product{
		{Name: version.Service, Version: orDash(tag)},
		{Name: "role", Version: orDash(role)},
		{Name: "go", Version: runtime.Version()},
		{Name: "commit", Version: short(bi.Commit)},
		{Name: "host", Version: orDash(host)},
	}}
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return orDash(sha)
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}
