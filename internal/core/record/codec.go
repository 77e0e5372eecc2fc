package record

import (
	"strconv"
	"strings"
	"time"

	ptime "commitcrawl/internal/platform/time"
)

// Columns is the dataset header, in write order
var Columns = []string{
	"repo_full_name",
	"branch",
	"sha",
	"parent_shas",
	"html_url",
	"author_login",
	"author_name",
	"author_email",
	"committer_login",
	"committer_name",
	"committer_email",
	"author_date",
	"committer_date",
	"commit_date",
	"commit_day",
	"commit_hour",
	"message",
	"is_merge",
	"repo_private",
	"repo_language",
	"repo_stars",
	"repo_forks",
}

// parentSep joins parent hashes inside one cell
const parentSep = ";"

// HasColumn reports whether name is a dataset column
func HasColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Record renders r in Columns order
func (r Row) Record() []string {
	hour := ""
	if r.CommitHour != nil {
		hour = strconv.Itoa(*r.CommitHour)
	}
	return []string{
		r.RepoFullName,
		r.Branch,
		r.SHA,
		strings.Join(r.ParentSHAs, parentSep),
		r.HTMLURL,
		r.AuthorLogin,
		r.AuthorName,
		r.AuthorEmail,
		r.CommitterLogin,
		r.CommitterName,
		r.CommitterEmail,
		ptime.FormatStamp(r.AuthorDate),
		ptime.FormatStamp(r.CommitterDate),
		ptime.FormatStamp(r.CommitDate),
		r.CommitDay,
		hour,
		r.Message,
		strconv.FormatBool(r.IsMerge),
		strconv.FormatBool(r.RepoPrivate),
		r.RepoLanguage,
		strconv.Itoa(r.RepoStars),
		strconv.Itoa(r.RepoForks),
	}
}

// Field returns the rendered value of a single column, "" for unknown names
func (r Row) Field(name string) string {
	rec := r.Record()
	for i, c := range Columns {
		if c == name {
			return rec[i]
		}
	}
	return ""
}

// Header maps column names of a foreign header row to their positions
type Header map[string]int

// NewHeader indexes a header row; names are trimmed and lowercased
func NewHeader(names []string) Header {
	h := make(Header, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if i == 0 {
			n = strings.TrimPrefix(n, "\ufeff")
		}
		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}
	return h
}

func (h Header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// FromRecord rebuilds a Row from a stored record. Timestamp and numeric cells
// that do not parse become absent; nothing here fails.
func FromRecord(h Header, rec []string) Row {
	get := func(name string) string { return h.get(rec, name) }

	r := Row{
		RepoFullName:   get("repo_full_name"),
		Branch:         get("branch"),
		SHA:            strings.TrimSpace(get("sha")),
		HTMLURL:        get("html_url"),
		AuthorLogin:    get("author_login"),
		AuthorName:     get("author_name"),
		AuthorEmail:    get("author_email"),
		CommitterLogin: get("committer_login"),
		CommitterName:  get("committer_name"),
		CommitterEmail: get("committer_email"),
		AuthorDate:     stamp(get("author_date")),
		CommitterDate:  stamp(get("committer_date")),
		CommitDate:     stamp(get("commit_date")),
		CommitDay:      day(get("commit_day")),
		CommitHour:     hour(get("commit_hour")),
		Message:        get("message"),
		IsMerge:        flag(get("is_merge")),
		RepoPrivate:    flag(get("repo_private")),
		RepoLanguage:   get("repo_language"),
		RepoStars:      count(get("repo_stars")),
		RepoForks:      count(get("repo_forks")),
	}
	if p := strings.TrimSpace(get("parent_shas")); p != "" {
		r.ParentSHAs = splitParents(p)
	}
	return r.Canonical()
}

// Canonical fills commit_date from the author/committer dates when missing and
// re-derives day and hour from it, so stored rows obey the same rules as fresh ones
func (r Row) Canonical() Row {
	if r.CommitDate == nil {
		if r.AuthorDate != nil {
			r.CommitDate = r.AuthorDate
		} else {
			r.CommitDate = r.CommitterDate
		}
	}
	if r.CommitDate != nil {
		r.CommitDay, r.CommitHour = Derive(r.CommitDate)
	}
	return r
}

func stamp(s string) *time.Time {
	t, ok := ptime.ParseStamp(s)
	if !ok {
		return nil
	}
	return &t
}

func day(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		// tolerate "2024-12-23 00:00:00" style cells
		s = s[:len(time.DateOnly)]
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return ""
	}
	return s
}

func hour(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) || f < 0 || f > 23 {
		return nil
	}
	h := int(f)
	return &h
}

func flag(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func count(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// splitParents accepts both ';' and ',' separated cells
func splitParents(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == ' ' })
	if len(parts) == 0 {
		return nil
	}
	return parts
}
