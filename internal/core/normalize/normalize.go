// Package normalize maps raw forge commits to flat dataset rows.
//
// Commit is a pure function: no I/O, no shared mutable state, safe to call
// from any number of workers. Derivation rules:
//   - commit_date is the author date, else the committer date
//   - commit_day and commit_hour are the UTC date and hour of commit_date,
//     both absent when it is absent or unparsable
//   - is_merge is true iff the commit lists more than one parent
//   - the message is kept as sent; names are cleaned up with Text
package normalize

import (
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"commitcrawl/internal/core/record"
	ptime "commitcrawl/internal/platform/time"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Context is what a unit knows about the commits it fetches
type Context struct {
	Repo   record.RepoMeta
	Branch string
}

// Commit flattens raw into a row owned by ctx
func Commit(raw record.RawCommit, ctx Context) record.Row {
	body := raw.Commit

	parents := make([]string, 0, len(raw.Parents))
	for _, p := range raw.Parents {
		if p.SHA != "" {
			parents = append(parents, p.SHA)
		}
	}
	if len(parents) == 0 {
		parents = nil
	}

	row := record.Row{
		RepoFullName:   ctx.Repo.FullName,
		Branch:         ctx.Branch,
		SHA:            strings.TrimSpace(raw.SHA),
		ParentSHAs:     parents,
		HTMLURL:        raw.HTMLURL,
		AuthorLogin:    login(raw.Author),
		AuthorName:     Text(body.Author.Name),
		AuthorEmail:    strings.TrimSpace(body.Author.Email),
		CommitterLogin: login(raw.Committer),
		CommitterName:  Text(body.Committer.Name),
		CommitterEmail: strings.TrimSpace(body.Committer.Email),
		AuthorDate:     stamp(body.Author.Date),
		CommitterDate:  stamp(body.Committer.Date),
		Message:        Verbatim(body.Message),
		IsMerge:        len(raw.Parents) > 1,
		RepoPrivate:    ctx.Repo.Private,
		RepoLanguage:   ctx.Repo.Language,
		RepoStars:      ctx.Repo.Stars,
		RepoForks:      ctx.Repo.Forks,
	}
	return row.Canonical()
}

// Commits normalizes a page of raw commits
func Commits(raws []record.RawCommit, ctx Context) []record.Row {
	out := make([]record.Row, 0, len(raws))
	for _, r := range raws {
		out = append(out, Commit(r, ctx))
	}
	return out
}

func login(a *record.Account) string {
	if a == nil {
		return ""
	}
	return a.Login
}

func stamp(s string) *time.Time {
	t, ok := ptime.ParseStamp(s)
	if !ok {
		return nil
	}
	return &t
}

// chainPool holds fresh transformer chains; a chain is stateful so each
// caller borrows its own
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.ReplaceIllFormed(),
			runes.Remove(runes.Predicate(dropControl)),
			norm.NFC,
		)
	},
}

// dropControl matches control characters except newline and tab
func dropControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

// Text makes free-form commit text safe for a CSV cell: ill-formed UTF-8 is
// replaced, control characters other than newline and tab are dropped
// (CRLF becomes LF) and the result is NFC and trimmed.
func Text(s string) string {
	if s == "" {
		return ""
	}
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = strings.ToValidUTF8(s, "")
	}
	return strings.TrimSpace(out)
}

// Verbatim returns s unchanged except that ill-formed UTF-8 becomes U+FFFD
func Verbatim(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, _, err := transform.String(runes.ReplaceIllFormed(), s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return out
}
