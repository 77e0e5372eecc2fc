// Package record defines the commit payloads read from the forge and the flat
// row persisted in the dataset
package record

import (
	"time"
)

// Signature is the git-level identity and timestamp of an author or committer.
// Date is kept as the raw string so a malformed value degrades to absent instead
// of failing the whole page decode.
type Signature struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// Account is the platform account linked to a signature, when the forge knows it
type Account struct {
	Login string `json:"login"`
}

// ParentRef points at a parent commit
type ParentRef struct {
	SHA string `json:"sha"`
}

// CommitBody is the nested git commit object
type CommitBody struct {
	Author    Signature `json:"author"`
	Committer Signature `json:"committer"`
	Message   string    `json:"message"`
}

// RawCommit is one element of a commits page as returned by the forge
type RawCommit struct {
	SHA       string      `json:"sha"`
	HTMLURL   string      `json:"html_url"`
	Commit    CommitBody  `json:"commit"`
	Author    *Account    `json:"author"`
	Committer *Account    `json:"committer"`
	Parents   []ParentRef `json:"parents"`
}

// RepoMeta is the repository snapshot carried into every row of a unit
type RepoMeta struct {
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	Language      string `json:"language"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	DefaultBranch string `json:"default_branch"`
}

// Row is the persisted, flattened commit
type Row struct {
	RepoFullName string   `json:"repo_full_name"`
	Branch       string   `json:"branch"`
	SHA          string   `json:"sha"`
	ParentSHAs   []string `json:"parent_shas"`
	HTMLURL      string   `json:"html_url"`

	AuthorLogin string `json:"author_login"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`

	CommitterLogin string `json:"committer_login"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`

	AuthorDate    *time.Time `json:"author_date"`
	CommitterDate *time.Time `json:"committer_date"`
	CommitDate    *time.Time `json:"commit_date"`
	CommitDay     string     `json:"commit_day"`
	CommitHour    *int       `json:"commit_hour"`

	Message string `json:"message"`
	IsMerge bool   `json:"is_merge"`

	RepoPrivate  bool   `json:"repo_private"`
	RepoLanguage string `json:"repo_language"`
	RepoStars    int    `json:"repo_stars"`
	RepoForks    int    `json:"repo_forks"`
}

// Derive computes the UTC calendar day and hour of t; both are absent for nil
func Derive(t *time.Time) (day string, hour *int) {
	if t == nil {
		return "", nil
	}
	u := t.UTC()
	h := u.Hour()
	return u.Format(time.DateOnly), &h
}
