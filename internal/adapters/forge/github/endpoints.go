package github

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"commitcrawl/internal/core/paginate"
	"commitcrawl/internal/core/record"
	perr "commitcrawl/internal/platform/errors"
)

// Affiliation is the repository listing scope of the authenticated user
const Affiliation = "owner,collaborator,organization_member"

// AuthenticatedUser performs GET /user. A 401 means the credential is bad;
// any other failure means it could not be checked.
func (c *Client) AuthenticatedUser(ctx context.Context) (User, error) {
	resp, err := c.Get(ctx, paginate.Request{Path: "/user"})
	if err != nil {
		return User{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "github probe failed")
	}
	switch {
	case resp.Status == http.StatusUnauthorized:
		return User{}, perr.Wrap(paginate.NewStatusError(resp), perr.ErrorCodeUnauthorized, "github rejected the token")
	case !resp.OK():
		return User{}, perr.Wrap(paginate.NewStatusError(resp), perr.ErrorCodeUnavailable, "github probe failed")
	}
	var u User
	if err := json.Unmarshal(resp.Body, &u); err != nil {
		return User{}, perr.Wrap(err, perr.ErrorCodeDecode, "decode /user")
	}
	return u, nil
}

// GetRepo performs GET /repos/{owner}/{repo}
func (c *Client) GetRepo(ctx context.Context, fullName string) (record.RepoMeta, error) {
	path, err := repoPath(fullName)
	if err != nil {
		return record.RepoMeta{}, err
	}
	resp, err := c.Get(ctx, paginate.Request{Path: path})
	if err != nil {
		return record.RepoMeta{}, err
	}
	switch {
	case resp.Status == http.StatusNotFound:
		return record.RepoMeta{}, perr.Newf(perr.ErrorCodeNotFound, "repository %s not found", fullName)
	case !resp.OK():
		return record.RepoMeta{}, perr.Wrap(paginate.NewStatusError(resp), perr.ErrorCodeUpstream, "get repository")
	}
	var m record.RepoMeta
	if err := json.Unmarshal(resp.Body, &m); err != nil {
		return record.RepoMeta{}, perr.Wrapf(err, perr.ErrorCodeDecode, "decode repository %s", fullName)
	}
	return m, nil
}

// ListUserRepos walks GET /user/repos for every repository the account owns,
// collaborates on or sees through an organization
func (c *Client) ListUserRepos(ctx context.Context, maxPages int) iter.Seq2[paginate.Page[record.RepoMeta], error] {
	q := url.Values{}
	q.Set("affiliation", Affiliation)
	q.Set("per_page", strconv.Itoa(c.opts.PerPage))
	return paginate.Pages[record.RepoMeta](ctx, c, paginate.Request{Path: "/user/repos", Query: q}, maxPages)
}

// ListBranches walks GET /repos/{owner}/{repo}/branches
func (c *Client) ListBranches(ctx context.Context, fullName string, maxPages int) iter.Seq2[paginate.Page[Branch], error] {
	path, err := repoPath(fullName)
	if err != nil {
		return failed[Branch](err)
	}
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.opts.PerPage))
	return paginate.Pages[Branch](ctx, c, paginate.Request{Path: path + "/branches", Query: q}, maxPages)
}

// ListCommits walks GET /repos/{owner}/{repo}/commits scoped by cq
func (c *Client) ListCommits(ctx context.Context, cq CommitQuery, maxPages int) iter.Seq2[paginate.Page[record.RawCommit], error] {
	path, err := repoPath(cq.Repo)
	if err != nil {
		return failed[record.RawCommit](err)
	}
	return paginate.Pages[record.RawCommit](ctx, c, paginate.Request{Path: path + "/commits", Query: c.commitQuery(cq)}, maxPages)
}

func (c *Client) commitQuery(cq CommitQuery) url.Values {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.opts.PerPage))
	if cq.Branch != "" {
		q.Set("sha", cq.Branch)
	}
	if cq.Since != nil {
		q.Set("since", cq.Since.UTC().Format(time.RFC3339))
	}
	if cq.Until != nil {
		q.Set("until", cq.Until.UTC().Format(time.RFC3339))
	}
	if cq.Author != "" {
		q.Set("author", cq.Author)
	}
	return q
}

// repoPath validates owner/name and renders the repository path
func repoPath(fullName string) (string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", perr.InvalidArgf("repository %q is not owner/name", fullName)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

// failed is a walk that yields err and ends
func failed[T any](err error) iter.Seq2[paginate.Page[T], error] {
	return func(yield func(paginate.Page[T], error) bool) {
		yield(paginate.Page[T]{}, err)
	}
}
