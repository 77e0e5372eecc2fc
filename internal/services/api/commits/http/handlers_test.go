package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"commitcrawl/internal/core/record"
	"commitcrawl/internal/modkit/httpkit"
	perr "commitcrawl/internal/platform/errors"
	phttp "commitcrawl/internal/platform/net/http"
	"commitcrawl/internal/services/api/commits/domain"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeSvc struct {
	q    domain.Query
	page domain.Page
	err  error
	path string
}

func (f *fakeSvc) List(_ context.Context, q domain.Query) (domain.Page, error) {
	f.q = q
	return f.page, f.err
}

func (f *fakeSvc) Open(context.Context) (*os.File, error) {
	if f.path == "" {
		return nil, perr.Newf(perr.ErrorCodeNotFound, "dataset does not exist yet")
	}
	return os.Open(f.path)
}

func serve(svc domain.ServicePort, method, target string) *httptest.ResponseRecorder {
	m := chi.NewRouter()
	Register(phttp.AdaptChi(m), svc)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) httpkit.Envelope {
	t.Helper()
	var env httpkit.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestList(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeSvc{page: domain.Page{Total: 3, Rows: []record.Row{{SHA: "a1", CommitDate: &day}}}}

	rec := serve(f, http.MethodGet, "/commits?repo=octo/hello&branch=main&limit=1&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.Query{Repo: "octo/hello", Branch: "main", Limit: 1, Offset: 2}, f.q)

	env := decode(t, rec)
	require.Equal(t, &httpkit.Page{Total: 3, Limit: 1, Offset: 2}, env.Page)
	rows := env.Data.([]any)
	require.Equal(t, "a1", rows[0].(map[string]any)["sha"])
}

func TestList_DefaultLimitInPage(t *testing.T) {
	f := &fakeSvc{page: domain.Page{Rows: []record.Row{}}}
	env := decode(t, serve(f, http.MethodGet, "/commits"))
	require.Equal(t, domain.DefaultLimit, env.Page.Limit)
}

func TestList_Errors(t *testing.T) {
	rec := serve(&fakeSvc{}, http.MethodGet, "/commits?limit=ten")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "limit", decode(t, rec).Field)

	bad := &fakeSvc{err: perr.WithField(perr.InvalidArgf("repo must look like owner/name"), "repo")}
	rec = serve(bad, http.MethodGet, "/commits?repo=x")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "repo", decode(t, rec).Field)
}

func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.csv")
	require.NoError(t, os.WriteFile(path, []byte("sha\nabc\n"), 0o644))
	f := &fakeSvc{path: path}

	rec := serve(f, http.MethodGet, "/commits.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="commits.csv"`)
	require.Equal(t, "sha\nabc\n", rec.Body.String())

	rec = serve(f, http.MethodHead, "/commits.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestCSV_Missing(t *testing.T) {
	rec := serve(&fakeSvc{}, http.MethodGet, "/commits.csv")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, perr.ErrorCodeNotFound, decode(t, rec).Code)
}
