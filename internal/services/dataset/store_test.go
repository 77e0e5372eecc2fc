package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"commitcrawl/internal/core/record"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
	"commitcrawl/internal/platform/testkit"
)

func row(sha, msg string) record.Row {
	at := time.Date(2024, 12, 23, 22, 32, 14, 0, time.UTC)
	return record.Row{RepoFullName: "octo/hello", Branch: "main", SHA: sha, Message: msg, AuthorDate: &at}.Canonical()
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Path: filepath.Join(t.TempDir(), "out", "commits.csv")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func shas(rows []record.Row) string {
	var b []string
	for _, r := range rows {
		b = append(b, r.SHA)
	}
	return strings.Join(b, ",")
}

func TestMerge_DedupAcrossRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.Merge(ctx, []record.Row{row("A", "a"), row("B", "b1")})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if st != (Stats{Before: 0, After: 2, Added: 2}) {
		t.Fatalf("first stats = %+v", st)
	}

	st, err = s.Merge(ctx, []record.Row{row("B", "b2"), row("C", "c")})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if st != (Stats{Before: 2, After: 3, Added: 1}) {
		t.Fatalf("second stats = %+v", st)
	}

	rows, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := shas(rows); got != "A,B,C" {
		t.Fatalf("order = %s, want A,B,C", got)
	}
	if rows[1].Message != "b2" {
		t.Fatalf("B kept %q, want the last occurrence b2", rows[1].Message)
	}
}

func TestMerge_DuplicatesWithinBatchKeepLast(t *testing.T) {
	s := newStore(t)
	st, err := s.Merge(context.Background(), []record.Row{row("X", "1"), row("Y", "y"), row("X", "2"), row("", "keyless")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if st.After != 2 {
		t.Fatalf("After = %d, want 2", st.After)
	}
	rows, _ := s.Load(context.Background())
	if shas(rows) != "X,Y" || rows[0].Message != "2" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestMerge_IsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	batch := []record.Row{row("A", "a"), row("B", "multi\nline, \"quoted\"")}

	if _, err := s.Merge(ctx, batch); err != nil {
		t.Fatalf("merge 1: %v", err)
	}
	first := testkit.ReadFile(t, s.Path())

	st, err := s.Merge(ctx, batch)
	if err != nil {
		t.Fatalf("merge 2: %v", err)
	}
	if st.Added != 0 || st.After != 2 {
		t.Fatalf("second stats = %+v", st)
	}
	if second := testkit.ReadFile(t, s.Path()); second != first {
		t.Fatalf("file changed on re-merge\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestMerge_EmptyBatchLeavesFileAlone(t *testing.T) {
	s := newStore(t)
	st, err := s.Merge(context.Background(), nil)
	if err != nil || st != (Stats{}) {
		t.Fatalf("stats = %+v err = %v", st, err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty merge created the file: %v", err)
	}
}

func TestMerge_FailedRenameKeepsPreviousFile(t *testing.T) {
	testkit.Serial(t)
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Merge(ctx, []record.Row{row("A", "a")}); err != nil {
		t.Fatalf("seed merge: %v", err)
	}
	before := testkit.ReadFile(t, s.Path())

	testkit.Swap(t, &renameFile, func(string, string) error { return errors.New("disk yanked") })

	_, err := s.Merge(ctx, []record.Row{row("B", "b")})
	if !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("err = %v, want IO", err)
	}
	if after := testkit.ReadFile(t, s.Path()); after != before {
		t.Fatalf("dataset modified by a failed merge:\n%s", after)
	}

	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestMerge_CoercesBadStoredTimestamps(t *testing.T) {
	p := testkit.WriteFile(t, "legacy.csv",
		"sha,author_date,committer_date,commit_day,commit_hour,message\n"+
			"A,not a date,2024-01-02 03:04:05,,,hi\n"+
			"B,,,,,no dates\n")
	s, err := New(Options{Path: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Merge(context.Background(), []record.Row{row("C", "c")}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	rows, _ := s.Load(context.Background())
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	a := rows[0]
	if a.AuthorDate != nil {
		t.Fatalf("bad author_date kept: %v", a.AuthorDate)
	}
	if a.CommitDay != "2024-01-02" || a.CommitHour == nil || *a.CommitHour != 3 {
		t.Fatalf("A should fall back to committer date: %q %v", a.CommitDay, a.CommitHour)
	}
	if rows[1].CommitDay != "" || rows[1].CommitHour != nil {
		t.Fatalf("B should have absent day/hour: %+v", rows[1])
	}
	head := strings.SplitN(testkit.ReadFile(t, p), "\n", 2)[0]
	if head != strings.Join(record.Columns, ",") {
		t.Fatalf("header not rewritten to the dataset columns: %s", head)
	}
}

func TestMerge_KeepsStoredRowsWithoutKeyColumn(t *testing.T) {
	p := testkit.WriteFile(t, "repos.csv",
		"repo_full_name,repo_private,commit_day,commit_hour,message,is_merge\n"+
			"octo/a,false,2024-01-01,1,first,false\n"+
			"octo/a,false,2024-01-02,2,second,false\n"+
			"octo/b,true,2024-01-03,3,third,true\n")
	s, err := New(Options{Path: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	st, err := s.Merge(ctx, []record.Row{row("N", "new")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if st != (Stats{Before: 3, After: 4, Added: 1}) {
		t.Fatalf("stats = %+v", st)
	}
	rows, _ := s.Load(ctx)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	for i, msg := range []string{"first", "second", "third", "new"} {
		if rows[i].Message != msg {
			t.Fatalf("row %d message = %q, want %q", i, rows[i].Message, msg)
		}
	}

	again, err := s.Merge(ctx, []record.Row{row("N", "new")})
	if err != nil || again != (Stats{Before: 4, After: 4}) {
		t.Fatalf("re-merge stats = %+v err = %v", again, err)
	}
	if n, _ := s.Count(ctx); n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
}

func TestMerge_WritesMetaSidecar(t *testing.T) {
	s := newStore(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ctx := logger.WithRun(context.Background(), "run-123")
	if _, err := s.Merge(ctx, []record.Row{row("A", "a"), row("B", "b")}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	m, ok, err := ReadMeta(s.Path())
	if err != nil || !ok {
		t.Fatalf("ReadMeta ok=%v err=%v", ok, err)
	}
	if m.Rows != 2 || m.Key != "sha" || m.RunID != "run-123" || !m.UpdatedAt.Equal(fixed) {
		t.Fatalf("meta = %+v", m)
	}

	_, ok, err = ReadMeta(filepath.Join(t.TempDir(), "none.csv"))
	if ok || err != nil {
		t.Fatalf("missing meta: ok=%v err=%v", ok, err)
	}
}

func TestMerge_CustomKey(t *testing.T) {
	s, err := New(Options{Path: filepath.Join(t.TempDir(), "c.csv"), Key: "html_url"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b := row("A", "a"), row("B", "b")
	a.HTMLURL, b.HTMLURL = "u1", "u1"
	st, err := s.Merge(context.Background(), []record.Row{a, b})
	if err != nil || st.After != 1 {
		t.Fatalf("stats = %+v err = %v", st, err)
	}
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(Options{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("missing path err = %v", err)
	}
	_, err := New(Options{Path: "x.csv", Key: "nope"})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad key err = %v", err)
	}
	if e, ok := perr.As(err); !ok || e.Field() != "key" {
		t.Fatalf("bad key should name the field: %v", err)
	}
}

func TestCountAndOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Open(); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("Open before first merge = %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count = %d %v", n, err)
	}
	_, _ = s.Merge(ctx, []record.Row{row("A", "a"), row("B", "b")})
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
	f, err := s.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	rows, err := Read(f)
	if err != nil || len(rows) != 2 {
		t.Fatalf("Read via Open = %d %v", len(rows), err)
	}
}
