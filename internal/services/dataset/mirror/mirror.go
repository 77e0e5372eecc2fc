// Package mirror copies merged dataset rows into a ClickHouse table so the
// dataset can be queried without reading the CSV
package mirror

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"commitcrawl/internal/core/record"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
	"commitcrawl/internal/platform/store"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ddl keeps one row per sha; the newest ingested_at wins on merge
const ddl = `
CREATE TABLE IF NOT EXISTS %s (
	sha             String,
	repo_full_name  LowCardinality(String),
	branch          LowCardinality(String),
	parent_shas     Array(String),
	html_url        String,
	author_login    String,
	author_name     String,
	author_email    String,
	committer_login String,
	committer_name  String,
	committer_email String,
	author_date     Nullable(DateTime64(3, 'UTC')),
	committer_date  Nullable(DateTime64(3, 'UTC')),
	commit_date     Nullable(DateTime64(3, 'UTC')),
	commit_day      Nullable(Date),
	commit_hour     Nullable(UInt8),
	message         String,
	is_merge        Bool,
	repo_private    Bool,
	repo_language   LowCardinality(String),
	repo_stars      UInt32,
	repo_forks      UInt32,
	run_id          String,
	ingested_at     DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY sha`

// Mirror writes rows through the store clickhouse seam
type Mirror struct {
	ch    store.Clickhouse
	table string
	now   func() time.Time
}

// New validates table and binds the mirror to ch
func New(ch store.Clickhouse, table string) (*Mirror, error) {
	if ch == nil {
		return nil, perr.InvalidArgf("mirror needs a clickhouse connection")
	}
	if !tableName.MatchString(table) {
		return nil, perr.WithField(perr.InvalidArgf("invalid mirror table %q", table), "table")
	}
	return &Mirror{ch: ch, table: table, now: time.Now}, nil
}

// Table returns the target table name
func (m *Mirror) Table() string { return m.table }

// EnsureTable creates the target table when missing
func (m *Mirror) EnsureTable(ctx context.Context) error {
	if err := m.ch.Exec(ctx, fmt.Sprintf(ddl, m.table)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "create mirror table %s", m.table)
	}
	return nil
}

// Write inserts rows stamped with runID. Duplicates collapse on the sha key
// at merge time, so re-sending a unit is harmless.
func (m *Mirror) Write(ctx context.Context, rows []record.Row, runID string) error {
	if len(rows) == 0 {
		return nil
	}
	at := m.now().UTC()
	batch := make([][]any, 0, len(rows))
	for _, r := range rows {
		batch = append(batch, Values(r, runID, at))
	}
	if err := m.ch.Insert(ctx, m.table, batch); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "mirror %d rows into %s", len(rows), m.table)
	}
	logger.C(ctx).Debug().Str("table", m.table).Int("rows", len(rows)).Msg("mirrored")
	return nil
}

// Values lays out r in table column order
func Values(r record.Row, runID string, at time.Time) []any {
	parents := r.ParentSHAs
	if parents == nil {
		parents = []string{}
	}
	var hour *uint8
	if r.CommitHour != nil {
		h := uint8(*r.CommitHour)
		hour = &h
	}
	var day *time.Time
	if r.CommitDay != "" {
		if d, err := time.Parse(time.DateOnly, r.CommitDay); err == nil {
			day = &d
		}
	}
	return []any{
		r.SHA,
		r.RepoFullName,
		r.Branch,
		parents,
		r.HTMLURL,
		r.AuthorLogin,
		r.AuthorName,
		r.AuthorEmail,
		r.CommitterLogin,
		r.CommitterName,
		r.CommitterEmail,
		r.AuthorDate,
		r.CommitterDate,
		r.CommitDate,
		day,
		hour,
		r.Message,
		r.IsMerge,
		r.RepoPrivate,
		r.RepoLanguage,
		uint32(r.RepoStars),
		uint32(r.RepoForks),
		runID,
		at,
	}
}
