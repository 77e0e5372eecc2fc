// Package dataset owns the merged commit CSV.
//
// A merge is one read-modify-write cycle: load the current file, append the
// new rows, keep the last row per key and atomically replace the file. The
// cycle is serialized per Store; readers see either the old file or the new
// one, never a partial write.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"commitcrawl/internal/core/record"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
)

// DefaultKey is the dedup column
const DefaultKey = "sha"

// renameFile is the commit point of a write
var renameFile = os.Rename

// Options configures a Store
type Options struct {
	Path string
	Key  string
}

// Stats is the outcome of one merge
type Stats struct {
	Before int
	After  int
	Added  int
}

// Store is the dataset file and its merge lock
type Store struct {
	mu   sync.RWMutex
	path string
	key  string
	now  func() time.Time
}

// New validates opts and returns a Store. The file need not exist.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, perr.InvalidArgf("dataset path is required")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if !record.HasColumn(opts.Key) {
		return nil, perr.WithField(perr.InvalidArgf("dedup key %q is not a dataset column", opts.Key), "key")
	}
	return &Store{path: opts.Path, key: opts.Key, now: time.Now}, nil
}

// Path returns the dataset location
func (s *Store) Path() string { return s.path }

// Key returns the dedup column
func (s *Store) Key() string { return s.key }

// Merge folds rows into the dataset. Incoming rows without a key value are
// skipped; stored ones are kept as they are. Stats.Before counts the rows already on disk after dedup, Stats.After is the
// row count of the written file. An empty batch leaves the file untouched.
func (s *Store) Merge(ctx context.Context, rows []record.Row) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.C(ctx).With().Str("component", "dataset").Str("path", s.path).Logger()

	existing, err := s.load()
	if err != nil {
		return Stats{}, err
	}
	base := Dedup(existing, s.key)
	st := Stats{Before: len(base), After: len(base)}
	if len(rows) == 0 {
		return st, nil
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	merged := Dedup(append(base, keyed(rows, s.key)...), s.key)
	if err := s.write(merged); err != nil {
		return st, err
	}
	st.After = len(merged)
	st.Added = st.After - st.Before

	if err := writeMeta(metaPath(s.path), Meta{
		Rows:      st.After,
		Key:       s.key,
		UpdatedAt: s.now().UTC(),
		RunID:     logger.RunID(ctx),
	}); err != nil {
		// the dataset itself is committed; a stale sidecar is only informational
		log.Warn().Err(err).Msg("dataset meta write failed")
	}

	log.Debug().Int("before", st.Before).Int("after", st.After).Int("added", st.Added).Int("incoming", len(rows)).Msg("dataset merged")
	return st, nil
}

// Load returns the current rows in file order, canonicalized
func (s *Store) Load(ctx context.Context) ([]record.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Count returns the number of rows on disk after dedup
func (s *Store) Count(ctx context.Context) (int, error) {
	rows, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(Dedup(rows, s.key)), nil
}

// Open returns a reader over the current file. The handle stays valid
// across later merges since those replace the file rather than rewrite it.
func (s *Store) Open() (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "dataset %s does not exist yet", s.path)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open dataset %s", s.path)
	}
	return f, nil
}

// load reads the file; a missing or empty file is an empty dataset
func (s *Store) load() ([]record.Row, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open dataset %s", s.path)
	}
	defer func() { _ = f.Close() }()

	rows, err := Read(f)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "read dataset %s", s.path)
	}
	return rows, nil
}

// write replaces the dataset with rows
func (s *Store) write(rows []record.Row) error {
	err := writeAtomic(s.path, func(w io.Writer) error { return Write(w, rows) })
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "write dataset %s", s.path)
	}
	return nil
}

// Read parses a dataset stream. The header decides which cell is which, so
// files with extra, missing or reordered columns still load.
func Read(r io.Reader) ([]record.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := record.NewHeader(head)

	var rows []record.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, record.FromRecord(h, rec))
	}
}

// Write renders rows with the dataset header
func Write(w io.Writer, rows []record.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record.Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Dedup keeps one row per key. The surviving row carries the values of the
// last occurrence and sits at the position of the first. Rows with an empty
// key cannot be matched and pass through in place.
func Dedup(rows []record.Row, key string) []record.Row {
	out := make([]record.Row, 0, len(rows))
	at := make(map[string]int, len(rows))
	for _, r := range rows {
		k := KeyOf(r, key)
		if k == "" {
			out = append(out, r)
			continue
		}
		if i, ok := at[k]; ok {
			out[i] = r
			continue
		}
		at[k] = len(out)
		out = append(out, r)
	}
	return out
}

// keyed drops rows that have no value for key
func keyed(rows []record.Row, key string) []record.Row {
	out := make([]record.Row, 0, len(rows))
	for _, r := range rows {
		if KeyOf(r, key) != "" {
			out = append(out, r)
		}
	}
	return out
}

// KeyOf returns the dedup value of r
func KeyOf(r record.Row, key string) string {
	if key == DefaultKey {
		return r.SHA
	}
	return r.Field(key)
}

// writeAtomic writes to a temp file beside path, syncs it and renames it over
// path. Any failure before the rename leaves path untouched.
func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return renameFile(tmp.Name(), path)
}
