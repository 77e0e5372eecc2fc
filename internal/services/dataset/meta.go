package dataset

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	perr "commitcrawl/internal/platform/errors"
)

// Meta is the sidecar written next to the dataset after every merge
type Meta struct {
	Rows      int       `json:"rows"`
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
	RunID     string    `json:"run_id,omitempty"`
}

func metaPath(path string) string { return path + ".meta.json" }

// ReadMeta loads the sidecar of the dataset at path. ok is false when no
// merge has written one yet.
func ReadMeta(path string) (m Meta, ok bool, err error) {
	b, err := os.ReadFile(metaPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, perr.Wrapf(err, perr.ErrorCodeIO, "read dataset meta")
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, perr.Wrapf(err, perr.ErrorCodeDecode, "decode dataset meta")
	}
	return m, true, nil
}

func writeMeta(path string, m Meta) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}
