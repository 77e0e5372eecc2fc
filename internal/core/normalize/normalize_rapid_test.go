package normalize

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestRapidCommit_DerivedFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		at := base.Add(time.Duration(rapid.Int64Range(0, 30*365*24*3600).Draw(t, "sec")) * time.Second)
		offsetH := rapid.IntRange(-12, 14).Draw(t, "offsetH")
		local := at.In(time.FixedZone("z", offsetH*3600))

		n := rapid.IntRange(0, 4).Draw(t, "parents")
		parents := make([]string, n)
		for i := range parents {
			parents[i] = fmt.Sprintf("p%d", i)
		}

		row := Commit(raw(local.Format(time.RFC3339), "", parents...), unit)

		if row.CommitDay != at.Format(time.DateOnly) {
			t.Fatalf("day = %q, want %q", row.CommitDay, at.Format(time.DateOnly))
		}
		if row.CommitHour == nil || *row.CommitHour != at.Hour() {
			t.Fatalf("hour = %v, want %d", row.CommitHour, at.Hour())
		}
		if *row.CommitHour < 0 || *row.CommitHour > 23 {
			t.Fatalf("hour out of range: %d", *row.CommitHour)
		}
		if row.IsMerge != (n > 1) {
			t.Fatalf("is_merge = %v with %d parents", row.IsMerge, n)
		}
	})
}
