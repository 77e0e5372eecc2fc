// Package report renders a crawl report for a terminal
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"commitcrawl/internal/core/quota"
	"commitcrawl/internal/services/crawl/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxErr bounds the error column
const maxErr = 60

// Render writes the per unit table and the run summary to w
func Render(w io.Writer, rep domain.Report) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.Style().Title.Format = text.FormatDefault
	t.SetTitle(fmt.Sprintf("run %s (%s)", rep.RunID, rep.Mode))
	t.AppendHeader(table.Row{"#", "Unit", "Outcome", "Pages", "Fetched", "Added", "Elapsed", "Error"})
	for _, u := range rep.Units {
		t.AppendRow(table.Row{
			u.Index,
			u.Unit,
			string(u.Outcome),
			u.Pages,
			u.Fetched,
			u.Added,
			u.Elapsed.Round(time.Millisecond),
			clip(u.Err),
		})
	}
	t.AppendFooter(table.Row{
		"",
		counts(rep),
		rep.Status(),
		"",
		rep.Fetched,
		rep.Added,
		rep.Finished.Sub(rep.Started).Round(time.Second),
		"",
	})
	t.Render()

	_, err := fmt.Fprintf(w, "dataset %s: %d rows (was %d)\nquota: %s\n", rep.Output, rep.Rows, rep.Before, Quota(rep.Quota))
	return err
}

// Quota describes a governor snapshot in one line
func Quota(q quota.State) string {
	if !q.Known {
		return fmt.Sprintf("unknown, waited %d times (%s)", q.Waits, q.Waited.Round(time.Second))
	}
	return fmt.Sprintf("%d remaining, resets %s, waited %d times (%s)",
		q.Remaining, q.ResetAt.UTC().Format(time.RFC3339), q.Waits, q.Waited.Round(time.Second))
}

func counts(rep domain.Report) string {
	parts := make([]string, 0, len(domain.Outcomes))
	for _, o := range domain.Outcomes {
		if n := rep.Count(o); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	if len(parts) == 0 {
		return "no units"
	}
	return strings.Join(parts, ", ")
}

func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxErr {
		return string(r[:maxErr-1]) + "…"
	}
	return s
}
