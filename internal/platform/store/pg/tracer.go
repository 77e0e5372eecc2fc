package pg

import (
	"context"
	"strings"
	"time"

	"commitcrawl/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent is one statement as seen by the sql adapter
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives an event per statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs ledger statements even when the process logs above debug.
// Plain statements are debug, slow ones warn and failed ones error.
func Tracer(root logger.Logger) QueryTracer {
	return sqlLog{log: root.Level(zerolog.DebugLevel).With().Str("component", "ledger_sql").Logger()}
}

type sqlLog struct{ log logger.Logger }

func (s sqlLog) OnQuery(ctx context.Context, ev QueryEvent) {
	var e *zerolog.Event
	switch {
	case ev.Err != nil:
		e = s.log.Error().Err(ev.Err)
	case ev.Slow:
		e = s.log.Warn()
	default:
		e = s.log.Debug()
	}
	if id := logger.RunID(ctx); id != "" {
		e = e.Str("run_id", id)
	}
	e.Dur("elapsed", time.Duration(ev.ElapsedUS)*time.Microsecond).
		Bool("slow", ev.Slow).
		Str("sql", oneLine(ev.SQL)).
		Interface("args", ev.Args).
		Msg("ledger query")
}

// oneLine collapses the whitespace of a multi-line statement
func oneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
