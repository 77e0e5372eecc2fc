package store

import (
	"bytes"
	"context"
	"testing"

	perr "commitcrawl/internal/platform/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWithLogger_BackendsLogThroughIt(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s, err := Open(context.Background(), Config{}, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)

	s.Log.Warn().Str("backend", "ledger").Msg("not ready")
	require.Contains(t, buf.String(), `"backend":"ledger"`)
}

func TestWithLedger_SkipsDial(t *testing.T) {
	t.Parallel()

	// enabled without a URL would fail if Open tried to dial
	cfg := Config{PG: PGConfig{Enabled: true}}
	led := pingTx{}

	s, err := Open(context.Background(), cfg, WithLedger(led))
	require.NoError(t, err)
	require.Equal(t, led, s.PG)
	require.NoError(t, s.Guard(context.Background()))
}

func TestWithMirror_SkipsDial(t *testing.T) {
	t.Parallel()

	fc := &fakeCH{}
	s, err := Open(context.Background(), Config{CH: CHConfig{Enabled: true, URL: "::bad"}}, WithMirror(newCHAdapter(fc)))
	require.NoError(t, err)
	require.NotNil(t, s.CH)

	require.NoError(t, s.Close(context.Background()))
	require.True(t, fc.closed)
}

func TestInjectNil_IsInvalidArgument(t *testing.T) {
	t.Parallel()

	for name, opt := range map[string]Option{
		"ledger": WithLedger(nil),
		"mirror": WithMirror(nil),
	} {
		_, err := Open(context.Background(), Config{}, opt)
		require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), name)
		require.Contains(t, err.Error(), name)
	}
}
