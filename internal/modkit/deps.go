package modkit

import (
	"commitcrawl/internal/modkit/repokit"
	"commitcrawl/internal/platform/config"
	"commitcrawl/internal/platform/store"
)

// Deps is what every module is built from. PG and CH stay nil when the
// ledger or the mirror is disabled.
type Deps struct {
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}

// FromStore lifts the open backends of st; a nil st leaves both disabled
func FromStore(cfg config.Conf, st *store.Store) Deps {
	if st == nil {
		return Deps{Cfg: cfg}
	}
	return Deps{Cfg: cfg, PG: st.PG, CH: st.CH}
}

// HasLedger reports whether the run ledger is reachable through PG
func (d Deps) HasLedger() bool { return d.PG != nil }

// HasMirror reports whether rows are mirrored to ClickHouse
func (d Deps) HasMirror() bool { return d.CH != nil }
