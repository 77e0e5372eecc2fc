// Package module mounts the probe endpoints at the API root
package module

import (
	"time"

	"commitcrawl/internal/core/version"
	"commitcrawl/internal/modkit"
	phttp "commitcrawl/internal/platform/net/http"

	metahttp "commitcrawl/internal/services/api/meta/http"
)

// Module serves /healthz, /readyz and /version
type Module struct {
	built modkit.Built
}

// New builds the meta module. dataset is the CSV readiness stats; the ledger
// and mirror are probed only when deps carries them.
func New(deps modkit.Deps, dataset string, opts ...modkit.Option) *Module {
	probes := metahttp.Deps{
		Service: version.Service,
		Started: time.Now(),
		Dataset: dataset,
		Backends: []metahttp.Backend{
			{Name: "ledger", Conn: deps.PG},
			{Name: "mirror", Conn: deps.CH},
		},
	}
	base := []modkit.Option{
		modkit.WithName("meta"),
		modkit.WithRegister(func(r phttp.Router) { metahttp.Register(r, probes) }),
	}
	return &Module{built: modkit.Build(append(base, opts...)...)}
}

func (m *Module) Name() string { return m.built.Name }

func (m *Module) Ports() any { return nil }

func (m *Module) MountRoutes(r phttp.Router) { modkit.Mount(r, m.built) }
