// Package module wires the commits read API
package module

import (
	"commitcrawl/internal/modkit"
	phttp "commitcrawl/internal/platform/net/http"
	"commitcrawl/internal/services/api/commits/domain"
	commitshttp "commitcrawl/internal/services/api/commits/http"
	"commitcrawl/internal/services/api/commits/service"
)

// Ports defines the commits module ports
type Ports struct {
	Commits domain.ServicePort
}

// Module implements modkit.Module
type Module struct {
	built modkit.Built
	ports Ports
}

// New constructs the commits module over data
func New(deps modkit.Deps, data domain.Dataset, opts ...modkit.Option) *Module {
	svc := service.New(data)
	m := &Module{ports: Ports{Commits: svc}}
	m.built = modkit.Build(append([]modkit.Option{
		modkit.WithName("commits"),
		modkit.WithPorts(m.ports),
		modkit.WithRegister(func(r phttp.Router) { commitshttp.Register(r, svc) }),
	}, opts...)...)
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r phttp.Router) { modkit.Mount(r, m.built) }
