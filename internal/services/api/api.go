// Package api mounts the read-only dataset API
package api

import (
	"commitcrawl/internal/modkit"
	"commitcrawl/internal/modkit/httpkit"
	"commitcrawl/internal/platform/config"
	"commitcrawl/internal/platform/logger"
	phttp "commitcrawl/internal/platform/net/http"

	commitsmod "commitcrawl/internal/services/api/commits/module"
	metamod "commitcrawl/internal/services/api/meta/module"
	crawlmod "commitcrawl/internal/services/crawl/module"
)

// Options are the API options
type Options struct {
	Deps  modkit.Deps
	Crawl *crawlmod.Module
}

// Mount mounts the meta routes at the root and the dataset and run routes
// under /api/v1
func Mount(r phttp.Router, opt Options) {
	deps := opt.Deps
	data := opt.Crawl.Dataset()
	origins := corsOrigins(deps.Cfg)
	stack := httpkit.CommonStack(origins...)

	root := []modkit.Module{
		metamod.New(deps, data.Path(), modkit.WithMiddlewares(stack...)),
	}
	v1 := []modkit.Module{
		commitsmod.New(deps, data),
		opt.Crawl,
	}

	for _, m := range root {
		m.MountRoutes(r)
	}
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range v1 {
			m.MountRoutes(api)
		}
	})

	names := make([]string, 0, len(root)+len(v1))
	for _, m := range append(root, v1...) {
		names = append(names, m.Name())
	}
	logger.Named("http").Info().Strs("modules", names).Strs("cors_origins", origins).Msg("api mounted")
}

// corsOrigins reads CORE_SERVE_CORS_ORIGINS; empty disables cross origin access
func corsOrigins(cfg config.Conf) []string {
	return cfg.Prefix("CORE_SERVE_").MayCSV("CORS_ORIGINS", nil)
}
