package httpkit

import "commitcrawl/internal/platform/net/middleware"

// Middleware is the decorator shape modules and API scopes take
type Middleware = middleware.Middleware

// CommonStack is the chain every API scope runs behind. origins feeds CORS;
// none means no cross origin access.
func CommonStack(origins ...string) []Middleware {
	return middleware.Stack(middleware.Options{Origins: origins})
}
