package httpkit

import pstrings "commitcrawl/internal/platform/strings"

// APIPrefix is the mount path of an API version; "v1", "/v1" and "v1/" all give "/api/v1".
// An empty version panics.
func APIPrefix(version string) string {
	return "/api" + pstrings.MustPrefix(version)
}

// MountAPI scopes mw and the routes registered by mount under APIPrefix(version)
func MountAPI(r Router, version string, mw []Middleware, mount func(Router)) {
	r.Route(APIPrefix(version), func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// MountAPIV1 mounts the current read API
func MountAPIV1(r Router, mw []Middleware, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}
