package httpkit

import "net/http"

// Get mounts a read endpoint whose result is rendered through Call
func Get(r Router, path string, fn func(*http.Request) (any, error)) {
	r.Get(path, Call(fn))
}

// Stream mounts h for GET and HEAD; h owns the response body, as a file
// download does
func Stream(r Router, path string, h Handler) {
	for _, mount := range []func(string, Handler){r.Get, r.Head} {
		mount(path, h)
	}
}
