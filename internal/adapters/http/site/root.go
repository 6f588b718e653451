// Package site serves the embedded recommender UI.
package site

import (
	"context"
	"net/http"
)

// Register attaches the UI to the root of mux. API routes registered on the
// same mux take precedence because they are more specific.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
