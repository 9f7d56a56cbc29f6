// Package engine defines the search engine abstraction behind the bridge
// and the flat result record it serves to clients.
package engine

import "context"

// MaxResults is the absolute cap on hits any engine returns, whatever a
// client asks for.
const MaxResults = 50

// Result is one reshaped search hit: an article link built from the
// configured base URL, the page title and a bounded snippet of its text.
type Result struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Engine executes searches against a backing full-text index. A failing
// engine returns an error; the HTTP layer absorbs it into an empty result
// set rather than surfacing a client-facing failure.
type Engine interface {
	// Name identifies the engine in response envelopes and logs.
	Name() string

	// Endpoint reports the resolved engine URL for startup output.
	Endpoint() string

	// Search runs an already normalised query and returns up to count
	// reshaped results. count has been resolved to a positive value.
	Search(ctx context.Context, query string, count int) ([]Result, error)
}
