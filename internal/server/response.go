package server

import (
	"time"

	"github.com/localkb/lkb/internal/engine"
	"github.com/localkb/lkb/internal/textutil"
)

// serviceName is the identity the health endpoint reports.
const serviceName = "LocalKnowledgeBase"

// searchResponse is the reply envelope for the search endpoint. total
// counts the results actually included, not the engine-side match
// count.
type searchResponse struct {
	Results []engine.Result `json:"results"`
	TookMs  int64           `json:"took_ms"`
	Total   int             `json:"total"`
	Engine  string          `json:"engine"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newSearchResponse shapes results for the wire. Control whitespace
// inside values becomes a single space so snippets stay one line, and
// an empty set encodes as [] rather than null.
func newSearchResponse(results []engine.Result, engineName string, took time.Duration) searchResponse {
	shaped := make([]engine.Result, len(results))
	for i, r := range results {
		shaped[i] = engine.Result{
			Link:    textutil.FlattenWhitespace(r.Link),
			Title:   textutil.FlattenWhitespace(r.Title),
			Snippet: textutil.FlattenWhitespace(r.Snippet),
		}
	}
	return searchResponse{
		Results: shaped,
		TookMs:  took.Milliseconds(),
		Total:   len(shaped),
		Engine:  engineName,
	}
}
