package manticore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/localkb/lkb/internal/engine"
	"github.com/localkb/lkb/internal/textutil"
)

// Fallbacks for hits missing the fields the bridge serves.
const (
	fallbackTitle   = "Unknown Document"
	fallbackSnippet = "No content available"
)

// searchResponse mirrors the slice of the engine's reply the bridge
// consumes: an Elasticsearch-compatible envelope with the hit array
// nested under a second hits key. Hits stay raw so one malformed entry
// is skipped instead of discarding the whole response.
type searchResponse struct {
	Took     int          `json:"took"`
	TimedOut bool         `json:"timed_out"`
	Hits     responseHits `json:"hits"`
}

type responseHits struct {
	Total int               `json:"total"`
	Hits  []json.RawMessage `json:"hits"`
}

type hit struct {
	Source hitSource `json:"_source"`
}

// hitSource distinguishes absent fields from empty ones: only a missing
// field gets its fallback.
type hitSource struct {
	PageTitle *string `json:"page_title"`
	OldText   *string `json:"old_text"`
}

// decodeResponse parses the raw engine reply. A reply that is not the
// expected envelope shape is a schema mismatch, reported as an error so
// the caller can log it loudly before degrading to zero results.
func decodeResponse(raw []byte) (*searchResponse, error) {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("engine response does not match the expected shape: %w", err)
	}
	return &resp, nil
}

// reshape converts decoded hits into client records, capped at
// min(count, engine.MaxResults).
func (e *Engine) reshape(resp *searchResponse, count int) []engine.Result {
	limit := count
	if limit > engine.MaxResults {
		limit = engine.MaxResults
	}

	results := make([]engine.Result, 0, min(limit, len(resp.Hits.Hits)))
	for _, raw := range resp.Hits.Hits {
		if len(results) >= limit {
			break
		}

		var h hit
		if err := json.Unmarshal(raw, &h); err != nil {
			e.logger.WithError(err).Debug("Skipping malformed engine hit")
			continue
		}
		results = append(results, e.record(h.Source))
	}
	return results
}

// record builds one client record from a hit source.
func (e *Engine) record(src hitSource) engine.Result {
	title := fallbackTitle
	if src.PageTitle != nil {
		title = *src.PageTitle
	}

	// MediaWiki stores titles NFC-normalised; links must match that form
	// to resolve.
	link := e.cfg.BaseURL + textutil.WikiEncode(norm.NFC.String(title))

	snippet := fallbackSnippet
	if src.OldText != nil {
		text := *src.OldText
		if e.cfg.StripMarkup {
			text = stripMarkup(text)
		}
		snippet = textutil.TruncateWithEllipsis(text, e.cfg.SnippetLength)
	}

	return engine.Result{Link: link, Title: title, Snippet: snippet}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// stripMarkup reduces a snippet source to its visible text. Wiki bodies
// routinely embed HTML fragments that would otherwise eat the snippet
// budget.
func stripMarkup(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(doc.Text(), " "))
}
