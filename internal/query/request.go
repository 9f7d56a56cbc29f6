package query

import "encoding/json"

// MaxQueries bounds how many entries of a queries array are kept.
const MaxQueries = 10

// SearchRequest is the decoded body of a POST /search call. All fields
// are optional on the wire.
type SearchRequest struct {
	Query   string
	Queries []string
	Count   int
}

// ParseSearchRequest decodes a search payload. Well-formed JSON is
// decoded strictly; anything else falls back to positional extraction so
// that truncated or sloppily generated payloads still yield a usable
// query. A body with nothing recognisable decodes to the zero request.
func ParseSearchRequest(body []byte) SearchRequest {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return scavengeRequest(string(body))
	}

	var req SearchRequest
	if q, ok := doc["query"].(string); ok {
		req.Query = q
	}
	if arr, ok := doc["queries"].([]any); ok {
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				continue
			}
			req.Queries = append(req.Queries, s)
			if len(req.Queries) == MaxQueries {
				break
			}
		}
	}
	if n, ok := doc["count"].(float64); ok {
		req.Count = int(n)
	}
	return req
}

// scavengeRequest pulls the request fields out of a malformed body with
// the positional extractors.
func scavengeRequest(body string) SearchRequest {
	var req SearchRequest
	if q, ok := firstString(body, "query"); ok {
		req.Query = q
	}
	req.Queries = stringArray(body, "queries", MaxQueries)
	req.Count = firstNumber(body, "count")
	return req
}
