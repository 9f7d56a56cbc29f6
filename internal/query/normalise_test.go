package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testMaxLen = 1024

func TestNormaliseSelection(t *testing.T) {
	t.Run("queries first entry wins over query", func(t *testing.T) {
		req := SearchRequest{Query: "ignored", Queries: []string{"first", "second"}}
		assert.Equal(t, "first", Normalise(req, testMaxLen))
	})

	t.Run("queries entry is trimmed", func(t *testing.T) {
		req := SearchRequest{Queries: []string{"  padded  "}}
		assert.Equal(t, "padded", Normalise(req, testMaxLen))
	})

	t.Run("whitespace only queries entry yields empty", func(t *testing.T) {
		req := SearchRequest{Query: "fallback", Queries: []string{"   "}}
		assert.Equal(t, "", Normalise(req, testMaxLen))
	})

	t.Run("empty request yields empty", func(t *testing.T) {
		assert.Equal(t, "", Normalise(SearchRequest{}, testMaxLen))
	})
}

func TestNormaliseThinkTags(t *testing.T) {
	t.Run("span removed and first token kept", func(t *testing.T) {
		req := SearchRequest{Query: "<think>let me reason</think>weather today"}
		assert.Equal(t, "weather", Normalise(req, testMaxLen))
	})

	t.Run("multiple spans removed", func(t *testing.T) {
		req := SearchRequest{Query: "<think>a</think>climate<think>b</think>"}
		assert.Equal(t, "climate", Normalise(req, testMaxLen))
	})

	t.Run("unterminated tag is left in place", func(t *testing.T) {
		req := SearchRequest{Query: "<think>oops"}
		assert.Equal(t, "<think>oops", Normalise(req, testMaxLen))
	})

	t.Run("query that is only a span yields empty", func(t *testing.T) {
		req := SearchRequest{Query: "<think>no conclusion</think>"}
		assert.Equal(t, "", Normalise(req, testMaxLen))
	})
}

func TestNormaliseEmbeddedShapes(t *testing.T) {
	t.Run("json document with queries array", func(t *testing.T) {
		req := SearchRequest{Query: `{"queries": ["retro computer", "old pc"]}`}
		assert.Equal(t, "retro computer", Normalise(req, testMaxLen))
	})

	t.Run("queries array inside surrounding prose", func(t *testing.T) {
		req := SearchRequest{Query: `I would search {"queries": ["ada lovelace"]} next`}
		assert.Equal(t, "ada lovelace", Normalise(req, testMaxLen))
	})

	t.Run("empty nested array falls through to the raw text", func(t *testing.T) {
		// Extraction yields "", so the cleaned text itself remains; it
		// contains '{' so no token split happens.
		req := SearchRequest{Query: `{"queries": []}`}
		assert.Equal(t, `{"queries": []}`, Normalise(req, testMaxLen))
	})

	t.Run("leading bracket takes first quoted string", func(t *testing.T) {
		req := SearchRequest{Query: `["alpha particle", "beta"]`}
		assert.Equal(t, "alpha particle", Normalise(req, testMaxLen))
	})

	t.Run("leading bracket without quotes passes through", func(t *testing.T) {
		req := SearchRequest{Query: "[no quotes here]"}
		assert.Equal(t, "[no quotes here]", Normalise(req, testMaxLen))
	})

	t.Run("leading quote takes quoted content", func(t *testing.T) {
		req := SearchRequest{Query: `"solar wind" trailing words`}
		assert.Equal(t, "solar wind", Normalise(req, testMaxLen))
	})

	t.Run("leading quote with escapes", func(t *testing.T) {
		req := SearchRequest{Query: `"say \"hi\"" rest`}
		assert.Equal(t, `say "hi"`, Normalise(req, testMaxLen))
	})

	t.Run("single json object without queries is kept whole", func(t *testing.T) {
		req := SearchRequest{Query: `{"query": "inner"}`}
		assert.Equal(t, `{"query": "inner"}`, Normalise(req, testMaxLen))
	})
}

func TestNormalisePlainText(t *testing.T) {
	t.Run("bare sentence keeps first token", func(t *testing.T) {
		req := SearchRequest{Query: "weather in paris today"}
		assert.Equal(t, "weather", Normalise(req, testMaxLen))
	})

	t.Run("single token passes through", func(t *testing.T) {
		req := SearchRequest{Query: "thermodynamics"}
		assert.Equal(t, "thermodynamics", Normalise(req, testMaxLen))
	})

	t.Run("colon suppresses the token split", func(t *testing.T) {
		req := SearchRequest{Query: "title: main sequence"}
		assert.Equal(t, "title: main sequence", Normalise(req, testMaxLen))
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		req := SearchRequest{Query: "  compact  "}
		assert.Equal(t, "compact", Normalise(req, testMaxLen))
	})
}

func TestNormaliseLengthCap(t *testing.T) {
	t.Run("long query is cut to exactly the cap", func(t *testing.T) {
		req := SearchRequest{Query: strings.Repeat("q", 4000)}
		got := Normalise(req, testMaxLen)
		assert.Len(t, got, testMaxLen)
	})

	t.Run("long queries entry is capped too", func(t *testing.T) {
		req := SearchRequest{Queries: []string{strings.Repeat("a", 2000)}}
		assert.Len(t, Normalise(req, testMaxLen), testMaxLen)
	})

	t.Run("nested extraction is capped", func(t *testing.T) {
		req := SearchRequest{Query: `{"queries": ["` + strings.Repeat("b", 2000) + `"]}`}
		assert.Len(t, Normalise(req, testMaxLen), testMaxLen)
	})

	t.Run("multi byte text is cut on a rune boundary", func(t *testing.T) {
		req := SearchRequest{Query: strings.Repeat("계", 600)} // 1800 bytes
		got := Normalise(req, testMaxLen)
		assert.LessOrEqual(t, len(got), testMaxLen)
		assert.True(t, strings.HasSuffix(got, "계"))
	})
}

func TestParseThenNormalise(t *testing.T) {
	t.Run("json embedded in the query field", func(t *testing.T) {
		body := `{"query": "{\"queries\": [\"x ray\"]}"}`
		req := ParseSearchRequest([]byte(body))
		assert.Equal(t, "x ray", Normalise(req, testMaxLen))
	})

	t.Run("model output with reasoning", func(t *testing.T) {
		body := `{"query": "<think>the user wants history</think>byzantine empire"}`
		req := ParseSearchRequest([]byte(body))
		assert.Equal(t, "byzantine", Normalise(req, testMaxLen))
	})
}
