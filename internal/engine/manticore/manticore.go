// Package manticore implements the bridge's search engine against the
// Manticore Search JSON API.
package manticore

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/localkb/lkb/internal/config"
	"github.com/localkb/lkb/internal/engine"
	"github.com/localkb/lkb/internal/textutil"
)

const engineName = "manticore"

// responsePreviewLen bounds how much of the raw engine reply lands in
// debug logs.
const responsePreviewLen = 500

// Engine talks to a Manticore Search instance: it renders the query
// template, posts it and reshapes the hits into client records.
type Engine struct {
	cfg      config.EngineConfig
	client   *Client
	template *TemplateStore
	logger   *logrus.Logger
}

// New builds the engine from configuration. version goes into the
// outbound User-Agent.
func New(cfg config.EngineConfig, version string, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		client:   NewClient(cfg, version, logger),
		template: NewTemplateStore(cfg.TemplatePath, cfg.TemplateAutoReload, logger),
		logger:   logger,
	}
}

// Name implements engine.Engine.
func (e *Engine) Name() string {
	return engineName
}

// Endpoint implements engine.Engine.
func (e *Engine) Endpoint() string {
	return e.client.Endpoint()
}

// Search implements engine.Engine. The outbound call is bounded by the
// configured request timeout on top of whatever deadline ctx carries.
func (e *Engine) Search(ctx context.Context, query string, count int) ([]engine.Result, error) {
	tpl, err := e.template.Get()
	if err != nil {
		return nil, err
	}

	doc := Render(tpl, e.cfg.IndexName, query, count)
	e.logger.WithFields(logrus.Fields{
		"query": query,
		"count": count,
		"index": e.cfg.IndexName,
	}).Debug("Engine search")
	e.logger.WithField("document", doc).Debug("Engine query document")

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout.Std())
	defer cancel()

	raw, err := e.client.Query(ctx, doc)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{
		"length":  len(raw),
		"preview": textutil.TruncateWithEllipsis(string(raw), responsePreviewLen),
	}).Debug("Engine response")

	resp, err := decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	results := e.reshape(resp, count)
	e.logger.WithFields(logrus.Fields{
		"found": len(results),
		"total": resp.Hits.Total,
		"took":  resp.Took,
	}).Debug("Engine results")
	for i, r := range results {
		e.logger.WithFields(logrus.Fields{
			"rank":  i + 1,
			"title": r.Title,
			"link":  r.Link,
		}).Debug("Engine result")
	}
	return results, nil
}
