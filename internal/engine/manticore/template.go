package manticore

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Template placeholders. Anything else in braces passes through
// untouched.
const (
	placeholderIndex = "{INDEX_NAME}"
	placeholderQuery = "{SEARCH_QUERY}"
	placeholderLimit = "{RESULT_LIMIT}"
)

// TemplateStore caches the engine query template. The file is read once
// and served from memory; a missing file is retried on the next Get so
// the template can appear after startup, and an optional watcher reloads
// it on change.
type TemplateStore struct {
	path   string
	logger *logrus.Logger

	mu     sync.RWMutex
	text   string
	loaded bool
}

// NewTemplateStore loads the template at path. Loading failures are not
// fatal: searches are skipped with a warning until the file shows up.
// With autoReload set the file is watched and re-read when written.
func NewTemplateStore(path string, autoReload bool, logger *logrus.Logger) *TemplateStore {
	s := &TemplateStore{path: path, logger: logger}

	if _, err := s.reload(); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Query template not available")
	}

	if autoReload {
		go func() {
			if err := s.watch(); err != nil {
				logger.WithError(err).Warn("Failed to start template watcher, auto-reload disabled")
			}
		}()
	}

	return s
}

// Get returns the cached template text.
func (s *TemplateStore) Get() (string, error) {
	s.mu.RLock()
	if s.loaded {
		text := s.text
		s.mu.RUnlock()
		return text, nil
	}
	s.mu.RUnlock()
	return s.reload()
}

func (s *TemplateStore) reload() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to load query template: %w", err)
	}

	s.mu.Lock()
	s.text = string(data)
	s.loaded = true
	s.mu.Unlock()
	return string(data), nil
}

// watch re-reads the template when the file is written.
func (s *TemplateStore) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- watcher.Add(s.path)
	}()

	select {
	case err := <-done:
		if err != nil {
			if closeErr := watcher.Close(); closeErr != nil {
				s.logger.WithError(closeErr).Warn("Failed to close watcher after add error")
			}
			return fmt.Errorf("failed to watch template file: %w", err)
		}
	case <-time.After(5 * time.Second):
		if closeErr := watcher.Close(); closeErr != nil {
			s.logger.WithError(closeErr).Warn("Failed to close watcher after timeout")
		}
		return fmt.Errorf("timeout adding template file to watcher")
	}

	go func() {
		defer func() {
			_ = watcher.Close()
		}()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					s.logger.Debug("Query template changed, reloading")
					if _, err := s.reload(); err != nil {
						s.logger.WithError(err).Error("Failed to reload query template")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Error("Template file watcher error")
			}
		}
	}()

	return nil
}

// Render substitutes the placeholders into the template. The query is
// JSON-escaped at substitution time, so quotes or control characters in
// user text cannot break the rendered document. The index name is
// operator configuration and substitutes verbatim.
func Render(template, indexName, query string, limit int) string {
	return strings.NewReplacer(
		placeholderIndex, indexName,
		placeholderQuery, jsonEscape(query),
		placeholderLimit, strconv.Itoa(limit),
	).Replace(template)
}

// jsonEscape returns s escaped for placement inside a JSON string
// literal, without the surrounding quotes.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
