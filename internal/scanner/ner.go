// ner.go — the optional named-entity-recognition layer.
//
// Modeled on the teacher's Ollama HTTP integration: a synchronous HTTP call
// to a local model-serving process, guarded by a lazy "is it even up"
// check and a permanent fallback to regex-only behavior if the first call
// fails (spec.md §4.3, §7 ModelLoadFailure).
//
// The wire shape here matches a Presidio-analyzer-style HTTP API: POST
// {text, language, score_threshold, entities} to /analyze, receive back a
// JSON array of {start, end, entity_type, score}.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"pii-redactor/internal/entity"
	"pii-redactor/internal/logger"
)

// entityTypeAliases maps the NER model's native tag names to the closed
// entity.Type set (spec.md §4.3).
var entityTypeAliases = map[string]entity.Type{
	"PERSON":       entity.Person,
	"ORG":          entity.Organization,
	"ORGANIZATION": entity.Organization,
	"LOC":          entity.Location,
	"LOCATION":     entity.Location,
	"GPE":          entity.Location,
	"NORP":         entity.NRP,
	"NRP":          entity.NRP,
	"DATE":         entity.DateTime,
	"DATE_TIME":    entity.DateTime,
}

func normalizeNERType(raw string) entity.Type {
	if t, ok := entityTypeAliases[raw]; ok {
		return t
	}
	return entity.Type(raw)
}

// NERScanner is the optional named-entity detector. Its zero value is not
// usable; construct with NewNERScanner.
type NERScanner struct {
	endpoint       string
	httpClient     *http.Client
	language       string
	scoreThreshold float64
	allowedTypes   map[string]bool // empty = no filter, emit every type the model reports

	cache resultCache
	log   *logger.Logger
	m     metricsSink

	// disabled is set permanently (never unset) when a call fails before
	// any call has succeeded, per spec.md §7 ModelLoadFailure: the system
	// downgrades to regex-only for the rest of the process lifetime.
	disabled atomic.Bool

	// warm is set once a call has succeeded; failures after that are
	// reported for the failing call only and do not disable the scanner.
	warm atomic.Bool

	warmupOnce sync.Once
}

// metricsSink is the minimal surface the NER scanner needs from
// internal/metrics, kept local so this package does not import metrics
// directly (scanner is lower-level than metrics in the dependency graph).
type metricsSink interface {
	RecordCacheHit(entityType string)
	RecordCacheMiss(entityType string)
}

// WithMetrics attaches a metrics sink that records NER cache hit/miss
// counters, all under the single key "ner".
func WithMetrics(m metricsSink) NEROption {
	return func(s *NERScanner) { s.m = m }
}

// NEROption configures an NERScanner at construction time.
type NEROption func(*NERScanner)

// WithNERCache attaches a bbolt-backed result cache at path, optionally
// wrapped in an S3-FIFO eviction layer when capacity > 0. An empty path
// uses an unbounded in-memory cache.
func WithNERCache(path string, capacity int, log *logger.Logger) NEROption {
	return func(s *NERScanner) {
		if path == "" {
			s.cache = newMemoryCache()
			return
		}
		bb, err := newBboltCache(path, log)
		if err != nil {
			if log != nil {
				log.Warnf("ner_cache_open", "falling back to memory cache: %v", err)
			}
			s.cache = newMemoryCache()
			return
		}
		if capacity > 0 {
			s.cache = newS3FIFOCache(bb, capacity, log)
		} else {
			s.cache = bb
		}
	}
}

// WithAllowedTypes restricts emitted matches to the given native NER type
// names (the "entities" whitelist in RedactorConfig, spec.md §3). An empty
// list emits every type the model reports.
func WithAllowedTypes(types []string) NEROption {
	return func(s *NERScanner) {
		if len(types) == 0 {
			return
		}
		s.allowedTypes = make(map[string]bool, len(types))
		for _, t := range types {
			s.allowedTypes[t] = true
		}
	}
}

// NewNERScanner builds a scanner that calls a Presidio-analyzer-style HTTP
// endpoint. languageTag is validated with golang.org/x/text/language and
// falls back to "und" on parse failure — language validation is advisory,
// not a hard requirement of the scanner.
func NewNERScanner(endpoint, languageTag string, scoreThreshold float64, log *logger.Logger, opts ...NEROption) *NERScanner {
	tag, err := language.Parse(languageTag)
	resolved := "und"
	if err == nil {
		resolved = tag.String()
	} else if log != nil {
		log.Warnf("ner_language", "could not parse language %q, using %q: %v", languageTag, resolved, err)
	}

	s := &NERScanner{
		endpoint:       endpoint,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		language:       resolved,
		scoreThreshold: scoreThreshold,
		cache:          newMemoryCache(),
		log:            log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close releases the result cache's resources.
func (s *NERScanner) Close() error {
	return s.cache.Close()
}

// Available reports whether the scanner has not been permanently disabled
// by a prior ModelLoadFailure. Used by /health (spec.md §4.3, §7).
func (s *NERScanner) Available() bool {
	return !s.disabled.Load()
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	ScoreThreshold float64  `json:"score_threshold"`
	Entities       []string `json:"entities,omitempty"`
}

type analyzeDetection struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
}

// Scan implements scanner.Scanner. If the scanner has been permanently
// disabled by an earlier ModelLoadFailure, it reports zero matches and no
// error — the registry treats this exactly like a scanner that found
// nothing, and the system continues with regex-only behavior.
func (s *NERScanner) Scan(ctx context.Context, text string) ([]entity.Match, error) {
	if s.disabled.Load() {
		return nil, nil
	}
	if text == "" {
		return nil, nil
	}

	if cached, ok := s.cache.Get(text); ok {
		if s.m != nil {
			s.m.RecordCacheHit("ner")
		}
		return decodeCachedMatches(cached)
	}
	if s.m != nil {
		s.m.RecordCacheMiss("ner")
	}

	detections, err := s.queryAnalyze(ctx, text)
	if err != nil {
		if !s.warm.Load() {
			s.disabled.Store(true)
			if s.log != nil {
				s.log.Errorf("ner_model_load_failure", "NER scanner permanently disabled: %v", err)
			}
		}
		return nil, fmt.Errorf("ner scan: %w", err)
	}
	s.warm.Store(true)

	matches := make([]entity.Match, 0, len(detections))
	for _, d := range detections {
		if d.Score < s.scoreThreshold {
			continue
		}
		if len(s.allowedTypes) > 0 && !s.allowedTypes[d.EntityType] {
			continue
		}
		start, end := byteOffsetsToRune(text, d.Start, d.End)
		matches = append(matches, entity.Match{
			Type:   normalizeNERType(d.EntityType),
			Text:   text[d.Start:d.End],
			Start:  start,
			End:    end,
			Score:  d.Score,
			Source: "ner",
		})
	}

	if blob, err := encodeCachedMatches(matches); err == nil {
		s.cache.Set(text, blob)
	}

	return matches, nil
}

func (s *NERScanner) queryAnalyze(ctx context.Context, text string) ([]analyzeDetection, error) {
	var entities []string
	for t := range s.allowedTypes {
		entities = append(entities, t)
	}
	reqBody, err := json.Marshal(analyzeRequest{
		Text:           text,
		Language:       s.language,
		ScoreThreshold: s.scoreThreshold,
		Entities:       entities,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/analyze", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze returned status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}

	var detections []analyzeDetection
	if err := json.Unmarshal(body, &detections); err != nil {
		return nil, fmt.Errorf("parse analyze response: %w", err)
	}
	return detections, nil
}

// byteOffsetsToRune converts byte offsets (as the NER wire format reports
// them) to rune offsets (as entity.Match requires, spec.md §4.1).
func byteOffsetsToRune(text string, byteStart, byteEnd int) (int, int) {
	if byteStart < 0 {
		byteStart = 0
	}
	if byteEnd > len(text) {
		byteEnd = len(text)
	}
	start := utf8.RuneCountInString(text[:byteStart])
	end := start + utf8.RuneCountInString(text[byteStart:byteEnd])
	return start, end
}

func encodeCachedMatches(matches []entity.Match) (string, error) {
	b, err := json.Marshal(matches)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCachedMatches(blob string) ([]entity.Match, error) {
	var matches []entity.Match
	if err := json.Unmarshal([]byte(blob), &matches); err != nil {
		return nil, fmt.Errorf("decode cached ner matches: %w", err)
	}
	return matches, nil
}
