// Package analyzer provides the top-level trust analysis orchestrator.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/cache"
	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/models"
	"github.com/trustlens/trustlens/internal/provider"
	"github.com/trustlens/trustlens/internal/scoring"
	"github.com/trustlens/trustlens/internal/store"
	"github.com/trustlens/trustlens/internal/textsim"
	"github.com/trustlens/trustlens/internal/throttle"
)

// ErrInFlightTimeout is returned when a second caller waits out the full
// timeout for an in-progress analysis of the same subject.
var ErrInFlightTimeout = errors.New("analyzer: timed out waiting for in-flight analysis")

// CorpusSource supplies existing campaign content to compare against. The
// analyzer never mutates it.
type CorpusSource interface {
	Corpus(ctx context.Context, excludeSubjectID string) ([]models.CorpusEntry, error)
}

// Engine orchestrates the complete trust analysis pipeline: cache-first
// lookup, in-flight deduplication, three concurrent sub-analyses with
// independent fallbacks, trust classification and persistence.
type Engine struct {
	provider  provider.Provider
	throttler *throttle.Throttler
	cache     *cache.TieredCache
	scorer    *scoring.Engine
	detector  *textsim.Detector
	printer   *textsim.Fingerprinter
	corpus    CorpusSource
	metrics   store.Store

	resultTTL    time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration

	inflight  sync.Map // fingerprint -> struct{}
	metricsMu sync.Mutex
}

// NewEngine creates a new analysis orchestrator.
func NewEngine(cfg *config.Config, p provider.Provider, t *throttle.Throttler, c *cache.TieredCache, corpus CorpusSource, metrics store.Store) *Engine {
	return &Engine{
		provider:     p,
		throttler:    t,
		cache:        c,
		scorer:       scoring.NewEngine(),
		detector:     textsim.NewDetector(p, t, cfg.Duplicate),
		printer:      textsim.NewFingerprinter(textsim.DefaultOptions()),
		corpus:       corpus,
		metrics:      metrics,
		resultTTL:    cfg.Cache.TTL,
		pollInterval: cfg.Analyzer.InFlightPollInterval,
		pollTimeout:  cfg.Analyzer.InFlightTimeout,
	}
}

// Fingerprint computes the stable identity of a subject for caching and
// in-flight deduplication.
func (e *Engine) Fingerprint(subject models.AnalysisSubject) string {
	h := sha256.New()
	h.Write([]byte(subject.Creator))
	h.Write([]byte{0})
	h.Write([]byte(subject.Text))
	h.Write([]byte{0})
	h.Write([]byte(subject.CreatedAt.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze runs the full trust analysis for a subject. It either returns a
// usable result or ErrInFlightTimeout; provider trouble degrades individual
// sub-analyses to their fallback values instead of failing the call.
func (e *Engine) Analyze(ctx context.Context, subject models.AnalysisSubject, factors models.CredibilityFactors) (*models.AnalysisResult, error) {
	fp := e.Fingerprint(subject)
	cacheKey := store.Key(store.NamespaceTrustAnalysis, fp)

	if result, ok := e.cachedResult(ctx, cacheKey); ok {
		log.Info().Str("subject", subject.ID).Msg("Returning cached analysis")
		e.bumpMetrics(ctx, func(m *models.DailyMetrics) { m.CacheHits++ })
		return result, nil
	}

	// Atomic check-and-set: the loser of the race polls the cache rather
	// than starting duplicate provider work.
	if _, loaded := e.inflight.LoadOrStore(fp, struct{}{}); loaded {
		log.Info().Str("subject", subject.ID).Msg("Analysis already in flight, waiting")
		return e.waitForResult(ctx, cacheKey)
	}
	defer e.inflight.Delete(fp)

	result := e.runAnalyses(ctx, subject, factors, fp)

	if payload, err := json.Marshal(result); err != nil {
		log.Error().Err(err).Msg("Failed to encode analysis result")
	} else {
		e.cache.Put(ctx, cacheKey, payload, e.resultTTL)
	}
	e.persistSubResults(ctx, subject, result)

	e.bumpMetrics(ctx, func(m *models.DailyMetrics) {
		m.Analyses++
		if result.TrustLevel == models.TrustLevelFlagged {
			m.Flagged++
		}
	})

	log.Info().
		Str("subject", subject.ID).
		Str("trust_level", string(result.TrustLevel)).
		Float64("score", result.Credibility.Score).
		Bool("duplicate", result.Duplication.IsDuplicate).
		Msg("Analysis complete")

	return result, nil
}

// runAnalyses executes the three sub-analyses concurrently and merges them.
// It never fails: each sub-analysis degrades to its documented fallback, and
// an unrecoverable panic yields the neutral fallback result.
func (e *Engine) runAnalyses(ctx context.Context, subject models.AnalysisSubject, factors models.CredibilityFactors, fp string) (result *models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("subject", subject.ID).Msg("Analysis pipeline panicked, using neutral fallback")
			result = e.neutralResult(subject, fp)
			e.bumpMetrics(ctx, func(m *models.DailyMetrics) { m.FallbacksUsed++ })
		}
	}()

	var (
		wg          sync.WaitGroup
		credibility models.CredibilityScore
		duplication models.DuplicationVerdict
		media       models.MediaVerdict
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		credibility = e.scoreCredibility(ctx, factors)
	}()
	go func() {
		defer wg.Done()
		duplication = e.checkDuplication(ctx, subject)
	}()
	go func() {
		defer wg.Done()
		media = e.verifyMedia(ctx, subject)
	}()
	wg.Wait()

	now := time.Now()
	return &models.AnalysisResult{
		ID:          uuid.New().String(),
		SubjectID:   subject.ID,
		Fingerprint: fp,
		Credibility: credibility,
		Duplication: duplication,
		Media:       media,
		TrustLevel:  classifyTrust(credibility, duplication, media),
		AnalyzedAt:  now,
		ExpiresAt:   now.Add(e.resultTTL),
	}
}

// classifyTrust applies the overall trust rule.
func classifyTrust(cred models.CredibilityScore, dup models.DuplicationVerdict, media models.MediaVerdict) models.TrustLevel {
	if (dup.IsDuplicate && dup.Confidence > 0.8) || media.HasIssues {
		return models.TrustLevelFlagged
	}
	switch {
	case cred.Score >= 80:
		return models.TrustLevelHigh
	case cred.Score >= 60:
		return models.TrustLevelMedium
	default:
		return models.TrustLevelLow
	}
}

// scoreCredibility is pure and cannot fail, but is wrapped like the other
// sub-analyses so a panic degrades to the neutral score.
func (e *Engine) scoreCredibility(ctx context.Context, factors models.CredibilityFactors) (score models.CredibilityScore) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Credibility scoring panicked, using neutral fallback")
			score = neutralCredibility()
			e.bumpMetrics(ctx, func(m *models.DailyMetrics) { m.FallbacksUsed++ })
		}
	}()
	return e.scorer.Calculate(factors)
}

// checkDuplication runs the duplicate check against the corpus. Failures to
// read the corpus fall back to a no-duplicate verdict.
func (e *Engine) checkDuplication(ctx context.Context, subject models.AnalysisSubject) models.DuplicationVerdict {
	corpus, err := e.corpus.Corpus(ctx, subject.ID)
	if err != nil {
		log.Error().Err(err).Str("subject", subject.ID).Msg("Corpus read failed, skipping duplicate check")
		e.bumpMetrics(ctx, func(m *models.DailyMetrics) { m.FallbacksUsed++ })
		return neutralDuplication()
	}

	// Detector isolates individual comparison failures internally; a fully
	// failed pass simply yields no matches.
	return *e.detector.CheckForDuplicates(ctx, subject.Text, corpus)
}

const mediaPrompt = `You are an expert at assessing campaign media authenticity from media references and their context.

Review the media references for signs of manipulation, stock-photo reuse, or mismatches with the campaign text.
If you find problems, begin your analysis with "ISSUES FOUND:" followed by a short list.
If everything looks authentic, begin your analysis with "NO ISSUES".`

// verifyMedia checks media references through the provider. A transient
// failure is retried once after the provider-suggested delay; any further
// failure falls back to a low-confidence clean verdict.
func (e *Engine) verifyMedia(ctx context.Context, subject models.AnalysisSubject) models.MediaVerdict {
	if len(subject.MediaRefs) == 0 {
		return models.MediaVerdict{HasIssues: false, Confidence: 1.0, Analysis: "No media attached"}
	}

	content := fmt.Sprintf("Campaign text:\n%s\n\nMedia references:\n%s",
		subject.Text, strings.Join(subject.MediaRefs, "\n"))

	analysis, err := e.analyzeWithRetry(ctx, mediaPrompt, content)
	if err != nil {
		log.Error().Err(err).Str("subject", subject.ID).Msg("Media verification failed, using fallback verdict")
		e.bumpMetrics(ctx, func(m *models.DailyMetrics) { m.FallbacksUsed++ })
		return neutralMedia()
	}

	verdict := models.MediaVerdict{
		Confidence: analysis.Confidence,
		Analysis:   analysis.Text,
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(analysis.Text)), "ISSUES FOUND") {
		verdict.HasIssues = true
		verdict.Issues = parseIssueList(analysis.Text)
	}
	return verdict
}

// analyzeWithRetry submits one provider analysis through the throttler,
// retrying once after the suggested delay when the failure is transient.
func (e *Engine) analyzeWithRetry(ctx context.Context, prompt, content string) (*provider.TextAnalysis, error) {
	submit := func() (*provider.TextAnalysis, error) {
		result, err := e.throttler.Submit(ctx, throttle.PriorityHigh, func(ctx context.Context) (interface{}, error) {
			return e.provider.AnalyzeText(ctx, prompt, content)
		})
		if err != nil {
			return nil, err
		}
		return result.(*provider.TextAnalysis), nil
	}

	analysis, err := submit()
	if err == nil || !provider.IsRetryable(err) {
		return analysis, err
	}

	delay := provider.SuggestedDelay(err, time.Second)
	log.Warn().Err(err).Dur("delay", delay).Msg("Transient provider failure, retrying sub-analysis once")
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return submit()
}

func parseIssueList(text string) []string {
	var issues []string
	for _, line := range strings.Split(text, "\n")[1:] {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line != "" {
			issues = append(issues, line)
		}
	}
	return issues
}

// Result returns the cached analysis for a subject fingerprint, if one is
// still live.
func (e *Engine) Result(ctx context.Context, fingerprint string) (*models.AnalysisResult, bool) {
	return e.cachedResult(ctx, store.Key(store.NamespaceTrustAnalysis, fingerprint))
}

// DuplicateCheck runs only the duplication sub-analysis; the background job
// queue binds to this.
func (e *Engine) DuplicateCheck(ctx context.Context, subject models.AnalysisSubject) (*models.DuplicationVerdict, error) {
	corpus, err := e.corpus.Corpus(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("corpus read failed: %w", err)
	}
	return e.detector.CheckForDuplicates(ctx, subject.Text, corpus), nil
}

func (e *Engine) cachedResult(ctx context.Context, key string) (*models.AnalysisResult, bool) {
	payload, ok := e.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Corrupt cached result, invalidating")
		e.cache.Invalidate(ctx, key)
		return nil, false
	}
	return &result, true
}

// waitForResult polls the cache until the concurrent analysis lands or the
// bounded timeout elapses. Timeout is the one hard failure this engine
// surfaces.
func (e *Engine) waitForResult(ctx context.Context, key string) (*models.AnalysisResult, error) {
	deadline := time.Now().Add(e.pollTimeout)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		if result, ok := e.cachedResult(ctx, key); ok {
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrInFlightTimeout
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// persistSubResults writes the sub-verdicts under their own namespaces so
// future per-creator and per-content lookups can reuse them.
func (e *Engine) persistSubResults(ctx context.Context, subject models.AnalysisSubject, result *models.AnalysisResult) {
	contentHash := e.printer.Fingerprint(subject.Text)

	if payload, err := json.Marshal(result.Credibility); err == nil {
		e.cache.Put(ctx, store.Key(store.NamespaceCredibility, subject.Creator), payload, e.resultTTL)
	}
	if payload, err := json.Marshal(result.Duplication); err == nil {
		e.cache.Put(ctx, store.Key(store.NamespaceDuplication, contentHash), payload, e.resultTTL)
	}
	if payload, err := json.Marshal(result.Media); err == nil {
		e.cache.Put(ctx, store.Key(store.NamespaceMedia, contentHash), payload, e.resultTTL)
	}
}

// neutralResult is the full-pipeline fallback: a subject must never be left
// without a verdict.
func (e *Engine) neutralResult(subject models.AnalysisSubject, fp string) *models.AnalysisResult {
	now := time.Now()
	return &models.AnalysisResult{
		ID:          uuid.New().String(),
		SubjectID:   subject.ID,
		Fingerprint: fp,
		Credibility: neutralCredibility(),
		Duplication: neutralDuplication(),
		Media:       neutralMedia(),
		TrustLevel:  models.TrustLevelMedium,
		AnalyzedAt:  now,
		ExpiresAt:   now.Add(e.resultTTL),
	}
}

func neutralCredibility() models.CredibilityScore {
	return models.CredibilityScore{
		Score:       50,
		Confidence:  0.6,
		LastUpdated: time.Now(),
	}
}

func neutralDuplication() models.DuplicationVerdict {
	return models.DuplicationVerdict{IsDuplicate: false, Confidence: 0}
}

func neutralMedia() models.MediaVerdict {
	return models.MediaVerdict{HasIssues: false, Confidence: 0.3, Analysis: "Media verification unavailable"}
}

// DailyMetrics returns today's counters.
func (e *Engine) DailyMetrics(ctx context.Context) models.DailyMetrics {
	date := time.Now().UTC().Format("2006-01-02")
	metrics := models.DailyMetrics{Date: date}

	entry, err := e.metrics.Get(ctx, store.Key(store.NamespaceDailyMetrics, date))
	if err != nil || entry == nil {
		return metrics
	}
	if err := json.Unmarshal(entry.Value, &metrics); err != nil {
		log.Error().Err(err).Msg("Corrupt daily metrics entry")
	}
	return metrics
}

// bumpMetrics applies a read-modify-write on today's counters. Failures are
// logged and swallowed; metrics never block analysis.
func (e *Engine) bumpMetrics(ctx context.Context, update func(*models.DailyMetrics)) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	key := store.Key(store.NamespaceDailyMetrics, date)

	metrics := models.DailyMetrics{Date: date}
	if entry, err := e.metrics.Get(ctx, key); err == nil && entry != nil {
		_ = json.Unmarshal(entry.Value, &metrics)
	}

	update(&metrics)

	payload, err := json.Marshal(metrics)
	if err != nil {
		return
	}
	if err := e.metrics.Put(ctx, key, payload, 7*24*time.Hour); err != nil {
		log.Error().Err(err).Msg("Failed to persist daily metrics")
	}
}
