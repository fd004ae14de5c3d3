// Package textsim provides the cross-lingual duplicate detector.
package textsim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/models"
	"github.com/trustlens/trustlens/internal/provider"
	"github.com/trustlens/trustlens/internal/throttle"
)

// Detector decides whether new content is a near-duplicate of existing
// content, across languages. All provider calls funnel through the throttler.
type Detector struct {
	provider  provider.Provider
	throttler *throttle.Throttler
	cfg       config.DuplicateConfig
}

// NewDetector creates a duplicate detector.
func NewDetector(p provider.Provider, t *throttle.Throttler, cfg config.DuplicateConfig) *Detector {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if cfg.PivotLanguage == "" {
		cfg.PivotLanguage = "en"
	}
	return &Detector{provider: p, throttler: t, cfg: cfg}
}

// CompareWithExisting compares new content against every corpus entry,
// returning matches above the confidence floor sorted by similarity
// descending. Corpus items are compared in fixed-size batches; a single
// comparison failure is logged and contributes no match.
func (d *Detector) CompareWithExisting(ctx context.Context, newContent string, corpus []models.CorpusEntry) []models.SimilarityMatch {
	var (
		mu      sync.Mutex
		matches []models.SimilarityMatch
	)

	for start := 0; start < len(corpus); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(corpus) {
			end = len(corpus)
		}

		var wg sync.WaitGroup
		for _, entry := range corpus[start:end] {
			wg.Add(1)
			go func(entry models.CorpusEntry) {
				defer wg.Done()
				match, err := d.compareOne(ctx, newContent, entry)
				if err != nil {
					log.Warn().Err(err).Str("subject", entry.SubjectID).Msg("Comparison failed, skipping corpus entry")
					return
				}
				if match == nil {
					return
				}
				mu.Lock()
				matches = append(matches, *match)
				mu.Unlock()
			}(entry)
		}
		wg.Wait()
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

// compareOne compares the new content against one corpus entry, translating
// both to the pivot language first when their detected languages differ.
func (d *Detector) compareOne(ctx context.Context, newContent string, entry models.CorpusEntry) (*models.SimilarityMatch, error) {
	sourceLang := DetectLanguage(entry.Text)
	detectedLang := DetectLanguage(newContent)

	textA, textB := newContent, entry.Text
	if !SameLanguage(sourceLang, detectedLang) {
		ta, err := d.translate(ctx, newContent)
		if err != nil {
			return nil, fmt.Errorf("translate new content: %w", err)
		}
		tb, err := d.translate(ctx, entry.Text)
		if err != nil {
			return nil, fmt.Errorf("translate corpus entry: %w", err)
		}
		textA, textB = ta.TranslatedText, tb.TranslatedText
		detectedLang = ta.DetectedLanguage
		sourceLang = tb.DetectedLanguage
	}

	result, err := d.throttler.Submit(ctx, throttle.PriorityMedium, func(ctx context.Context) (interface{}, error) {
		return d.provider.CompareTexts(ctx, textA, textB)
	})
	if err != nil {
		return nil, err
	}
	cmp := result.(*provider.Comparison)

	if cmp.Confidence < d.cfg.ConfidenceFloor {
		log.Debug().
			Str("subject", entry.SubjectID).
			Float64("confidence", cmp.Confidence).
			Msg("Comparison below confidence floor, discarding")
		return nil, nil
	}

	return &models.SimilarityMatch{
		SubjectID:        entry.SubjectID,
		Similarity:       cmp.Similarity,
		MatchedSegments:  cmp.MatchedSegments,
		SourceLanguage:   sourceLang,
		DetectedLanguage: detectedLang,
	}, nil
}

func (d *Detector) translate(ctx context.Context, text string) (*provider.Translation, error) {
	result, err := d.throttler.Submit(ctx, throttle.PriorityMedium, func(ctx context.Context) (interface{}, error) {
		return d.provider.TranslateText(ctx, text, d.cfg.PivotLanguage)
	})
	if err != nil {
		return nil, err
	}
	return result.(*provider.Translation), nil
}

// CheckForDuplicates runs the full corpus comparison and folds the matches
// into a verdict. IsDuplicate is true iff at least one match reaches the
// similarity threshold.
func (d *Detector) CheckForDuplicates(ctx context.Context, content string, corpus []models.CorpusEntry) *models.DuplicationVerdict {
	all := d.CompareWithExisting(ctx, content, corpus)

	var kept []models.SimilarityMatch
	for _, m := range all {
		if m.Similarity >= d.cfg.SimilarityThreshold {
			kept = append(kept, m)
		}
	}

	verdict := &models.DuplicationVerdict{
		IsDuplicate: len(kept) > 0,
		Matches:     kept,
	}

	if len(kept) > 0 {
		// Top match similarity, nudged up slightly per extra match.
		confidence := kept[0].Similarity * (1 + 0.05*float64(len(kept)-1))
		if confidence > 1 {
			confidence = 1
		}
		verdict.Confidence = confidence
		verdict.SuggestedActions = d.suggestedActions(kept)
	}

	return verdict
}

func (d *Detector) suggestedActions(matches []models.SimilarityMatch) []string {
	var actions []string
	top := matches[0]

	switch {
	case top.Similarity > 0.9:
		actions = append(actions, "Flag for manual review: content is nearly identical to an existing campaign")
	case top.Similarity >= 0.7:
		actions = append(actions, "Ask the creator to revise wording that overlaps existing campaigns")
	}

	for _, m := range matches {
		if !SameLanguage(m.SourceLanguage, m.DetectedLanguage) {
			actions = append(actions, "Verify translation accuracy: matched content crosses languages")
			break
		}
	}

	return actions
}
