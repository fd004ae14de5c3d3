package textsim

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/models"
	"github.com/trustlens/trustlens/internal/provider"
	"github.com/trustlens/trustlens/internal/throttle"
)

type mockProvider struct {
	mu             sync.Mutex
	compareCalls   int
	translateCalls int
	compareFn      func(a, b string) (*provider.Comparison, error)
	translateFn    func(text, target string) (*provider.Translation, error)
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) AnalyzeText(ctx context.Context, prompt, content string) (*provider.TextAnalysis, error) {
	return &provider.TextAnalysis{Text: "NO ISSUES", Confidence: 0.9}, nil
}

func (m *mockProvider) CompareTexts(ctx context.Context, a, b string) (*provider.Comparison, error) {
	m.mu.Lock()
	m.compareCalls++
	m.mu.Unlock()
	return m.compareFn(a, b)
}

func (m *mockProvider) TranslateText(ctx context.Context, text, target string) (*provider.Translation, error) {
	m.mu.Lock()
	m.translateCalls++
	m.mu.Unlock()
	if m.translateFn != nil {
		return m.translateFn(text, target)
	}
	return &provider.Translation{TranslatedText: text, DetectedLanguage: "en", Confidence: 0.9}, nil
}

func testThrottler(t *testing.T) *throttle.Throttler {
	t.Helper()
	th := throttle.New(&config.ThrottleConfig{
		RequestsPerMinute: 1000,
		RequestsPerHour:   10000,
		RequestsPerDay:    100000,
		BurstLimit:        1000,
		QueueCapacity:     100,
	})
	t.Cleanup(th.Close)
	return th
}

func testDetector(t *testing.T, p provider.Provider) *Detector {
	t.Helper()
	return NewDetector(p, testThrottler(t), config.DuplicateConfig{
		SimilarityThreshold: 0.8,
		ConfidenceFloor:     0.6,
		BatchSize:           2,
		PivotLanguage:       "en",
	})
}

func TestCheckForDuplicatesFindsNearIdentical(t *testing.T) {
	t.Parallel()

	mock := &mockProvider{
		compareFn: func(a, b string) (*provider.Comparison, error) {
			sim := 0.1
			if strings.Contains(b, "flood relief") {
				sim = 0.95
			}
			return &provider.Comparison{Similarity: sim, Confidence: 0.9, MatchedSegments: []string{"flood relief"}}, nil
		},
	}
	d := testDetector(t, mock)

	corpus := []models.CorpusEntry{
		{SubjectID: "c1", Text: "help us fund flood relief for the valley"},
		{SubjectID: "c2", Text: "a completely unrelated bake sale"},
	}

	verdict := d.CheckForDuplicates(context.Background(), "support flood relief in the valley", corpus)

	if !verdict.IsDuplicate {
		t.Fatal("expected duplicate verdict")
	}
	if len(verdict.Matches) != 1 || verdict.Matches[0].SubjectID != "c1" {
		t.Fatalf("unexpected matches: %+v", verdict.Matches)
	}
	if verdict.Confidence != 0.95 {
		t.Fatalf("confidence %v, want top-match similarity 0.95", verdict.Confidence)
	}
	if len(verdict.SuggestedActions) == 0 || !strings.Contains(verdict.SuggestedActions[0], "manual review") {
		t.Fatalf("expected manual review action, got %v", verdict.SuggestedActions)
	}
}

func TestCheckForDuplicatesConfidenceScalesWithMatchCount(t *testing.T) {
	t.Parallel()

	mock := &mockProvider{
		compareFn: func(a, b string) (*provider.Comparison, error) {
			return &provider.Comparison{Similarity: 0.85, Confidence: 0.9}, nil
		},
	}
	d := testDetector(t, mock)

	corpus := []models.CorpusEntry{
		{SubjectID: "c1", Text: "one"},
		{SubjectID: "c2", Text: "two"},
		{SubjectID: "c3", Text: "three"},
	}

	verdict := d.CheckForDuplicates(context.Background(), "content", corpus)
	if !verdict.IsDuplicate {
		t.Fatal("expected duplicate verdict")
	}
	// 0.85 * (1 + 0.05*2) = 0.935
	if verdict.Confidence <= 0.85 || verdict.Confidence > 1.0 {
		t.Fatalf("confidence %v should be scaled above the top similarity, capped at 1", verdict.Confidence)
	}
}

func TestCompareDiscardsLowConfidence(t *testing.T) {
	t.Parallel()

	mock := &mockProvider{
		compareFn: func(a, b string) (*provider.Comparison, error) {
			return &provider.Comparison{Similarity: 0.99, Confidence: 0.2}, nil
		},
	}
	d := testDetector(t, mock)

	matches := d.CompareWithExisting(context.Background(), "content", []models.CorpusEntry{{SubjectID: "c1", Text: "x"}})
	if len(matches) != 0 {
		t.Fatalf("low-confidence comparison should be discarded, got %+v", matches)
	}
}

func TestCompareIsolatesFailures(t *testing.T) {
	t.Parallel()

	mock := &mockProvider{
		compareFn: func(a, b string) (*provider.Comparison, error) {
			if strings.Contains(b, "broken") {
				return nil, provider.NewError(provider.KindSafety, "rejected", nil)
			}
			return &provider.Comparison{Similarity: 0.9, Confidence: 0.9}, nil
		},
	}
	d := testDetector(t, mock)

	corpus := []models.CorpusEntry{
		{SubjectID: "bad", Text: "broken entry"},
		{SubjectID: "good", Text: "fine entry"},
	}

	matches := d.CompareWithExisting(context.Background(), "content", corpus)
	if len(matches) != 1 || matches[0].SubjectID != "good" {
		t.Fatalf("one failure should not abort the batch, got %+v", matches)
	}
}

func TestCompareTranslatesAcrossLanguages(t *testing.T) {
	t.Parallel()

	mock := &mockProvider{
		compareFn: func(a, b string) (*provider.Comparison, error) {
			return &provider.Comparison{Similarity: 0.92, Confidence: 0.9}, nil
		},
		translateFn: func(text, target string) (*provider.Translation, error) {
			lang := "en"
			if strings.ContainsRune(text, 'п') {
				lang = "ru"
			}
			return &provider.Translation{TranslatedText: "translated", DetectedLanguage: lang, Confidence: 0.9}, nil
		},
	}
	d := testDetector(t, mock)

	corpus := []models.CorpusEntry{{SubjectID: "c1", Text: "привет помощь при наводнении"}}
	verdict := d.CheckForDuplicates(context.Background(), "flood relief support", corpus)

	if mock.translateCalls != 2 {
		t.Fatalf("expected both texts translated, got %d calls", mock.translateCalls)
	}
	if !verdict.IsDuplicate {
		t.Fatal("expected duplicate verdict")
	}

	found := false
	for _, action := range verdict.SuggestedActions {
		if strings.Contains(action, "translation accuracy") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected translation-accuracy action, got %v", verdict.SuggestedActions)
	}
}
