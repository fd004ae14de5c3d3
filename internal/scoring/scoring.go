// Package scoring computes deterministic credibility scores from raw
// creator factors. No I/O, no provider calls.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/trustlens/trustlens/internal/models"
)

// confidenceFloor is the minimum confidence once any factor data exists.
const confidenceFloor = 0.6

// Engine turns CredibilityFactors into a CredibilityScore.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate scores the given factors. Malformed or missing inputs contribute
// a factor's minimum value rather than failing; the result is always a score
// in [0,100] with confidence in [0.6,1.0].
func (e *Engine) Calculate(factors models.CredibilityFactors) models.CredibilityScore {
	scored := []models.ScoreFactor{
		e.governmentID(factors),
		e.ngoLicense(factors),
		e.accountAge(factors),
		e.socialMedia(factors),
		e.history(factors),
	}

	var weighted, totalWeight float64
	for _, f := range scored {
		weighted += f.Value * f.Weight
		totalWeight += f.Weight
	}

	score := 0.0
	if totalWeight > 0 {
		score = math.Round(weighted / totalWeight)
	}
	score = clamp(score, 0, 100)

	return models.CredibilityScore{
		Score:       score,
		Confidence:  e.confidence(scored),
		Factors:     scored,
		Suggestions: e.suggestions(scored),
		LastUpdated: time.Now(),
	}
}

func (e *Engine) governmentID(f models.CredibilityFactors) models.ScoreFactor {
	value := 0.0
	desc := "No verified government ID on file"
	if f.HasGovernmentID {
		value = 100
		desc = "Government ID verified"
	}
	return models.ScoreFactor{
		Type:        models.FactorGovernmentID,
		Weight:      models.FactorWeights[models.FactorGovernmentID],
		Value:       value,
		Description: desc,
	}
}

func (e *Engine) ngoLicense(f models.CredibilityFactors) models.ScoreFactor {
	value := 0.0
	desc := "No validated NGO license"
	if f.HasNGOLicense {
		value = 100
		desc = "NGO license validated"
	}
	return models.ScoreFactor{
		Type:        models.FactorNGOLicense,
		Weight:      models.FactorWeights[models.FactorNGOLicense],
		Value:       value,
		Description: desc,
	}
}

// accountAge ramps linearly from 0 at day zero to 100 at one year.
func (e *Engine) accountAge(f models.CredibilityFactors) models.ScoreFactor {
	days := f.AccountAgeDays
	if days < 0 {
		days = 0
	}
	value := clamp(float64(days)/365.0*100.0, 0, 100)
	return models.ScoreFactor{
		Type:        models.FactorAccountAge,
		Weight:      models.FactorWeights[models.FactorAccountAge],
		Value:       value,
		Description: "Account age relative to a full year",
	}
}

func (e *Engine) socialMedia(f models.CredibilityFactors) models.ScoreFactor {
	value := 0.0
	desc := "No linked social media"

	if sm := f.SocialMedia; sm != nil && len(sm.Platforms) > 0 {
		value += 30
		switch {
		case sm.OldestAgeDays > 365:
			value += 30
		case sm.OldestAgeDays > 90:
			value += 15
		}
		if sm.Verified {
			value += 40
		}
		value = clamp(value, 0, 100)
		desc = "Linked social media presence"
	}

	return models.ScoreFactor{
		Type:        models.FactorSocialMedia,
		Weight:      models.FactorWeights[models.FactorSocialMedia],
		Value:       value,
		Description: desc,
	}
}

// history starts neutral at 50 and moves with past campaign outcomes. Order
// of outcomes never matters; the same multiset yields the same value.
func (e *Engine) history(f models.CredibilityFactors) models.ScoreFactor {
	value := 50.0
	desc := "No campaign history"

	if len(f.History) > 0 {
		var successes int
		for _, rec := range f.History {
			switch rec.Outcome {
			case models.OutcomeSuccess:
				value += 10
				successes++
			case models.OutcomeDisputed:
				value -= 15
			case models.OutcomeFailed:
				value -= 5
			}
		}

		ratio := float64(successes) / float64(len(f.History))
		switch {
		case ratio >= 0.8:
			value += 15
		case ratio < 0.5:
			value -= 10
		}
		desc = "Past campaign track record"
	}

	return models.ScoreFactor{
		Type:        models.FactorHistory,
		Weight:      models.FactorWeights[models.FactorHistory],
		Value:       clamp(value, 0, 100),
		Description: desc,
	}
}

// confidence is the fraction of factors carrying non-zero data, floored at
// 0.6 so a score is never presented as near-worthless once any data exists.
func (e *Engine) confidence(factors []models.ScoreFactor) float64 {
	if len(factors) == 0 {
		return confidenceFloor
	}
	nonZero := 0
	for _, f := range factors {
		if f.Value > 0 {
			nonZero++
		}
	}
	frac := float64(nonZero) / float64(len(factors))
	return math.Max(confidenceFloor, frac)
}

var suggestionInfo = map[models.FactorType]struct {
	priority    models.SuggestionPriority
	description string
}{
	models.FactorGovernmentID: {models.PriorityHigh, "Verify a government-issued ID to establish identity"},
	models.FactorNGOLicense:   {models.PriorityHigh, "Validate an NGO license to establish organizational standing"},
	models.FactorSocialMedia:  {models.PriorityMedium, "Link and verify established social media accounts"},
	models.FactorHistory:      {models.PriorityMedium, "Build a track record of successfully completed campaigns"},
	models.FactorAccountAge:   {models.PriorityLow, "Account credibility grows with age; no direct action available"},
}

// suggestions lists every factor below 50, sorted by priority then potential
// impact descending.
func (e *Engine) suggestions(factors []models.ScoreFactor) []models.Suggestion {
	var out []models.Suggestion
	for _, f := range factors {
		if f.Value >= 50 {
			continue
		}
		info := suggestionInfo[f.Type]
		out = append(out, models.Suggestion{
			Factor:      f.Type,
			Priority:    info.priority,
			Impact:      (100 - f.Value) * f.Weight,
			Description: info.description,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].Impact > out[j].Impact
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
