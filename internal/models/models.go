// Package models defines the core data structures used throughout the application.
package models

import (
	"time"
)

// TrustLevel is the coarse verdict combining all sub-analyses.
type TrustLevel string

const (
	TrustLevelHigh    TrustLevel = "high"
	TrustLevelMedium  TrustLevel = "medium"
	TrustLevelLow     TrustLevel = "low"
	TrustLevelFlagged TrustLevel = "flagged"
)

// FactorType identifies one of the five credibility factors.
type FactorType string

const (
	FactorGovernmentID FactorType = "government_id"
	FactorNGOLicense   FactorType = "ngo_license"
	FactorAccountAge   FactorType = "account_age"
	FactorSocialMedia  FactorType = "social_media"
	FactorHistory      FactorType = "history"
)

// FactorWeights maps each factor type to its scoring weight. The weights sum
// to exactly 1.0.
var FactorWeights = map[FactorType]float64{
	FactorGovernmentID: 0.25,
	FactorNGOLicense:   0.20,
	FactorAccountAge:   0.15,
	FactorSocialMedia:  0.15,
	FactorHistory:      0.25,
}

// CampaignOutcome is the terminal state of a past campaign.
type CampaignOutcome string

const (
	OutcomeSuccess  CampaignOutcome = "success"
	OutcomeFailed   CampaignOutcome = "failed"
	OutcomeDisputed CampaignOutcome = "disputed"
)

// AnalysisSubject is the campaign record being analyzed. Immutable once
// submitted for a given analysis pass.
type AnalysisSubject struct {
	ID        string    `json:"id"`
	Creator   string    `json:"creator"`
	Text      string    `json:"text"`
	MediaRefs []string  `json:"media_refs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SocialMediaProfile describes a creator's linked social presence.
type SocialMediaProfile struct {
	Platforms     []string `json:"platforms"`
	OldestAgeDays int      `json:"oldest_age_days"`
	Verified      bool     `json:"verified"`
}

// CampaignRecord is one entry of a creator's campaign history.
type CampaignRecord struct {
	CampaignID string          `json:"campaign_id"`
	Outcome    CampaignOutcome `json:"outcome"`
	EndedAt    time.Time       `json:"ended_at"`
}

// CredibilityFactors is the raw input to the scoring engine.
type CredibilityFactors struct {
	HasGovernmentID bool                `json:"has_government_id"`
	HasNGOLicense   bool                `json:"has_ngo_license"`
	AccountAgeDays  int                 `json:"account_age_days"`
	SocialMedia     *SocialMediaProfile `json:"social_media,omitempty"`
	History         []CampaignRecord    `json:"history,omitempty"`
}

// ScoreFactor is one weighted component of a credibility score.
type ScoreFactor struct {
	Type        FactorType `json:"type"`
	Weight      float64    `json:"weight"`
	Value       float64    `json:"value"`
	Description string     `json:"description"`
}

// SuggestionPriority orders improvement suggestions.
type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

// Rank returns a numeric rank for sorting; higher sorts first.
func (p SuggestionPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Suggestion tells the creator how to improve a weak factor.
type Suggestion struct {
	Factor      FactorType         `json:"factor"`
	Priority    SuggestionPriority `json:"priority"`
	Impact      float64            `json:"impact"`
	Description string             `json:"description"`
}

// CredibilityScore is the output of the scoring engine.
type CredibilityScore struct {
	Score       float64       `json:"score"`      // 0-100
	Confidence  float64       `json:"confidence"` // 0-1
	Factors     []ScoreFactor `json:"factors"`
	Suggestions []Suggestion  `json:"suggestions,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
}

// SimilarityMatch is one corpus entry found similar to the analyzed content.
type SimilarityMatch struct {
	SubjectID        string   `json:"subject_id"`
	Similarity       float64  `json:"similarity"` // 0-1
	MatchedSegments  []string `json:"matched_segments,omitempty"`
	SourceLanguage   string   `json:"source_language"`
	DetectedLanguage string   `json:"detected_language"`
}

// DuplicationVerdict is the outcome of the duplicate-content check.
type DuplicationVerdict struct {
	IsDuplicate      bool              `json:"is_duplicate"`
	Confidence       float64           `json:"confidence"`
	Matches          []SimilarityMatch `json:"matches,omitempty"`
	SuggestedActions []string          `json:"suggested_actions,omitempty"`
}

// MediaVerdict is the outcome of the media-authenticity check.
type MediaVerdict struct {
	HasIssues  bool     `json:"has_issues"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
	Analysis   string   `json:"analysis,omitempty"`
}

// AnalysisResult is the full trust verdict for a subject. Immutable once
// stored; a refresh writes a fresh result rather than mutating this one.
type AnalysisResult struct {
	ID          string             `json:"id"`
	SubjectID   string             `json:"subject_id"`
	Fingerprint string             `json:"fingerprint"`
	Credibility CredibilityScore   `json:"credibility"`
	Duplication DuplicationVerdict `json:"duplication"`
	Media       MediaVerdict       `json:"media"`
	TrustLevel  TrustLevel         `json:"trust_level"`
	AnalyzedAt  time.Time          `json:"analyzed_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// JobPriority orders duplicate-check jobs in the background queue.
type JobPriority string

const (
	JobPriorityHigh   JobPriority = "high"
	JobPriorityMedium JobPriority = "medium"
	JobPriorityLow    JobPriority = "low"
)

// Rank returns a numeric rank for ordering; higher runs first.
func (p JobPriority) Rank() int {
	switch p {
	case JobPriorityHigh:
		return 2
	case JobPriorityMedium:
		return 1
	default:
		return 0
	}
}

// JobStatus tracks a duplicate-check job through its lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// DuplicateJob is a queued duplicate-content check.
type DuplicateJob struct {
	ID         string              `json:"id"`
	Subject    AnalysisSubject     `json:"subject"`
	Priority   JobPriority         `json:"priority"`
	Status     JobStatus           `json:"status"`
	Result     *DuplicationVerdict `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt time.Time           `json:"finished_at,omitempty"`
}

// NotificationType classifies queue notifications.
type NotificationType string

const (
	NotifyDuplicateDetected NotificationType = "duplicate_detected"
	NotifyCheckCompleted    NotificationType = "check_completed"
	NotifyCheckFailed       NotificationType = "check_failed"
)

// Severity grades a notification.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Notification is emitted by the duplicate job queue when a job reaches a
// terminal state.
type Notification struct {
	ID        string           `json:"id"`
	SubjectID string           `json:"subject_id"`
	Type      NotificationType `json:"type"`
	Severity  Severity         `json:"severity"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// CorpusEntry is an existing piece of content duplicates are checked against.
type CorpusEntry struct {
	SubjectID string `json:"subject_id"`
	Text      string `json:"text"`
}

// DailyMetrics aggregates per-day orchestrator counters, persisted under the
// daily-metrics namespace.
type DailyMetrics struct {
	Date          string `json:"date"` // YYYY-MM-DD
	Analyses      int64  `json:"analyses"`
	CacheHits     int64  `json:"cache_hits"`
	FallbacksUsed int64  `json:"fallbacks_used"`
	Flagged       int64  `json:"flagged"`
}

// AnalyzeRequest is the request body for the analyze endpoint.
type AnalyzeRequest struct {
	Subject  AnalysisSubject    `json:"subject"`
	Factors  CredibilityFactors `json:"factors"`
	Priority JobPriority        `json:"priority,omitempty"`
}
