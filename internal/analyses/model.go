package analyses

import "time"

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Categories a feature can land in. Every classified feature carries exactly
// one of these.
const (
	CategoryGreat   = "GREAT"
	CategoryGood    = "GOOD"
	CategoryRedFlag = "RED_FLAG"
	CategoryUnclear = "UNCLEAR"
)

// ClassifiedBy values record which stage decided a feature's category.
const (
	ClassifiedByCode = "code"
	ClassifiedByLLM  = "llm"
)

// Analysis represents a policy analysis job.
type Analysis struct {
	ID             string         `json:"id"`
	DocumentID     string         `json:"documentId,omitempty"`
	UserID         string         `json:"userId"`
	Status         string         `json:"status"`
	ContentHash    string         `json:"contentHash,omitempty"`
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	PromptVersion  string         `json:"promptVersion"`
	RulesetVersion string         `json:"rulesetVersion"`
	Result         map[string]any `json:"result,omitempty"`
	ErrorCode      *string        `json:"errorCode,omitempty"`
	ErrorMessage   *string        `json:"errorMessage,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// PolicyInfo identifies the policy the features were extracted from.
type PolicyInfo struct {
	Name       string `json:"name"`
	Insurer    string `json:"insurer"`
	SumInsured string `json:"sumInsured"`
	PolicyType string `json:"policyType"`
}

// Feature is one extracted coverage term with its classification.
type Feature struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	Quote        string `json:"quote,omitempty"`
	Reference    string `json:"reference,omitempty"`
	Category     string `json:"category"`
	ClassifiedBy string `json:"classifiedBy"`
	Explanation  string `json:"explanation,omitempty"`
}

// Summary carries per-bucket counts for the formatted result.
type Summary struct {
	TotalFeatures      int `json:"totalFeatures"`
	GreatCount         int `json:"greatCount"`
	GoodCount          int `json:"goodCount"`
	RedFlagCount       int `json:"redFlagCount"`
	ClarificationCount int `json:"clarificationCount"`
}

// Meta describes how the result was produced.
type Meta struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	PromptVersion  string  `json:"promptVersion"`
	RulesetVersion string  `json:"rulesetVersion"`
	ChunkCount     int     `json:"chunkCount"`
	Cached         bool    `json:"cached"`
	DurationMs     float64 `json:"durationMs"`
}

// AnalysisResult is the formatted analysis payload returned to clients. The
// four feature arrays partition the extracted feature set.
type AnalysisResult struct {
	PolicyInfo         PolicyInfo `json:"policyInfo"`
	GreatFeatures      []Feature  `json:"greatFeatures"`
	GoodFeatures       []Feature  `json:"goodFeatures"`
	RedFlags           []Feature  `json:"redFlags"`
	NeedsClarification []Feature  `json:"needsClarification"`
	Summary            Summary    `json:"summary"`
	Disclaimer         string     `json:"disclaimer"`
	Meta               Meta       `json:"_meta"`
}
