package models

import "time"

// EvaluationRun is the persisted outcome of one dataset evaluation.
type EvaluationRun struct {
	ID                  string    `json:"id"`
	Source              string    `json:"source"`
	TotalRecords        int       `json:"total_records"`
	QualityIssues       int       `json:"quality_issues"`
	PIIEntries          int       `json:"pii_entries"`
	QualityScore        float64   `json:"quality_score"`
	ComplianceScore     float64   `json:"compliance_score"`
	QualityThreshold    float64   `json:"quality_threshold"`
	ComplianceThreshold float64   `json:"compliance_threshold"`
	Checks              []string  `json:"checks"`
	FitForPurpose       bool      `json:"fit_for_purpose"`
	TopIssues           []string  `json:"top_issues"`
	Report              string    `json:"-"`
	FlaggedCSV          string    `json:"-"`
	DurationMS          int       `json:"duration_ms"`
	CreatedAt           time.Time `json:"created_at"`
}
