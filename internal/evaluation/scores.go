package evaluation

import (
	"errors"
	"math"

	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/report"
)

var ErrEmptyDataset = errors.New("evaluation: dataset has no records")

type Scores struct {
	Total           int            `json:"total"`
	QualityIssues   int            `json:"quality_issues"`
	PIIEntries      int            `json:"pii_entries"`
	QualityScore    float64        `json:"quality_score"`
	ComplianceScore float64        `json:"compliance_score"`
	Counts          map[string]int `json:"counts"`
}

// ComputeScores aggregates the flag columns of ds.
//
// Quality issues are duplicates plus missing messages plus missing names;
// poor language quality is counted but not added. PII entries sum the email,
// SSN and phone flags; the inference PII flag is not added. Both sums are
// kept this way for compatibility with earlier reports and are candidates
// for widening. Because a record can add to a sum more than once, the sums
// may exceed Total; the scores are clamped to [0,1].
func ComputeScores(ds *dataset.Dataset) (Scores, error) {
	total := ds.Len()
	if total == 0 {
		return Scores{}, ErrEmptyDataset
	}

	counts := make(map[string]int)
	for _, name := range ds.FlagNames() {
		counts[name] = ds.CountTrue(name)
	}

	qualityIssues := counts[dataset.FlagDuplicate] + counts[dataset.FlagMissingMessage] + counts[dataset.FlagMissingName]
	piiEntries := counts[dataset.FlagEmail] + counts[dataset.FlagSSN] + counts[dataset.FlagPhone]

	return Scores{
		Total:           total,
		QualityIssues:   qualityIssues,
		PIIEntries:      piiEntries,
		QualityScore:    ratio(total-qualityIssues, total),
		ComplianceScore: ratio(total-piiEntries, total),
		Counts:          counts,
	}, nil
}

func ratio(clean, total int) float64 {
	return math.Max(0, math.Min(1, float64(clean)/float64(total)))
}

func (s Scores) Summary() report.Summary {
	return report.Summary{
		Total:            s.Total,
		QualityIssues:    s.QualityIssues,
		ComplianceIssues: s.PIIEntries,
		QualityScore:     s.QualityScore,
		ComplianceScore:  s.ComplianceScore,
	}
}

type IssueCategory string

const (
	IssueQuality    IssueCategory = "quality"
	IssueCompliance IssueCategory = "compliance"
	IssueEthics     IssueCategory = "ethics"
)

const (
	recommendQuality      = "Review duplicate or missing entries, and ensure data consistency across all columns."
	recommendCompliance   = "Anonymize or remove personal data where unnecessary, and review all PII-related flags."
	recommendLanguageBias = "Review flagged entries for biased language, and rephrase terms that imply stereotypes."
	recommendGenderBias   = "Balance gender representation in the dataset for inclusivity."
)

type Verdict struct {
	FitForPurpose   bool            `json:"fit_for_purpose"`
	TopIssues       []IssueCategory `json:"top_issues"`
	Recommendations []string        `json:"recommendations"`
}

func (v Verdict) Assessment() string {
	if v.FitForPurpose {
		return "Data Fit for Purpose"
	}
	return "Data Not Fit for Purpose"
}

// Decide derives the verdict from the scores and thresholds. The ethics
// issue is only raised when bias checks ran.
func Decide(ds *dataset.Dataset, scores Scores, opts Options) Verdict {
	v := Verdict{
		FitForPurpose:   scores.QualityScore >= opts.QualityThreshold && scores.ComplianceScore >= opts.ComplianceThreshold,
		TopIssues:       []IssueCategory{},
		Recommendations: []string{},
	}

	if scores.QualityScore < opts.QualityThreshold {
		v.TopIssues = append(v.TopIssues, IssueQuality)
		v.Recommendations = append(v.Recommendations, recommendQuality)
	}
	if scores.ComplianceScore < opts.ComplianceThreshold {
		v.TopIssues = append(v.TopIssues, IssueCompliance)
		v.Recommendations = append(v.Recommendations, recommendCompliance)
	}

	if opts.Bias {
		languageBias := ds.CountTrue(dataset.FlagLanguageBias) > 0
		unknown := ds.Count(dataset.FlagGenderBias, func(f dataset.Flag) bool {
			return f.Is(string(checks.GenderUnknown))
		})
		genderSkew := unknown < scores.Total

		if languageBias || genderSkew {
			v.TopIssues = append(v.TopIssues, IssueEthics)
		}
		if languageBias {
			v.Recommendations = append(v.Recommendations, recommendLanguageBias)
		}
		if genderSkew {
			v.Recommendations = append(v.Recommendations, recommendGenderBias)
		}
	}

	return v
}
