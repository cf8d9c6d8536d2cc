// Package report renders the plain-text quality and compliance report.
package report

import (
	"fmt"
	"strings"

	"github.com/dataset-eval/backend/internal/dataset"
)

const (
	titleRule   = "========================================"
	sectionRule = "----------------------------------------"
)

// Summary is the aggregate input of the report.
type Summary struct {
	Total            int
	QualityIssues    int
	ComplianceIssues int
	QualityScore     float64
	ComplianceScore  float64
}

// Generate renders ds and summary. A check whose flag column is absent is
// reported as not performed, never as a zero count.
func Generate(ds *dataset.Dataset, summary Summary) string {
	var b strings.Builder

	b.WriteString("Dataset Quality and Compliance Report\n")
	b.WriteString(titleRule + "\n\n")

	b.WriteString("1. Data Quality Summary\n")
	b.WriteString(sectionRule + "\n")
	if ds.Has(dataset.FlagRelevance) {
		fmt.Fprintf(&b, "Relevant Entries: %d\n", ds.CountTrue(dataset.FlagRelevance))
		fmt.Fprintf(&b, "Irrelevant Entries: %d\n", ds.Count(dataset.FlagRelevance, dataset.Flag.IsFalse))
	} else {
		b.WriteString("Relevance Check Not Performed\n")
	}
	countLine(&b, ds, dataset.FlagDuplicate, "Duplicate Entries", "Duplicate Check")
	countLine(&b, ds, dataset.FlagMissingMessage, "Entries with Missing Messages", "Missing Message Check")
	countLine(&b, ds, dataset.FlagMissingName, "Entries with Missing Names", "Missing Name Check")
	countLine(&b, ds, dataset.FlagLanguageQuality, "Entries with Poor Language Quality", "Language Quality Check")
	b.WriteString("\n")

	b.WriteString("2. Compliance Summary\n")
	b.WriteString(sectionRule + "\n")
	countLine(&b, ds, dataset.FlagEmail, "Entries with Detected Email PII", "Email PII Detection")
	countLine(&b, ds, dataset.FlagSSN, "Entries with Detected SSN PII", "SSN PII Detection")
	countLine(&b, ds, dataset.FlagPhone, "Entries with Detected Phone PII", "Phone PII Detection")
	piiRan := ds.Has(dataset.FlagEmail) || ds.Has(dataset.FlagSSN) || ds.Has(dataset.FlagPhone)
	if piiRan {
		piiTotal := ds.CountTrue(dataset.FlagEmail) + ds.CountTrue(dataset.FlagSSN) + ds.CountTrue(dataset.FlagPhone)
		fmt.Fprintf(&b, "Total Entries with PII: %d\n\n", piiTotal)
	} else {
		b.WriteString("PII Check Not Performed\n\n")
	}

	b.WriteString("3. Summary Statistics\n")
	b.WriteString(sectionRule + "\n")
	fmt.Fprintf(&b, "Total Entries in Dataset: %d\n", summary.Total)
	fmt.Fprintf(&b, "Entries with Quality Issues: %d\n", summary.QualityIssues)
	if piiRan {
		fmt.Fprintf(&b, "Entries with Compliance Issues: %d\n", summary.ComplianceIssues)
	} else {
		b.WriteString("Compliance Check Not Performed\n")
	}
	fmt.Fprintf(&b, "Quality Score: %.2f\n", summary.QualityScore)
	fmt.Fprintf(&b, "Compliance Score: %.2f\n\n", summary.ComplianceScore)

	b.WriteString("Note: This report provides a summary of detected quality, compliance, and bias issues in the dataset.\n")

	return b.String()
}

func countLine(b *strings.Builder, ds *dataset.Dataset, flag, label, check string) {
	if !ds.Has(flag) {
		fmt.Fprintf(b, "%s Not Performed\n", check)
		return
	}
	fmt.Fprintf(b, "%s: %d\n", label, ds.CountTrue(flag))
}
