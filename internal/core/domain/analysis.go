package domain

import (
	"errors"
	"fmt"
	"strings"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity is the coarse traffic-light marker shown next to a clause.
type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse risk level", fmt.Errorf("unknown risk level %q", raw))
	}
}

// ParseSeverity accepts marker names and their emoji forms.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "red", "🔴":
		return SeverityRed, nil
	case "yellow", "🟡":
		return SeverityYellow, nil
	case "green", "🟢":
		return SeverityGreen, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse severity", fmt.Errorf("unknown severity %q", raw))
	}
}

// Severity derives the marker for a risk level. Risk level is authoritative.
func (r RiskLevel) Severity() Severity {
	switch r {
	case RiskHigh:
		return SeverityRed
	case RiskMedium:
		return SeverityYellow
	default:
		return SeverityGreen
	}
}

func (s Severity) RiskLevel() RiskLevel {
	switch s {
	case SeverityRed:
		return RiskHigh
	case SeverityYellow:
		return RiskMedium
	default:
		return RiskLow
	}
}

type ClauseFinding struct {
	Clause      string    `json:"clause" yaml:"clause"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	RiskLevel   RiskLevel `json:"risk_level" yaml:"risk_level"`
	Explanation string    `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

type LeaseSummary struct {
	RentAmount      string   `json:"rent_amount,omitempty" yaml:"rent_amount,omitempty"`
	SecurityDeposit string   `json:"security_deposit,omitempty" yaml:"security_deposit,omitempty"`
	LeaseTerm       string   `json:"lease_term,omitempty" yaml:"lease_term,omitempty"`
	KeyTerms        []string `json:"key_terms,omitempty" yaml:"key_terms,omitempty"`
}

func (s *LeaseSummary) IsEmpty() bool {
	return s == nil || (s.RentAmount == "" && s.SecurityDeposit == "" && s.LeaseTerm == "" && len(s.KeyTerms) == 0)
}

// AnalysisResult is the aggregate produced by one analysis run. Findings are
// kept in presentation order.
type AnalysisResult struct {
	Document string          `json:"document" yaml:"document"`
	Analysis []ClauseFinding `json:"analysis" yaml:"analysis"`
	Summary  *LeaseSummary   `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type RiskCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

// CountRisks partitions findings on risk level. Findings are expected to be
// normalized, so the three buckets always sum to the total.
func CountRisks(findings []ClauseFinding) RiskCounts {
	counts := RiskCounts{Total: len(findings)}
	for _, finding := range findings {
		switch finding.RiskLevel {
		case RiskHigh:
			counts.High++
		case RiskMedium:
			counts.Medium++
		default:
			counts.Low++
		}
	}
	return counts
}

// NormalizeResult returns a copy of result bound to documentName with every
// finding carrying a valid risk level and the severity derived from it. A
// finding with an unknown risk level falls back to its severity marker.
func NormalizeResult(result *AnalysisResult, documentName string) (*AnalysisResult, error) {
	if result == nil {
		return nil, WrapError(ErrInvalidInput, "normalize result", errors.New("nil analysis result"))
	}

	out := &AnalysisResult{
		Document: documentName,
		Analysis: make([]ClauseFinding, 0, len(result.Analysis)),
	}
	for idx, finding := range result.Analysis {
		clause := strings.TrimSpace(finding.Clause)
		if clause == "" {
			return nil, WrapError(ErrInvalidInput, "normalize result", fmt.Errorf("finding %d has empty clause", idx))
		}

		level, err := ParseRiskLevel(string(finding.RiskLevel))
		if err != nil {
			severity, sevErr := ParseSeverity(string(finding.Severity))
			if sevErr != nil {
				return nil, WrapError(ErrInvalidInput, "normalize result", fmt.Errorf("finding %d: %w", idx, err))
			}
			level = severity.RiskLevel()
		}

		out.Analysis = append(out.Analysis, ClauseFinding{
			Clause:      clause,
			Severity:    level.Severity(),
			RiskLevel:   level,
			Explanation: strings.TrimSpace(finding.Explanation),
		})
	}

	if !result.Summary.IsEmpty() {
		summary := *result.Summary
		summary.KeyTerms = compactTerms(result.Summary.KeyTerms)
		out.Summary = &summary
	}
	return out, nil
}

func compactTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}
