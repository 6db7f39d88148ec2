package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

type wireFinding struct {
	Clause      string `json:"clause"`
	Severity    string `json:"severity"`
	RiskLevel   string `json:"risk_level"`
	Explanation string `json:"explanation"`
}

type wireResult struct {
	Analysis []wireFinding       `json:"analysis"`
	Summary  *domain.LeaseSummary `json:"summary"`
}

// DecodeAnalysis parses a model response. Text around the outermost JSON
// object is ignored.
func DecodeAnalysis(raw string) (*domain.AnalysisResult, error) {
	var wire wireResult
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &wire); err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "decode analysis", fmt.Errorf("parse model json: %w", err))
	}
	if wire.Analysis == nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "decode analysis", errors.New("response has no analysis array"))
	}

	result := &domain.AnalysisResult{
		Analysis: make([]domain.ClauseFinding, 0, len(wire.Analysis)),
		Summary:  wire.Summary,
	}
	for _, f := range wire.Analysis {
		if strings.TrimSpace(f.Clause) == "" {
			continue
		}
		result.Analysis = append(result.Analysis, domain.ClauseFinding{
			Clause:      f.Clause,
			Severity:    domain.Severity(f.Severity),
			RiskLevel:   domain.RiskLevel(f.RiskLevel),
			Explanation: f.Explanation,
		})
	}
	return result, nil
}

// Merge concatenates per-chunk results in order. Repeated clauses keep their
// first occurrence; summary fields keep the first non-empty value.
func Merge(parts []*domain.AnalysisResult) *domain.AnalysisResult {
	out := &domain.AnalysisResult{Analysis: []domain.ClauseFinding{}}
	seenClause := make(map[string]bool)
	seenTerm := make(map[string]bool)
	summary := domain.LeaseSummary{}

	for _, part := range parts {
		if part == nil {
			continue
		}
		for _, f := range part.Analysis {
			key := strings.ToLower(strings.Join(strings.Fields(f.Clause), " "))
			if seenClause[key] {
				continue
			}
			seenClause[key] = true
			out.Analysis = append(out.Analysis, f)
		}
		if part.Summary == nil {
			continue
		}
		summary.RentAmount = firstNonEmpty(summary.RentAmount, part.Summary.RentAmount)
		summary.SecurityDeposit = firstNonEmpty(summary.SecurityDeposit, part.Summary.SecurityDeposit)
		summary.LeaseTerm = firstNonEmpty(summary.LeaseTerm, part.Summary.LeaseTerm)
		for _, term := range part.Summary.KeyTerms {
			key := strings.ToLower(strings.TrimSpace(term))
			if key == "" || seenTerm[key] {
				continue
			}
			seenTerm[key] = true
			summary.KeyTerms = append(summary.KeyTerms, term)
		}
	}
	if !summary.IsEmpty() {
		out.Summary = &summary
	}
	return out
}

func firstNonEmpty(current, candidate string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return strings.TrimSpace(candidate)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
