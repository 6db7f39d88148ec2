package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

type extractorFake struct {
	text string
	err  error
}

func (f extractorFake) Extract(context.Context, io.Reader) (string, error) {
	return f.text, f.err
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	return strings.Split(text, "|")
}

type completerFake struct {
	responses []string
	err       error
	prompts   []string
}

func (f *completerFake) CompleteJSON(_ context.Context, _ string, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func TestPipelineMergesChunks(t *testing.T) {
	completer := &completerFake{responses: []string{
		"Here you go: {\"analysis\":[{\"clause\":\"Rent due by the 5th\",\"risk_level\":\"low\"}],\"summary\":{\"rent_amount\":\"$2,400/month\",\"key_terms\":[\"Pets allowed\"]}}",
		`{"analysis":[{"clause":"rent due by the 5th","risk_level":"low"},{"clause":"10% daily late fee","risk_level":"high","explanation":"Harsh."}],"summary":{"lease_term":"12 months","key_terms":["pets allowed","Utilities excluded"]}}`,
	}}
	p := New("test", extractorFake{text: "part one|part two"}, chunkerFake{}, completer, 0)

	result, err := p.Analyze(context.Background(), "lease.pdf", strings.NewReader("%PDF-"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Document != "lease.pdf" || len(result.Analysis) != 2 {
		t.Fatalf("unexpected merged result %+v", result)
	}
	if result.Analysis[1].RiskLevel != domain.RiskHigh {
		t.Fatalf("expected second finding high, got %+v", result.Analysis[1])
	}
	s := result.Summary
	if s == nil || s.RentAmount != "$2,400/month" || s.LeaseTerm != "12 months" || len(s.KeyTerms) != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !strings.Contains(completer.prompts[1], "Part 2 of 2") {
		t.Fatalf("expected part marker in prompt, got %q", completer.prompts[1])
	}
}

func TestPipelineLimitsChunks(t *testing.T) {
	completer := &completerFake{responses: []string{`{"analysis":[]}`, `{"analysis":[]}`}}
	p := New("test", extractorFake{text: "a|b|c|d"}, chunkerFake{}, completer, 2)
	if _, err := p.Analyze(context.Background(), "lease.pdf", strings.NewReader("")); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(completer.prompts) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(completer.prompts))
	}
}

func TestPipelineErrorsAreAnalysisFailures(t *testing.T) {
	p := New("test", extractorFake{err: errors.New("no text")}, chunkerFake{}, &completerFake{}, 0)
	if _, err := p.Analyze(context.Background(), "lease.pdf", strings.NewReader("")); !domain.IsKind(err, domain.ErrAnalysisFailure) {
		t.Fatalf("expected ErrAnalysisFailure for extraction, got %v", err)
	}

	p = New("test", extractorFake{text: "a"}, chunkerFake{}, &completerFake{err: errors.New("500")}, 0)
	if _, err := p.Analyze(context.Background(), "lease.pdf", strings.NewReader("")); !domain.IsKind(err, domain.ErrAnalysisFailure) {
		t.Fatalf("expected ErrAnalysisFailure for completion, got %v", err)
	}

	p = New("test", extractorFake{text: "a"}, chunkerFake{}, &completerFake{responses: []string{"not json"}}, 0)
	if _, err := p.Analyze(context.Background(), "lease.pdf", strings.NewReader("")); !domain.IsKind(err, domain.ErrAnalysisFailure) {
		t.Fatalf("expected ErrAnalysisFailure for bad json, got %v", err)
	}
}

func TestDecodeAnalysisRequiresArray(t *testing.T) {
	if _, err := DecodeAnalysis(`{"summary":{}}`); !domain.IsKind(err, domain.ErrAnalysisFailure) {
		t.Fatalf("expected ErrAnalysisFailure, got %v", err)
	}
}
