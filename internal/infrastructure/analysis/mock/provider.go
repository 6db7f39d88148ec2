// Package mock is the reference analysis provider: it ignores the document
// and returns a fixed lease analysis after a delay.
package mock

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

const DefaultDelay = 2 * time.Second

//go:embed fixture.yaml
var defaultFixture []byte

type Provider struct {
	fixture domain.AnalysisResult
	delay   time.Duration
}

// New returns a provider serving the built-in fixture. A negative delay
// disables waiting.
func New(delay time.Duration) (*Provider, error) {
	return NewFromYAML(defaultFixture, delay)
}

func NewFromYAML(raw []byte, delay time.Duration) (*Provider, error) {
	var fixture domain.AnalysisResult
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("parse mock fixture: %w", err)
	}
	if len(fixture.Analysis) == 0 {
		return nil, fmt.Errorf("parse mock fixture: no findings")
	}
	if delay < 0 {
		delay = 0
	}
	return &Provider{fixture: fixture, delay: delay}, nil
}

func (p *Provider) Analyze(ctx context.Context, name string, _ io.Reader) (*domain.AnalysisResult, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	out := p.fixture
	out.Document = name
	out.Analysis = append([]domain.ClauseFinding(nil), p.fixture.Analysis...)
	if p.fixture.Summary != nil {
		summary := *p.fixture.Summary
		summary.KeyTerms = append([]string(nil), p.fixture.Summary.KeyTerms...)
		out.Summary = &summary
	}
	return &out, nil
}
