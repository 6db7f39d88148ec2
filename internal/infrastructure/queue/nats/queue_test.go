package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
)

func TestJobCodec(t *testing.T) {
	job := domain.AnalysisJob{WorkflowID: "wf-1", CycleID: "c-1"}
	payload, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}
	decoded, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if decoded != job {
		t.Fatalf("expected %+v, got %+v", job, decoded)
	}
}

func TestJobCodecRejectsIncompleteJobs(t *testing.T) {
	if _, err := encodeJob(domain.AnalysisJob{WorkflowID: "wf-1"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := decodeJob([]byte(`{"workflow_id":"wf-1"}`)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := decodeJob([]byte(`wf-1`)); err == nil {
		t.Fatalf("expected bare id payload to be rejected")
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for no servers, got %v", err)
	}
	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("expected non-retryable error to stay unwrapped, got %v", got)
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected cancellation to be neither retried nor recorded, got %+v", class)
	}
	if class := classifyNATSError(gobreaker.ErrOpenState); !class.Retryable {
		t.Fatalf("expected open circuit to be retryable, got %+v", class)
	}
}
