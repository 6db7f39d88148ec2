package pdftext

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/testutil/pdfgen"
)

func TestOpenDocumentPages(t *testing.T) {
	raw := pdfgen.Build("Tenant must pay rent by the 5th", "Security deposit equals two months rent")
	handle, err := NewExtractor(0).OpenDocument(context.Background(), bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("OpenDocument() error = %v", err)
	}
	defer handle.Close()

	if handle.NumPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", handle.NumPages())
	}
	text, err := handle.PageText(2)
	if err != nil {
		t.Fatalf("PageText(2) error = %v", err)
	}
	if !strings.Contains(text, "Security deposit") {
		t.Fatalf("unexpected page text %q", text)
	}
	if _, err := handle.PageText(3); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing page, got %v", err)
	}
}

func TestExtractJoinsPages(t *testing.T) {
	raw := pdfgen.Build("first page", "second page")
	text, err := NewExtractor(0).Extract(context.Background(), bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "first page") || !strings.Contains(text, "second page") {
		t.Fatalf("unexpected text %q", text)
	}
	if strings.Index(text, "first page") > strings.Index(text, "second page") {
		t.Fatalf("pages out of order: %q", text)
	}
}

func TestOpenRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor(0).OpenDocument(context.Background(), strings.NewReader("hello world, not a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidFileType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
}

func TestOpenEnforcesSize(t *testing.T) {
	raw := pdfgen.Build("page")
	_, err := NewExtractor(16).OpenDocument(context.Background(), bytes.NewReader(raw))
	if !domain.IsKind(err, domain.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestClosedDocument(t *testing.T) {
	handle, err := NewExtractor(0).OpenDocument(context.Background(), bytes.NewReader(pdfgen.Build("page")))
	if err != nil {
		t.Fatalf("OpenDocument() error = %v", err)
	}
	_ = handle.Close()
	if _, err := handle.PageText(1); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestBrokenObjectReferenceIsAnError(t *testing.T) {
	raw := pdfgen.BuildBrokenXref("Tenant must pay rent by the 5th", "Security deposit")

	handle, err := NewExtractor(0).OpenDocument(context.Background(), bytes.NewReader(raw))
	if err != nil {
		if !domain.IsKind(err, domain.ErrInvalidFileType) {
			t.Fatalf("expected ErrInvalidFileType from open, got %v", err)
		}
	} else {
		defer handle.Close()
		if _, err := handle.PageText(1); err == nil {
			t.Fatalf("expected page text of a broken page to fail")
		}
	}

	if _, err := NewExtractor(0).Extract(context.Background(), bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected Extract() to fail on a broken object reference")
	}
}

func TestGuardRecoversParserPanics(t *testing.T) {
	err := guard("pdf page text", func() error {
		panic("loading {5 0}: found {4 0}")
	})
	if !domain.IsKind(err, domain.ErrInvalidFileType) || !strings.Contains(err.Error(), "found {4 0}") {
		t.Fatalf("expected ErrInvalidFileType carrying the parser message, got %v", err)
	}
}
