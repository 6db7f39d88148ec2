package localfs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "abc_lease.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(ctx, "abc_lease.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	rc.Close()
	if string(raw) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := s.Delete(ctx, "abc_lease.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "abc_lease.pdf"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, "abc_lease.pdf"); err == nil {
		t.Fatalf("expected open of deleted key to fail")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestSaveFailureLeavesNoObject(t *testing.T) {
	s, _ := New(t.TempDir())
	ctx := context.Background()
	if err := s.Save(ctx, "k.pdf", io.MultiReader(strings.NewReader("%PDF"), failingReader{})); err == nil {
		t.Fatalf("expected Save() error")
	}
	if _, err := s.Open(ctx, "k.pdf"); err == nil {
		t.Fatalf("expected no object after failed save")
	}
}

func TestRejectsPathKeys(t *testing.T) {
	s, _ := New(t.TempDir())
	if err := s.Save(context.Background(), "../escape.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected key with separators to be rejected")
	}
}
