package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/lease-lens/internal/testutil/pdfgen"
)

func writeLease(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "lease.pdf")
	if err := os.WriteFile(path, pdfgen.Build("Rent is due monthly", "Tenant pays all repairs"), 0o600); err != nil {
		t.Fatalf("write lease: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out, errOut bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzePrintsReview(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "analyze", writeLease(t, dir), "--storage-path", filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	for _, want := range []string{"lease.pdf (2 pages)", "Rent: $2,400/month", "Risks: 2 high, 2 medium, 1 low", "HIGH", "CLAUSE"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalyzeJSONWithExplanations(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "analyze", writeLease(t, dir), "--json", "--explain")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	var view domain.ResultView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode view: %v\n%s", err, out)
	}
	if view.Counts.Total != 5 || len(view.Clauses) != 5 {
		t.Fatalf("unexpected view %+v", view.Counts)
	}
	for _, row := range view.Clauses {
		if row.HasDetails && (!row.Expanded || row.Explanation == "") {
			t.Fatalf("expected clause %d expanded", row.Index)
		}
	}
}

func TestAnalyzeRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	_ = os.WriteFile(path, []byte("plain text"), 0o600)
	if _, err := run(t, "analyze", path); err == nil {
		t.Fatalf("expected error for non-PDF content")
	}
}

func TestAnalyzeUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "analyze", writeLease(t, dir), "--provider", "magic"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestProviderFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEASECTL_PROVIDER", "magic")
	if _, err := run(t, "analyze", writeLease(t, dir)); err == nil {
		t.Fatalf("expected env provider to be honoured")
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "out.xlsx")
	out, err := run(t, "export", writeLease(t, dir), "-o", report)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if !strings.Contains(out, "wrote "+report) {
		t.Fatalf("unexpected output %q", out)
	}
	book, err := excelize.OpenFile(report)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows(xlsx.ClausesSheet)
	if err != nil || len(rows) != 6 {
		t.Fatalf("expected header and 5 clauses, got %d rows (%v)", len(rows), err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || strings.TrimSpace(out) != "leasectl test" {
		t.Fatalf("unexpected version output %q (%v)", out, err)
	}
}
