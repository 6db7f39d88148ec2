package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
	"github.com/kirillkom/lease-lens/internal/core/usecase"
	"github.com/kirillkom/lease-lens/internal/infrastructure/extractor/pdftext"
)

var severityStyles = map[domain.Severity]lipgloss.Style{
	domain.SeverityRed:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	domain.SeverityYellow: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	domain.SeverityGreen:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

func newAnalyzeCommand(v *viper.Viper) *cobra.Command {
	var asJSON, explain bool

	cmd := &cobra.Command{
		Use:   "analyze <lease.pdf>",
		Short: "Analyze a lease PDF and print the clause review",
		Example: `  leasectl analyze lease.pdf
  leasectl analyze lease.pdf --explain
  leasectl analyze lease.pdf --provider ollama --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := resolveConfig(v)
			if err != nil {
				return err
			}
			installLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			pages, err := countPages(cmd, args[0], cfg.MaxUploadBytes)
			if err != nil {
				cleanup()
				return err
			}

			s, err := openSession(cmd.Context(), cfg, cleanup)
			if err != nil {
				return err
			}
			defer s.Close()

			w, err := s.analyzeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := failureError(w); err != nil {
				return err
			}
			if explain {
				if w, err = expandAll(cmd, s, w); err != nil {
					return err
				}
			}

			view := usecase.PresentWorkflow(w)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printView(cmd.OutOrStdout(), view, pages)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result view as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "include every clause explanation")
	return cmd
}

func countPages(cmd *cobra.Command, path string, maxBytes int64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var pages int
	err = usecase.WithPreview(cmd.Context(), pdftext.NewExtractor(maxBytes), f, func(h ports.DocumentHandle) error {
		pages = h.NumPages()
		return nil
	})
	return pages, err
}

func expandAll(cmd *cobra.Command, s *session, w *domain.Workflow) (*domain.Workflow, error) {
	view := usecase.PresentWorkflow(w)
	if view == nil {
		return w, nil
	}
	var err error
	for _, row := range view.Clauses {
		if !row.HasDetails || row.Expanded {
			continue
		}
		if w, err = s.app.Workflows.ToggleClause(cmd.Context(), w.ID, row.Index); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func printView(out io.Writer, view *domain.ResultView, pages int) error {
	if view == nil {
		return fmt.Errorf("no analysis to print")
	}
	fmt.Fprintf(out, "%s (%d pages)\n", view.Document, pages)
	if s := view.Summary; s != nil {
		printField(out, "Rent", s.RentAmount)
		printField(out, "Security deposit", s.SecurityDeposit)
		printField(out, "Lease term", s.LeaseTerm)
		if len(s.KeyTerms) > 0 {
			printField(out, "Key terms", strings.Join(s.KeyTerms, "; "))
		}
	}
	fmt.Fprintf(out, "Risks: %d high, %d medium, %d low\n\n", view.Counts.High, view.Counts.Medium, view.Counts.Low)

	rows := make([][]string, 0, len(view.Clauses))
	for _, row := range view.Clauses {
		rows = append(rows, []string{
			strconv.Itoa(row.Index + 1),
			severityStyles[row.Severity].Render(strings.ToUpper(string(row.RiskLevel))),
			row.Clause,
			row.Explanation,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "RISK", "CLAUSE", "EXPLANATION").
		Rows(rows...)
	_, err := fmt.Fprintln(out, t.String())
	return err
}

func printField(out io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(out, "%s: %s\n", label, value)
	}
}
