package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newExportCommand(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <lease.pdf>",
		Short: "Analyze a lease PDF and write the XLSX report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := resolveConfig(v)
			if err != nil {
				return err
			}
			installLogger(cmd.ErrOrStderr(), cfg.LogLevel)

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

			if output == "" {
				base := filepath.Base(args[0])
				output = strings.TrimSuffix(base, filepath.Ext(base)) + "-report.xlsx"
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if _, err := s.app.Exporter.Export(cmd.Context(), w.ID, f); err != nil {
				_ = f.Close()
				_ = os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "report path (default: <name>-report.xlsx)")
	return cmd
}
