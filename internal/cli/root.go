// Package cli is the leasectl command tree: one-shot lease analysis, XLSX
// export and an MCP tool server, all over an in-process workflow.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/lease-lens/internal/config"
	"github.com/kirillkom/lease-lens/internal/observability/logging"
)

const envPrefix = "LEASECTL"

// NewRootCommand builds the command tree. Settings resolve from flags, then
// LEASECTL_* environment variables, then the optional config file, then the
// service defaults.
func NewRootCommand(version string) *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "leasectl",
		Short: "Review lease PDFs for risky clauses",
		Long: `leasectl runs the lease review workflow locally: upload a PDF, wait for
the clause analysis, print or export it, or serve the workflow as MCP tools.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.leasectl/config.yaml)")
	flags.String("provider", config.ProviderMock, "analysis provider: mock, ollama or openai")
	flags.Duration("mock-delay", 0, "artificial delay of the mock provider")
	flags.Duration("timeout", 2*time.Minute, "analysis timeout")
	flags.String("ollama-url", "http://localhost:11434", "Ollama base URL")
	flags.String("ollama-model", "llama3.1:8b", "Ollama model")
	flags.String("openai-model", "gpt-4o-mini", "OpenAI model")
	flags.String("openai-base-url", "", "OpenAI-compatible base URL")
	flags.String("storage-path", "", "directory for uploaded copies (default: a temp dir)")
	flags.String("log-level", "warn", "log level written to stderr")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newAnalyzeCommand(v),
		newExportCommand(v),
		newMCPCommand(v, version),
		newVersionCommand(version),
	)
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".leasectl"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// resolveConfig layers CLI settings over the service configuration. The CLI
// always runs with the in-memory store and the inline queue.
func resolveConfig(v *viper.Viper) (config.Config, func(), error) {
	cfg := config.Load()
	cfg.WorkflowStore = config.StoreMemory
	cfg.QueueMode = config.QueueInline
	cfg.StorageBackend = config.StorageLocal
	cfg.AnalysisProvider = strings.ToLower(v.GetString("provider"))
	cfg.MockDelay = v.GetDuration("mock-delay")
	if cfg.MockDelay == 0 {
		cfg.MockDelay = -1
	}
	cfg.AnalysisTimeout = v.GetDuration("timeout")
	cfg.OllamaURL = v.GetString("ollama-url")
	cfg.OllamaModel = v.GetString("ollama-model")
	cfg.OpenAIModel = v.GetString("openai-model")
	if base := v.GetString("openai-base-url"); base != "" {
		cfg.OpenAIBaseURL = base
	}
	cfg.LogLevel = v.GetString("log-level")

	cleanup := func() {}
	cfg.StoragePath = v.GetString("storage-path")
	if cfg.StoragePath == "" {
		dir, err := os.MkdirTemp("", "leasectl-*")
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("create storage dir: %w", err)
		}
		cfg.StoragePath = dir
		cleanup = func() { _ = os.RemoveAll(dir) }
	}
	return cfg, cleanup, nil
}

// installLogger keeps stdout free for command output and the MCP protocol.
func installLogger(w io.Writer, level string) {
	slog.SetDefault(logging.NewJSONLoggerTo(w, "leasectl", level))
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leasectl %s\n", version)
		},
	}
}
