package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjawhar/roomline/internal/config"
	"github.com/sjawhar/roomline/internal/llm"
	"github.com/sjawhar/roomline/internal/summary"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "roomline",
	Short:         "Hotel call-to-order pipeline and status bus",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig exits on a config file that exists but cannot be parsed.
func loadConfig() (config.Config, []string) {
	cfg, warnings, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, warnings
}

func setupLogging(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// newLLMClient returns a nil client when the configured provider has no key.
func newLLMClient(cfg config.Config) (llm.Client, error) {
	provider, model, err := llm.ParseModel(cfg.Summary.Model)
	if err != nil {
		return nil, err
	}
	key := cfg.APIKey(provider)
	if key == "" {
		return nil, nil
	}
	client, err := llm.NewClient(provider, key, model)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return client, nil
}

// newSummaryPipeline builds the orchestrator and extractor. Without a usable
// client every summary is heuristic and extraction yields nothing.
func newSummaryPipeline(cfg config.Config, logger *slog.Logger) (*summary.Orchestrator, *summary.Extractor) {
	client, err := newLLMClient(cfg)
	if err != nil {
		logger.Warn("generative summaries disabled", "error", err)
		client = nil
	}

	var generator summary.TextGenerator
	if client != nil {
		var opts []summary.GeneratorOption
		if tok, err := summary.NewTokenizer(); err != nil {
			logger.Warn("token budget disabled", "error", err)
		} else {
			opts = append(opts, summary.WithTokenizer(tok, cfg.Summary.MaxPromptTokens))
		}
		generator = summary.NewGenerator(client, opts...)
	}

	orchestrator := summary.NewOrchestrator(generator, summary.OrchestratorConfig{
		Timeout:       cfg.SummaryTimeout(),
		MaxConcurrent: int64(cfg.Summary.MaxConcurrent),
		Logger:        logger,
	})
	return orchestrator, summary.NewExtractor(client, cfg.ExtractTimeout(), logger)
}
