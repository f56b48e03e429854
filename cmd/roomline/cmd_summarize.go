package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

var (
	summarizeHeuristic bool
	summarizeLanguage  string
)

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().BoolVar(&summarizeHeuristic, "heuristic", false, "skip the generative model")
	summarizeCmd.Flags().StringVar(&summarizeLanguage, "language", "", "summary language (overrides the file)")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <transcript.json>...",
	Short: "Summarize saved transcripts and extract service requests",
	Long: `Summarize reads transcripts in the format returned by
GET /api/calls/{id}/transcript (a JSON array of entries), or an object with
"call_id", "language" and "entries". Comments are allowed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

type summarizeResult struct {
	File     string                   `json:"file"`
	Summary  summary.CallSummary      `json:"summary"`
	Requests []summary.ServiceRequest `json:"requests"`
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	logger := setupLogging(cfg)
	orchestrator, extractor := newSummaryPipeline(cfg, logger)

	results := make([]summarizeResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(cfg.Summary.MaxConcurrent, 1))
	for i, path := range args {
		g.Go(func() error {
			in, err := readTranscript(path)
			if err != nil {
				return err
			}
			if summarizeLanguage != "" {
				in.Language = summarizeLanguage
			}
			if in.Language == "" {
				in.Language = cfg.Summary.DefaultLanguage
			}
			in.ForceHeuristic = summarizeHeuristic || cfg.Summary.ForceHeuristic

			cs := orchestrator.Summarize(ctx, in)
			results[i] = summarizeResult{
				File:     path,
				Summary:  cs,
				Requests: extractor.Extract(ctx, cs.Text),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

type transcriptLine struct {
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurred_at"`
}

func readTranscript(path string) (summary.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return summary.Input{}, fmt.Errorf("read transcript: %w", err)
	}
	data = jsonc.ToJSON(data)

	in := summary.Input{CallID: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	raw := gjson.ParseBytes(data)
	if !raw.IsArray() {
		if id := raw.Get("call_id").String(); id != "" {
			in.CallID = id
		}
		in.Language = raw.Get("language").String()
		raw = raw.Get("entries")
	}
	if !raw.IsArray() {
		return summary.Input{}, fmt.Errorf("parse transcript %s: expected an array of entries", path)
	}

	var lines []transcriptLine
	if err := json.Unmarshal([]byte(raw.Raw), &lines); err != nil {
		return summary.Input{}, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	for i, line := range lines {
		speaker, err := transcript.ParseSpeaker(line.Speaker)
		if err != nil {
			return summary.Input{}, fmt.Errorf("parse transcript %s entry %d: %w", path, i+1, err)
		}
		in.Entries = append(in.Entries, transcript.Entry{
			SessionID:  in.CallID,
			Seq:        int64(i + 1),
			Speaker:    speaker,
			Text:       line.Text,
			OccurredAt: line.OccurredAt,
		})
	}
	return in, nil
}
