package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/sjawhar/roomline/internal/order"
)

var normalizeStrict bool

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().BoolVar(&normalizeStrict, "strict", false, "fail instead of correcting the draft")
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <draft.json>",
	Short: "Normalize an order draft and print the corrections made",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read draft: %w", err)
		}
		var d order.Draft
		if err := json.Unmarshal(jsonc.ToJSON(data), &d); err != nil {
			return fmt.Errorf("parse draft: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		n := order.NewNormalizer()
		if normalizeStrict {
			o, err := n.Validate(d)
			var verr *order.ValidationError
			if errors.As(err, &verr) {
				_ = enc.Encode(map[string]any{"corrections": verr.Corrections})
				return err
			}
			if err != nil {
				return err
			}
			return enc.Encode(map[string]any{"order": o})
		}

		o, corrections := n.Normalize(d)
		if corrections == nil {
			corrections = []order.Correction{}
		}
		return enc.Encode(map[string]any{"order": o, "corrections": corrections})
	},
}
