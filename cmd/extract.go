package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BitPonyLLC/huematch/internal/image_matcher"
	"github.com/BitPonyLLC/huematch/pkg/palette"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var extractJSON = false

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", extractJSON, "print signatures as JSON")
	rootCmd.AddCommand(extractCmd)
}

type extraction struct {
	Image     string            `json:"image"`
	Signature palette.Signature `json:"signature"`
	Dominant  string            `json:"dominant,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract IMAGE...",
	Short: "Prints the dominant color signature of each image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMatcher()
		if err != nil {
			return fail(codeConfig, err)
		}

		results, err := extractAll(m, args)
		if err != nil {
			return err
		}

		if extractJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		for _, r := range results {
			cmd.Println(r.Image)
			cmd.Println("  signature =", r.Signature)
			cmd.Println("  rgb       =", formatRGB(r.Signature))
			if r.Dominant != "" {
				cmd.Println("  dominant  =", r.Dominant)
			}
		}

		return nil
	},
}

func extractAll(m *image_matcher.Matcher, args []string) ([]extraction, error) {
	results := make([]extraction, 0, len(args))
	for _, arg := range args {
		data, err := readImage(arg)
		if err != nil {
			return nil, err
		}

		sig, err := m.ExtractSignature(data)
		if err != nil {
			return nil, failMatch(err, "can't extract signature of %s", arg)
		}

		dominant, err := image_matcher.DominantColorOf(data)
		if err != nil {
			log.Debug().Err(err).Str("image", arg).Msg("no dominant color")
		}

		results = append(results, extraction{Image: arg, Signature: sig, Dominant: dominant})
	}
	return results, nil
}

func formatRGB(sig palette.Signature) string {
	parts := make([]string, sig.Len())
	for i, c := range sig.Colors() {
		r, g, b := c.Bytes()
		parts[i] = fmt.Sprintf("(%d,%d,%d)", r, g, b)
	}
	return strings.Join(parts, " ")
}
