package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/BitPonyLLC/huematch/pkg/server"
	"github.com/BitPonyLLC/huematch/pkg/termwrap"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match IMAGE",
	Short: "Finds the catalog reference closest to an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, snap, err := loadCatalog()
		if err != nil {
			return err
		}

		data, err := readImage(args[0])
		if err != nil {
			return err
		}

		sig, err := m.ExtractSignature(data)
		if err != nil {
			return failMatch(err, "can't extract signature of %s", args[0])
		}

		result, err := m.MatchSignature(sig, snap)
		if err != nil {
			return failMatch(err, "can't match %s", args[0])
		}

		printMatch(cmd.OutOrStdout(), termwrap.NewTermWrap(80), server.NewUploadResponse(result, snap, sig))
		return nil
	},
}

// printMatch writes the same facts the upload endpoint returns, for humans.
func printMatch(w io.Writer, tw *termwrap.TermWrap, resp server.UploadResponse) {
	fmt.Fprintln(w, resp.Message)
	fmt.Fprintln(w, "  signature =", resp.Signature)
	if resp.Distance == nil {
		return
	}

	fmt.Fprintf(w, "  distance  = %.3f\n", *resp.Distance)

	if len(resp.Products) == 0 {
		fmt.Fprintln(w, "  (no products)")
		return
	}

	fmt.Fprintln(w, "  products:")
	io.WriteString(w, tw.IndentedParagraph("    ", strings.Join(resp.Products, ", "), 20))
}
