package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/termwrap"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Lists the references, signatures and products of the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, _, snap, err := loadCatalog()
		if err != nil {
			return err
		}

		printCatalog(cmd.OutOrStdout(), termwrap.NewTermWrap(80), snap)
		return nil
	},
}

func printCatalog(w io.Writer, tw *termwrap.TermWrap, snap *catalog.Snapshot) {
	fmt.Fprintf(w, "%s: %d references, k=%d\n", snap.Source(), snap.Len(), snap.K())

	for _, e := range snap.Entries() {
		fmt.Fprintln(w, e.ID)
		fmt.Fprintln(w, "  signature =", e.Signature)
		if len(e.Products) == 0 {
			continue
		}
		fmt.Fprintln(w, "  products:")
		io.WriteString(w, tw.IndentedParagraph("    ", strings.Join(e.Products, ", "), 20))
	}
}
