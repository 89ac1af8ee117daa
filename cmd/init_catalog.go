package cmd

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/BitPonyLLC/huematch/buildinfo"
	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//go:embed templates/catalog.yml.tmpl
var catalogTemplate []byte

var initForce = false

func init() {
	initCatalogCmd.Flags().BoolVarP(&initForce, "force", "f", initForce, "overwrite an existing catalog")
	rootCmd.AddCommand(initCatalogCmd)
}

var initCatalogCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Writes a starter catalog and an empty reference directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "reference_images"
		if len(args) > 0 {
			dir = args[0]
		}

		pathname := viper.GetString("catalog")
		data := map[string]string{"Name": buildinfo.App.Name, "Dir": dir}

		err := util.WriteTemplate(pathname, catalogTemplate, data, initForce)
		if err != nil {
			return fail(codeCatalog, err)
		}

		refDir := filepath.Join(filepath.Dir(pathname), dir)
		err = os.MkdirAll(refDir, 0755)
		if err != nil {
			return fail(codeCatalog, "unable to create %s: %w", refDir, err)
		}

		cmd.Printf("wrote %s; add reference images to %s\n", pathname, refDir)
		return nil
	},
}
