package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Tells the serve process to reload its catalog now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnDaemon(cmd, args, false, func(d *daemon) error {
				log.Info().Msg("received request to reload")

				err := d.loader.Reload(d.store)
				if err != nil {
					return err
				}

				snap := d.store.Load()
				cmd.Printf("reloaded %s: %d references (generation %d)\n", snap.Source(), snap.Len(), d.store.Generation())
				return nil
			})
		},
	}
}
