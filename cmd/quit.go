package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newQuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Tells the serve process to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnDaemon(cmd, args, false, func(_ *daemon) error {
				log.Info().Msg("received request to quit")
				cmd.Println("quitting")
				cancelFunc()
				return nil
			})
		},
	}
}
