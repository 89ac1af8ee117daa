package cmd

import (
	"time"

	"github.com/BitPonyLLC/huematch/pkg/catalog"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reports catalog reloads until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnDaemon(cmd, args, true, func(d *daemon) error {
				w := d.store.Events.Watch()
				defer w.Stop()

				cmd.Printf("watching %s (generation %d)\n", d.store.Load().Source(), d.store.Generation())

				for {
					ev, ok := w.Next(cmd.Context())
					if !ok {
						return nil
					}

					swap, ok := ev.(catalog.SwapEvent)
					if !ok {
						continue
					}

					cmd.Printf("%s generation=%d references=%d source=%s\n",
						time.Now().Format(minimalTimeFormat), swap.Generation, swap.Entries, swap.Source)
				}
			})
		},
	}
}
