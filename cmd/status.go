package cmd

import (
	"os"
	"time"

	"github.com/BitPonyLLC/huematch/buildinfo"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows what the serve process is doing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnDaemon(cmd, args, false, func(d *daemon) error {
				snap := d.store.Load()

				cmd.Println("pid        =", os.Getpid())
				cmd.Println("version    =", buildinfo.All)
				cmd.Println("uptime     =", time.Since(d.startedAt).Round(time.Second))
				cmd.Println("addr       =", d.addr)
				cmd.Println("catalog    =", snap.Source())
				cmd.Println("references =", snap.Len())
				cmd.Println("k          =", snap.K())
				cmd.Println("generation =", d.store.Generation())
				cmd.Println("loaded     =", snap.LoadedAt().Format(time.RFC3339))
				cmd.Println("in flight  =", d.server.InFlight())
				cmd.Println("served     =", d.server.Served())
				cmd.Println("dropped    =", d.store.Events.Dropped())
				return nil
			})
		},
	}
}
