package cmd

import (
	"errors"
	"strings"

	"github.com/BitPonyLLC/huematch/buildinfo"
	"github.com/BitPonyLLC/huematch/pkg/ipc"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNotRunning = errors.New("no serve process found")

// daemonCommands build the commands that act on a serve process. Each is added
// to the CLI and, fresh for every connection, to the control socket's tree.
var daemonCommands = []func() *cobra.Command{
	newReloadCmd,
	newStatusCmd,
	newWatchCmd,
	newQuitCmd,
}

func init() {
	for _, newCmd := range daemonCommands {
		rootCmd.AddCommand(newCmd())
	}
}

// newRemoteCmd is the command tree executed for control socket clients.
func newRemoteCmd() *cobra.Command {
	root := &cobra.Command{Use: buildinfo.App.Name}
	for _, newCmd := range daemonCommands {
		root.AddCommand(newCmd())
	}
	return root
}

// runOnDaemon executes local when called inside the serve process and
// otherwise forwards the command over the control socket.
func runOnDaemon(cmd *cobra.Command, args []string, foreground bool, local func(*daemon) error) error {
	if running != nil {
		return local(running)
	}

	if !pidPath.IsRunning() {
		return fail(codeDaemon, errNotRunning)
	}

	return sendViaIPC(cmd, args, foreground)
}

func sendViaIPC(cmd *cobra.Command, args []string, foreground bool) error {
	msg := strings.Join(append(commandPath(cmd), args...), " ")

	log.Debug().Int("pid", pidPath.Getpid()).Str("cmd", msg).Msg("sending")

	client := &ipc.Client{
		Foreground: foreground,
		RespCB: func(line string) bool {
			cmd.Println(line)
			return true
		},
	}

	if foreground {
		go func() {
			<-cmd.Context().Done()
			client.Close()
		}()
	}

	err := client.Send(viper.GetString("sockpath"), msg)
	if err != nil {
		return fail(codeDaemon, err)
	}

	return nil
}

// commandPath lists the command names below the root.
func commandPath(cmd *cobra.Command) []string {
	var names []string
	for c := cmd; c.HasParent(); c = c.Parent() {
		names = append([]string{c.Name()}, names...)
	}
	return names
}
