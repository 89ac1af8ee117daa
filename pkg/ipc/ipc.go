// Package ipc runs cobra commands inside a long-lived process on behalf of
// clients connecting over a unix socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CommandFactory builds a fresh command tree for one connection so concurrent
// clients never share output writers or parsed flags.
type CommandFactory func() *cobra.Command

// IPCServer accepts connections on a unix socket, reads one command line from
// each and executes it.
type IPCServer struct {
	ctx      context.Context
	log      *zerolog.Logger
	conns    sync.Map
	newCmd   CommandFactory
	path     string
	listener net.Listener
	done     chan struct{}
}

// Start listens on path and serves until ctx is canceled or Stop is called.
func (ipc *IPCServer) Start(ctx context.Context, log *zerolog.Logger, path string, newCmd CommandFactory) error {
	err := os.Remove(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("unable to remove %s: %w", path, err)
		}
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", path, err)
	}

	// only the owner may control the daemon
	err = os.Chmod(path, 0600)
	if err != nil {
		l.Close()
		return fmt.Errorf("unable to change permissions of %s: %w", path, err)
	}

	ipc.ctx = ctx
	ipc.log = log
	ipc.newCmd = newCmd
	ipc.path = path
	ipc.listener = l
	ipc.done = make(chan struct{})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	go func() {
		defer func() {
			util.LogRecover()
			l.Close()
			ipc.closeAll()
			close(ipc.done)
		}()

		for {
			conn, err := l.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					ipc.log.Error().Err(err).Str("path", path).Msg("unable to accept new connection")
				}
				return
			}

			ac := &acceptedConn{conn: conn}
			go ac.processCommand(ipc)
		}
	}()

	ipc.log.Debug().Str("path", path).Msg("control socket ready")
	return nil
}

// Stop closes the listener and every open connection, then removes the socket.
func (ipc *IPCServer) Stop() {
	if ipc.listener == nil {
		return
	}

	ipc.listener.Close()
	<-ipc.done

	err := os.Remove(ipc.path)
	if err != nil && !os.IsNotExist(err) {
		ipc.log.Warn().Err(err).Str("path", ipc.path).Msg("unable to remove socket")
	}

	ipc.listener = nil
}

//--------------------------------------------------------------------------------
// private

func (ipc *IPCServer) closeAll() {
	ipc.conns.Range(func(key, _ any) bool {
		key.(*acceptedConn).conn.Close()
		return true
	})
}
