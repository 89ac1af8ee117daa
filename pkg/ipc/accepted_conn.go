package ipc

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"

	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/mattn/go-shellwords"
)

type acceptedConn struct {
	conn net.Conn
}

func (ac *acceptedConn) processCommand(parent *IPCServer) {
	parent.conns.Store(ac, ac)
	defer func() {
		util.LogRecover()
		parent.conns.Delete(ac)
		ac.conn.Close()
		parent.log.Trace().Msg("client disconnected")
	}()

	parent.log.Trace().Msg("client connected")

	reader := bufio.NewReader(ac.conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		parent.log.Err(err).Msg("unable to read command from client")
		return
	}

	line = strings.TrimSpace(line)
	clog := parent.log.With().Str("cmd", line).Logger()

	outWriter := &ConnWriter{conn: ac.conn}
	errWriter := &ConnWriter{conn: ac.conn, prefix: ErrPrefix}

	args, err := shellwords.Parse(line)
	if err != nil {
		errWriter.Writeln("unable to parse command: %s", line)
		return
	}

	// a client hanging up cancels whatever it asked for (e.g. watch)
	ctx, cancel := context.WithCancel(parent.ctx)
	defer cancel()
	go func() {
		defer util.LogRecover()
		io.Copy(io.Discard, reader)
		cancel()
	}()

	cmd := parent.newCmd()
	cmd.SetOut(outWriter)
	cmd.SetErr(outWriter)
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	clog.Debug().Msg("executing")
	err = cmd.ExecuteContext(ctx)
	if err != nil {
		clog.Err(err).Msg("command failed")
		errWriter.Writeln("%s", err)
	}

	if outWriter.err != nil {
		clog.Err(outWriter.err).Msg("output writer failed")
	}

	if errWriter.err != nil {
		clog.Err(errWriter.err).Msg("error writer failed")
	}
}
