package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
)

// ErrPrefix marks a line written by the server as a command failure.
const ErrPrefix = "ERR: "

// ConnWriter is an io.Writer that will relay any bytes written to it into the
// associated connection. It is safe for commands that write from several
// goroutines.
type ConnWriter struct {
	conn   net.Conn
	prefix string
	err    error
	mu     sync.Mutex
}

var _ io.Writer = (*ConnWriter)(nil) // ensures we conform to the io.Writer interface

// Write will write bytes to the connection.
func (cw *ConnWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.prefix != "" {
		p = append([]byte(cw.prefix), p...)
	}

	n, err := cw.conn.Write(p)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
			// client is gone: don't record this, but do pass it along to caller
			return n, err
		}

		cw.err = err
	}

	return n, err
}

// Writeln will write a formatted message to the connection.
func (cw *ConnWriter) Writeln(format string, args ...any) {
	cw.Write([]byte(fmt.Sprintf(format+"\n", args...)))
}
