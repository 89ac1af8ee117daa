package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds how long a non-foreground command may take.
const DefaultTimeout = 30 * time.Second

// RemoteError carries the failure reported by the server for a command.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return e.Msg
}

// Client sends one command to an IPCServer and relays its output.
type Client struct {
	// Foreground commands run until the server finishes or Close is called;
	// others are bounded by Timeout.
	Foreground bool
	Timeout    time.Duration

	// RespCB receives each line of output. Returning false stops reading.
	RespCB func(line string) bool

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Send connects to the server listening on path, issues msg and relays every
// response line to RespCB until the server hangs up.
func (c *Client) Send(path, msg string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", path, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	defer c.Close()

	if !c.Foreground {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		conn.SetDeadline(time.Now().Add(timeout))
	}

	_, err = conn.Write([]byte(msg + "\n"))
	if err != nil {
		return fmt.Errorf("unable to send message to %s: %w", path, err)
	}

	var remoteErrs []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ErrPrefix) {
			remoteErrs = append(remoteErrs, strings.TrimPrefix(line, ErrPrefix))
			continue
		}

		if c.RespCB != nil && !c.RespCB(line) {
			break
		}
	}

	err = scanner.Err()
	if err != nil && !c.isClosed() && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("unable to read response from %s: %w", path, err)
	}

	if len(remoteErrs) > 0 {
		return &RemoteError{Msg: strings.Join(remoteErrs, "\n")}
	}

	return nil
}

// Close hangs up, which cancels a foreground command on the server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send is a shortcut for a one-shot command whose whole output is returned.
func Send(path, msg string) (string, error) {
	var lines []string
	client := &Client{RespCB: func(line string) bool {
		lines = append(lines, line)
		return true
	}}

	err := client.Send(path, msg)
	return strings.Join(lines, "\n"), err
}

//--------------------------------------------------------------------------------
// private

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
