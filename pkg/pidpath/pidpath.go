// Package pidpath manages a PID file so only one daemon serves a given
// socket and port at a time, and so clients can tell whether one is up.
package pidpath

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// UnknownPID indicates no live process owns the file.
const UnknownPID = -1

// ErrRunning is matched by the error returned when another live process
// already holds the file.
var ErrRunning = errors.New("another process is already running")

// RunningError names the process holding the file.
type RunningError struct {
	PID int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("%s: %d", ErrRunning, e.PID)
}

func (e *RunningError) Is(target error) bool {
	return target == ErrRunning
}

// PidPath is the type for managing a PID file.
type PidPath struct {
	pathname string
	perm     fs.FileMode
	cacheFor time.Duration

	mu        sync.Mutex
	checkedAt time.Time
	pid       int
}

// New manages the PID file at pathname. Lookups are cached for a second.
func New(pathname string, perm fs.FileMode) *PidPath {
	return &PidPath{pathname: pathname, perm: perm, cacheFor: time.Second, pid: UnknownPID}
}

// String provides the path and other PID info.
func (pp *PidPath) String() string {
	pid := pp.Getpid()
	owner := "other"
	switch {
	case pid == UnknownPID:
		owner = "none"
	case pid == os.Getpid():
		owner = "ours"
	}

	return fmt.Sprintf("%s %s=%d", pp.pathname, owner, pid)
}

// Path is the PID file location.
func (pp *PidPath) Path() string {
	return pp.pathname
}

// CheckAndSet claims the file for the current process unless another live
// process holds it.
func (pp *PidPath) CheckAndSet() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	err := pp.check()
	if err != nil {
		return err
	}

	pid := os.Getpid()
	err = os.WriteFile(pp.pathname, []byte(strconv.Itoa(pid)+"\n"), pp.perm)
	if err != nil {
		return fmt.Errorf("unable to write to %s: %w", pp.pathname, err)
	}

	// only declare it ours once the write succeeds
	pp.pid = pid
	pp.checkedAt = time.Now()
	return nil
}

// Check returns a RunningError if another live process holds the file.
func (pp *PidPath) Check() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.check()
}

// IsRunning reports whether a live process (possibly this one) holds the file.
func (pp *PidPath) IsRunning() bool {
	return pp.Getpid() != UnknownPID
}

// IsOurs reports whether the current process holds the file.
func (pp *PidPath) IsOurs() bool {
	return pp.Getpid() == os.Getpid()
}

// Getpid returns the live process holding the file, or UnknownPID.
func (pp *PidPath) Getpid() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if time.Since(pp.checkedAt) >= pp.cacheFor {
		pp.check()
	}

	return pp.pid
}

// Release removes the file if the current process holds it. It is safe to
// call from a client: a file owned by another process is left alone.
func (pp *PidPath) Release() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.pid != os.Getpid() {
		return nil
	}

	pp.pid = UnknownPID
	pp.checkedAt = time.Time{}

	err := os.Remove(pp.pathname)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove %s: %w", pp.pathname, err)
	}

	return nil
}

//--------------------------------------------------------------------------------
// private

func (pp *PidPath) check() error {
	pp.checkedAt = time.Now()
	pp.pid = UnknownPID

	content, err := os.ReadFile(pp.pathname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("unable to read %s: %w", pp.pathname, err)
	}

	pid, err := strconv.Atoi(string(bytes.TrimSpace(content)))
	if err != nil {
		return fmt.Errorf("unable to parse contents of %s: %w", pp.pathname, err)
	}

	if pid == os.Getpid() {
		// ourselves, probably executing a command for a client
		pp.pid = pid
		return nil
	}

	err = syscall.Kill(pid, 0)
	if err == nil || errors.Is(err, syscall.EPERM) {
		// EPERM: alive but owned by another user
		pp.pid = pid
		return &RunningError{PID: pid}
	}

	if !errors.Is(err, syscall.ESRCH) {
		// can't tell, so assume it is still running
		pp.pid = pid
		return fmt.Errorf("unable to check if process %d is still running: %w", pid, err)
	}

	// stale file from a process that is gone
	return nil
}
