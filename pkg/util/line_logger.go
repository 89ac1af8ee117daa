package util

import (
	"bytes"
	"io"
	"sync"
)

// LineLogger relays whatever is written to it one line at a time to Log. It
// lets packages that only know about io.Writer (like net/http's ErrorLog)
// report through zerolog.
type LineLogger struct {
	Log func(string)

	buf   bytes.Buffer
	mutex sync.Mutex
}

var _ io.WriteCloser = (*LineLogger)(nil) // ensures we conform to the WriteCloser interface

func (ll *LineLogger) Write(data []byte) (n int, err error) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	n, err = ll.buf.Write(data)
	if err != nil {
		return
	}

	for {
		line, ok := ll.nextLine()
		if !ok {
			return // no complete line in the buffer yet...
		}

		if line != "" {
			ll.Log(line)
		}
	}
}

// Close flushes any partial line.
func (ll *LineLogger) Close() error {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	if ll.buf.Len() > 0 {
		ll.Log(ll.buf.String())
	}

	ll.buf.Reset()
	return nil
}

//--------------------------------------------------------------------------------
// private

// using our own instead of bufio.NewScanner as that will return all the bytes,
// but we want to wait for more writes to get the next newline
func (ll *LineLogger) nextLine() (string, bool) {
	i := bytes.IndexByte(ll.buf.Bytes(), '\n')
	if i < 0 {
		return "", false
	}

	line := string(ll.buf.Next(i + 1))
	return line[:i], true
}
