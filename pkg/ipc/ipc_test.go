package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func startServer(t *testing.T, canceled chan struct{}) (*IPCServer, string) {
	t.Helper()

	newCmd := func() *cobra.Command {
		root := &cobra.Command{Use: "test"}
		root.AddCommand(&cobra.Command{
			Use: "echo",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println(strings.Join(args, " "))
			},
		})
		root.AddCommand(&cobra.Command{
			Use: "fail",
			RunE: func(cmd *cobra.Command, args []string) error {
				cmd.Println("about to fail")
				return errors.New("boom")
			},
		})
		root.AddCommand(&cobra.Command{
			Use: "block",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println("waiting")
				<-cmd.Context().Done()
				close(canceled)
			},
		})
		return root
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	path := filepath.Join(t.TempDir(), "test.sock")
	log := zerolog.Nop()
	server := &IPCServer{}
	if err := server.Start(ctx, &log, path, newCmd); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(server.Stop)

	return server, path
}

func TestRoundTrip(t *testing.T) {
	_, path := startServer(t, make(chan struct{}))

	got, err := Send(path, `echo "hello world" again`)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got != "hello world again" {
		t.Errorf("Send() = %q, want %q", got, "hello world again")
	}
}

func TestRemoteError(t *testing.T) {
	_, path := startServer(t, make(chan struct{}))

	got, err := Send(path, "fail")

	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Msg != "boom" {
		t.Fatalf("Send() error = %v, want remote boom", err)
	}
	if got != "about to fail" {
		t.Errorf("Send() output = %q", got)
	}

	_, err = Send(path, "nope")
	if !errors.As(err, &remote) {
		t.Errorf("unknown command error = %v, want RemoteError", err)
	}
}

func TestForegroundClose(t *testing.T) {
	canceled := make(chan struct{})
	_, path := startServer(t, canceled)

	client := &Client{Foreground: true}
	client.RespCB = func(line string) bool {
		if line == "waiting" {
			go client.Close()
		}
		return true
	}

	done := make(chan error, 1)
	go func() { done <- client.Send(path, "block") }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Send() error = %v after Close", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after Close")
	}

	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("server command was not canceled when the client hung up")
	}
}

func TestStopRemovesSocket(t *testing.T) {
	server, path := startServer(t, make(chan struct{}))

	server.Stop()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
	if _, err := Send(path, "echo hi"); err == nil {
		t.Error("Send succeeded after Stop")
	}
}
