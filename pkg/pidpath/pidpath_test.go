package pidpath

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestCheckAndSet(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "test.pid")
	pp := New(pathname, 0o600)

	if pp.IsRunning() {
		t.Fatal("IsRunning() with no file")
	}

	if err := pp.CheckAndSet(); err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}

	content, err := os.ReadFile(pathname)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != strconv.Itoa(os.Getpid())+"\n" {
		t.Errorf("pid file = %q", content)
	}

	if !pp.IsOurs() || !pp.IsRunning() {
		t.Errorf("after CheckAndSet: ours=%v running=%v", pp.IsOurs(), pp.IsRunning())
	}

	// a second handle in the same process sees it as ours, not as a conflict
	if err := New(pathname, 0o600).Check(); err != nil {
		t.Errorf("Check() from the owning process = %v", err)
	}

	if err := pp.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(pathname); !os.IsNotExist(err) {
		t.Errorf("pid file still present after Release: %v", err)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
		wantPID int
	}{
		{name: "live other process", content: strconv.Itoa(os.Getppid()), wantErr: ErrRunning, wantPID: os.Getppid()},
		{name: "stale", content: "2147483000\n", wantPID: UnknownPID},
		{name: "garbage", content: "not a pid", wantPID: UnknownPID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pathname := filepath.Join(dir, tt.name+".pid")
			if err := os.WriteFile(pathname, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			pp := New(pathname, 0o600)
			err := pp.Check()

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Check() = %v, want %v", err, tt.wantErr)
				}
			case tt.name == "garbage":
				if err == nil {
					t.Error("Check() accepted garbage")
				}
			default:
				if err != nil {
					t.Errorf("Check() = %v", err)
				}
			}

			if got := pp.Getpid(); got != tt.wantPID {
				t.Errorf("Getpid() = %d, want %d", got, tt.wantPID)
			}
		})
	}
}

func TestReleaseLeavesOthersAlone(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "other.pid")
	if err := os.WriteFile(pathname, []byte(strconv.Itoa(os.Getppid())), 0o600); err != nil {
		t.Fatal(err)
	}

	pp := New(pathname, 0o600)
	if err := pp.CheckAndSet(); !errors.Is(err, ErrRunning) {
		t.Fatalf("CheckAndSet() = %v, want ErrRunning", err)
	}

	if err := pp.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(pathname); err != nil {
		t.Errorf("Release removed a file owned by another process: %v", err)
	}
}
