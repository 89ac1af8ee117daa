package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTemplate(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "nested", "catalog.yml")
	content := []byte("dir: {{.Dir}}\n")

	if err := WriteTemplate(pathname, content, map[string]string{"Dir": "refs"}, false); err != nil {
		t.Fatalf("WriteTemplate failed: %v", err)
	}

	got, _ := os.ReadFile(pathname)
	if string(got) != "dir: refs\n" {
		t.Errorf("rendered %q", got)
	}

	err := WriteTemplate(pathname, []byte("other"), nil, false)
	if !errors.Is(err, ErrExists) {
		t.Errorf("second write error = %v, want ErrExists", err)
	}

	if err := WriteTemplate(pathname, []byte("raw {{.Dir}}"), nil, true); err != nil {
		t.Fatalf("forced write failed: %v", err)
	}

	got, _ = os.ReadFile(pathname)
	if string(got) != "raw {{.Dir}}" {
		t.Errorf("forced write left %q", got)
	}
}

func TestWriteTemplateBadTemplate(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "bad.yml")
	if err := WriteTemplate(pathname, []byte("{{.Missing"), struct{}{}, false); err == nil {
		t.Error("WriteTemplate accepted a broken template")
	}
}
