package util

import (
	"reflect"
	"testing"
)

func TestLineLogger(t *testing.T) {
	var got []string
	ll := &LineLogger{Log: func(s string) { got = append(got, s) }}

	writes := []string{"http: TLS handshake ", "error\nsecond line\n", "\n", "partial"}
	for _, w := range writes {
		if _, err := ll.Write([]byte(w)); err != nil {
			t.Fatalf("Write(%q) failed: %v", w, err)
		}
	}

	want := []string{"http: TLS handshake error", "second line"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("before Close got %q, want %q", got, want)
	}

	ll.Close()
	want = append(want, "partial")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after Close got %q, want %q", got, want)
	}
}
