package buildinfo

import (
	"strings"
	"testing"
)

func TestEmbedded(t *testing.T) {
	if App.Name != "huematch" || App.Description == "" {
		t.Errorf("App = %+v", App)
	}
	if !strings.HasPrefix(All, App.Version+" (") {
		t.Errorf("All = %q", All)
	}
}

func TestParseRequiresName(t *testing.T) {
	var info AppInfo
	if err := parse([]byte("description: x"), []byte("version: 1"), &info); err == nil {
		t.Error("parse accepted app info without a name")
	}
	if err := parse([]byte("name: ["), nil, &info); err == nil {
		t.Error("parse accepted malformed yaml")
	}
}
