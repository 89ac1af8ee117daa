// Package buildinfo exposes the application metadata and build stamp embedded
// at compile time. Release builds overwrite build.yml before compiling.
package buildinfo

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AppInfo provides static data about the running application
type AppInfo struct {
	buildInfo

	ExePath string `yaml:"-"`

	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	Description     string `yaml:"description"`
	FullDescription string `yaml:"full_description"`
}

type buildInfo struct {
	Version    string    `yaml:"version"`
	CommitHash string    `yaml:"commit_hash"`
	BuildTime  time.Time `yaml:"build_time"`
}

var App AppInfo

// All is the one-line version string shown by --version and status.
var All string

//go:embed app.yml
var app []byte

//go:embed build.yml
var build []byte

func init() {
	var err error

	App.ExePath, err = os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to determine executable pathname")
	}

	err = parse(app, build, &App)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to parse embedded build info")
	}

	All = App.String()
}

func (a AppInfo) String() string {
	return fmt.Sprintf("%s (%s at %s)", a.Version, a.CommitHash, a.BuildTime.Format(time.RFC3339))
}

func parse(appData, buildData []byte, into *AppInfo) error {
	err := yaml.Unmarshal(appData, into)
	if err != nil {
		return fmt.Errorf("app info: %w", err)
	}

	err = yaml.Unmarshal(buildData, &into.buildInfo)
	if err != nil {
		return fmt.Errorf("build info: %w", err)
	}

	if into.Name == "" {
		return fmt.Errorf("app info has no name")
	}

	return nil
}
