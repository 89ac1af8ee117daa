package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/rs/zerolog/log"
)

// ErrExists is returned by WriteTemplate when the file is already present and
// overwriting was not requested.
var ErrExists = errors.New("file already exists")

// WriteTemplate renders content with data into pathname, creating parent
// directories as needed. A nil data writes content verbatim. Existing files
// are left alone unless force is set.
func WriteTemplate(pathname string, content []byte, data any, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	err := os.MkdirAll(filepath.Dir(pathname), 0755)
	if err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", pathname, err)
	}

	file, err := os.OpenFile(pathname, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, pathname)
		}
		return fmt.Errorf("unable to open %s: %w", pathname, err)
	}
	defer file.Close()

	name := filepath.Base(pathname)
	if data == nil {
		_, err = file.Write(content)
		if err != nil {
			return fmt.Errorf("unable to write %s content: %w", name, err)
		}
	} else {
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return fmt.Errorf("unable to parse %s template: %w", name, err)
		}

		err = tmpl.Execute(file, data)
		if err != nil {
			return fmt.Errorf("unable to execute %s template: %w", name, err)
		}
	}

	log.Debug().Str("path", pathname).Msg("written")
	return nil
}
