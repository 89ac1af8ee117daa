package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BitPonyLLC/huematch/pkg/palette"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SignatureSource turns raw image bytes into a signature. The matcher
// implements it so reference images are processed exactly like uploads.
type SignatureSource interface {
	ExtractSignature(data []byte) (palette.Signature, error)
}

// Loader reads a catalog file and builds snapshots from it.
type Loader struct {
	// Path is the catalog YAML file.
	Path string
	// Source computes signatures for reference images.
	Source SignatureSource
	// Log defaults to the global logger.
	Log *zerolog.Logger
}

// File is the on-disk catalog layout.
type File struct {
	// Dir is scanned for reference images; each becomes an entry whose id is
	// its file name.
	Dir string `yaml:"dir,omitempty"`
	// Products maps reference ids to recommendations.
	Products map[string][]string `yaml:"products,omitempty"`
	// References lists entries explicitly.
	References []Reference `yaml:"references,omitempty"`
}

// Reference is an explicit catalog entry. Exactly one of Image or Signature
// must be set.
type Reference struct {
	ID        string   `yaml:"id,omitempty"`
	Image     string   `yaml:"image,omitempty"`
	Signature []string `yaml:"signature,omitempty"`
	Products  []string `yaml:"products,omitempty"`
}

// SupportedImageExtensions lists the file types picked up from Dir.
func SupportedImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
}

// Load reads the catalog file and computes every signature it needs.
func (l *Loader) Load() (*Snapshot, error) {
	f, err := l.readFile()
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(l.Path)
	entries := []Entry{}

	if f.Dir != "" {
		dir := resolve(base, f.Dir)
		images, err := scanImages(dir)
		if err != nil {
			return nil, err
		}

		for _, pathname := range images {
			id := filepath.Base(pathname)
			sig, err := l.signatureOf(pathname)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{ID: id, Signature: sig, Products: f.Products[id]})
		}
	}

	for i, ref := range f.References {
		entry, err := l.buildReference(base, ref, f.Products)
		if err != nil {
			return nil, fmt.Errorf("reference %d in %s: %w", i, l.Path, err)
		}
		entries = append(entries, entry)
	}

	snap, err := NewSnapshot(l.Path, entries)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", l.Path, err)
	}

	l.logger().Debug().Str("path", l.Path).Int("entries", snap.Len()).Int("k", snap.K()).Msg("catalog loaded")
	return snap, nil
}

// Reload loads a fresh snapshot and swaps it into store. On failure the store
// keeps serving its current snapshot.
func (l *Loader) Reload(store *Store) error {
	snap, err := l.Load()
	if err != nil {
		l.logger().Err(err).Str("path", l.Path).Msg("catalog reload failed: keeping current snapshot")
		return err
	}

	prev := store.Swap(snap)
	l.logger().Info().Int("entries", snap.Len()).Int("previous", prev.Len()).
		Int64("generation", store.Generation()).Msg("catalog reloaded")
	return nil
}

// ReferenceDir reports the directory the catalog scans, if any.
func (l *Loader) ReferenceDir() (string, error) {
	f, err := l.readFile()
	if err != nil {
		return "", err
	}

	if f.Dir == "" {
		return "", nil
	}

	return resolve(filepath.Dir(l.Path), f.Dir), nil
}

//--------------------------------------------------------------------------------
// private

func (l *Loader) logger() *zerolog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return &log.Logger
}

func (l *Loader) readFile() (*File, error) {
	content, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read catalog %s: %w", l.Path, err)
	}

	f := &File{}
	err = yaml.Unmarshal(content, f)
	if err != nil {
		return nil, fmt.Errorf("unable to parse catalog %s: %w", l.Path, err)
	}

	return f, nil
}

func (l *Loader) buildReference(base string, ref Reference, products map[string][]string) (Entry, error) {
	hasImage := ref.Image != ""
	hasSignature := len(ref.Signature) > 0

	if hasImage == hasSignature {
		return Entry{}, fmt.Errorf("exactly one of image or signature is required")
	}

	id := ref.ID
	if id == "" {
		if !hasImage {
			return Entry{}, fmt.Errorf("precomputed signature requires an id")
		}
		id = filepath.Base(ref.Image)
	}

	var sig palette.Signature
	var err error
	if hasImage {
		sig, err = l.signatureOf(resolve(base, ref.Image))
	} else {
		sig, err = palette.ParseSignature(ref.Signature)
	}
	if err != nil {
		return Entry{}, err
	}

	prods := ref.Products
	if prods == nil {
		prods = products[id]
	}

	return Entry{ID: id, Signature: sig, Products: prods}, nil
}

func (l *Loader) signatureOf(pathname string) (palette.Signature, error) {
	if l.Source == nil {
		return palette.Signature{}, fmt.Errorf("no signature source to process %s", pathname)
	}

	data, err := os.ReadFile(pathname)
	if err != nil {
		return palette.Signature{}, fmt.Errorf("unable to read reference %s: %w", pathname, err)
	}

	sig, err := l.Source.ExtractSignature(data)
	if err != nil {
		return palette.Signature{}, fmt.Errorf("unable to extract signature of %s: %w", pathname, err)
	}

	l.logger().Trace().Str("path", pathname).Stringer("signature", sig).Msg("reference processed")
	return sig, nil
}

func resolve(base, pathname string) string {
	if filepath.IsAbs(pathname) {
		return pathname
	}
	return filepath.Join(base, pathname)
}

// scanImages lists image files in dir sorted by name. It does not recurse.
func scanImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read reference directory %s: %w", dir, err)
	}

	images := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}

	return images, nil
}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedImageExtensions() {
		if ext == supported {
			return true
		}
	}
	return false
}
