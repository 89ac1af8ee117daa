package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/ipc"
	"github.com/BitPonyLLC/huematch/pkg/palette"
	"github.com/BitPonyLLC/huematch/pkg/server"
	"github.com/BitPonyLLC/huematch/pkg/termwrap"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func writeSolid(t *testing.T, pathname string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pathname, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeCatalog lays out a catalog with two solid references.
func writeCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	refs := filepath.Join(root, "refs")
	if err := os.Mkdir(refs, 0o755); err != nil {
		t.Fatal(err)
	}

	writeSolid(t, filepath.Join(refs, "reference1.png"), color.RGBA{200, 30, 30, 255})
	writeSolid(t, filepath.Join(refs, "reference2.png"), color.RGBA{30, 30, 200, 255})

	content := "dir: refs\nproducts:\n  reference1.png: [Shampoo A, Sunscreen B, Moisturizer C]\n"
	pathname := filepath.Join(root, "catalog.yml")
	if err := os.WriteFile(pathname, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return pathname
}

func withSettings(t *testing.T, settings map[string]any) {
	t.Helper()
	for key, val := range settings {
		key := key
		prev := viper.Get(key)
		viper.Set(key, val)
		t.Cleanup(func() { viper.Set(key, prev) })
	}
}

func TestNewMatcher(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{name: "defaults", settings: map[string]any{}},
		{name: "assignment", settings: map[string]any{"match.strategy": palette.MetricAssignment, "match.k": 5}},
		{name: "bad strategy", settings: map[string]any{"match.strategy": "nearest"}, wantErr: true},
		{name: "bad k", settings: map[string]any{"match.k": 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSettings(t, tt.settings)

			m, err := newMatcher()
			if (err != nil) != tt.wantErr {
				t.Fatalf("newMatcher() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && m.Extractor.(*palette.KMeans).K != viper.GetInt("match.k") {
				t.Errorf("K = %d", m.Extractor.(*palette.KMeans).K)
			}
		})
	}
}

func TestExtractDarkImages(t *testing.T) {
	dir := t.TempDir()
	black := filepath.Join(dir, "black.png")
	navy := filepath.Join(dir, "navy.png")
	writeSolid(t, black, color.RGBA{0, 0, 0, 255})
	writeSolid(t, navy, color.RGBA{10, 20, 30, 255})

	m, err := newMatcher()
	if err != nil {
		t.Fatal(err)
	}

	results, err := extractAll(m, []string{black, navy})
	if err != nil {
		t.Fatalf("extractAll failed: %v", err)
	}

	want := []string{"#000000 #000000 #000000", "#0a141e #0a141e #0a141e"}
	for i, r := range results {
		if got := r.Signature.String(); got != want[i] {
			t.Errorf("%s signature = %q, want %q", r.Image, got, want[i])
		}
		if !strings.EqualFold(r.Dominant, strings.Fields(want[i])[0]) {
			t.Errorf("%s dominant = %q", r.Image, r.Dominant)
		}
	}
}

func TestFailMatchCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", palette.ErrDecode), codeDecode},
		{palette.ErrDegenerateInput, codeDegenerate},
		{&palette.LengthMismatchError{Want: 3, Got: 1}, codeMatch},
	}

	for _, tt := range tests {
		err := failMatch(tt.err, "can't match %s", "photo.jpg")
		if failureCode != tt.want {
			t.Errorf("failMatch(%v) code = %d, want %d", tt.err, failureCode, tt.want)
		}
		if !strings.HasPrefix(err.Error(), "can't match photo.jpg: ") {
			t.Errorf("failMatch message = %q", err)
		}
	}
	failureCode = 1
}

func TestPrintMatch(t *testing.T) {
	withSettings(t, map[string]any{"catalog": writeCatalog(t)})

	m, _, snap, err := loadCatalog()
	if err != nil {
		t.Fatalf("loadCatalog failed: %v", err)
	}

	var photo bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = []uint8{190, 40, 40, 255}[i%4]
	}
	png.Encode(&photo, img)

	sig, err := m.ExtractSignature(photo.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	result, err := m.MatchSignature(sig, snap)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	printMatch(&out, termwrap.NewTermWrap(200), server.NewUploadResponse(result, snap, sig))

	got := out.String()
	for _, want := range []string{"Closest match: reference1.png", "distance  = ", "Shampoo A, Sunscreen B, Moisturizer C"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintCatalog(t *testing.T) {
	withSettings(t, map[string]any{"catalog": writeCatalog(t)})

	_, _, snap, err := loadCatalog()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	printCatalog(&out, termwrap.NewTermWrap(200), snap)

	got := out.String()
	if !strings.Contains(got, "2 references, k=3") || !strings.Contains(got, "reference2.png\n  signature = #1e1ec8 #1e1ec8 #1e1ec8") {
		t.Errorf("unexpected listing:\n%s", got)
	}
}

func TestRemoteCommands(t *testing.T) {
	withSettings(t, map[string]any{"catalog": writeCatalog(t)})

	m, loader, snap, err := loadCatalog()
	if err != nil {
		t.Fatal(err)
	}

	store := catalog.NewStore(snap)
	running = &daemon{
		store:     store,
		loader:    loader,
		server:    &server.Server{Matcher: m, Catalog: store},
		addr:      "127.0.0.1:0",
		startedAt: time.Now(),
	}
	t.Cleanup(func() { running = nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sock := filepath.Join(t.TempDir(), "cmd.sock")
	log := zerolog.Nop()
	srv := &ipc.IPCServer{}
	if err := srv.Start(ctx, &log, sock, newRemoteCmd); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	out, err := ipc.Send(sock, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "references = 2") || !strings.Contains(out, "generation = 1") {
		t.Errorf("status output:\n%s", out)
	}

	out, err = ipc.Send(sock, "reload")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !strings.Contains(out, "2 references (generation 2)") || store.Generation() != 2 {
		t.Errorf("reload output %q, generation %d", out, store.Generation())
	}

	if _, err := ipc.Send(sock, "status extra"); err == nil {
		t.Error("status accepted an argument")
	}
}

func TestCommandPath(t *testing.T) {
	var status = rootCmd
	for _, c := range rootCmd.Commands() {
		if c.Name() == "status" {
			status = c
		}
	}

	if got := strings.Join(commandPath(status), " "); got != "status" {
		t.Errorf("commandPath() = %q", got)
	}
}
