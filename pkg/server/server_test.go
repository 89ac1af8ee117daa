package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BitPonyLLC/huematch/internal/image_matcher"
	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/palette"
)

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func newTestServer(t *testing.T, refs map[string]color.RGBA, order ...string) *Server {
	t.Helper()
	m := image_matcher.New(palette.NewKMeans(palette.DefaultK, palette.DefaultSeed), palette.Distance)

	entries := []catalog.Entry{}
	for _, id := range order {
		sig, err := m.ExtractSignature(solidPNG(t, refs[id]))
		if err != nil {
			t.Fatalf("ExtractSignature(%s): %v", id, err)
		}
		entries = append(entries, catalog.Entry{ID: id, Signature: sig, Products: []string{id + " shampoo", id + " sunscreen"}})
	}

	snap, err := catalog.NewSnapshot("test", entries)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	return &Server{Matcher: m, Catalog: catalog.NewStore(snap), Workers: 2}
}

func upload(t *testing.T, h http.Handler, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadMatch(t *testing.T) {
	srv := newTestServer(t, map[string]color.RGBA{
		"reference1.jpg": {210, 40, 40, 255},
		"reference2.jpg": {40, 40, 210, 255},
	}, "reference1.jpg", "reference2.jpg")

	rec := upload(t, srv.Handler(), UploadField, "photo.png", solidPNG(t, color.RGBA{200, 50, 50, 255}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var got struct {
		Message   string   `json:"message"`
		Reference string   `json:"reference"`
		Distance  *float64 `json:"distance"`
		Products  []string `json:"products"`
		Signature []struct {
			Hex string `json:"hex"`
		} `json:"signature"`
		Dominant string `json:"dominant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if got.Message != "Closest match: reference1.jpg" || got.Reference != "reference1.jpg" {
		t.Errorf("message = %q, reference = %q", got.Message, got.Reference)
	}
	if got.Distance == nil || *got.Distance <= 0 {
		t.Errorf("distance = %v, want a positive value", got.Distance)
	}
	if len(got.Products) != 2 || got.Products[0] != "reference1.jpg shampoo" {
		t.Errorf("products = %v", got.Products)
	}
	if len(got.Signature) != palette.DefaultK || got.Signature[0].Hex != "#c83232" {
		t.Errorf("signature = %+v", got.Signature)
	}
	if got.Dominant == "" {
		t.Error("dominant color missing")
	}
	if srv.Served() != 1 || srv.InFlight() != 0 {
		t.Errorf("served = %d, in flight = %d", srv.Served(), srv.InFlight())
	}
}

func TestUploadNoMatch(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := upload(t, srv.Handler(), UploadField, "photo.png", solidPNG(t, color.RGBA{1, 2, 3, 255}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}

	if got["message"] != NoMatchMessage {
		t.Errorf("message = %v, want %q", got["message"], NoMatchMessage)
	}
	if products, ok := got["products"].([]any); !ok || len(products) != 0 {
		t.Errorf("products = %v, want an empty list", got["products"])
	}
	if _, ok := got["distance"]; ok {
		t.Error("distance reported without a match")
	}
}

func TestUploadErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	tests := []struct {
		name  string
		field string
		data  []byte
		want  int
	}{
		{name: "not an image", field: UploadField, data: []byte("definitely not a png"), want: http.StatusBadRequest},
		{name: "empty file", field: UploadField, data: nil, want: http.StatusBadRequest},
		{name: "wrong field", field: "photo", data: solidPNG(t, color.RGBA{1, 2, 3, 255}), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, h, tt.field, "x.png", tt.data)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /upload status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MaxUpload = 512

	rec := upload(t, srv.Handler(), UploadField, "big.png", bytes.Repeat([]byte{0xff}, 4096))
	if rec.Code == http.StatusOK {
		t.Errorf("oversized upload accepted")
	}
}

func TestUploadKeepsCopy(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.UploadDir = filepath.Join(t.TempDir(), "uploads")

	data := solidPNG(t, color.RGBA{9, 9, 9, 255})
	rec := upload(t, srv.Handler(), UploadField, "../../escape.png", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	saved, err := os.ReadFile(filepath.Join(srv.UploadDir, "escape.png"))
	if err != nil {
		t.Fatalf("upload not kept: %v", err)
	}
	if !bytes.Equal(saved, data) {
		t.Error("kept upload differs from what was sent")
	}
}

func TestCatalogAndHealth(t *testing.T) {
	srv := newTestServer(t, map[string]color.RGBA{"a": {1, 1, 1, 255}}, "a")
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /catalog status = %d", rec.Code)
	}

	var cat struct {
		Generation int64 `json:"generation"`
		K          int   `json:"k"`
		Entries    []struct {
			ID       string   `json:"id"`
			Products []string `json:"products"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if cat.Generation != 1 || cat.K != palette.DefaultK || len(cat.Entries) != 1 || cat.Entries[0].ID != "a" {
		t.Errorf("catalog = %+v", cat)
	}

	next, _ := catalog.NewSnapshot("next", nil)
	srv.Catalog.Swap(next)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Generation != 2 || health.Entries != 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.CORSOrigins = []string{"http://localhost:3000"}
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected origin allowed: %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", palette.ErrDecode), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", palette.ErrDegenerateInput), http.StatusUnprocessableEntity},
		{&palette.LengthMismatchError{Want: 3, Got: 2}, http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
