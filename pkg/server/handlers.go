package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BitPonyLLC/huematch/internal/image_matcher"
	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/palette"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// UploadField is the multipart form field carrying the photo.
const UploadField = "file"

// NoMatchMessage is reported when the catalog is empty.
const NoMatchMessage = "No match found"

// UploadResponse is the body returned for a successful upload.
type UploadResponse struct {
	Message   string            `json:"message"`
	Reference string            `json:"reference,omitempty"`
	Distance  *float64          `json:"distance,omitempty"`
	Products  []string          `json:"products"`
	Signature palette.Signature `json:"signature"`
	Dominant  string            `json:"dominant,omitempty"`
}

// CatalogResponse describes the live catalog snapshot.
type CatalogResponse struct {
	Generation int64           `json:"generation"`
	Source     string          `json:"source"`
	LoadedAt   time.Time       `json:"loaded_at"`
	K          int             `json:"k"`
	Entries    []catalog.Entry `json:"entries"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status     string `json:"status"`
	Generation int64  `json:"generation"`
	Entries    int    `json:"entries"`
	InFlight   int64  `json:"in_flight"`
	Served     int64  `json:"served"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps a matching failure to an HTTP status code.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, palette.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, palette.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewUploadResponse formats a match result the way the upload endpoint reports it.
func NewUploadResponse(result image_matcher.MatchResult, snap *catalog.Snapshot, sig palette.Signature) UploadResponse {
	if !result.Found {
		return UploadResponse{Message: NoMatchMessage, Products: []string{}, Signature: sig}
	}

	products, _ := snap.Products(result.Reference)
	if products == nil {
		products = []string{}
	}

	distance := result.Distance
	return UploadResponse{
		Message:   "Closest match: " + result.Reference,
		Reference: result.Reference,
		Distance:  &distance,
		Products:  products,
		Signature: sig,
	}
}

//--------------------------------------------------------------------------------
// private

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	log := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)
	file, header, err := r.FormFile(UploadField)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		s.writeError(w, r, status, fmt.Errorf("missing %q upload: %w", UploadField, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, StatusFor(err), fmt.Errorf("unable to read upload: %w", err))
		return
	}

	if s.UploadDir != "" {
		pathname, err := s.save(header.Filename, data)
		if err != nil {
			log.Warn().Err(err).Msg("unable to keep upload")
		} else {
			log.Debug().Str("path", pathname).Msg("kept upload")
		}
	}

	if !s.acquire(r.Context()) {
		s.writeError(w, r, http.StatusServiceUnavailable, r.Context().Err())
		return
	}
	defer s.release()

	sig, err := s.Matcher.ExtractSignature(data)
	if err != nil {
		s.writeError(w, r, StatusFor(err), err)
		return
	}

	snap := s.Catalog.Load()
	result, err := s.Matcher.MatchSignature(sig, snap)
	if err != nil {
		s.writeError(w, r, StatusFor(err), err)
		return
	}

	resp := NewUploadResponse(result, snap, sig)

	dominant, err := image_matcher.DominantColorOf(data)
	if err != nil {
		log.Debug().Err(err).Msg("no dominant color")
	} else {
		resp.Dominant = dominant
	}

	s.served.Inc()
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	snap := s.Catalog.Load()
	s.writeJSON(w, r, http.StatusOK, CatalogResponse{
		Generation: s.Catalog.Generation(),
		Source:     snap.Source(),
		LoadedAt:   snap.LoadedAt(),
		K:          snap.K(),
		Entries:    snap.Entries(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:     "ok",
		Generation: s.Catalog.Generation(),
		Entries:    s.Catalog.Load().Len(),
		InFlight:   s.InFlight(),
		Served:     s.Served(),
	})
}

// save keeps a copy of the upload under its base name only.
func (s *Server) save(filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = fmt.Sprintf("upload-%d", time.Now().UnixNano())
	}

	err := os.MkdirAll(s.UploadDir, 0o755)
	if err != nil {
		return "", err
	}

	pathname := filepath.Join(s.UploadDir, name)
	return pathname, os.WriteFile(pathname, data, 0o644)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	level := zerolog.WarnLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	hlog.FromRequest(r).WithLevel(level).Err(err).Int("status", status).Msg("request failed")

	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		hlog.FromRequest(r).Err(err).Msg("unable to write response")
	}
}
