package image_matcher

import (
	"errors"
	"fmt"

	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/palette"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MatchResult is the outcome of scanning a catalog. Found is false (and
// Distance meaningless) when the catalog was empty.
type MatchResult struct {
	Reference string  `json:"reference,omitempty"`
	Distance  float64 `json:"distance"`
	Found     bool    `json:"found"`
}

// Matcher turns uploads into signatures and finds their closest reference.
// It holds no mutable state and may be shared by concurrent requests.
type Matcher struct {
	Extractor palette.Extractor
	Metric    palette.Metric
	Log       *zerolog.Logger
}

var _ catalog.SignatureSource = (*Matcher)(nil) // ensures we conform to the SignatureSource interface

// New creates a Matcher using the global logger.
func New(extractor palette.Extractor, metric palette.Metric) *Matcher {
	return &Matcher{Extractor: extractor, Metric: metric, Log: &log.Logger}
}

// ExtractSignature decodes, normalizes and clusters image bytes.
func (m *Matcher) ExtractSignature(data []byte) (palette.Signature, error) {
	img, err := palette.Decode(data)
	if err != nil {
		return palette.Signature{}, err
	}

	sig, err := m.Extractor.Extract(img)
	if err != nil {
		return palette.Signature{}, fmt.Errorf("unable to extract signature: %w", err)
	}

	return sig, nil
}

// Match extracts the signature of data and scans snap for the closest entry.
func (m *Matcher) Match(data []byte, snap *catalog.Snapshot) (MatchResult, error) {
	sig, err := m.ExtractSignature(data)
	if err != nil {
		return MatchResult{}, err
	}

	return m.MatchSignature(sig, snap)
}

// MatchSignature scans snap for the entry closest to sig.
func (m *Matcher) MatchSignature(sig palette.Signature, snap *catalog.Snapshot) (MatchResult, error) {
	result, err := FindClosest(sig, snap.Entries(), m.metric())
	if err != nil {
		return MatchResult{}, err
	}

	if m.Log != nil {
		ev := m.Log.Debug().Stringer("signature", sig).Int("entries", snap.Len())
		if result.Found {
			ev = ev.Str("reference", result.Reference).Float64("distance", result.Distance)
		}
		ev.Msg("matched")
	}

	return result, nil
}

// FindClosest returns the entry with the smallest distance to uploaded. Only
// a strictly smaller distance replaces the current best, so the first entry
// wins ties. An empty catalog is not an error: the result has Found == false.
func FindClosest(uploaded palette.Signature, entries []catalog.Entry, metric palette.Metric) (MatchResult, error) {
	if metric == nil {
		metric = palette.Distance
	}

	var best MatchResult
	for _, entry := range entries {
		d, err := metric(uploaded, entry.Signature)
		if err != nil {
			return MatchResult{}, fmt.Errorf("unable to compare with %s: %w", entry.ID, err)
		}

		if !best.Found || d < best.Distance {
			best = MatchResult{Reference: entry.ID, Distance: d, Found: true}
		}
	}

	return best, nil
}

// DominantColorOf reports the single most prominent color of an image as
// "#RRGGBB". It is informational and independent of signature extraction.
func DominantColorOf(data []byte) (string, error) {
	img, _, err := palette.DecodeImage(data)
	if err != nil {
		return "", err
	}

	// no background masks: black, white and green images are still colors
	colors, err := prominentcolor.KmeansWithAll(prominentcolor.DefaultK, palette.Opaque(img),
		prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, nil)
	if err != nil {
		return "", fmt.Errorf("unable to extract dominate color: %w", err)
	}

	var best *prominentcolor.ColorItem
	for i, color := range colors {
		if best == nil || color.Cnt > best.Cnt {
			best = &colors[i]
		}
	}

	if best == nil {
		return "", errors.New("no colors found")
	}

	return "#" + best.AsString(), nil
}

//--------------------------------------------------------------------------------
// private

func (m *Matcher) metric() palette.Metric {
	if m.Metric == nil {
		return palette.Distance
	}
	return m.Metric
}
