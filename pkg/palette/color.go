// Package palette turns images into fixed-size dominant color signatures and
// measures how far apart two signatures are.
package palette

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a point in RGB space. Components use the 0-255 byte range but are
// kept as reals since centroids are means of many pixels.
type Color [3]float64

// RGB builds a Color from byte components.
func RGB(r, g, b uint8) Color {
	return Color{float64(r), float64(g), float64(b)}
}

// ParseHex reads a "#rrggbb" (or "#rgb") string.
func ParseHex(s string) (Color, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("unable to parse color %q: %w", s, err)
	}

	return Color{c.R * 255, c.G * 255, c.B * 255}, nil
}

// SquaredDistance avoids the square root for nearest-centroid searches.
func (c Color) SquaredDistance(o Color) float64 {
	dr := c[0] - o[0]
	dg := c[1] - o[1]
	db := c[2] - o[2]
	return dr*dr + dg*dg + db*db
}

// Distance is the Euclidean distance between two colors.
func (c Color) Distance(o Color) float64 {
	return math.Sqrt(c.SquaredDistance(o))
}

// Bytes rounds each component to the nearest byte value.
func (c Color) Bytes() (r, g, b uint8) {
	return toByte(c[0]), toByte(c[1]), toByte(c[2])
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return colorful.Color{R: c[0] / 255, G: c[1] / 255, B: c[2] / 255}.Clamped().Hex()
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%.1f, %.1f, %.1f)", c[0], c[1], c[2])
}

// Signature is the ordered list of dominant colors of one image. Position
// matters: index-aligned comparison only makes sense between signatures built
// the same way.
type Signature struct {
	colors []Color
}

// ErrEmptySignature is returned when building a signature without colors.
var ErrEmptySignature = errors.New("signature requires at least one color")

// NewSignature copies the provided colors into a new Signature.
func NewSignature(colors ...Color) (Signature, error) {
	if len(colors) == 0 {
		return Signature{}, ErrEmptySignature
	}

	s := Signature{colors: make([]Color, len(colors))}
	copy(s.colors, colors)
	return s, nil
}

// ParseSignature builds a signature from hex strings.
func ParseSignature(hexes []string) (Signature, error) {
	colors := make([]Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := ParseHex(h)
		if err != nil {
			return Signature{}, err
		}
		colors = append(colors, c)
	}

	return NewSignature(colors...)
}

// Len is the number of colors (K).
func (s Signature) Len() int {
	return len(s.colors)
}

// At returns the color at position i.
func (s Signature) At(i int) Color {
	return s.colors[i]
}

// Colors returns a copy of the colors.
func (s Signature) Colors() []Color {
	out := make([]Color, len(s.colors))
	copy(out, s.colors)
	return out
}

// Hex lists the colors as "#rrggbb" strings.
func (s Signature) Hex() []string {
	out := make([]string, len(s.colors))
	for i, c := range s.colors {
		out[i] = c.Hex()
	}
	return out
}

// Equal reports whether both signatures hold exactly the same colors.
func (s Signature) Equal(o Signature) bool {
	if len(s.colors) != len(o.colors) {
		return false
	}

	for i := range s.colors {
		if s.colors[i] != o.colors[i] {
			return false
		}
	}

	return true
}

func (s Signature) String() string {
	return strings.Join(s.Hex(), " ")
}

type colorJSON struct {
	Hex string     `json:"hex"`
	RGB [3]float64 `json:"rgb"`
}

// MarshalJSON writes each color with both its hex form and raw components.
func (s Signature) MarshalJSON() ([]byte, error) {
	out := make([]colorJSON, len(s.colors))
	for i, c := range s.colors {
		out[i] = colorJSON{Hex: c.Hex(), RGB: c}
	}
	return json.Marshal(out)
}

//--------------------------------------------------------------------------------
// private

func toByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
