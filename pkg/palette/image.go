package palette

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Every image is resized to this resolution before clustering so that cost
// is bounded and differently sized sources are comparable.
const (
	NormalizedWidth  = 100
	NormalizedHeight = 100
)

// RasterImage is a rectangular grid of packed RGB triples.
type RasterImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRasterImage validates the dimensions against the pixel buffer.
func NewRasterImage(width, height int, pix []uint8) (RasterImage, error) {
	if width <= 0 || height <= 0 {
		return RasterImage{}, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}

	if len(pix) != width*height*3 {
		return RasterImage{}, fmt.Errorf("raster buffer holds %d bytes, want %d", len(pix), width*height*3)
	}

	return RasterImage{Width: width, Height: height, Pix: pix}, nil
}

// MaxPixels bounds the source dimensions DecodeImage accepts. The byte limit
// on uploads says nothing about how large a compressed image expands.
var MaxPixels = 1 << 26

// DecodeImage decodes JPEG, PNG, GIF or WebP bytes after checking the header
// dimensions against MaxPixels.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: no data", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w (format: %q): %v", ErrDecode, format, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	if cfg.Width > MaxPixels/cfg.Height {
		return nil, format, fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
			ErrDecode, format, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w (format: %q): %v", ErrDecode, format, err)
	}

	return img, format, nil
}

// Decode reads image bytes, drops any alpha channel and normalizes the result
// to NormalizedWidth x NormalizedHeight.
func Decode(data []byte) (RasterImage, error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return RasterImage{}, err
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return RasterImage{}, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	return FromImage(img), nil
}

// FromImage makes img opaque, resizes it and packs its pixels. Transparent
// pixels keep their stored color. The box filter only averages source pixels,
// so resized values never leave the source color range.
func FromImage(img image.Image) RasterImage {
	nrgba := imaging.Resize(Opaque(img), NormalizedWidth, NormalizedHeight, imaging.Box)

	pix := make([]uint8, 0, NormalizedWidth*NormalizedHeight*3)
	for y := 0; y < NormalizedHeight; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+NormalizedWidth*4]
		for x := 0; x < len(row); x += 4 {
			pix = append(pix, row[x], row[x+1], row[x+2])
		}
	}

	return RasterImage{Width: NormalizedWidth, Height: NormalizedHeight, Pix: pix}
}

// Opaque copies img into an NRGBA with every alpha set to 255. Resizing
// weights pixels by alpha, which would otherwise pull transparent areas
// toward black.
func Opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Len is the number of pixels.
func (r RasterImage) Len() int {
	return len(r.Pix) / 3
}

// At returns the pixel at flat index i.
func (r RasterImage) At(i int) Color {
	o := i * 3
	return RGB(r.Pix[o], r.Pix[o+1], r.Pix[o+2])
}
