package palette

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned when input bytes can't be read as a raster image.
	ErrDecode = errors.New("unable to decode image")

	// ErrDegenerateInput is returned by a strict extractor when an image has
	// fewer distinct colors than requested clusters.
	ErrDegenerateInput = errors.New("image has fewer distinct colors than clusters")

	// ErrInvalidK is returned when the cluster count is less than one.
	ErrInvalidK = errors.New("cluster count must be at least 1")

	// ErrLengthMismatch matches any *LengthMismatchError via errors.Is.
	ErrLengthMismatch = errors.New("signature lengths differ")
)

// LengthMismatchError reports two signatures that can't be compared. It
// indicates signatures built with different cluster counts, a catalog
// construction bug rather than bad user input.
type LengthMismatchError struct {
	Want int
	Got  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: %d != %d", ErrLengthMismatch, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrLengthMismatch) succeed.
func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}
