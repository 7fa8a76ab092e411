package flash

import "errors"

var (
	// ErrHardwareFault indicates the controller stayed busy past the timeout.
	ErrHardwareFault = errors.New("flash controller stuck busy")
	// ErrUnaligned indicates program data is not a whole number of words.
	ErrUnaligned = errors.New("data length not a multiple of 4")
	// ErrInvalidSector indicates a sector index outside the sector map.
	ErrInvalidSector = errors.New("invalid sector")
)
