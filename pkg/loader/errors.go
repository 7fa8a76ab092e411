package loader

import (
	"errors"
	"fmt"

	"github.com/robotalks/cfboot/pkg/protocol"
)

var (
	// ErrNoReply indicates the bootloader didn't answer a command.
	ErrNoReply = errors.New("no reply")
	// ErrImageTooLarge indicates the image doesn't fit the flash pages.
	ErrImageTooLarge = errors.New("image too large")
	// ErrBadStartPage indicates an image placed before the first writable page.
	ErrBadStartPage = errors.New("start page not writable")
)

// FlashError is a failed WriteFlash reported by the bootloader.
type FlashError struct {
	Page int
	Code protocol.FlashError
}

// Error implements error.
func (e *FlashError) Error() string {
	return fmt.Sprintf("write flash page %d: %s", e.Page, e.Code)
}
