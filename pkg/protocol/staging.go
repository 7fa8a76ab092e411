package protocol

import (
	"errors"

	"github.com/robotalks/cfboot/pkg/flash"
)

// ErrOutOfBounds indicates a staging write outside a page.
var ErrOutOfBounds = errors.New("staging write out of bounds")

// Staging holds firmware bytes received from the peer until they are
// committed to flash. Pages are not tracked for content: the peer decides
// what was loaded before asking for a flash write.
type Staging struct {
	pages [StagingPages][flash.PageSize]byte
}

// Load copies data into page at addr. Nothing is written unless the whole
// range fits in the page.
func (s *Staging) Load(page, addr int, data []byte) error {
	if page < 0 || page >= len(s.pages) ||
		addr < 0 || addr >= flash.PageSize ||
		addr+len(data) > flash.PageSize {
		return ErrOutOfBounds
	}
	copy(s.pages[page][addr:], data)
	return nil
}

// Page returns the content of a page, nil if the index is invalid.
func (s *Staging) Page(page int) []byte {
	if page < 0 || page >= len(s.pages) {
		return nil
	}
	return s.pages[page][:]
}
