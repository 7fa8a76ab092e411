package loader

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cfboot/pkg/protocol"
)

// GetInfo queries the bootloader layout.
func (c *Client) GetInfo(ctx context.Context) (protocol.Info, error) {
	reply, err := c.Request(ctx, protocol.GetInfoRequest())
	if err != nil {
		return protocol.Info{}, err
	}
	return protocol.ParseInfo(reply)
}

// GetMapping queries the sector mapping. The resident bootloader builds
// this reply without sending it, so against it this ends with ErrNoReply.
func (c *Client) GetMapping(ctx context.Context) ([]byte, error) {
	reply, err := c.Request(ctx, protocol.GetMappingRequest())
	if err != nil {
		return nil, err
	}
	return protocol.ParseMapping(reply)
}

// FlashStatus queries the status of the last flash operation.
func (c *Client) FlashStatus(ctx context.Context) (protocol.Status, error) {
	reply, err := c.Request(ctx, protocol.FlashStatusRequest())
	if err != nil {
		return protocol.Status{}, err
	}
	return protocol.ParseStatus(reply)
}

// LoadBuffer copies data into a staging page starting at addr, split into
// as many LoadBuffer commands as needed. The bootloader doesn't answer
// them.
func (c *Client) LoadBuffer(page, addr int, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > protocol.LoadChunk {
			n = protocol.LoadChunk
		}
		pkt, err := protocol.LoadBufferRequest(page, addr, data[:n])
		if err != nil {
			return err
		}
		if err = c.Send(pkt); err != nil {
			return errors.Wrapf(err, "load page %d addr %d", page, addr)
		}
		data, addr = data[n:], addr+n
	}
	return nil
}

// WriteFlash commits n staging pages to flash starting at flashPage.
func (c *Client) WriteFlash(ctx context.Context, bufPage, flashPage, n int) error {
	reply, err := c.request(ctx, protocol.WriteFlashRequest(bufPage, flashPage, n), c.WriteTimeout)
	if err != nil {
		return err
	}
	st, err := protocol.ParseStatus(reply)
	if err != nil {
		return err
	}
	if !st.Done || st.Error != protocol.FlashOK {
		return &FlashError{Page: flashPage, Code: st.Error}
	}
	return nil
}

// Progress reports pages written by Flash.
type Progress struct {
	Written int
	Total   int
}

// ProgressFunc receives Progress after each committed batch.
type ProgressFunc func(Progress)

// Flash writes image to flash starting at startPage. The last page is
// padded with 0xff. Pages go through the staging store in batches as
// large as the bootloader reports.
func (c *Client) Flash(ctx context.Context, image []byte, startPage int, progress ProgressFunc) error {
	info, err := c.GetInfo(ctx)
	if err != nil {
		return err
	}
	if startPage < info.FlashStart {
		return errors.Wrapf(ErrBadStartPage, "page %d before %d", startPage, info.FlashStart)
	}
	pages := (len(image) + info.PageSize - 1) / info.PageSize
	if startPage+pages > info.FlashPages {
		return errors.Wrapf(ErrImageTooLarge, "%d pages from %d exceed %d", pages, startPage, info.FlashPages)
	}
	glog.Infof("flash %d bytes (%d pages) at page %d", len(image), pages, startPage)

	page := make([]byte, info.PageSize)
	for written := 0; written < pages; {
		batch := pages - written
		if batch > info.BufferPages {
			batch = info.BufferPages
		}
		for i := 0; i < batch; i++ {
			off := (written + i) * info.PageSize
			n := copy(page, image[off:])
			for j := n; j < len(page); j++ {
				page[j] = 0xff
			}
			if err := c.LoadBuffer(i, 0, page); err != nil {
				return err
			}
		}
		// Staging pages are taken from 0 whatever buffer page is named.
		if err := c.WriteFlash(ctx, 0, startPage+written, batch); err != nil {
			return err
		}
		written += batch
		if progress != nil {
			progress(Progress{Written: written, Total: pages})
		}
	}
	return nil
}
