package protocol

import (
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/flash"
	"github.com/robotalks/cfboot/pkg/syslink"
)

// Flasher commits pages to flash.
type Flasher interface {
	EraseSector(sector int) error
	Program(addr uint32, data []byte) error
}

// Dispatcher executes command packets against the staging store and flash.
type Dispatcher struct {
	Events events.Publisher

	staging *Staging
	flasher Flasher
}

// NewDispatcher creates a Dispatcher with an empty staging store.
func NewDispatcher(flasher Flasher) *Dispatcher {
	return &Dispatcher{
		Events:  events.Discard,
		staging: &Staging{},
		flasher: flasher,
	}
}

// Staging gets the staging store.
func (d *Dispatcher) Staging() *Staging {
	return d.staging
}

// HandlePacket executes the command in pkt and rewrites pkt in place as
// the reply. It returns true if the reply must be sent; the caller then
// sets the checksum and sends pkt as is. Packets which are too short, not
// addressed to this target or carry an unserved command are ignored.
func (d *Dispatcher) HandlePacket(pkt *syslink.Packet) bool {
	if pkt.Length < MinLength || pkt.Data[1] != TargetSTM32 {
		return false
	}
	frame := pkt.Data[HeaderLen:]
	cmd := Command(frame[0])
	glog.V(2).Infof("command %s len %d", cmd, pkt.Length)

	switch cmd {
	case CmdGetInfo:
		d.getInfo(pkt, frame)
		return true
	case CmdGetMapping:
		copy(frame[1:], flash.Mapping[:])
		pkt.Length = mappingReplyLen
		// The reply is built but not sent.
		return false
	case CmdLoadBuffer:
		d.loadBuffer(pkt, frame)
		return false
	case CmdWriteFlash:
		d.writeFlash(pkt, frame)
		return true
	case CmdFlashStatus:
		frame[1], frame[2] = 1, byte(FlashOK)
		pkt.Length = statusReplyLen
		return true
	default:
		return false
	}
}

func (d *Dispatcher) getInfo(pkt *syslink.Packet, frame []byte) {
	binary.LittleEndian.PutUint16(frame[1:], flash.PageSize)
	binary.LittleEndian.PutUint16(frame[3:], StagingPages)
	binary.LittleEndian.PutUint16(frame[5:], uint16(flash.Pages))
	binary.LittleEndian.PutUint16(frame[7:], FlashStartPage)
	frame[21] = Version
	pkt.Length = infoReplyLen
}

func (d *Dispatcher) loadBuffer(pkt *syslink.Packet, frame []byte) {
	page := int(binary.LittleEndian.Uint16(frame[1:]))
	addr := int(binary.LittleEndian.Uint16(frame[3:]))
	count := pkt.Length - loadHeaderLen
	var err error
	if count < 0 {
		err = ErrOutOfBounds
	} else {
		err = d.staging.Load(page, addr, frame[5:5+count])
	}
	if err != nil {
		glog.Errorf("invalid page write: page %d address %d length %d", page, addr, count)
		d.Events.Publish(events.New(events.LoadRejected, "page", page, "address", addr, "length", count))
	}
}

// writeFlash programs n pages starting at flash page fp. Page i is taken
// from staging page i; the buffer page argument only appears in logs.
func (d *Dispatcher) writeFlash(pkt *syslink.Packet, frame []byte) {
	bufPage := int(binary.LittleEndian.Uint16(frame[1:]))
	fp := int(binary.LittleEndian.Uint16(frame[3:]))
	n := int(binary.LittleEndian.Uint16(frame[5:]))
	glog.Infof("flash request buffer %d, flash %d, pages %d", bufPage, fp, n)

	code := d.commit(fp, n)
	done := byte(1)
	if code != FlashOK {
		done = 0
		glog.Errorf("flash write of %d pages at %d failed: %s", n, fp, code)
	}
	d.Events.Publish(events.New(events.FlashWritten,
		"buffer", bufPage, "flash", fp, "pages", n, "error", code.String()))
	frame[1], frame[2] = done, byte(code)
	pkt.Length = statusReplyLen
}

func (d *Dispatcher) commit(fp, n int) FlashError {
	for i := 0; i < n; i++ {
		if i >= StagingPages || fp+i >= flash.Pages {
			return FlashErrAddress
		}
		addr := flash.PageAddress(fp + i)
		if sector, ok := flash.SectorIndex(addr); ok {
			glog.Infof("erasing sector %d", sector)
			if err := d.flasher.EraseSector(sector); err != nil {
				glog.Errorf("erase sector %d: %v", sector, err)
				return FlashErrErase
			}
			d.Events.Publish(events.New(events.SectorErased, "sector", sector, "address", addr))
		}
		glog.V(1).Infof("flashing %#08x from buffer page %d", addr, i)
		if err := d.flasher.Program(addr, d.staging.Page(i)); err != nil {
			glog.Errorf("program %#08x: %v", addr, err)
			return FlashErrProgram
		}
		d.Events.Publish(events.New(events.PageProgrammed, "page", fp+i, "address", addr))
	}
	return FlashOK
}
