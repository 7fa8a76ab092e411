package flash

import (
	"encoding/binary"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Programmer erases and programs flash through a Controller.
// It is the sole owner of the controller; calls must not overlap.
type Programmer struct {
	// Timeout bounds every wait for the controller. Zero waits forever,
	// which blocks the caller indefinitely on a stuck controller.
	Timeout time.Duration

	ctrl Controller
}

// NewProgrammer creates a Programmer that waits without a timeout.
func NewProgrammer(ctrl Controller) *Programmer {
	return &Programmer{ctrl: ctrl}
}

// WithTimeout sets Timeout.
func (p *Programmer) WithTimeout(timeout time.Duration) *Programmer {
	p.Timeout = timeout
	return p
}

// EraseSector erases one sector.
func (p *Programmer) EraseSector(sector int) error {
	if sector < 0 || sector >= len(SectorAddresses) {
		return errors.Wrapf(ErrInvalidSector, "erase sector %d", sector)
	}
	if err := p.waitReady(); err != nil {
		return errors.Wrapf(err, "erase sector %d", sector)
	}
	p.unlock()
	p.ctrl.Configure(Control{
		PSize:       X32,
		Sector:      sector,
		SectorErase: true,
		Start:       true,
	})
	if err := p.waitReady(); err != nil {
		return errors.Wrapf(err, "erase sector %d", sector)
	}
	glog.V(2).Infof("erased sector %d", sector)
	return nil
}

// Program writes data at addr one little-endian word at a time.
// The target must be erased; programming can only clear bits.
func (p *Programmer) Program(addr uint32, data []byte) error {
	if len(data)%4 != 0 {
		return errors.Wrapf(ErrUnaligned, "program %#08x len %d", addr, len(data))
	}
	if err := p.waitReady(); err != nil {
		return errors.Wrapf(err, "program %#08x", addr)
	}
	p.unlock()
	p.ctrl.Configure(Control{PSize: X32, Program: true})
	for i := 0; i < len(data); i += 4 {
		p.ctrl.WriteWord(addr+uint32(i), binary.LittleEndian.Uint32(data[i:]))
		if err := p.waitReady(); err != nil {
			return errors.Wrapf(err, "program %#08x", addr+uint32(i))
		}
	}
	return nil
}

func (p *Programmer) unlock() {
	p.ctrl.WriteKey(Key1)
	p.ctrl.WriteKey(Key2)
}

func (p *Programmer) waitReady() error {
	if p.Timeout <= 0 {
		for p.ctrl.Busy() {
		}
		return nil
	}
	deadline := time.Now().Add(p.Timeout)
	for p.ctrl.Busy() {
		if time.Now().After(deadline) {
			glog.Errorf("flash controller busy for more than %s", p.Timeout)
			return ErrHardwareFault
		}
	}
	return nil
}
