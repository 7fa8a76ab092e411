package flash

// Unlock keys for the control register, written in this order.
const (
	Key1 uint32 = 0x45670123
	Key2 uint32 = 0xCDEF89AB
)

// ProgramSize is the parallelism of program and erase operations.
type ProgramSize uint8

// Program sizes. X32 is the one valid for a 2.7-3.6V supply.
const (
	X8 ProgramSize = iota
	X16
	X32
	X64
)

// Control register bits.
const (
	crPG         uint32 = 1 << 0
	crSER        uint32 = 1 << 1
	crSNBShift          = 3
	crSNBMask    uint32 = 0xf << crSNBShift
	crPSIZEShift        = 8
	crPSIZEMask  uint32 = 3 << crPSIZEShift
	crSTRT       uint32 = 1 << 16
)

// Control is the content of the flash control register.
type Control struct {
	PSize       ProgramSize
	Sector      int
	SectorErase bool
	Program     bool
	Start       bool
}

// Bits encodes the register value.
func (c Control) Bits() uint32 {
	v := uint32(c.PSize)<<crPSIZEShift&crPSIZEMask |
		uint32(c.Sector)<<crSNBShift&crSNBMask
	if c.Program {
		v |= crPG
	}
	if c.SectorErase {
		v |= crSER
	}
	if c.Start {
		v |= crSTRT
	}
	return v
}

// ControlFromBits decodes a register value.
func ControlFromBits(v uint32) Control {
	return Control{
		PSize:       ProgramSize((v & crPSIZEMask) >> crPSIZEShift),
		Sector:      int((v & crSNBMask) >> crSNBShift),
		SectorErase: v&crSER != 0,
		Program:     v&crPG != 0,
		Start:       v&crSTRT != 0,
	}
}

// Controller is the raw flash controller interface.
type Controller interface {
	// Busy reports an erase or program operation in progress.
	Busy() bool
	// WriteKey writes the key register.
	WriteKey(key uint32)
	// Configure writes the control register in a single access.
	Configure(Control)
	// WriteWord issues an aligned 32-bit write into flash.
	WriteWord(addr, value uint32)
}
