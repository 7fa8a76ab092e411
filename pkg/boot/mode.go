// Package boot decides between starting the application and staying in
// the bootloader, and runs the resident bootloader loop.
package boot

import "github.com/golang/glog"

const (
	// AppBase is where the application image and its vector table start.
	AppBase uint32 = 0x08004000
	// Erased is the value of a flash word which was never programmed.
	Erased uint32 = 0xFFFFFFFF
)

// Mode is the outcome of the startup decision.
type Mode int

// Modes.
const (
	ModeBootloader Mode = iota
	ModeApplication
)

func (m Mode) String() string {
	switch m {
	case ModeBootloader:
		return "bootloader"
	case ModeApplication:
		return "application"
	}
	return "unknown"
}

// Pin is the boot-select input.
type Pin interface {
	Low() bool
}

// PinFunc adapts a func to Pin.
type PinFunc func() bool

// Low implements Pin.
func (f PinFunc) Low() bool {
	return f()
}

// Memory reads flash words.
type Memory interface {
	ReadWord(addr uint32) uint32
}

// Jumper transfers control: it relocates the vector table to vtor, loads
// the main stack pointer and branches to entry. On hardware it does not
// return.
type Jumper interface {
	Jump(vtor, sp, entry uint32)
}

// Vector is the start of an application's vector table.
type Vector struct {
	Table        uint32
	StackPointer uint32
	Entry        uint32
}

// Decide starts the application only when the boot pin reads low and an
// image is present at AppBase.
func Decide(pin Pin, mem Memory) Mode {
	if pin.Low() && mem.ReadWord(AppBase) != Erased {
		return ModeApplication
	}
	return ModeBootloader
}

// ApplicationVector reads the initial stack pointer and reset handler of
// the image at AppBase.
func ApplicationVector(mem Memory) Vector {
	return Vector{
		Table:        AppBase,
		StackPointer: mem.ReadWord(AppBase),
		Entry:        mem.ReadWord(AppBase + 4),
	}
}

// JumpToApplication starts the image at AppBase.
func JumpToApplication(mem Memory, jumper Jumper) {
	v := ApplicationVector(mem)
	glog.Infof("jump to application: vtor=%#08x sp=%#08x entry=%#08x", v.Table, v.StackPointer, v.Entry)
	jumper.Jump(v.Table, v.StackPointer, v.Entry)
}
