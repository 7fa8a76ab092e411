// Package protocol interprets link packets as bootloader commands.
//
// A command packet carries a two byte routing header followed by the
// command frame:
//
//	data[0]  port header
//	data[1]  target, TargetSTM32 for this bootloader
//	data[2]  command
//	data[3:] command arguments, little-endian
//
// Offsets of arguments and reply fields are relative to the command frame,
// where the command byte is offset 0.
package protocol

import (
	"fmt"

	"github.com/robotalks/cfboot/pkg/flash"
	"github.com/robotalks/cfboot/pkg/syslink"
)

// Command is a bootloader command code.
type Command byte

// Known commands. ReadBuffer and ReadFlash are recognized but not served.
const (
	CmdGetInfo     Command = 0x10
	CmdGetMapping  Command = 0x12
	CmdLoadBuffer  Command = 0x14
	CmdReadBuffer  Command = 0x15
	CmdWriteFlash  Command = 0x18
	CmdFlashStatus Command = 0x19
	CmdReadFlash   Command = 0x1c
)

var commandNames = map[Command]string{
	CmdGetInfo:     "GetInfo",
	CmdGetMapping:  "GetMapping",
	CmdLoadBuffer:  "LoadBuffer",
	CmdReadBuffer:  "ReadBuffer",
	CmdWriteFlash:  "WriteFlash",
	CmdFlashStatus: "FlashStatus",
	CmdReadFlash:   "ReadFlash",
}

// String implements fmt.Stringer.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%#02x)", byte(c))
}

const (
	// PacketType is the link packet type used for bootloader traffic.
	PacketType byte = 0x00
	// PortHeader is the header byte a peer puts in front of commands.
	PortHeader byte = 0xff
	// TargetSTM32 addresses this bootloader.
	TargetSTM32 byte = 0xff
	// HeaderLen is the length of the routing header.
	HeaderLen = 2
	// MinLength is the shortest packet carrying a command.
	MinLength = HeaderLen + 1

	// StagingPages is the number of staging buffer pages.
	StagingPages = 10
	// FlashStartPage is the first flash page available to applications.
	FlashStartPage = 0x10
	// Version is the protocol version reported by GetInfo.
	Version byte = 0x10

	// loadHeaderLen is header, command, page and address of LoadBuffer.
	loadHeaderLen = HeaderLen + 5
	// LoadChunk is the largest data chunk a single LoadBuffer can carry.
	LoadChunk = syslink.MaxPayload - loadHeaderLen
)

// Reply lengths, counting the routing header.
const (
	infoReplyLen    = HeaderLen + 22
	mappingReplyLen = HeaderLen + 1 + len(flash.Mapping)
	statusReplyLen  = HeaderLen + 3
)

// FlashError is the error code of a WriteFlash reply.
type FlashError byte

// WriteFlash error codes.
const (
	FlashOK         FlashError = 0
	FlashErrAddress FlashError = 1
	FlashErrErase   FlashError = 2
	FlashErrProgram FlashError = 3
)

// String implements fmt.Stringer.
func (e FlashError) String() string {
	switch e {
	case FlashOK:
		return "ok"
	case FlashErrAddress:
		return "address out of range"
	case FlashErrErase:
		return "erase failed"
	case FlashErrProgram:
		return "program failed"
	}
	return fmt.Sprintf("error %d", byte(e))
}
