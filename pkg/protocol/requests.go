package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/robotalks/cfboot/pkg/syslink"
)

// ErrBadReply indicates a reply packet that cannot be decoded.
var ErrBadReply = errors.New("bad reply")

// Request builds a command packet with checksum.
func Request(cmd Command, args ...byte) *syslink.Packet {
	pkt := &syslink.Packet{Type: PacketType, Length: MinLength + len(args)}
	pkt.Data[0], pkt.Data[1], pkt.Data[2] = PortHeader, TargetSTM32, byte(cmd)
	copy(pkt.Data[MinLength:], args)
	pkt.SetChecksum()
	return pkt
}

// GetInfoRequest builds a GetInfo command.
func GetInfoRequest() *syslink.Packet {
	return Request(CmdGetInfo)
}

// GetMappingRequest builds a GetMapping command.
func GetMappingRequest() *syslink.Packet {
	return Request(CmdGetMapping)
}

// FlashStatusRequest builds a FlashStatus command.
func FlashStatusRequest() *syslink.Packet {
	return Request(CmdFlashStatus)
}

// LoadBufferRequest builds a LoadBuffer command carrying up to LoadChunk bytes.
func LoadBufferRequest(page, addr int, data []byte) (*syslink.Packet, error) {
	if len(data) > LoadChunk {
		return nil, fmt.Errorf("load chunk of %d bytes exceeds %d", len(data), LoadChunk)
	}
	args := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(args, uint16(page))
	binary.LittleEndian.PutUint16(args[2:], uint16(addr))
	copy(args[4:], data)
	return Request(CmdLoadBuffer, args...), nil
}

// WriteFlashRequest builds a WriteFlash command.
func WriteFlashRequest(bufPage, flashPage, n int) *syslink.Packet {
	args := make([]byte, 6)
	binary.LittleEndian.PutUint16(args, uint16(bufPage))
	binary.LittleEndian.PutUint16(args[2:], uint16(flashPage))
	binary.LittleEndian.PutUint16(args[4:], uint16(n))
	return Request(CmdWriteFlash, args...)
}

// CommandOf returns the command a packet carries, false if it is not
// a command packet for this target.
func CommandOf(pkt *syslink.Packet) (Command, bool) {
	if pkt.Length < MinLength || pkt.Data[1] != TargetSTM32 {
		return 0, false
	}
	return Command(pkt.Data[HeaderLen]), true
}

// Info is the bootloader description returned by GetInfo.
type Info struct {
	PageSize    int
	BufferPages int
	FlashPages  int
	FlashStart  int
	Version     byte
}

// ParseInfo decodes a GetInfo reply.
func ParseInfo(pkt *syslink.Packet) (info Info, err error) {
	if cmd, ok := CommandOf(pkt); !ok || cmd != CmdGetInfo || pkt.Length < infoReplyLen {
		return info, ErrBadReply
	}
	frame := pkt.Data[HeaderLen:]
	info.PageSize = int(binary.LittleEndian.Uint16(frame[1:]))
	info.BufferPages = int(binary.LittleEndian.Uint16(frame[3:]))
	info.FlashPages = int(binary.LittleEndian.Uint16(frame[5:]))
	info.FlashStart = int(binary.LittleEndian.Uint16(frame[7:]))
	info.Version = frame[21]
	return
}

// Status is the result of WriteFlash and FlashStatus.
type Status struct {
	Done  bool
	Error FlashError
}

// ParseStatus decodes a WriteFlash or FlashStatus reply.
func ParseStatus(pkt *syslink.Packet) (st Status, err error) {
	cmd, ok := CommandOf(pkt)
	if !ok || (cmd != CmdWriteFlash && cmd != CmdFlashStatus) || pkt.Length < statusReplyLen {
		return st, ErrBadReply
	}
	st.Done = pkt.Data[HeaderLen+1] != 0
	st.Error = FlashError(pkt.Data[HeaderLen+2])
	return
}

// ParseMapping decodes a GetMapping reply into (count, size KiB) pairs.
func ParseMapping(pkt *syslink.Packet) ([]byte, error) {
	if cmd, ok := CommandOf(pkt); !ok || cmd != CmdGetMapping || pkt.Length < HeaderLen+1 {
		return nil, ErrBadReply
	}
	return append([]byte(nil), pkt.Data[MinLength:pkt.Length]...), nil
}
