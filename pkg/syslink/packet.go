package syslink

import (
	"fmt"
	"io"
)

const (
	// Sync1 is the first byte of every frame.
	Sync1 byte = 0xbc
	// Sync2 is the second byte of every frame.
	Sync2 byte = 0xcf
	// MaxPayload is the maximum number of data bytes in a packet.
	MaxPayload = 32
)

// Packet contains the information of a parsed or outgoing frame.
// Data is fixed size so a handler can build a reply in place that is
// longer than the request.
type Packet struct {
	Type     byte
	Data     [MaxPayload]byte
	Length   int
	Checksum uint16
}

// NewPacket creates a packet with the given type and data.
func NewPacket(typ byte, data ...byte) (*Packet, error) {
	if len(data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	p := &Packet{Type: typ, Length: len(data)}
	copy(p.Data[:], data)
	p.SetChecksum()
	return p, nil
}

// Payload returns the valid data bytes.
func (p *Packet) Payload() []byte {
	return p.Data[:p.Length]
}

// ComputeChecksum calculates the checksum of the current content.
func (p *Packet) ComputeChecksum() uint16 {
	return Checksum(p.Type, p.Payload())
}

// SetChecksum updates Checksum from the current content.
// It must be called after the content is modified and before sending.
func (p *Packet) SetChecksum() {
	p.Checksum = p.ComputeChecksum()
}

// Valid checks the stored checksum against the content.
func (p *Packet) Valid() bool {
	return p.Checksum == p.ComputeChecksum()
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, 0, p.Length+6)
	b = append(b, Sync1, Sync2, p.Type, byte(p.Length))
	b = append(b, p.Payload()...)
	return append(b, byte(p.Checksum), byte(p.Checksum>>8))
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("type=%#02x len=%d data=% x", p.Type, p.Length, p.Payload())
}

// Checksum computes the link checksum: two wrapping 8-bit accumulators
// seeded with the type, fed with the length and then every payload byte.
// The result is a | b<<8.
func Checksum(typ byte, payload []byte) uint16 {
	a := typ
	b := a
	a += byte(len(payload))
	b += a
	for _, d := range payload {
		a += d
		b += a
	}
	return uint16(a) | uint16(b)<<8
}
