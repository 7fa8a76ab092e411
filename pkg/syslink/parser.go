package syslink

import "github.com/golang/glog"

// ParseState is the stage of frame parsing.
type ParseState int

// Parse states in wire order.
const (
	StateWaitSync1 ParseState = iota
	StateWaitSync2
	StateReadType
	StateReadLength
	StateReadPayload
	StateReadChecksumLow
	StateReadChecksumHigh
)

var stateNames = [...]string{
	"WaitSync1",
	"WaitSync2",
	"ReadType",
	"ReadLength",
	"ReadPayload",
	"ReadChecksumLow",
	"ReadChecksumHigh",
}

// String implements fmt.Stringer.
func (s ParseState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Parser parses bytes received. The zero value is ready to use.
type Parser struct {
	state   ParseState
	packet  *Packet
	recvLen int

	checksumErrors int
	lengthErrors   int
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	return p.state
}

// ChecksumErrors returns the number of frames dropped for a bad checksum.
func (p *Parser) ChecksumErrors() int {
	return p.checksumErrors
}

// LengthErrors returns the number of frames dropped for a declared length
// larger than MaxPayload.
func (p *Parser) LengthErrors() int {
	return p.lengthErrors
}

// Reset drops any partial frame and waits for the next sync.
func (p *Parser) Reset() {
	p.resync()
}

// Parse consumes one byte. It returns the packet when the byte completes a
// frame with a valid checksum, and nil otherwise.
func (p *Parser) Parse(b byte) *Packet {
	switch p.state {
	case StateWaitSync1:
		p.recvLen = 0
		if b == Sync1 {
			p.state = StateWaitSync2
		}
	case StateWaitSync2:
		if b != Sync2 {
			p.resync()
			return nil
		}
		p.packet = &Packet{}
		p.state = StateReadType
	case StateReadType:
		p.packet.Type = b
		p.state = StateReadLength
	case StateReadLength:
		if int(b) > MaxPayload {
			p.lengthErrors++
			glog.V(2).Infof("frame length %d exceeds %d, resync", b, MaxPayload)
			p.resync()
			return nil
		}
		p.packet.Length, p.recvLen = int(b), 0
		if b == 0 {
			p.state = StateReadChecksumLow
		} else {
			p.state = StateReadPayload
		}
	case StateReadPayload:
		p.packet.Data[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= p.packet.Length {
			p.state = StateReadChecksumLow
		}
	case StateReadChecksumLow:
		p.packet.Checksum = uint16(b)
		p.state = StateReadChecksumHigh
	case StateReadChecksumHigh:
		p.packet.Checksum |= uint16(b) << 8
		pkt := p.packet
		p.resync()
		if !pkt.Valid() {
			p.checksumErrors++
			glog.Warningf("wrong checksum: %s got=%#04x want=%#04x",
				pkt, pkt.Checksum, pkt.ComputeChecksum())
			return nil
		}
		return pkt
	}
	return nil
}

func (p *Parser) resync() {
	p.state, p.packet = StateWaitSync1, nil
}
