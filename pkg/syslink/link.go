package syslink

import (
	"io"

	"github.com/pkg/errors"
)

// ByteSource yields the next received byte if one is available.
type ByteSource interface {
	TryReadByte() (byte, bool)
}

// Link receives and sends packets over a byte source and sink.
type Link struct {
	src    ByteSource
	sink   io.ByteWriter
	parser Parser
}

// NewLink creates a Link. The sink blocks until each byte is accepted.
func NewLink(src ByteSource, sink io.ByteWriter) *Link {
	return &Link{src: src, sink: sink}
}

// Parser gets the link's parser.
func (l *Link) Parser() *Parser {
	return &l.parser
}

// Receive polls the source once. It consumes at most one byte and returns
// ErrWouldBlock unless that byte completes a valid packet.
func (l *Link) Receive() (*Packet, error) {
	b, ok := l.src.TryReadByte()
	if !ok {
		return nil, ErrWouldBlock
	}
	if pkt := l.parser.Parse(b); pkt != nil {
		return pkt, nil
	}
	return nil, ErrWouldBlock
}

// Send writes a packet using the checksum already stored in it.
func (l *Link) Send(pkt *Packet) error {
	for n, b := range pkt.Bytes() {
		if err := l.sink.WriteByte(b); err != nil {
			return errors.Wrapf(err, "send byte %d", n)
		}
	}
	return nil
}
