package transport

import (
	"context"
	"io"

	"github.com/golang/glog"

	fx "github.com/robotalks/cfboot/pkg/framework"
	"github.com/robotalks/cfboot/pkg/syslink"
)

// Pump copies received bytes into the receive queue. It is the queue's
// only producer. Bytes that find the queue full are dropped, as the UART
// interrupt does on hardware, unless FlowControl holds the stream until
// the consumer frees space.
type Pump struct {
	Reader      io.ReadCloser
	Queue       *syslink.Queue
	FlowControl bool
}

// Run implements Runnable. It returns when the reader fails or the
// context is canceled, closing the reader in both cases.
func (p *Pump) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p.Reader, func() error {
		buf := make([]byte, syslink.QueueCapacity)
		for {
			n, err := p.Reader.Read(buf)
			for _, b := range buf[:n] {
				if !p.push(ctx, b) {
					glog.V(2).Infof("receive queue full, byte %#02x dropped", b)
				}
			}
			if err != nil {
				return err
			}
		}
	})
}

func (p *Pump) push(ctx context.Context, b byte) bool {
	// Only the consumer shrinks the queue, so space seen here stays free.
	for p.FlowControl && p.Queue.Len() >= syslink.QueueCapacity {
		select {
		case <-p.Queue.Space():
		case <-ctx.Done():
			return false
		}
	}
	return p.Queue.Push(b)
}

// ByteWriter adapts an io.Writer to the blocking byte sink of the link.
type ByteWriter struct {
	W io.Writer

	buf [1]byte
}

// WriteByte implements io.ByteWriter.
func (w *ByteWriter) WriteByte(b byte) error {
	w.buf[0] = b
	_, err := w.W.Write(w.buf[:])
	return err
}
