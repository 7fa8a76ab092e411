package boot

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/protocol"
	"github.com/robotalks/cfboot/pkg/syslink"
)

// DefaultBlinkInterval toggles the indicator at 2Hz.
const DefaultBlinkInterval = 250 * time.Millisecond

// Bootloader is the resident loop serving commands from the link.
type Bootloader struct {
	Indicator     Indicator
	BlinkInterval time.Duration
	Events        events.Publisher

	queue      *syslink.Queue
	link       *syslink.Link
	dispatcher *protocol.Dispatcher
	stats      linkStats
}

type linkStats struct {
	overflows      uint64
	checksumErrors int
	lengthErrors   int
}

// NewBootloader creates a Bootloader consuming bytes from q and replying
// through sink.
func NewBootloader(q *syslink.Queue, sink io.ByteWriter, d *protocol.Dispatcher) *Bootloader {
	return &Bootloader{
		Indicator:     &LogIndicator{Name: "status"},
		BlinkInterval: DefaultBlinkInterval,
		Events:        events.Discard,
		queue:         q,
		link:          syslink.NewLink(q, sink),
		dispatcher:    d,
	}
}

// Link gets the link the loop receives from.
func (b *Bootloader) Link() *syslink.Link {
	return b.link
}

// Poll receives at most one byte and serves the command it completes.
// It returns true if a byte was consumed.
func (b *Bootloader) Poll() (bool, error) {
	if b.queue.Len() == 0 {
		return false, nil
	}
	pkt, err := b.link.Receive()
	if err == syslink.ErrWouldBlock {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	if !b.dispatcher.HandlePacket(pkt) {
		return true, nil
	}
	pkt.SetChecksum()
	if err := b.link.Send(pkt); err != nil {
		return true, errors.Wrap(err, "send reply")
	}
	return true, nil
}

// Run implements Runnable. It only returns when the context is canceled
// or a reply can't be sent.
func (b *Bootloader) Run(ctx context.Context) error {
	interval := b.BlinkInterval
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	glog.Infof("bootloader running")
	for {
		for {
			consumed, err := b.Poll()
			if err != nil {
				return err
			}
			if !consumed {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.queue.Ready():
		case <-ticker.C:
			b.Indicator.Toggle()
			b.reportStats()
		}
	}
}

func (b *Bootloader) reportStats() {
	parser := b.link.Parser()
	stats := linkStats{
		overflows:      b.queue.Overflows(),
		checksumErrors: parser.ChecksumErrors(),
		lengthErrors:   parser.LengthErrors(),
	}
	if stats == b.stats {
		return
	}
	b.stats = stats
	glog.Warningf("link errors: overflows=%d checksum=%d length=%d",
		stats.overflows, stats.checksumErrors, stats.lengthErrors)
	b.Events.Publish(events.New(events.LinkStats,
		"overflows", stats.overflows,
		"checksum_errors", stats.checksumErrors,
		"length_errors", stats.lengthErrors))
}
