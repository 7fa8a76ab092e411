// Package loader is the uploader side of the bootloader protocol: the
// role of the radio co-processor sending images to the flight controller.
package loader

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cfboot/pkg/protocol"
	"github.com/robotalks/cfboot/pkg/syslink"
)

// Defaults of Client.
const (
	DefaultTimeout      = 500 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
	DefaultRetries      = 3
)

// Result is the outcome of a command sent using Do.
type Result struct {
	Err    error
	Packet *syslink.Packet
}

// Command is a sent command waiting for its reply.
type Command struct {
	cmd      protocol.Command
	resultCh chan Result
	next     *Command
}

// Cmd gets the command code.
func (c *Command) Cmd() protocol.Command {
	return c.cmd
}

// ResultChan returns the chan to retrieve the result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// Client sends commands to the bootloader and matches replies by command
// code, as the bootloader echoes it and carries no sequence number.
type Client struct {
	Timeout      time.Duration
	WriteTimeout time.Duration
	Retries      int

	rw        io.ReadWriter
	sendLock  sync.Mutex
	cmdsHead  *Command
	cmdsTail  *Command
	cmdsLock  sync.Mutex
	parser    syslink.Parser
	unmatched int
}

// NewClient creates a Client over rw. Run must be running for replies to
// be received.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		Timeout:      DefaultTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Retries:      DefaultRetries,
		rw:           rw,
	}
}

// Send writes a packet without expecting a reply.
func (c *Client) Send(pkt *syslink.Packet) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	_, err := pkt.WriteTo(c.rw)
	return err
}

// Do sends a command and returns a Command for the reply.
func (c *Client) Do(pkt *syslink.Packet) *Command {
	cmd, _ := protocol.CommandOf(pkt)
	command := &Command{cmd: cmd, resultCh: make(chan Result, 1)}

	c.cmdsLock.Lock()
	if c.cmdsHead == nil {
		c.cmdsHead = command
	} else {
		c.cmdsTail.next = command
	}
	c.cmdsTail = command
	c.cmdsLock.Unlock()

	if err := c.Send(pkt); err != nil {
		c.remove(command)
		command.resultCh <- Result{Err: err}
	}
	return command
}

func (c *Client) remove(command *Command) {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	var prev *Command
	for curr := c.cmdsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != command {
			continue
		}
		if prev == nil {
			c.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.cmdsTail == curr {
			c.cmdsTail = prev
		}
		curr.next = nil
		return
	}
}

// HandlePacket delivers a reply to the oldest pending command with the
// same code. Commands sent before it are unanswered by then.
func (c *Client) HandlePacket(pkt *syslink.Packet) {
	cmd, ok := protocol.CommandOf(pkt)
	if !ok {
		glog.V(2).Infof("ignore packet %s", pkt)
		return
	}
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.cmd == cmd {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	if curr == nil {
		c.unmatched++
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		glog.V(2).Infof("unexpected reply %s", cmd)
		return
	}
	for head != curr {
		next := head.next
		head.next = nil
		head.resultCh <- Result{Err: ErrNoReply}
		head = next
	}
	curr.resultCh <- Result{Packet: pkt}
}

// Unmatched returns the number of replies without a pending command.
func (c *Client) Unmatched() int {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	return c.unmatched
}

// Run reads and dispatches replies until the reader fails or the context
// is canceled.
func (c *Client) Run(ctx context.Context) error {
	byteCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case data := <-byteCh:
			for _, b := range data {
				if pkt := c.parser.Parse(b); pkt != nil {
					c.HandlePacket(pkt)
				}
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readLoop(ctx context.Context, byteCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, 64)
		n, err := c.rw.Read(buf)
		if n > 0 {
			select {
			case byteCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// Request sends pkt and waits for its reply, resending after each timeout
// up to Retries times.
func (c *Client) Request(ctx context.Context, pkt *syslink.Packet) (*syslink.Packet, error) {
	return c.request(ctx, pkt, c.Timeout)
}

func (c *Client) request(ctx context.Context, pkt *syslink.Packet, timeout time.Duration) (*syslink.Packet, error) {
	cmd, _ := protocol.CommandOf(pkt)
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			glog.V(1).Infof("%s: retry %d", cmd, attempt)
		}
		command := c.Do(pkt)
		timer := time.NewTimer(timeout)
		select {
		case res := <-command.ResultChan():
			timer.Stop()
			if res.Err == ErrNoReply {
				continue
			}
			if res.Err != nil {
				return nil, errors.Wrapf(res.Err, "%s", cmd)
			}
			return res.Packet, nil
		case <-timer.C:
			c.remove(command)
		case <-ctx.Done():
			timer.Stop()
			c.remove(command)
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrapf(ErrNoReply, "%s", cmd)
}
