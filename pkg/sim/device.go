// Package sim simulates a flight controller running the bootloader: its
// flash, boot-select pin and status LED, served over a link.
package sim

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cfboot/pkg/boot"
	"github.com/robotalks/cfboot/pkg/events"
	fx "github.com/robotalks/cfboot/pkg/framework"
	"github.com/robotalks/cfboot/pkg/flash"
	"github.com/robotalks/cfboot/pkg/protocol"
	"github.com/robotalks/cfboot/pkg/syslink"
	"github.com/robotalks/cfboot/pkg/transport"
)

// Device is a simulated flight controller.
type Device struct {
	Flash         *flash.Sim
	BootPinLow    bool
	FlowControl   bool
	BlinkInterval time.Duration
	Events        events.Publisher
	Indicator     boot.Indicator

	dispatcher *protocol.Dispatcher
	lock       sync.Mutex
	app        *boot.Vector
}

// NewDevice creates a Device with erased flash. Flash waits are bounded
// by timeout unless it is zero.
func NewDevice(timeout time.Duration) *Device {
	d := &Device{
		Flash:         flash.NewSim(),
		FlowControl:   true,
		BlinkInterval: boot.DefaultBlinkInterval,
		Events:        events.Discard,
		Indicator:     &boot.LogIndicator{Name: "status"},
	}
	d.dispatcher = protocol.NewDispatcher(flash.NewProgrammer(d.Flash).WithTimeout(timeout))
	return d
}

// Dispatcher gets the command dispatcher, which keeps the staging store
// across sessions.
func (d *Device) Dispatcher() *protocol.Dispatcher {
	return d.dispatcher
}

// Low implements boot.Pin.
func (d *Device) Low() bool {
	return d.BootPinLow
}

// Jump implements boot.Jumper. There is no application to run, so the
// vector is only recorded.
func (d *Device) Jump(vtor, sp, entry uint32) {
	d.lock.Lock()
	d.app = &boot.Vector{Table: vtor, StackPointer: sp, Entry: entry}
	d.lock.Unlock()
}

// Application returns the vector jumped to, false if the device stayed
// in the bootloader.
func (d *Device) Application() (boot.Vector, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.app == nil {
		return boot.Vector{}, false
	}
	return *d.app, true
}

// Boot makes the startup decision and jumps if the application is
// selected.
func (d *Device) Boot() boot.Mode {
	d.lock.Lock()
	d.app = nil
	d.lock.Unlock()
	d.dispatcher.Events = d.Events
	mode := boot.Decide(d, d.Flash)
	glog.Infof("boot mode: %s", mode)
	ev := events.New(events.BootMode, "mode", mode, "pin_low", d.BootPinLow)
	if mode == boot.ModeApplication {
		boot.JumpToApplication(d.Flash, d)
		v, _ := d.Application()
		ev.Fields["stack_pointer"] = v.StackPointer
		ev.Fields["entry"] = v.Entry
	}
	d.Events.Publish(ev)
	return mode
}

// Serve runs the bootloader over stream until the stream fails or the
// context is canceled.
func (d *Device) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	q := syslink.NewQueue()
	bl := boot.NewBootloader(q, &transport.ByteWriter{W: stream}, d.dispatcher)
	bl.Indicator = d.Indicator
	bl.BlinkInterval = d.BlinkInterval
	bl.Events = d.Events
	pump := &transport.Pump{Reader: stream, Queue: q, FlowControl: d.FlowControl}
	return fx.NewRunnerWith(ctx).Go(
		fx.NamedRun("pump", fx.RunFunc(func(ctx context.Context) error {
			if err := pump.Run(ctx); err != io.EOF {
				return err
			}
			return nil
		})),
		fx.NamedRun("bootloader", bl),
	).Wait()
}
