package sim

import (
	"context"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/cfboot/pkg/boot"
	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/flash"
	"github.com/robotalks/cfboot/pkg/loader"
	"github.com/robotalks/cfboot/pkg/protocol"
	"github.com/robotalks/cfboot/pkg/transport"
)

var vectorImage = []byte{0x00, 0x00, 0x02, 0x20, 0x99, 0x41, 0x00, 0x08}

func TestBootEmptyFlash(t *testing.T) {
	rec := &events.Recorder{}
	d := NewDevice(time.Second)
	d.Events = rec
	d.BootPinLow = true
	assert.Equal(t, boot.ModeBootloader, d.Boot())
	_, ok := d.Application()
	assert.False(t, ok)
	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.BootMode, evs[0].Name)
	assert.Equal(t, boot.ModeBootloader, evs[0].Fields["mode"])
}

func TestFlashThenBoot(t *testing.T) {
	rec := &events.Recorder{}
	d := NewDevice(time.Second)
	d.Events = rec
	d.BootPinLow = true
	require.Equal(t, boot.ModeBootloader, d.Boot())

	host, dev := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- d.Serve(ctx, dev) }()

	client := loader.NewClient(host)
	go client.Run(ctx)
	require.NoError(t, client.Flash(ctx, vectorImage, protocol.FlashStartPage, nil))

	host.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session not ended")
	}

	assert.Contains(t, rec.Names(), events.SectorErased)
	assert.Equal(t, boot.ModeApplication, d.Boot())
	v, ok := d.Application()
	require.True(t, ok)
	assert.Equal(t, boot.Vector{Table: boot.AppBase, StackPointer: 0x20020000, Entry: 0x08004199}, v)

	d.BootPinLow = false
	assert.Equal(t, boot.ModeBootloader, d.Boot())
}

func TestServer(t *testing.T) {
	dir, err := ioutil.TempDir("", "cfboot")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "flash.bin")

	ln, err := transport.Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	s := &Server{Device: NewDevice(time.Second), Listener: ln, FlashFile: fn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for session := 0; session < 2; session++ {
		stream, err := transport.Open(ln.Addr())
		require.NoError(t, err)
		client := loader.NewClient(stream)
		go client.Run(ctx)
		info, err := client.GetInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, protocol.FlashStartPage, info.FlashStart)
		if session == 0 {
			require.NoError(t, client.Flash(ctx, vectorImage, protocol.FlashStartPage, nil))
		}
		stream.Close()
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		saved := flash.NewSim()
		require.NoError(t, saved.LoadFile(fn))
		if saved.ReadWord(boot.AppBase) == 0x20020000 {
			break
		}
		require.True(t, time.Now().Before(deadline), "flash image not saved")
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server not stopped")
	}
}
