package boot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/flash"
	"github.com/robotalks/cfboot/pkg/protocol"
	"github.com/robotalks/cfboot/pkg/syslink"
)

type words map[uint32]uint32

func (w words) ReadWord(addr uint32) uint32 {
	if val, ok := w[addr]; ok {
		return val
	}
	return Erased
}

func pin(low bool) Pin {
	return PinFunc(func() bool { return low })
}

func TestDecide(t *testing.T) {
	image := words{AppBase: 0x20020000, AppBase + 4: 0x08004199}
	cases := []struct {
		name string
		low  bool
		mem  Memory
		mode Mode
	}{
		{"pin low with image", true, image, ModeApplication},
		{"pin high with image", false, image, ModeBootloader},
		{"pin low without image", true, words{}, ModeBootloader},
		{"pin high without image", false, words{}, ModeBootloader},
		{"only reset vector", true, words{AppBase + 4: 0x08004199}, ModeBootloader},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.mode, Decide(pin(c.low), c.mem))
		})
	}
}

func TestDecideWithSim(t *testing.T) {
	sim := flash.NewSim()
	assert.Equal(t, ModeBootloader, Decide(pin(true), sim))
	require.NoError(t, sim.LoadImage(bytes.NewReader(append(
		make([]byte, AppBase-flash.Base),
		0x00, 0x00, 0x02, 0x20, 0x99, 0x41, 0x00, 0x08))))
	assert.Equal(t, ModeApplication, Decide(pin(true), sim))
	assert.Equal(t, Vector{Table: AppBase, StackPointer: 0x20020000, Entry: 0x08004199}, ApplicationVector(sim))
}

type jumpRecorder struct {
	calls [][3]uint32
}

func (j *jumpRecorder) Jump(vtor, sp, entry uint32) {
	j.calls = append(j.calls, [3]uint32{vtor, sp, entry})
}

func TestJumpToApplication(t *testing.T) {
	j := &jumpRecorder{}
	JumpToApplication(words{AppBase: 0x20020000, AppBase + 4: 0x08004199}, j)
	require.Len(t, j.calls, 1)
	assert.Equal(t, [3]uint32{AppBase, 0x20020000, 0x08004199}, j.calls[0])
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "bootloader", ModeBootloader.String())
	assert.Equal(t, "application", ModeApplication.String())
	assert.Equal(t, "unknown", Mode(7).String())
}

func pushPacket(t *testing.T, q *syslink.Queue, pkt *syslink.Packet) {
	for _, b := range pkt.Bytes() {
		require.True(t, q.Push(b))
	}
}

func parseReplies(data []byte) []*syslink.Packet {
	var p syslink.Parser
	var pkts []*syslink.Packet
	for _, b := range data {
		if pkt := p.Parse(b); pkt != nil {
			pkts = append(pkts, pkt)
		}
	}
	return pkts
}

func drain(t *testing.T, b *Bootloader) {
	for {
		consumed, err := b.Poll()
		require.NoError(t, err)
		if !consumed {
			return
		}
	}
}

func TestPollGetInfo(t *testing.T) {
	q := syslink.NewQueue()
	var out bytes.Buffer
	b := NewBootloader(q, &out, protocol.NewDispatcher(flash.NewProgrammer(flash.NewSim())))
	pushPacket(t, q, protocol.GetInfoRequest())
	drain(t, b)

	replies := parseReplies(out.Bytes())
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Valid())
	assert.Equal(t, 24, replies[0].Length)
	info, err := protocol.ParseInfo(replies[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.Info{
		PageSize:    flash.PageSize,
		BufferPages: protocol.StagingPages,
		FlashPages:  flash.Pages,
		FlashStart:  protocol.FlashStartPage,
		Version:     protocol.Version,
	}, info)
}

func TestPollSilentCommands(t *testing.T) {
	q := syslink.NewQueue()
	var out bytes.Buffer
	d := protocol.NewDispatcher(flash.NewProgrammer(flash.NewSim()))
	b := NewBootloader(q, &out, d)

	pushPacket(t, q, protocol.GetMappingRequest())
	drain(t, b)
	load, err := protocol.LoadBufferRequest(1, 2, []byte{0xaa, 0xbb})
	require.NoError(t, err)
	pushPacket(t, q, load)
	drain(t, b)

	assert.Zero(t, out.Len())
	assert.Equal(t, []byte{0xaa, 0xbb}, d.Staging().Page(1)[2:4])
}

type chanSink chan byte

func (s chanSink) WriteByte(b byte) error {
	s <- b
	return nil
}

func TestRun(t *testing.T) {
	q := syslink.NewQueue()
	sink := make(chanSink, 256)
	led := &LogIndicator{Name: "test"}
	b := NewBootloader(q, sink, protocol.NewDispatcher(flash.NewProgrammer(flash.NewSim())))
	b.Indicator = led
	b.BlinkInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	pushPacket(t, q, protocol.FlashStatusRequest())
	var p syslink.Parser
	var reply *syslink.Packet
	timeout := time.After(5 * time.Second)
	for reply == nil {
		select {
		case c := <-sink:
			reply = p.Parse(c)
		case <-timeout:
			t.Fatal("no reply")
		}
	}
	st, err := protocol.ParseStatus(reply)
	require.NoError(t, err)
	assert.Equal(t, protocol.Status{Done: true, Error: protocol.FlashOK}, st)

	deadline := time.Now().Add(5 * time.Second)
	for led.Toggles() < 2 {
		require.True(t, time.Now().Before(deadline), "indicator not toggled")
		time.Sleep(time.Millisecond)
	}
	cancel()
	assert.Equal(t, context.Canceled, <-errCh)
}

func TestReportStats(t *testing.T) {
	q := syslink.NewQueue()
	var out bytes.Buffer
	rec := &events.Recorder{}
	b := NewBootloader(q, &out, protocol.NewDispatcher(flash.NewProgrammer(flash.NewSim())))
	b.Events = rec

	b.reportStats()
	assert.Empty(t, rec.Events())

	pkt := protocol.GetInfoRequest()
	pkt.Checksum ^= 0x0101
	pushPacket(t, q, pkt)
	drain(t, b)
	assert.Zero(t, out.Len())

	b.reportStats()
	b.reportStats()
	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.LinkStats, evs[0].Name)
	assert.Equal(t, 1, evs[0].Fields["checksum_errors"])
}

func TestLogIndicator(t *testing.T) {
	led := &LogIndicator{}
	assert.False(t, led.On())
	led.Toggle()
	assert.True(t, led.On())
	led.Toggle()
	assert.False(t, led.On())
	assert.Equal(t, 2, led.Toggles())
}
