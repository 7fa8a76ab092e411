package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev := New(SectorErased, "sector", 3, "addr", uint32(0x0800c000), 7)
	require.Equal(t, SectorErased, ev.Name)
	require.Equal(t, map[string]interface{}{"sector": 3, "addr": uint32(0x0800c000)}, ev.Fields)
	require.False(t, ev.Time.IsZero())
}

func TestEncodeDecode(t *testing.T) {
	ev := Event{
		Name: FlashWritten,
		Time: time.Date(2026, 10, 18, 12, 30, 0, 500, time.UTC),
		Fields: map[string]interface{}{
			"pages": 4,
			"done":  true,
			"error": errors.New("erase failed"),
			"none":  nil,
		},
	}
	data, err := Encode(ev)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, ev.Name, decoded.Name)
	require.True(t, ev.Time.Equal(decoded.Time))
	require.Equal(t, map[string]interface{}{
		"pages": float64(4),
		"done":  true,
		"error": "erase failed",
		"none":  nil,
	}, decoded.Fields)
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(New(LinkStats, "bad", []int{1}))
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	p.Publish(New(BootMode))
	p.Publish(New(LinkStats))
	require.Equal(t, []string{BootMode, LinkStats}, r.Names())
	require.Len(t, r.Events(), 2)
	Discard.Publish(New(BootMode))
}

func TestCaster(t *testing.T) {
	var c Caster
	c.Publish(New(BootMode))

	r1, r2 := &Recorder{}, &Recorder{}
	c.Subscribe(r1)
	c.Subscribe(r2)
	c.Subscribe(Logger)
	c.Publish(New(SectorErased, "sector", 1))
	require.Equal(t, []string{SectorErased}, r1.Names())
	require.Equal(t, []string{SectorErased}, r2.Names())
}
