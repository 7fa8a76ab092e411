package syslink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name    string
		typ     byte
		payload []byte
		expect  uint16
	}{
		{"empty", 0, nil, 0x0000},
		{"type only", 0x12, nil, 0x2412},
		{"get info", 0, []byte{0xff, 0xff, 0x10}, 0x1711},
		{"wraps", 0xff, []byte{0xff, 0xff}, 0xffff},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Checksum(tc.typ, tc.payload))
		})
	}
}

func TestChecksumOrderSensitive(t *testing.T) {
	a := Checksum(0, []byte{1, 2, 3, 4})
	b := Checksum(0, []byte{1, 3, 2, 4})
	require.NotEqual(t, a, b)
	require.Equal(t, a, Checksum(0, []byte{1, 2, 3, 4}))
}

func TestChecksumDetectsSingleByteChange(t *testing.T) {
	payload := []byte{0xff, 0xff, 0x14, 0, 0, 0x10, 0, 1, 2, 3, 4}
	sum := Checksum(0, payload)
	for i := range payload {
		for delta := 1; delta < 256; delta++ {
			mutated := append([]byte(nil), payload...)
			mutated[i] += byte(delta)
			require.NotEqualf(t, sum, Checksum(0, mutated), "byte %d delta %d", i, delta)
		}
	}
}

func TestPacket(t *testing.T) {
	testCases := []struct {
		name   string
		typ    byte
		data   []byte
		expect []byte
	}{
		{"no data", 0x12, nil, []byte{0xbc, 0xcf, 0x12, 0, 0x12, 0x24}},
		{"get info", 0, []byte{0xff, 0xff, 0x10}, []byte{0xbc, 0xcf, 0, 3, 0xff, 0xff, 0x10, 0x11, 0x17}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkt, err := NewPacket(tc.typ, tc.data...)
			require.NoError(t, err)
			require.True(t, pkt.Valid())
			require.Equal(t, tc.expect, pkt.Bytes())
			var buf bytes.Buffer
			n, err := pkt.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.Equal(t, int64(len(tc.expect)), n)
		})
	}
}

func TestPacketTooLarge(t *testing.T) {
	_, err := NewPacket(0, make([]byte, MaxPayload+1)...)
	require.Equal(t, ErrPayloadTooLarge, err)
	pkt, err := NewPacket(0, make([]byte, MaxPayload)...)
	require.NoError(t, err)
	require.Len(t, pkt.Payload(), MaxPayload)
}
