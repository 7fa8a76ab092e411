package flash

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimLocked(t *testing.T) {
	sim := NewSim()
	require.True(t, sim.Locked())
	sim.Configure(Control{PSize: X32, Sector: 0, SectorErase: true, Start: true})
	require.Empty(t, sim.Ops())
	require.Equal(t, 1, sim.Errors())

	sim.WriteKey(Key2)
	require.True(t, sim.Locked())
	require.Equal(t, 2, sim.Errors())

	sim.WriteKey(Key1)
	sim.WriteKey(Key2)
	require.False(t, sim.Locked())

	sim.Lock()
	require.True(t, sim.Locked())
}

func TestSimWriteNeedsProgramMode(t *testing.T) {
	sim := NewSim()
	sim.WriteKey(Key1)
	sim.WriteKey(Key2)
	sim.WriteWord(0x08000000, 0)
	require.Equal(t, 1, sim.Errors())
	sim.Configure(Control{PSize: X8, Program: true})
	sim.WriteWord(0x08000000, 0)
	require.Equal(t, 2, sim.Errors())
	sim.Configure(Control{PSize: X32, Program: true})
	sim.WriteWord(0x08000002, 0)
	sim.WriteWord(Base+Size, 0)
	require.Equal(t, 4, sim.Errors())
	sim.WriteWord(0x08000000, 0x12345678)
	require.Equal(t, uint32(0x12345678), sim.ReadWord(0x08000000))
	require.Equal(t, uint32(0xffffffff), sim.ReadWord(Base+Size))
}

func TestSimImage(t *testing.T) {
	sim := NewSim()
	require.NoError(t, sim.LoadImage(bytes.NewReader([]byte{1, 2, 3, 4, 5})))
	require.Equal(t, uint32(0x04030201), sim.ReadWord(Base))
	require.Equal(t, []byte{5, 0xff, 0xff}, sim.Read(Base+4, 3))
	require.Error(t, sim.LoadImage(bytes.NewReader(make([]byte, Size+1))))

	dir, err := ioutil.TempDir("", "flash")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "flash.bin")

	require.NoError(t, sim.SaveFile(fn))
	other := NewSim()
	require.NoError(t, other.LoadFile(fn))
	require.Equal(t, uint32(0x04030201), other.ReadWord(Base))

	fresh := NewSim()
	require.NoError(t, fresh.LoadFile(filepath.Join(dir, "missing.bin")))
	require.Equal(t, uint32(0xffffffff), fresh.ReadWord(Base))
}
