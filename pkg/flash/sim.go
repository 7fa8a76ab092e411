package flash

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// OpKind is the type of a recorded flash operation.
type OpKind int

// Recorded operations.
const (
	OpErase OpKind = iota
	OpWrite
)

// Op is a flash operation performed by Sim.
type Op struct {
	Kind   OpKind
	Sector int
	Addr   uint32
	Value  uint32
}

// Sim is an in-memory flash controller with the geometry of the sector map.
// Like the hardware it starts locked, needs Key1 then Key2 to unlock, can
// only clear bits when programming and reports busy for BusyPolls polls
// after every operation.
type Sim struct {
	// BusyPolls is how many Busy calls report true after each operation.
	BusyPolls int
	// Stuck makes Busy always report true.
	Stuck bool

	mem      []byte
	locked   bool
	keyStage int
	cr       Control
	busy     int
	errs     int
	ops      []Op
	lock     sync.Mutex
}

// NewSim creates a locked, fully erased Sim.
func NewSim() *Sim {
	s := &Sim{mem: make([]byte, Size), locked: true}
	for i := range s.mem {
		s.mem[i] = 0xff
	}
	return s
}

// Busy implements Controller.
func (s *Sim) Busy() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Stuck {
		return true
	}
	if s.busy > 0 {
		s.busy--
		return true
	}
	return false
}

// WriteKey implements Controller.
func (s *Sim) WriteKey(key uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.locked {
		return
	}
	switch {
	case s.keyStage == 0 && key == Key1:
		s.keyStage = 1
	case s.keyStage == 1 && key == Key2:
		s.keyStage, s.locked = 0, false
	default:
		s.keyStage = 0
		s.errs++
	}
}

// Configure implements Controller.
func (s *Sim) Configure(cr Control) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.locked {
		s.errs++
		return
	}
	s.cr = cr
	if cr.SectorErase && cr.Start {
		if cr.Sector >= len(SectorAddresses) {
			s.errs++
			return
		}
		start := SectorAddresses[cr.Sector] - Base
		end := start + SectorSize(cr.Sector)
		for i := start; i < end; i++ {
			s.mem[i] = 0xff
		}
		s.ops = append(s.ops, Op{Kind: OpErase, Sector: cr.Sector, Addr: SectorAddresses[cr.Sector]})
		s.busy = s.BusyPolls
	}
}

// WriteWord implements Controller.
func (s *Sim) WriteWord(addr, value uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.locked || !s.cr.Program || s.cr.PSize != X32 ||
		addr%4 != 0 || addr < Base || addr-Base+4 > Size {
		s.errs++
		return
	}
	off := addr - Base
	binary.LittleEndian.PutUint32(s.mem[off:], binary.LittleEndian.Uint32(s.mem[off:])&value)
	s.ops = append(s.ops, Op{Kind: OpWrite, Addr: addr, Value: value})
	s.busy = s.BusyPolls
}

// Lock relocks the control register, as a reset does.
func (s *Sim) Lock() {
	s.lock.Lock()
	s.locked, s.keyStage = true, 0
	s.lock.Unlock()
}

// Locked reports whether the control register is locked.
func (s *Sim) Locked() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locked
}

// ReadWord reads a little-endian word. Addresses outside flash read as erased.
func (s *Sim) ReadWord(addr uint32) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if addr < Base || addr-Base+4 > Size {
		return 0xffffffff
	}
	return binary.LittleEndian.Uint32(s.mem[addr-Base:])
}

// Read copies n bytes starting at addr.
func (s *Sim) Read(addr uint32, n int) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]byte, n)
	if addr >= Base && addr-Base < Size {
		copy(out, s.mem[addr-Base:])
	}
	return out
}

// Ops returns the operations recorded so far.
func (s *Sim) Ops() []Op {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Op(nil), s.ops...)
}

// ResetOps clears the operation log.
func (s *Sim) ResetOps() {
	s.lock.Lock()
	s.ops = nil
	s.lock.Unlock()
}

// Errors returns the number of rejected register accesses.
func (s *Sim) Errors() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.errs
}

// LoadImage replaces flash content from r, starting at Base.
// Content shorter than Size leaves the rest erased.
func (s *Sim) LoadImage(r io.Reader) error {
	data, err := ioutil.ReadAll(io.LimitReader(r, int64(Size)+1))
	if err != nil {
		return err
	}
	if len(data) > int(Size) {
		return errors.Errorf("image larger than %d bytes", Size)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	copy(s.mem, data)
	for i := len(data); i < len(s.mem); i++ {
		s.mem[i] = 0xff
	}
	return nil
}

// SaveImage writes the whole flash content to w.
func (s *Sim) SaveImage(w io.Writer) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := w.Write(s.mem)
	return err
}

// LoadFile loads the image from a file. A missing file leaves flash erased.
func (s *Sim) LoadFile(fn string) error {
	f, err := os.Open(fn)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrapf(s.LoadImage(f), "load %s", fn)
}

// SaveFile writes the image to a file.
func (s *Sim) SaveFile(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err = s.SaveImage(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", fn)
	}
	return f.Close()
}
