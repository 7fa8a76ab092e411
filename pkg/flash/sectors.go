package flash

import "sort"

const (
	// Base is the address flash is mapped at.
	Base uint32 = 0x08000000
	// Size is the flash size in bytes.
	Size uint32 = 1024 * 1024
	// PageSize is the unit the bootloader stages and programs.
	PageSize = 1024
	// Pages is the number of PageSize pages in flash.
	Pages = int(Size / PageSize)
)

// SectorAddresses are the start addresses of the erase sectors:
// four of 16 KiB, one of 64 KiB and seven of 128 KiB.
var SectorAddresses = [...]uint32{
	0x08000000,
	0x08004000,
	0x08008000,
	0x0800C000,
	0x08010000,
	0x08020000,
	0x08040000,
	0x08060000,
	0x08080000,
	0x080A0000,
	0x080C0000,
	0x080E0000,
}

// Mapping is the sector layout as (count, size in KiB) pairs.
var Mapping = [...]byte{4, 16, 1, 64, 7, 128}

// SectorIndex returns the sector starting exactly at addr.
func SectorIndex(addr uint32) (int, bool) {
	n := sort.Search(len(SectorAddresses), func(i int) bool {
		return SectorAddresses[i] >= addr
	})
	if n < len(SectorAddresses) && SectorAddresses[n] == addr {
		return n, true
	}
	return 0, false
}

// SectorOf returns the sector containing addr.
func SectorOf(addr uint32) (int, bool) {
	if addr < Base || addr-Base >= Size {
		return 0, false
	}
	n := sort.Search(len(SectorAddresses), func(i int) bool {
		return SectorAddresses[i] > addr
	})
	return n - 1, true
}

// SectorSize returns the size of a sector in bytes.
func SectorSize(sector int) uint32 {
	if sector < 0 || sector >= len(SectorAddresses) {
		return 0
	}
	if sector+1 < len(SectorAddresses) {
		return SectorAddresses[sector+1] - SectorAddresses[sector]
	}
	return Base + Size - SectorAddresses[sector]
}

// PageAddress returns the absolute address of a flash page.
func PageAddress(page int) uint32 {
	return Base + uint32(page)*PageSize
}
