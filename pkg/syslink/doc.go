// Package syslink implements the serial link between the flight controller
// and its radio co-processor.
//
// Every frame on the wire is
//
//	0xBC 0xCF type length payload[length] ck_lo ck_hi
//
// where the checksum is a pair of 8-bit running sums seeded with the packet
// type. The receiver consumes one byte at a time and resynchronizes on the
// sync bytes after any malformed frame, so a noisy channel only costs the
// frames it corrupted.
package syslink
