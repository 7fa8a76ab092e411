package syslink

import "errors"

var (
	// ErrWouldBlock indicates no complete packet is available yet.
	ErrWouldBlock = errors.New("would block")
	// ErrPayloadTooLarge indicates the data does not fit in a packet.
	ErrPayloadTooLarge = errors.New("payload too large")
)
