// Package flash drives the on-chip flash controller of an STM32F4-class
// device: sector erase and 32-bit word programming through the key-locked
// control register, plus the fixed sector geometry of the part.
//
// The controller is reached through the Controller interface so the same
// Programmer runs against real registers or against Sim.
package flash
