//go:build rp2040

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"

	"stepjog/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word (no latch)
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word (no latch)
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareClock reads the 1 MHz system timer. The raw registers do not
// latch, so both cores may read it.
type hardwareClock struct{}

// Now returns the time since boot
func (hardwareClock) Now() time.Duration {
	return core.TicksToDuration(GetHardwareUptime())
}

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// Read high, low, high to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

var _ core.Clock = hardwareClock{}
