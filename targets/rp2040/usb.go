//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication.
// On the RP2040 machine.Serial is USB CDC-ACM; the descriptors come from
// the TinyGo runtime.
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
