//go:build linux

package main

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"stepjog/core"
)

// periphGPIODriver implements core.GPIODriver with periph.io. Pins are
// looked up by their BCM name (GPIO<n>).
type periphGPIODriver struct {
	pins map[core.GPIOPin]gpio.PinIO
}

func newPeriphGPIODriver() (*periphGPIODriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	return &periphGPIODriver{pins: make(map[core.GPIOPin]gpio.PinIO)}, nil
}

// ConfigureOutput configures a pin as a digital output, initially low
func (d *periphGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, ok := d.pins[pin]; ok {
		return nil
	}
	name := "GPIO" + strconv.Itoa(int(pin))
	p := gpioreg.ByName(name)
	if p == nil {
		return fmt.Errorf("gpio: no pin named %s", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio: %s: %w", name, err)
	}
	d.pins[pin] = p
	return nil
}

// SetPin sets the pin level
func (d *periphGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.pins[pin]
	if !ok {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.pins[pin]
	}
	return p.Out(gpio.Level(value))
}

// Close stops driving every configured pin
func (d *periphGPIODriver) Close() error {
	var err error
	for _, p := range d.pins {
		err = multierr.Append(err, p.Halt())
	}
	return err
}

var _ core.GPIODriver = (*periphGPIODriver)(nil)
