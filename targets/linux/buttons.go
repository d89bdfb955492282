//go:build linux

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"stepjog/standalone/config"
	"stepjog/ui"
)

const (
	buttonDebounce = 10 * time.Millisecond

	// Presses queued beyond this are dropped; releases never are
	maxPendingPresses = 16
)

// buttonEvent is one debounced edge of a jog button
type buttonEvent struct {
	control ui.Control
	pressed bool
}

// buttons watches the jog buttons on a GPIO character device. Buttons are
// wired to ground with the internal pull-up enabled. Edges are queued and
// taken by the UI goroutine so that only it touches the pendant.
type buttons struct {
	lines []*gpiocdev.Line

	mu      sync.Mutex
	pending []buttonEvent
	presses int
	ready   chan struct{}
}

func newButtons() *buttons {
	return &buttons{ready: make(chan struct{}, 1)}
}

func openButtons(pins config.PinConfig) (*buttons, error) {
	b := newButtons()

	wiring := []struct {
		offset  int
		control ui.Control
	}{
		{pins.ButtonForward, ui.ControlJogForward},
		{pins.ButtonReverse, ui.ControlJogReverse},
		{pins.ButtonStop, ui.ControlStop},
		{pins.ButtonSpeed, ui.ControlSpeed},
	}
	for _, w := range wiring {
		if w.offset < 0 {
			continue
		}
		control := w.control
		line, err := gpiocdev.RequestLine(pins.Chip, w.offset,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(buttonDebounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				b.post(buttonEvent{control: control, pressed: evt.Type == gpiocdev.LineEventRisingEdge})
			}))
		if err != nil {
			return nil, multierr.Append(
				fmt.Errorf("failed to request %s line %d: %w", pins.Chip, w.offset, err),
				b.Close())
		}
		b.lines = append(b.lines, line)
	}
	return b, nil
}

// post never blocks the gpiocdev event goroutine. A release is always
// queued so a held jog cannot be left running; a press that does not fit
// is dropped and its release then does nothing.
func (b *buttons) post(evt buttonEvent) {
	b.mu.Lock()
	if evt.pressed {
		if b.presses >= maxPendingPresses {
			b.mu.Unlock()
			return
		}
		b.presses++
	}
	b.pending = append(b.pending, evt)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled when Take has edges to return
func (b *buttons) Ready() <-chan struct{} {
	return b.ready
}

// Take returns the queued edges, oldest first, and empties the queue
func (b *buttons) Take() []buttonEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	evts := b.pending
	b.pending = nil
	b.presses = 0
	return evts
}

// Close releases the lines
func (b *buttons) Close() error {
	var err error
	for _, l := range b.lines {
		err = multierr.Append(err, l.Close())
	}
	b.lines = nil
	return err
}

// apply routes an edge to the pendant: jog buttons are hold-to-run, the
// others act on press only
func apply(p *ui.Pendant, evt buttonEvent) {
	if evt.pressed {
		p.Press(evt.control)
		return
	}
	p.Release(evt.control)
}
