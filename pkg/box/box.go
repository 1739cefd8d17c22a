// Package box implements the interactive chest a player tries to open.
//
// A box is closed until its pattern signals it. The "active" signal marks a
// pattern in progress, "satisfied" makes the box ready, and a ready box that
// is pressed opens for good. A ready box that is left alone for a tick times
// out and counts one deactivation.
package box

import (
	"fmt"
	"io"
	"log"
)

// State is the phase a box is in.
type State int

const (
	Inactive State = iota
	ActiveNotReady
	ActiveReady
	Open
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case ActiveNotReady:
		return "active"
	case ActiveReady:
		return "ready"
	case Open:
		return "open"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Box holds the state of one chest. It is not goroutine-safe.
type Box struct {
	id            int
	open          bool
	ready         bool
	active        bool
	deactivations int
	logger        *log.Logger
}

type Option func(*Box)

func WithLogger(l *log.Logger) Option {
	return func(b *Box) {
		b.logger = l
	}
}

func New(id int, opts ...Option) *Box {
	b := &Box{id: id, logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Box) ID() int { return b.id }

func (b *Box) IsOpen() bool   { return b.open }
func (b *Box) IsReady() bool  { return b.ready }
func (b *Box) IsActive() bool { return b.active }

// Deactivations counts how many times a ready box timed out since Reset.
func (b *Box) Deactivations() int { return b.deactivations }

// State collapses the flags into a single phase.
func (b *Box) State() State {
	switch {
	case b.open:
		return Open
	case b.ready:
		return ActiveReady
	case b.active:
		return ActiveNotReady
	}
	return Inactive
}

// Reset closes the box and clears its counters.
func (b *Box) Reset() {
	b.open, b.ready, b.active = false, false, false
	b.deactivations = 0
}

// Activate panics if the box is already active or open.
func (b *Box) Activate() {
	if b.active {
		panic(fmt.Sprintf("box %d: activate while already active", b.id))
	}
	if b.open {
		panic(fmt.Sprintf("box %d: activate while open", b.id))
	}
	b.active = true
	b.logger.Printf("box %d: activated", b.id)
}

func (b *Box) deactivate() {
	if !b.active {
		panic(fmt.Sprintf("box %d: deactivate while inactive", b.id))
	}
	b.active, b.ready = false, false
	b.deactivations++
	b.logger.Printf("box %d: deactivated (%d)", b.id, b.deactivations)
}

func (b *Box) makeReady() {
	if !b.active {
		panic(fmt.Sprintf("box %d: ready while inactive", b.id))
	}
	b.ready = true
	b.logger.Printf("box %d: ready", b.id)
}

func (b *Box) openBox() {
	if !b.ready {
		panic(fmt.Sprintf("box %d: open while not ready", b.id))
	}
	b.open, b.ready, b.active = true, false, false
	b.logger.Printf("box %d: opened", b.id)
}

// PressButton opens a ready box and reports whether it did. Pressing a box
// in any other phase changes nothing.
func (b *Box) PressButton() bool {
	if b.open || !b.ready {
		return false
	}
	b.openBox()
	return true
}

// Update advances the box by one tick given the signals its pattern raised.
// A box that was ready before the tick times out first, so a box whose
// pattern is satisfied again in the same tick is deactivated, reactivated
// and made ready within one call.
func (b *Box) Update(active, satisfied bool) {
	if b.open {
		return
	}
	if b.ready {
		b.deactivate()
	}
	if !b.active && (active || satisfied) {
		b.Activate()
	}
	if satisfied {
		b.makeReady()
	}
}
