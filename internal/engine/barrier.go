package engine

import (
	"fmt"
	"sync"
)

// Phase names one of the three barriers crossed every simulated month.
type Phase uint8

const (
	DoneComputing Phase = iota // every role holds its next value locally
	DoneAssigning              // every role has published its field
	DonePrinting               // the reporter has reported and advanced the clock
)

func (p Phase) String() string {
	switch p {
	case DoneComputing:
		return "DoneComputing"
	case DoneAssigning:
		return "DoneAssigning"
	case DonePrinting:
		return "DonePrinting"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Next returns the phase that follows p in the monthly cycle.
func (p Phase) Next() Phase {
	return (p + 1) % 3
}

// HazardError is the panic value raised when a participant arrives at the
// barrier out of phase. It means a role skipped or repeated a step, which
// would otherwise deadlock the others.
type HazardError struct {
	Want Phase
	Got  Phase
	Gen  uint64
}

func (e *HazardError) Error() string {
	return fmt.Sprintf("barrier: arrived at %s during generation %d, expected %s", e.Got, e.Gen, e.Want)
}

// Barrier is a reusable cyclic barrier for a fixed number of participants
// that enforces the DoneComputing → DoneAssigning → DonePrinting order.
//
// Release happens under the barrier's mutex, so every write a participant
// made before Await is visible to every participant after it returns.
type Barrier struct {
	parties int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	gen     uint64
	next    Phase
}

// NewBarrier creates a barrier for parties participants. It panics if
// parties < 1.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		panic("barrier: parties must be positive")
	}
	b := &Barrier{parties: parties, next: DoneComputing}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Generation returns how many times the barrier has released.
func (b *Barrier) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Await blocks until all participants have called Await with the same
// phase, then releases them together. Arriving with any phase other than the
// expected one panics with a *HazardError.
func (b *Barrier) Await(phase Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if phase != b.next {
		panic(&HazardError{Want: b.next, Got: phase, Gen: b.gen})
	}

	gen := b.gen
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.gen++
		b.next = phase.Next()
		b.cond.Broadcast()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}
