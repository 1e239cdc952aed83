package assembler

import (
	"sort"
	"time"
)

// interleaveDivisor sizes the per-item offset used to keep same-batch
// insertions strictly ordered inside a midpoint window.
const interleaveDivisor = 1000

/*

Allocator hands out placement positions for one feed during one fetch cycle.

Append path: positions are seeded from the wall-clock millisecond timestamp,
bumped past the feed's current maximum so a clock running behind an earlier
cycle can never reuse a position already present.

Interleave path: a window (after, before) is opened from the viewer's
last-seen neighbors; the first item lands on the midpoint and each following
item advances by a gap/1000 step, so batch members stay strictly ordered
without colliding with either boundary. When the window has no upper
neighbor, items fall back to lastPosition + 1 + index.

Repeated midpoint bisection between two float64 positions eventually runs
out of distinguishable values. Realistic feeds sit many orders of magnitude
away from that ceiling, so this is an accepted precision boundary rather
than a guarded condition.

*/
type Allocator struct {
	taken map[float64]struct{}

	appendCursor float64

	windowCursor  float64
	windowStep    float64
	windowBound   float64
	windowBounded bool
	windowOpen    bool
}

// NewAllocator builds an allocator over the positions already present in the
// feed. The slice does not need to be sorted.
func NewAllocator(existing []float64, now time.Time) *Allocator {
	taken := make(map[float64]struct{}, len(existing))
	for _, p := range existing {
		taken[p] = struct{}{}
	}

	base := float64(now.UnixNano() / int64(time.Millisecond))
	if len(existing) > 0 {
		sorted := append([]float64{}, existing...)
		sort.Float64s(sorted)
		if last := sorted[len(sorted)-1]; last+1 > base {
			base = last + 1
		}
	}

	return &Allocator{
		taken:        taken,
		appendCursor: base,
	}
}

func (a *Allocator) isTaken(pos float64) bool {
	_, ok := a.taken[pos]
	return ok
}

func (a *Allocator) register(pos float64) {
	a.taken[pos] = struct{}{}
}

// NextAppend returns the next position past everything currently in the feed.
func (a *Allocator) NextAppend() float64 {
	pos := a.appendCursor
	for a.isTaken(pos) {
		pos++
	}
	a.register(pos)
	a.appendCursor = pos + 1
	return pos
}

// OpenWindow points the interleave cursor between two neighbor positions.
// A nil before means no next neighbor exists: items then continue from
// after + 1 in whole steps.
func (a *Allocator) OpenWindow(after float64, before *float64) {
	a.windowOpen = true
	if before == nil {
		a.windowCursor = after + 1
		a.windowStep = 1
		a.windowBounded = false
		return
	}
	gap := *before - after
	a.windowCursor = after + gap/2
	a.windowStep = gap / interleaveDivisor
	a.windowBound = *before
	a.windowBounded = true
}

// CloseWindow returns the allocator to pure append behavior.
func (a *Allocator) CloseWindow() {
	a.windowOpen = false
}

// NextInWindow returns the next strictly increasing position inside the open
// window, spilling over to the append path once the window is exhausted or
// was never opened.
func (a *Allocator) NextInWindow() float64 {
	if !a.windowOpen {
		return a.NextAppend()
	}

	pos := a.windowCursor
	for a.isTaken(pos) {
		pos += a.windowStep
	}
	if a.windowBounded && pos >= a.windowBound {
		// Window overrun, the rest of the batch appends.
		a.windowOpen = false
		return a.NextAppend()
	}
	a.register(pos)
	a.windowCursor = pos + a.windowStep
	return pos
}
