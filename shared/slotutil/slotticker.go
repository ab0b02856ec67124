// Package slotutil provides a ticker that fires once per slot boundary,
// the way the pipeline's own clock would if it weren't driven by an
// explicit Tick() call from the caller.
package slotutil

import "time"

// SlotTicker ticks once per slot after genesisTime, delivering the slot
// number that just started. A slot missed entirely (the caller wasn't
// reading when it elapsed) is never replayed; only the latest slot is
// ever buffered.
type SlotTicker struct {
	c    chan uint64
	done chan struct{}
}

// C returns the channel slot numbers are delivered on.
func (s *SlotTicker) C() <-chan uint64 {
	return s.c
}

// Done stops the ticker. Safe to call more than once.
func (s *SlotTicker) Done() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// NewSlotTicker returns a ticker already running against the wall clock.
func NewSlotTicker(genesisTime time.Time, secondsPerSlot uint64) *SlotTicker {
	ticker := &SlotTicker{
		c:    make(chan uint64),
		done: make(chan struct{}),
	}
	ticker.start(genesisTime, secondsPerSlot, time.Since, time.Until, time.After)
	return ticker
}

func (s *SlotTicker) start(
	genesisTime time.Time,
	secondsPerSlot uint64,
	since, until func(time.Time) time.Duration,
	after func(time.Duration) <-chan time.Time,
) {
	d := time.Duration(secondsPerSlot) * time.Second

	go func() {
		sinceGenesis := since(genesisTime)

		var nextTickTime time.Time
		var slot uint64
		if sinceGenesis < 0 {
			nextTickTime = genesisTime
			slot = 0
		} else {
			nextTick := sinceGenesis.Truncate(d) + d
			nextTickTime = genesisTime.Add(nextTick)
			slot = uint64(nextTick / d)
		}

		for {
			waitTime := until(nextTickTime)
			select {
			case <-after(waitTime):
				s.publish(slot)
				slot++
				nextTickTime = nextTickTime.Add(d)
			case <-s.done:
				return
			}
		}
	}()
}

func (s *SlotTicker) publish(slot uint64) {
	select {
	case s.c <- slot:
	case <-s.done:
	}
}
