package point

import (
	"sync/atomic"
	"time"
)

const nanoSequenceModulus = 99999

// cyclicCounter hands out 1..modulus in order and wraps around. The stored
// value stays in [0, modulus) so it never overflows.
type cyclicCounter struct {
	modulus uint64
	value   atomic.Uint64
}

func (c *cyclicCounter) next() uint64 {
	for {
		old := c.value.Load()
		if c.value.CompareAndSwap(old, (old+1)%c.modulus) {
			return old + 1
		}
	}
}

func (c *cyclicCounter) reset() {
	c.value.Store(0)
}

// SlotCounter spreads records of one kind over a fixed number of partition
// slots, round robin.
type SlotCounter struct {
	c cyclicCounter
}

func NewSlotCounter(modulus int) *SlotCounter {
	if modulus < 1 {
		modulus = 1
	}
	return &SlotCounter{c: cyclicCounter{modulus: uint64(modulus)}}
}

func (s *SlotCounter) Next() int {
	return int(s.c.next())
}

func (s *SlotCounter) Reset() {
	s.c.reset()
}

// NanoSequence yields a small nanosecond offset so points sharing a
// millisecond timestamp do not overwrite each other.
type NanoSequence struct {
	c cyclicCounter
}

func NewNanoSequence() *NanoSequence {
	return &NanoSequence{c: cyclicCounter{modulus: nanoSequenceModulus}}
}

func (n *NanoSequence) Next() time.Duration {
	return time.Duration(n.c.next())
}

// Counters groups the per-kind slot counters and the shared tie-breaker.
type Counters struct {
	Trace  *SlotCounter
	Health *SlotCounter
	Metric *SlotCounter
	Nanos  *NanoSequence
}

func NewCounters(partitionSlots int) Counters {
	return Counters{
		Trace:  NewSlotCounter(partitionSlots),
		Health: NewSlotCounter(partitionSlots),
		Metric: NewSlotCounter(partitionSlots),
		Nanos:  NewNanoSequence(),
	}
}
