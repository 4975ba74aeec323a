package internal

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// channelIDAllocator hands out channel ids in [1, max], lowest free id first.
// Safe for concurrent use.
type channelIDAllocator struct {
	mu   sync.Mutex
	max  uint16
	used *bitset.BitSet
}

func newChannelIDAllocator(max uint16) *channelIDAllocator {
	if max == 0 {
		max = maxChannelID
	}
	return &channelIDAllocator{
		max:  max,
		used: bitset.New(uint(max) + 1),
	}
}

// next allocates the lowest free id
func (a *channelIDAllocator) next() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.used.NextClear(1)
	if !ok || id > uint(a.max) {
		return 0, ErrNoFreeChannelIDs
	}
	a.used.Set(id)
	return uint16(id), nil
}

// reserve marks a specific id allocated
func (a *channelIDAllocator) reserve(id uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id == 0 || id > a.max {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrChannelIDOutOfRange, id, a.max)
	}
	if a.used.Test(uint(id)) {
		return fmt.Errorf("channel id %d already allocated", id)
	}
	a.used.Set(uint(id))
	return nil
}

// release returns id to the pool. Releasing a free id is a no-op.
func (a *channelIDAllocator) release(id uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// ids above a lowered limit are cleared too, or they would leak if the limit widens again
	if uint(id) < a.used.Len() {
		a.used.Clear(uint(id))
	}
}

func (a *channelIDAllocator) allocated(id uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used.Test(uint(id))
}

// limit narrows the range to the negotiated channel_max. Ids already handed
// out above the new limit stay allocated until released.
func (a *channelIDAllocator) limit(max uint16) {
	if max == 0 {
		max = maxChannelID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.max = max
}
