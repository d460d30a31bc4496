// Package loopguard tracks recently dispatched content fingerprints so a
// handler's own clipboard write is never observed as a fresh user change.
//
// The guard is deliberately small and recency-ordered: handler output needs
// suppressing around the moment it is written, not forever. Users may
// legitimately re-copy identical content later, and capacity eviction lets
// that through again.
package loopguard

// DefaultCapacity is the guard size used when none is configured.
const DefaultCapacity = 10

// Guard is a fixed-capacity, most-recent-first list of fingerprints.
// It is not safe for concurrent use; the observe/dispatch pipeline runs on a
// single goroutine.
type Guard struct {
	capacity int
	recent   []string
}

// New returns a Guard holding at most capacity fingerprints.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Guard{
		capacity: capacity,
		recent:   make([]string, 0, capacity),
	}
}

// Seen reports whether fp is currently tracked.
func (g *Guard) Seen(fp string) bool {
	for _, have := range g.recent {
		if have == fp {
			return true
		}
	}
	return false
}

// Record inserts fp at the front. Re-recording a tracked fingerprint moves
// it to the front instead of duplicating it; when the guard is full the
// oldest entry is evicted.
func (g *Guard) Record(fp string) {
	for i, have := range g.recent {
		if have == fp {
			if i == 0 {
				return
			}
			copy(g.recent[1:i+1], g.recent[:i])
			g.recent[0] = fp
			return
		}
	}

	if len(g.recent) < g.capacity {
		g.recent = append(g.recent, "")
	}
	copy(g.recent[1:], g.recent)
	g.recent[0] = fp
}

// Len returns the number of tracked fingerprints.
func (g *Guard) Len() int { return len(g.recent) }
