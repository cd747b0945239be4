package addressing

import "sync"

// Ticket identifies one recommendation request.
type Ticket struct {
	seq        uint64
	LocationID int64
}

// Tracker implements latest-request-wins for location changes: only the
// ticket from the most recent Begin is accepted.
type Tracker struct {
	mu  sync.Mutex
	seq uint64
}

func (t *Tracker) Begin(locationID int64) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return Ticket{seq: t.seq, LocationID: locationID}
}

func (t *Tracker) Current(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tk.seq == t.seq
}

// Invalidate makes every outstanding ticket stale.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.seq++
	t.mu.Unlock()
}
