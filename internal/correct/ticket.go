package correct

import "sync"

// Tickets is the per-index correction-ticket map described in spec.md
// §4.4/§9: a single lock guards creation, lookup, and the wait for an
// in-progress correction, so two scanners racing on the same index never
// both dispatch peer queries for it.
type Tickets struct {
	mu         sync.Mutex
	inProgress map[int]*sync.Cond
}

// NewTickets constructs an empty ticket map.
func NewTickets() *Tickets {
	return &Tickets{inProgress: make(map[int]*sync.Cond)}
}

// Start attempts to create a ticket for index i. It returns true if this
// call created the ticket (the caller now owns the correction for i and
// must call Finish when done), or false if a ticket already existed
// (another goroutine is already correcting i).
func (t *Tickets) Start(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.inProgress[i]; exists {
		return false
	}
	t.inProgress[i] = sync.NewCond(&t.mu)
	return true
}

// Finish releases the ticket for i and wakes any goroutine blocked in
// WaitFor(i).
func (t *Tickets) Finish(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cond, exists := t.inProgress[i]
	if !exists {
		return
	}
	delete(t.inProgress, i)
	cond.Broadcast()
}

// IsInProgress reports whether a ticket currently exists for i.
func (t *Tickets) IsInProgress(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.inProgress[i]
	return exists
}

// WaitFor blocks until the ticket for i, if any, is released. It returns
// immediately if no ticket exists for i.
func (t *Tickets) WaitFor(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		cond, exists := t.inProgress[i]
		if !exists {
			return
		}
		cond.Wait()
	}
}
