// Package slots assigns visualization lanes to concurrently running
// processes. Lanes are small integers handed out first-fit: the lowest
// free lane is always reused before a new one is created, so replaying
// Begin events in time order yields a minimal-width layout.
package slots

// Allocator tracks which lane each live pid occupies.
// It is not safe for concurrent use; one aggregation pass owns one Allocator.
type Allocator struct {
	slotByPID map[int]int
	busy      map[int]bool
	count     int
}

// New returns an empty Allocator.
func New() *Allocator {
	return &Allocator{
		slotByPID: make(map[int]int),
		busy:      make(map[int]bool),
	}
}

// Schedule assigns the lowest free lane to pid and returns it.
func (a *Allocator) Schedule(pid int) int {
	for i := 0; i < a.count; i++ {
		if !a.busy[i] {
			a.assign(pid, i)
			return i
		}
	}

	slot := a.count
	a.count++
	a.assign(pid, slot)
	return slot
}

func (a *Allocator) assign(pid, slot int) {
	a.busy[slot] = true
	a.slotByPID[pid] = slot
}

// Free releases the lane held by pid. Unknown pids are ignored.
func (a *Allocator) Free(pid int) {
	slot, ok := a.slotByPID[pid]
	if !ok {
		return
	}
	delete(a.busy, slot)
	delete(a.slotByPID, pid)
}

// SlotOf reports the lane currently held by pid.
func (a *Allocator) SlotOf(pid int) (int, bool) {
	slot, ok := a.slotByPID[pid]
	return slot, ok
}

// Busy reports whether slot is held by some pid.
func (a *Allocator) Busy(slot int) bool {
	return a.busy[slot]
}

// Count returns the number of lanes ever created.
func (a *Allocator) Count() int {
	return a.count
}

// InUse returns the number of lanes currently held.
func (a *Allocator) InUse() int {
	return len(a.busy)
}
