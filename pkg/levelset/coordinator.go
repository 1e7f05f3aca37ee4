package levelset

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// State is the coordinator's position in an iteration.
type State int

const (
	Idle State = iota
	Splitting
	ChangeRunning
	ChangeMerged
	UpdateRunning
	UpdateMerged
	// Constructing covers the dense classification pass of ConstructLists.
	Constructing
)

var stateNames = [...]string{"Idle", "Splitting", "ChangeRunning", "ChangeMerged", "UpdateRunning", "UpdateMerged", "Constructing"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ThreadCoordinator fans a phase out over a fixed number of workers and
// joins them before any merge step runs.
type ThreadCoordinator struct {
	workers int
	state   State
}

func newThreadCoordinator(workers int) *ThreadCoordinator {
	return &ThreadCoordinator{workers: workers}
}

// Workers returns the number of workers per phase.
func (c *ThreadCoordinator) Workers() int { return c.workers }

// State returns the current state.
func (c *ThreadCoordinator) State() State { return c.state }

// partition splits the active layer for the next parallel phase.
func (c *ThreadCoordinator) partition(lists *LayeredNodeLists) {
	c.state = Splitting
	lists.split()
}

// run calls fn once per worker concurrently and waits for all of them. A
// failing worker does not stop the others; the error of the lowest
// failing worker index is returned so the outcome never depends on which
// goroutine finished first.
func (c *ThreadCoordinator) run(running State, fn func(worker int) error) error {
	c.state = running
	errs := make([]error, c.workers)
	var g errgroup.Group
	for w := 0; w < c.workers; w++ {
		w := w
		g.Go(func() error {
			errs[w] = fn(w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for w, err := range errs {
		if err != nil {
			return fmt.Errorf("worker %d: %w", w, err)
		}
	}
	return nil
}
