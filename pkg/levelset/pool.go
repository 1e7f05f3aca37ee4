package levelset

import "sparsefield/internal/monitoring"

// FreeListPool is one worker's node arena and the free list threaded
// through it. A pool is only ever touched by its own worker while a phase
// runs in parallel.
type FreeListPool struct {
	id       int32
	arena    []Node
	free     Handle
	numFree  int
	prealloc int
	grown    bool
}

func newFreeListPool(id, prealloc int) *FreeListPool {
	p := &FreeListPool{
		id:       int32(id),
		arena:    make([]Node, prealloc),
		free:     NilHandle,
		prealloc: prealloc,
	}
	for slot := prealloc - 1; slot >= 0; slot-- {
		p.push(int32(slot))
	}
	return p
}

func (p *FreeListPool) push(slot int32) {
	n := &p.arena[slot]
	*n = Node{Index: -1, prev: NilHandle, next: p.free, list: listNone}
	p.free = Handle{Pool: p.id, Slot: slot}
	p.numFree++
}

func (p *FreeListPool) pop() Handle {
	if p.free.IsNil() {
		p.arena = append(p.arena, Node{})
		if !p.grown && len(p.arena) > p.prealloc {
			p.grown = true
			if p.prealloc > 0 {
				monitoring.Logf("levelset: pool %d grew past %d preallocated nodes", p.id, p.prealloc)
			}
		}
		h := Handle{Pool: p.id, Slot: int32(len(p.arena) - 1)}
		p.arena[h.Slot] = Node{Index: -1, prev: NilHandle, next: NilHandle, list: listNone}
		return h
	}
	h := p.free
	n := &p.arena[h.Slot]
	p.free = n.next
	n.next = NilHandle
	p.numFree--
	return h
}

// PoolStats summarises node usage across every pool.
type PoolStats struct {
	Pools    int
	Capacity int
	Free     int
	Live     int
	Grown    int
}

// NodeStore owns the per-worker pools and resolves handles to nodes.
type NodeStore struct {
	pools  []*FreeListPool
	cursor int
}

func newNodeStore(workers, prealloc int) *NodeStore {
	s := &NodeStore{pools: make([]*FreeListPool, workers)}
	for w := range s.pools {
		s.pools[w] = newFreeListPool(w, prealloc)
	}
	return s
}

// Node resolves h. The pointer is invalidated when the owning pool grows,
// so callers must not hold it across an Acquire on that pool.
func (s *NodeStore) Node(h Handle) *Node {
	return &s.pools[h.Pool].arena[h.Slot]
}

// Next returns the handle following h in its list.
func (s *NodeStore) Next(h Handle) Handle { return s.pools[h.Pool].arena[h.Slot].next }

// Acquire takes a node from the worker's pool, growing its arena when the
// pool is empty. It never blocks and never fails.
func (s *NodeStore) Acquire(worker int) Handle {
	return s.pools[worker].pop()
}

// acquireNext serves sequential phases, rotating over the pools so that
// no single arena absorbs every new band pixel.
func (s *NodeStore) acquireNext() Handle {
	h := s.Acquire(s.cursor)
	s.cursor = (s.cursor + 1) % len(s.pools)
	return h
}

// Release returns h to the pool of the worker whose arena holds it.
func (s *NodeStore) Release(h Handle) {
	s.pools[h.Pool].push(h.Slot)
}

// Stats reports capacity and occupancy over all pools.
func (s *NodeStore) Stats() PoolStats {
	st := PoolStats{Pools: len(s.pools)}
	for _, p := range s.pools {
		st.Capacity += len(p.arena)
		st.Free += p.numFree
		if p.grown {
			st.Grown++
		}
	}
	st.Live = st.Capacity - st.Free
	return st
}
