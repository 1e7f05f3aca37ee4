package levelset

// LayeredNodeLists holds one list per layer plus the per-worker lists that
// only exist for the duration of a threaded pass: the partitions of the
// active layer and the StatusUp/StatusDown scratch lists.
type LayeredNodeLists struct {
	store *NodeStore

	// Layers is indexed 0 for active, 1+2k for inside k, 2+2k for outside k.
	Layers []NodeList

	Partitions      []NodeList
	StatusUpLists   []NodeList
	StatusDownLists []NodeList

	// owner maps a pixel to the node tracking it, NilHandle when untracked.
	owner []Handle
}

func newLayeredNodeLists(store *NodeStore, numLayers, workers, pixels int) *LayeredNodeLists {
	l := &LayeredNodeLists{
		store:           store,
		Layers:          make([]NodeList, 1+2*numLayers),
		Partitions:      make([]NodeList, workers),
		StatusUpLists:   make([]NodeList, workers),
		StatusDownLists: make([]NodeList, workers),
		owner:           make([]Handle, pixels),
	}
	for i := range l.Layers {
		l.Layers[i] = newNodeList(listID(i))
	}
	for w := 0; w < workers; w++ {
		l.Partitions[w] = newNodeList(0)
		l.StatusUpLists[w] = newNodeList(listStatusUp)
		l.StatusDownLists[w] = newNodeList(listStatusDown)
	}
	for i := range l.owner {
		l.owner[i] = NilHandle
	}
	return l
}

// track acquires a node for pixel and appends it to dst.
func (l *LayeredNodeLists) track(h Handle, pixel int, dst *NodeList) {
	l.store.Node(h).Index = pixel
	l.owner[pixel] = h
	dst.pushBack(l.store, h)
}

// untrack removes h from src and returns it to its pool.
func (l *LayeredNodeLists) untrack(h Handle, src *NodeList) {
	pixel := l.store.Node(h).Index
	src.remove(l.store, h)
	l.owner[pixel] = NilHandle
	l.store.Release(h)
}

// move transfers h from src to dst without copying the node.
func (l *LayeredNodeLists) move(h Handle, src, dst *NodeList) {
	src.remove(l.store, h)
	dst.pushBack(l.store, h)
}

// split partitions the active layer into contiguous chunks, one per
// worker, whose sizes differ by at most one. The active list is empty
// until join.
func (l *LayeredNodeLists) split() {
	active := &l.Layers[0]
	workers := len(l.Partitions)
	base, extra := active.Len()/workers, active.Len()%workers
	for w := 0; w < workers; w++ {
		count := base
		if w < extra {
			count++
		}
		l.Partitions[w] = active.cut(l.store, count)
	}
}

// join concatenates the partitions back into the active layer in worker
// order.
func (l *LayeredNodeLists) join() {
	for w := range l.Partitions {
		l.Layers[0].splice(l.store, &l.Partitions[w])
	}
}

// Len returns the total number of tracked nodes over every layer.
func (l *LayeredNodeLists) Len() int {
	n := 0
	for i := range l.Layers {
		n += l.Layers[i].Len()
	}
	return n
}

// releaseAll returns every tracked node to its pool.
func (l *LayeredNodeLists) releaseAll() {
	for i := range l.Layers {
		layer := &l.Layers[i]
		for !layer.Empty() {
			l.untrack(layer.Front(), layer)
		}
	}
}
