package levelset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparsefield/internal/monitoring"
)

func TestNodeStoreAcquireRelease(t *testing.T) {
	orig := monitoring.Logf
	defer func() { monitoring.Logf = orig }()
	var logged int
	monitoring.SetLogger(func(string, ...interface{}) { logged++ })

	s := newNodeStore(2, 3)
	assert.Equal(t, PoolStats{Pools: 2, Capacity: 6, Free: 6}, s.Stats())

	var hs []Handle
	for i := 0; i < 4; i++ {
		h := s.Acquire(0)
		require.Equal(t, int32(0), h.Pool)
		hs = append(hs, h)
	}
	st := s.Stats()
	assert.Equal(t, 7, st.Capacity)
	assert.Equal(t, 4, st.Live)
	assert.Equal(t, 1, st.Grown)
	assert.Equal(t, 1, logged, "growth is reported once per pool")

	s.Acquire(0)
	assert.Equal(t, 1, logged)

	for _, h := range hs {
		s.Release(h)
	}
	st = s.Stats()
	assert.Equal(t, 8, st.Capacity)
	assert.Equal(t, 1, st.Live)

	// freed slots are reused before the arena grows again
	again := s.Acquire(0)
	assert.Equal(t, hs[len(hs)-1], again)
	assert.Equal(t, 8, s.Stats().Capacity)
}

func TestNodeStoreReleaseToHomePool(t *testing.T) {
	s := newNodeStore(3, 1)
	h := s.Acquire(2)
	s.Release(h)
	assert.Equal(t, 1, s.pools[2].numFree)
	assert.Equal(t, 1, s.pools[0].numFree)

	var pools []int32
	for i := 0; i < 3; i++ {
		pools = append(pools, s.acquireNext().Pool)
	}
	assert.Equal(t, []int32{0, 1, 2}, pools)
}

func newTestList(t *testing.T, s *NodeStore, n int) (NodeList, []Handle) {
	t.Helper()
	l := newNodeList(0)
	var hs []Handle
	for i := 0; i < n; i++ {
		h := s.Acquire(i % len(s.pools))
		s.Node(h).Index = i
		l.pushBack(s, h)
		hs = append(hs, h)
	}
	return l, hs
}

func TestNodeListCutSplice(t *testing.T) {
	s := newNodeStore(2, 0)
	l, hs := newTestList(t, s, 5)
	require.Equal(t, 5, l.Len())

	head := l.cut(s, 2)
	assert.Equal(t, 2, head.Len())
	assert.Equal(t, 3, l.Len())
	assert.Empty(t, cmp.Diff(hs[:2], head.Handles(s)))
	assert.Empty(t, cmp.Diff(hs[2:], l.Handles(s)))

	head.splice(s, &l)
	assert.True(t, l.Empty())
	assert.Empty(t, cmp.Diff(hs, head.Handles(s)))

	all := head.cut(s, 10)
	assert.Equal(t, 5, all.Len())
	assert.True(t, head.Empty())

	all.remove(s, hs[2])
	assert.Empty(t, cmp.Diff([]Handle{hs[0], hs[1], hs[3], hs[4]}, all.Handles(s)))
	assert.Equal(t, hs[0], all.popFront(s))
	assert.Equal(t, 3, all.Len())
}

func TestPartitionCoversActiveList(t *testing.T) {
	for _, tc := range []struct {
		name    string
		nodes   int
		workers int
		sizes   []int
	}{
		{"even", 6, 3, []int{2, 2, 2}},
		{"uneven", 7, 3, []int{3, 2, 2}},
		{"fewer nodes than workers", 2, 4, []int{1, 1, 0, 0}},
		{"empty", 0, 2, []int{0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newNodeStore(tc.workers, 0)
			l := newLayeredNodeLists(s, 1, tc.workers, tc.nodes)
			var want []Handle
			for i := 0; i < tc.nodes; i++ {
				h := s.acquireNext()
				l.track(h, i, &l.Layers[0])
				want = append(want, h)
			}

			l.split()
			assert.True(t, l.Layers[0].Empty())
			var union []Handle
			for w := range l.Partitions {
				assert.Equal(t, tc.sizes[w], l.Partitions[w].Len())
				union = append(union, l.Partitions[w].Handles(s)...)
			}
			assert.Empty(t, cmp.Diff(want, union, cmpopts.EquateEmpty()), "partitions must cover the active list once, in order")

			l.join()
			for w := range l.Partitions {
				assert.True(t, l.Partitions[w].Empty())
			}
			assert.Empty(t, cmp.Diff(want, l.Layers[0].Handles(s), cmpopts.EquateEmpty()))
		})
	}
}

func TestReleaseAllConservesNodes(t *testing.T) {
	s := newNodeStore(2, 4)
	l := newLayeredNodeLists(s, 2, 2, 10)
	for i := 0; i < 6; i++ {
		l.track(s.acquireNext(), i, &l.Layers[i%len(l.Layers)])
	}
	assert.Equal(t, 6, l.Len())
	assert.Equal(t, 6, s.Stats().Live)

	l.releaseAll()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, PoolStats{Pools: 2, Capacity: 8, Free: 8}, s.Stats())
	for _, h := range l.owner {
		assert.True(t, h.IsNil())
	}
}
