package levelset

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparsefield/internal/monitoring"
	"sparsefield/pkg/grid"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// constantRate moves every active value by rate per unit time; a positive
// rate shrinks the inside region, a negative one grows it.
func constantRate(rate, maxStep float64) Function {
	return FunctionFunc(func(grid.Neighborhood) (float64, float64) { return rate, maxStep })
}

func seedImage(t *testing.T) (*grid.Image, int) {
	t.Helper()
	img, err := grid.New(10, 10)
	require.NoError(t, err)
	img.Fill(1)
	seed := img.Offset([]int{4, 4})
	img.Set(seed, -1)
	return img, seed
}

func sphereImage(t *testing.T, size int, radius float64) *grid.Image {
	t.Helper()
	img, err := grid.New(size, size)
	require.NoError(t, err)
	c := float64(size-1) / 2
	grid.Sphere(img, []float64{c, c}, radius)
	return img
}

func newFilter(t *testing.T, img *grid.Image, fn Function, layers, workers int) *Filter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumberOfLayers = layers
	cfg.NumWorkers = workers
	f, err := New(img, fn, cfg)
	require.NoError(t, err)
	require.NoError(t, f.Initialize())
	return f
}

// requireConsistent checks label consistency and layer adjacency through
// Validate and cross-checks list membership against the labels.
func requireConsistent(t *testing.T, f *Filter) {
	t.Helper()
	require.NoError(t, f.Validate())
	for li := range f.lists.Layers {
		kind, depth := layerOf(li)
		for _, off := range f.LayerPixels(kind, depth) {
			require.Equal(t, f.consts.Status(kind, depth), f.status.At(off), "pixel %d in %v layer %d", off, kind, depth)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	img, _ := seedImage(t)
	fn := constantRate(1, 1)
	for name, mutate := range map[string]func(*Config){
		"no layers":     func(c *Config) { c.NumberOfLayers = 0 },
		"no workers":    func(c *Config) { c.NumWorkers = 0 },
		"negative pool": func(c *Config) { c.MaxPreAllocateNodes = -1 },
		"zero step":     func(c *Config) { c.MaxTimeStep = 0 },
		"small status":  func(c *Config) { c.Constants.ActiveStatus = 2 },
		"factors":       func(c *Config) { c.Constants.ChangeFactor = 1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := New(img, fn, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	_, err := New(nil, fn, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSingleSeedScenario(t *testing.T) {
	img, seed := seedImage(t)
	f := newFilter(t, img, constantRate(1, 0.25), 1, 2)

	assert.Equal(t, []int{seed}, f.LayerPixels(Active, 0))
	assert.Equal(t, 0, f.LayerSize(Inside, 0))
	assert.ElementsMatch(t, []int{seed - 1, seed + 1, seed - 10, seed + 10}, f.LayerPixels(Outside, 0))
	requireConsistent(t, f)

	first := -1 / (2 * math.Sqrt2)
	assert.InDelta(t, first, img.At(seed), 1e-5)
	for _, off := range f.LayerPixels(Outside, 0) {
		assert.InDelta(t, first+1, img.At(off), 1e-5)
	}

	dt, err := f.CalculateChange()
	require.NoError(t, err)
	assert.Equal(t, 0.25, dt)
	assert.Equal(t, ChangeMerged, f.State())

	stats, err := f.ApplyUpdate(dt)
	require.NoError(t, err)
	assert.Equal(t, Idle, f.State())
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Active)
	assert.InDelta(t, 0.25, stats.RMSChange, 1e-9)
	assert.NotZero(t, f.ActiveCount(), "one shrinking step must not empty the active layer")
	assert.InDelta(t, first+0.25, img.At(seed), 1e-5)
	requireConsistent(t, f)
}

func TestShrinkingSeedVanishes(t *testing.T) {
	img, seed := seedImage(t)
	f := newFilter(t, img, constantRate(1, 0.25), 1, 2)

	var last UpdateStats
	for i := 0; i < 4; i++ {
		dt, err := f.CalculateChange()
		require.NoError(t, err)
		last, err = f.ApplyUpdate(dt)
		require.NoError(t, err)
		requireConsistent(t, f)
	}
	// -0.354 + 4*0.25 > 0.5, so the seed crossed outwards with nothing to
	// replace it and the band was truncated away
	assert.Equal(t, 1, last.MovedUp)
	assert.Equal(t, 0, f.ActiveCount())
	assert.Equal(t, 0, f.lists.Len())
	assert.Equal(t, StatusFar, f.status.At(seed))
	assert.Equal(t, 0, f.PoolStats().Live)
}

func TestGrowAndShrinkKeepsInvariants(t *testing.T) {
	img := sphereImage(t, 24, 4)
	f := newFilter(t, img, constantRate(-1, 0.4), 2, 3)
	requireConsistent(t, f)
	start := f.ActiveCount()
	require.NotZero(t, start)

	for i := 0; i < 8; i++ {
		dt, err := f.CalculateChange()
		require.NoError(t, err)
		_, err = f.ApplyUpdate(dt)
		require.NoError(t, err)
		requireConsistent(t, f)
	}
	grown := f.ActiveCount()
	assert.Greater(t, grown, start)

	f.fn = constantRate(1, 0.4)
	for i := 0; i < 8; i++ {
		dt, err := f.CalculateChange()
		require.NoError(t, err)
		_, err = f.ApplyUpdate(dt)
		require.NoError(t, err)
		requireConsistent(t, f)
	}
	assert.Less(t, f.ActiveCount(), grown)
}

func TestDeterministicForFixedWorkers(t *testing.T) {
	run := func() ([]float64, []Status, []float64) {
		img := sphereImage(t, 20, 5)
		f := newFilter(t, img, constantRate(-1, 0.3), 2, 4)
		var dts []float64
		for i := 0; i < 6; i++ {
			dt, err := f.CalculateChange()
			require.NoError(t, err)
			_, err = f.ApplyUpdate(dt)
			require.NoError(t, err)
			dts = append(dts, dt)
		}
		return dts, f.StatusGrid().Labels(), append([]float64(nil), img.Data()...)
	}

	dtA, labelsA, dataA := run()
	dtB, labelsB, dataB := run()
	assert.Empty(t, cmp.Diff(dtA, dtB))
	assert.Empty(t, cmp.Diff(labelsA, labelsB))
	assert.Empty(t, cmp.Diff(dataA, dataB))
}

func TestFreePoolConservation(t *testing.T) {
	img := sphereImage(t, 24, 6)
	cfg := DefaultConfig()
	cfg.NumberOfLayers = 2
	cfg.NumWorkers = 2
	cfg.MaxPreAllocateNodes = 2000
	f, err := New(img, constantRate(-1, 0.3), cfg)
	require.NoError(t, err)
	require.NoError(t, f.Initialize())

	for i := 0; i < 3; i++ {
		before := f.PoolStats()
		dt, err := f.CalculateChange()
		require.NoError(t, err)
		_, err = f.ApplyUpdate(dt)
		require.NoError(t, err)

		after := f.PoolStats()
		assert.Equal(t, before.Capacity, after.Capacity)
		assert.Equal(t, before.Live+before.Free, after.Live+after.Free)
		assert.Equal(t, f.lists.Len(), after.Live)
		assert.Zero(t, after.Grown)
	}
}

func TestPhaseOrder(t *testing.T) {
	img, _ := seedImage(t)
	cfg := DefaultConfig()
	cfg.NumberOfLayers = 1
	f, err := New(img, constantRate(1, 1), cfg)
	require.NoError(t, err)

	_, err = f.CalculateChange()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = f.ApplyUpdate(0.1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, f.Validate(), ErrNotInitialized)

	require.NoError(t, f.Initialize())
	_, err = f.ApplyUpdate(0.1)
	assert.ErrorIs(t, err, ErrPhaseOrder)

	dt, err := f.CalculateChange()
	require.NoError(t, err)
	_, err = f.ApplyUpdate(dt)
	require.NoError(t, err)
	_, err = f.ApplyUpdate(dt)
	assert.ErrorIs(t, err, ErrPhaseOrder, "each update needs its own CalculateChange")
}

func TestBoundaryViolation(t *testing.T) {
	img, _ := seedImage(t)
	f := newFilter(t, img, constantRate(1, 1), 1, 2)

	// force a border pixel into the active layer behind the filter's back
	border := img.Offset([]int{0, 5})
	f.status.set(border, StatusActive)
	f.lists.track(f.store.acquireNext(), border, &f.lists.Layers[0])

	_, err := f.CalculateChange()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBoundaryViolation)
	var v *ViolationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, border, v.Index)
	assert.Equal(t, Idle, f.State())
}

func TestValidateDetectsCorruption(t *testing.T) {
	img, seed := seedImage(t)
	f := newFilter(t, img, constantRate(1, 1), 1, 1)
	require.NoError(t, f.Validate())

	f.status.set(seed, f.consts.Status(Inside, 0))
	err := f.Validate()
	assert.ErrorIs(t, err, ErrInvariantViolation)

	f.status.set(seed, StatusActive)
	require.NoError(t, f.Validate())

	far := img.Offset([]int{7, 7})
	f.status.set(far, StatusChanging)
	var v *ViolationError
	require.True(t, errors.As(f.Validate(), &v))
	assert.Equal(t, far, v.Index)
}

func TestConstructListsRebuilds(t *testing.T) {
	img := sphereImage(t, 16, 3)
	f := newFilter(t, img, constantRate(-1, 0.5), 2, 2)
	before := f.LayerPixels(Active, 0)

	require.NoError(t, f.ConstructLists())
	assert.ElementsMatch(t, before, f.LayerPixels(Active, 0))
	assert.Equal(t, f.lists.Len(), f.PoolStats().Live, "rebuilding must return the old band to the pools")
	requireConsistent(t, f)
}

// stripedRate pushes alternate rows of a vertical interface in opposite
// directions: odd rows cross outwards, even rows inwards.
func stripedRate(width int) Function {
	return FunctionFunc(func(n grid.Neighborhood) (float64, float64) {
		if (n.Center()/width)%2 == 1 {
			return 10, 0.2
		}
		return -10, 0.2
	})
}

func interfaceImage(t *testing.T, size int) *grid.Image {
	t.Helper()
	img, err := grid.New(size, size)
	require.NoError(t, err)
	c := float64(size-1) / 2
	for off := 0; off < img.Len(); off++ {
		img.Set(off, float64(off%size)-c)
	}
	return img
}

func TestOpposingCrossingsAreHeld(t *testing.T) {
	const size = 12
	type result struct {
		stats  UpdateStats
		labels []Status
		data   []float64
	}
	run := func(workers int) result {
		img := interfaceImage(t, size)
		f := newFilter(t, img, stripedRate(size), 2, workers)
		require.Len(t, f.LayerPixels(Active, 0), size-2)

		dt, err := f.CalculateChange()
		require.NoError(t, err)
		assert.Equal(t, 0.2, dt)
		before := append([]float64(nil), img.Data()...)

		stats, err := f.ApplyUpdate(dt)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Held, "every inward crossing touches an accepted outward one")
		assert.Equal(t, 5, stats.MovedUp)
		assert.Equal(t, 0, stats.MovedDown)
		for y := 2; y < size-1; y += 2 {
			off := img.Offset([]int{size/2 - 1, y})
			assert.Equal(t, StatusActive, f.status.At(off), "row %d", y)
			assert.Equal(t, before[off], img.At(off), "held pixel in row %d keeps its value", y)
		}
		requireConsistent(t, f)
		res := result{stats: stats, labels: f.StatusGrid().Labels(), data: append([]float64(nil), img.Data()...)}

		for i := 0; i < 2; i++ {
			dt, err := f.CalculateChange()
			require.NoError(t, err)
			_, err = f.ApplyUpdate(dt)
			require.NoError(t, err)
			requireConsistent(t, f)
		}
		return res
	}

	want := run(1)
	for _, workers := range []int{2, 4} {
		got := run(workers)
		assert.Empty(t, cmp.Diff(want, got, cmp.AllowUnexported(result{}), cmpopts.EquateApprox(0, 1e-12)), "workers=%d", workers)
	}
}
