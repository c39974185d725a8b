package hazard

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t, x, z, y, density, thermal, vis float32) core.HazardSample {
	return core.HazardSample{Time: t, X: x, Y: y, Z: z, Density: density, Thermal: thermal, Visibility: vis}
}

func TestBuild_MaxProjection(t *testing.T) {
	ds, err := Build([]core.HazardSample{
		sample(0, 0, 0, 0, 50, 30, 10),
		sample(0, 0, 0, 5, 10, 90, 12),
	}, DefaultOptions())
	require.NoError(t, err)

	r := ds.NewEngine().Query(core.Vec3{}, 0)
	assert.Equal(t, float32(50), r.Density)
	assert.Equal(t, float32(90), r.Thermal)
	assert.Equal(t, float32(12), r.Visibility)
}

func TestBuild_MaxProjectionHoldsForEveryContributor(t *testing.T) {
	var samples []core.HazardSample
	for h := 0; h < 20; h++ {
		samples = append(samples, sample(1, 2.1, -3.9, float32(h)*0.25,
			float32((h*37)%101), float32((h*53)%211), float32((h*11)%31)))
	}
	ds, err := Build(samples, DefaultOptions())
	require.NoError(t, err)

	f, ok := ds.Frame(2)
	require.True(t, ok)
	got, set := f.At(2.1, -3.9)
	require.True(t, set)
	for _, s := range samples {
		assert.GreaterOrEqual(t, got.Density, s.Density)
		assert.GreaterOrEqual(t, got.Thermal, s.Thermal)
		assert.GreaterOrEqual(t, got.Visibility, s.Visibility)
	}
}

func TestBuild_TieKeepsFirstDensity(t *testing.T) {
	ds, err := Build([]core.HazardSample{
		sample(0, 1, 1, 0, 40, 20, 5),
		sample(0, 1, 1, 3, 40, 20, 5),
	}, DefaultOptions())
	require.NoError(t, err)
	r := ds.NewEngine().Query(core.Vec3{X: 1, Z: 1}, 0)
	assert.Equal(t, float32(40), r.Density)
}

func TestBuild_DropsOutOfBounds(t *testing.T) {
	ds, err := Build([]core.HazardSample{
		sample(0, -100, 0, 0, 10, 0, 0),
		sample(0, 0, 100, 0, 10, 0, 0),
		sample(0, 0, 0, 0, 10, 0, 0),
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Samples())
	assert.Equal(t, 2, ds.Dropped())
}

func TestBuild_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		s     core.HazardSample
		field string
	}{
		{"nan density", sample(0, 0, 0, 0, float32(math.NaN()), 0, 0), "density"},
		{"inf time", sample(float32(math.Inf(1)), 0, 0, 0, 0, 0, 0), "time"},
		{"neg inf visibility", sample(0, 0, 0, 0, 0, 0, float32(math.Inf(-1))), "visibility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Build([]core.HazardSample{sample(0, 0, 0, 0, 1, 1, 1), tt.s}, DefaultOptions())
			assert.Nil(t, ds)
			var dfe *DataFormatError
			require.True(t, errors.As(err, &dfe))
			assert.Equal(t, 1, dfe.Index)
			assert.Equal(t, tt.field, dfe.Field)
		})
	}
}

func TestBuild_InvalidOptions(t *testing.T) {
	_, err := Build(nil, Options{Grid: DefaultGrid()})
	assert.Error(t, err)

	_, err = Build(nil, Options{TimeStep: 0.5})
	assert.Error(t, err)
}

func TestBuild_QuantizesTimeKeys(t *testing.T) {
	ds, err := Build([]core.HazardSample{
		sample(0.1, 0, 0, 0, 1, 0, 0),
		sample(0.24, 0, 0, 0, 2, 0, 0),
		sample(0.26, 0, 0, 0, 3, 0, 0),
		sample(1.0, 0, 0, 0, 4, 0, 0),
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ds.Keys())
	assert.Equal(t, 1.0, ds.Duration())

	f, ok := ds.Frame(0)
	require.True(t, ok)
	r, _ := f.At(0, 0)
	assert.Equal(t, float32(2), r.Density)
}

func TestGrid_Index(t *testing.T) {
	g := DefaultGrid()
	tests := []struct {
		name string
		x, z float64
		idx  int
		ok   bool
	}{
		{"origin corner", -10, -10, 0, true},
		{"rounds to nearest", -9.76, -10, 0, true},
		{"rounds up", -9.74, -10, 1, true},
		{"row stride", -10, -9.5, 100, true},
		{"last cell", 39.5, 39.5, 9999, true},
		{"past width", 39.8, 0, 0, false},
		{"below min", -10.3, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := g.Index(tt.x, tt.z)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.idx, idx)
				x, z := g.Center(idx)
				assert.InDelta(t, tt.x, x, g.CellSize/2+1e-9)
				assert.InDelta(t, tt.z, z, g.CellSize/2+1e-9)
			}
		})
	}
}

func TestRenderHints(t *testing.T) {
	opts := DefaultOptions()
	opts.RenderThreshold = 20
	ds, err := Build([]core.HazardSample{
		sample(0, 0, 0, 1, 50, 0, 0),
		sample(0, 1, 0, 1, 5, 0, 0),
	}, opts)
	require.NoError(t, err)
	require.True(t, ds.HasRenderHints())

	f, _ := ds.Frame(0)
	hints := f.RenderHints()
	require.Len(t, hints, 1)
	assert.Equal(t, float32(50), hints[0].Density)
	assert.Equal(t, core.Vec3{X: 0, Y: 1, Z: 0}, hints[0].Transform.Position)
	assert.Same(t, &hints[0], &f.RenderHints()[0])
}

func TestRenderHints_DisabledByDefault(t *testing.T) {
	ds, err := Build([]core.HazardSample{sample(0, 0, 0, 1, 50, 0, 0)}, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, ds.NewEngine().RenderHintsAt(0))
}
