package lightcurve

import (
	"math"
	"testing"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGridLength(t *testing.T) {
	sim := DefaultSimulation()
	assert.Equal(t, 1101, sim.GridLength())

	c, err := Integrate(sim, 0.005, 0.24, 1.0, 5.6)
	require.NoError(t, err)
	assert.Len(t, c.Time, 1101)
	assert.Len(t, c.Lbol, 1101)
	for b := range c.Mags {
		assert.Len(t, c.Mags[b], 1101, "band %s", BandNames[b])
	}
	assert.Equal(t, 0.0, c.Time[0])
	assert.InDelta(t, 11.0, c.Time[len(c.Time)-1], 1e-12)
	assert.InDelta(t, 0.01, c.Time[1]-c.Time[0], 1e-12)
}

func TestGridKeepsConfiguredStep(t *testing.T) {
	sim := DefaultSimulation()
	sim.TMax = 12
	sim.Dt = 0.03
	require.NoError(t, sim.Validate())
	assert.Equal(t, 401, sim.GridLength())

	c, err := Integrate(sim, 0.005, 0.24, 1.0, 5.6)
	require.NoError(t, err)
	for i := 1; i < len(c.Time); i++ {
		assert.InDelta(t, 0.03, c.Time[i]-c.Time[i-1], 1e-12)
	}
}

func TestSimulationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Simulation)
	}{
		{"zero dt", func(s *Simulation) { s.Dt = 0 }},
		{"inverted window", func(s *Simulation) { s.TMax = s.TIni }},
		{"negative start", func(s *Simulation) { s.TIni = -1 }},
		{"coarse dt", func(s *Simulation) { s.Dt = 100 }},
		{"dt not dividing window", func(s *Simulation) { s.Dt = 0.03 }},
		{"zero opacity", func(s *Simulation) { s.Kappa = 0 }},
		{"zero heating", func(s *Simulation) { s.Eps0 = 0 }},
		{"efficiency above one", func(s *Simulation) { s.Eth = 1.5 }},
		{"vmin at light speed", func(s *Simulation) { s.VMin = 1 }},
	}
	require.NoError(t, DefaultSimulation().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := DefaultSimulation()
			tt.mutate(&sim)
			err := sim.Validate()
			require.Error(t, err)
			assert.True(t, kerrors.IsConfiguration(err))
		})
	}
}

func TestSelectBandsKeepsGRIZInOrder(t *testing.T) {
	c := &Curve{Time: []float64{0, 1, 2}}
	for b := range c.Mags {
		c.Mags[b] = []float64{float64(100 * b), float64(100*b + 1), float64(100*b + 2)}
	}

	first, err := SelectBands(c, DefaultBands)
	require.NoError(t, err)
	second, err := SelectBands(c, DefaultBands)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 4)
	for i, want := range []string{"g", "r", "i", "z"} {
		assert.Equal(t, want, first[i].Name)
		assert.Equal(t, c.Mags[i+1], first[i].Mag)
	}

	// Selected rows are copies.
	first[0].Mag[0] = -1
	assert.Equal(t, 100.0, c.Mags[1][0])
}

func TestValidateBands(t *testing.T) {
	assert.NoError(t, ValidateBands([]int{0, 8}))
	for _, bad := range [][]int{nil, {9}, {-1}, {1, 1}} {
		err := ValidateBands(bad)
		require.Error(t, err, "%v", bad)
		assert.True(t, kerrors.IsConfiguration(err))
	}
}

func TestIntegrateRejectsDegenerateEjecta(t *testing.T) {
	sim := DefaultSimulation()
	tests := []struct {
		name              string
		mej, vej, th, phi float64
	}{
		{"no ejecta", 0, 0.24, 1, 5.6},
		{"slower than vmin", 0.005, 0.01, 1, 5.6},
		{"superluminal", 0.005, 1.2, 1, 5.6},
		{"flat geometry", 0.005, 0.24, 0, 5.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Integrate(sim, tt.mej, tt.vej, tt.th, tt.phi)
			require.Error(t, err)
			assert.True(t, kerrors.IsPhysicalModel(err))
		})
	}
}

func TestHalfLifeCorrectionNeverBrightens(t *testing.T) {
	plain := DefaultSimulation()
	corrected := plain
	corrected.HalfLifeCorrection = true

	a, err := Integrate(plain, 0.005, 0.24, 1.0, 5.6)
	require.NoError(t, err)
	b, err := Integrate(corrected, 0.005, 0.24, 1.0, 5.6)
	require.NoError(t, err)

	for i := range a.Lbol {
		assert.LessOrEqual(t, b.Lbol[i], a.Lbol[i]*(1+1e-12))
	}
	assert.Less(t, b.Lbol[len(b.Lbol)-1], a.Lbol[len(a.Lbol)-1])
}

func TestRecordShape(t *testing.T) {
	g, err := NewGenerator(DefaultSimulation(), DefaultBands)
	require.NoError(t, err)

	rec, err := g.Generate(1.4, 1.2, 300, 800)
	require.NoError(t, err)

	assert.Equal(t, []string{"g", "r", "i", "z"}, rec.BandColumns())
	for _, b := range rec.Bands {
		assert.Len(t, b.Mag, len(rec.Time), "band %s", b.Name)
	}
	assert.Equal(t, 300.0, rec.L1)
	assert.Equal(t, 800.0, rec.L2)
}

func TestSymmetricBinarySinglePeak(t *testing.T) {
	g, err := NewGenerator(DefaultSimulation(), DefaultBands)
	require.NoError(t, err)

	rec, err := g.Generate(1.35, 1.35, 400, 400)
	require.NoError(t, err)
	assert.Equal(t, rec.M1, rec.M2)
	assert.Equal(t, rec.L1, rec.L2)
	require.Len(t, rec.Time, 1101)

	mags, ok := rec.Band("g")
	require.True(t, ok)

	peak := 0
	for i, m := range mags {
		require.False(t, math.IsNaN(m) || math.IsInf(m, 0), "index %d", i)
		if m < mags[peak] {
			peak = i
		}
	}
	assert.Greater(t, peak, 0)
	assert.Less(t, peak, len(mags)-1)

	// Brightening (magnitude falling) up to the peak, fading afterwards.
	for i := 1; i <= peak; i++ {
		assert.LessOrEqual(t, mags[i], mags[i-1], "rise at t=%g", rec.Time[i])
	}
	for i := peak + 1; i < len(mags); i++ {
		assert.GreaterOrEqual(t, mags[i], mags[i-1], "decline at t=%g", rec.Time[i])
	}
	assert.InDelta(t, 0.56, rec.Time[peak], 0.05)
	assert.InDelta(t, -11.67, mags[peak], 0.05)
}

func TestGenerateAllPreservesOrder(t *testing.T) {
	g, err := NewGenerator(DefaultSimulation(), []int{3})
	require.NoError(t, err)

	recs, err := g.GenerateAll([]float64{1.35, 1.4}, []float64{1.35, 1.2}, []float64{400, 300}, []float64{400, 800})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1.35, recs[0].M1)
	assert.Equal(t, 1.4, recs[1].M1)
	assert.Equal(t, []string{"i"}, recs[1].BandColumns())

	_, err = g.GenerateAll([]float64{1.35}, nil, nil, nil)
	assert.True(t, kerrors.IsDataFormat(err))
}
