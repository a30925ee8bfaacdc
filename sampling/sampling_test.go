package sampling

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bob-anderson-ok/kilonovagen/config"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

func TestLoadPriors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NS-priors.txt")
	require.NoError(t, os.WriteFile(path, []byte("# m1 m2 l1 l2\n1.4 1.2 300 800 0.1\n\n1.2  1.0\t500 900\n"), 0o644))

	priors, err := LoadPriors(path)
	require.NoError(t, err)
	require.Len(t, priors, 2)
	assert.Equal(t, params.Row{M1: 1.4, M2: 1.2, L1: 300, L2: 800}, priors[0])

	cond, err := ConditioningVector(priors)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, cond.M1, 1e-12)
	assert.InDelta(t, 1.1, cond.M2, 1e-12)
	assert.InDelta(t, 400, cond.L1, 1e-12)
	assert.InDelta(t, 850, cond.L2, 1e-12)
}

func TestLoadPriorsRejectsShortLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.4 1.2 300\n"), 0o644))
	_, err := LoadPriors(path)
	assert.True(t, kerrors.IsDataFormat(err))

	_, err = ConditioningVector(nil)
	assert.True(t, kerrors.IsDataFormat(err))
}

func TestFilterByRange(t *testing.T) {
	samples := [][]float64{
		{1, 2, 3},
		{0, 5e10, 1},
		{},
		{-1, -1, -1},
	}
	kept, ranges := FilterByRange(samples, 2e10)
	require.Len(t, kept, 2)
	assert.Equal(t, []float64{2, 0}, ranges)
	assert.Equal(t, []float64{-1, -1, -1}, kept[1])
}

func TestSummarize(t *testing.T) {
	time := []float64{0, 1}
	samples := [][]float64{
		{1, 2},
		{3, 2},
		{1e12, 0}, // dropped
	}
	sum, err := Summarize("g", time, samples, -10, 3, 2e10)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Kept)
	assert.Equal(t, 1, sum.Dropped)

	// Mean of {1, 3} is 2 with population std 1; of {2, 2} is 2 with std 0.
	assert.InDeltaSlice(t, []float64{-20, -20}, sum.Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{-50, -20}, sum.Lower, 1e-12)
	assert.InDeltaSlice(t, []float64{10, -20}, sum.Upper, 1e-12)
	// Sample magnitudes are {-10, -20} and {-30, -20}.
	assert.InDelta(t, -20, sum.Peaks.Max, 1e-12)
	assert.InDelta(t, -10, sum.Faint.Max, 1e-12)
	assert.ElementsMatch(t, []float64{-20, -30}, sum.peaks)
	assert.ElementsMatch(t, []float64{-10, -20}, sum.faint)
	assert.Equal(t, []float64{1, 1}, sum.ranges)

	_, err = Summarize("g", time, [][]float64{{1e12, 0}}, -10, 3, 2e10)
	assert.True(t, kerrors.IsDataFormat(err))

	_, err = Summarize("g", time, [][]float64{{1, 2, 3}}, -10, 3, 2e10)
	assert.True(t, kerrors.IsDataFormat(err))
}

func archiveRecords(t *testing.T) []lightcurve.Record {
	t.Helper()
	gen, err := lightcurve.NewGenerator(lightcurve.DefaultSimulation(), lightcurve.DefaultBands)
	require.NoError(t, err)
	recs, err := gen.GenerateAll(
		[]float64{1.35, 1.4, 1.3, 1.45},
		[]float64{1.35, 1.2, 1.25, 1.3},
		[]float64{400, 300, 600, 250},
		[]float64{400, 800, 700, 350},
	)
	require.NoError(t, err)
	return recs
}

func TestArchiveSamplerStaysWithinNeighbours(t *testing.T) {
	recs := archiveRecords(t)
	s, err := NewArchiveSampler(recs, DefaultScales, 2, 7)
	require.NoError(t, err)

	draws, err := s.Sample("g", params.Row{M1: 1.35, M2: 1.35, L1: 400, L2: 400}, 20)
	require.NoError(t, err)
	require.Len(t, draws, 20)

	// The two nearest records are the symmetric binary itself and (1.45, 1.3, 250, 350);
	// every draw lies between them point by point.
	a, _ := recs[0].Band("g")
	b, _ := recs[3].Band("g")
	scale := DefaultScales["g"]
	for _, d := range draws {
		require.Len(t, d, len(a))
		for i := range d {
			lo := math.Min(a[i], b[i]) / scale
			hi := math.Max(a[i], b[i]) / scale
			assert.GreaterOrEqual(t, d[i], math.Min(lo, hi)-1e-9)
			assert.LessOrEqual(t, d[i], math.Max(lo, hi)+1e-9)
		}
	}

	_, err = s.Sample("u", params.Row{M1: 1.35, M2: 1.35, L1: 400, L2: 400}, 1)
	assert.True(t, kerrors.IsConfiguration(err))
}

func TestArchiveSamplerIsSeeded(t *testing.T) {
	recs := archiveRecords(t)
	cond := params.Row{M1: 1.38, M2: 1.3, L1: 350, L2: 500}

	s1, err := NewArchiveSampler(recs, DefaultScales, 3, 11)
	require.NoError(t, err)
	s2, err := NewArchiveSampler(recs, DefaultScales, 3, 11)
	require.NoError(t, err)

	d1, err := s1.Sample("r", cond, 5)
	require.NoError(t, err)
	d2, err := s2.Sample("r", cond, 5)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	_, err = NewArchiveSampler(nil, DefaultScales, 3, 1)
	assert.True(t, kerrors.IsDataFormat(err))
}

func TestRunModes(t *testing.T) {
	recs := archiveRecords(t)
	s, err := NewArchiveSampler(recs, DefaultScales, 2, 3)
	require.NoError(t, err)

	priors := []params.Row{
		{M1: 1.4, M2: 1.2, L1: 300, L2: 800},
		{M1: 1.6, M2: 0.9, L1: 200, L2: 1200}, // skipped in priors mode
		{M1: 1.35, M2: 1.35, L1: 400, L2: 400},
	}
	cfg := config.Default().Sampling
	cfg.Samples = 10

	cond, sums, err := Run(cfg, s, recs[0].Time, []string{"g", "z"}, DefaultScales, priors, zap.NewNop())
	require.NoError(t, err)
	assert.InDelta(t, 1.45, cond.M1, 1e-12)
	require.Len(t, sums, 2)
	assert.Equal(t, "z", sums[1].Band)
	assert.Equal(t, 10, sums[0].Kept)
	for i := range sums[0].Time {
		assert.LessOrEqual(t, sums[0].Lower[i], sums[0].Mean[i]+1e-9)
		assert.GreaterOrEqual(t, sums[0].Upper[i], sums[0].Mean[i]-1e-9)
	}

	cfg.Mode = config.SampleModePriors
	_, sums, err = Run(cfg, s, recs[0].Time, []string{"g"}, DefaultScales, priors, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, sums[0].Kept)

	out := filepath.Join(t.TempDir(), "summary.png")
	require.NoError(t, SaveSummaryPlot(out, cond, sums, 800, 500))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	hist := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, SaveHistogramPlot(hist, sums, 900, 300))
	info, err = os.Stat(hist)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = HistogramPlots(nil)
	assert.Error(t, err)
}
