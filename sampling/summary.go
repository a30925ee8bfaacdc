// Package sampling is the conditional-sampling diagnostic: it draws per-band trajectories
// for a binary, drops degenerate draws, and summarizes the rest as mean and spread over time.
package sampling

import (
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bob-anderson-ok/kilonovagen/config"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// FilterByRange keeps the samples whose max-min is below threshold. It returns the kept
// samples and the range of every kept sample.
func FilterByRange(samples [][]float64, threshold float64) (kept [][]float64, ranges []float64) {
	for _, s := range samples {
		if len(s) == 0 {
			continue
		}
		r := floats.Max(s) - floats.Min(s)
		if r < threshold {
			kept = append(kept, s)
			ranges = append(ranges, r)
		}
	}
	return kept, ranges
}

// Spread summarizes a distribution by its median, 95th percentile and maximum.
type Spread struct {
	Median, P95, Max float64
}

func spread(x []float64) Spread {
	if len(x) == 0 {
		return Spread{}
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return Spread{
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

// BandSummary is the per-time-step statistics of one band, in magnitudes.
type BandSummary struct {
	Band    string
	Time    []float64
	Mean    []float64
	Lower   []float64 // Brighter edge of the sigma band
	Upper   []float64 // Fainter edge of the sigma band
	Kept    int
	Dropped int
	Ranges  Spread // Of the kept normalized samples
	Peaks   Spread // Of the kept peak (brightest) magnitudes
	Faint   Spread // Of the kept faintest magnitudes

	// Per-sample values behind the spreads, for histograms.
	ranges, peaks, faint []float64
}

// Summarize computes the mean and sigma times the population standard deviation of the
// samples at every time step, then scales back to magnitudes.
func Summarize(band string, time []float64, samples [][]float64, scale, sigma, threshold float64) (BandSummary, error) {
	kept, ranges := FilterByRange(samples, threshold)
	sum := BandSummary{
		Band:    band,
		Time:    time,
		Kept:    len(kept),
		Dropped: len(samples) - len(kept),
		Ranges:  spread(ranges),
		ranges:  ranges,
	}
	if len(kept) == 0 {
		return sum, kerrors.DataFormat("band %s: all %d samples exceed the range threshold %g", band, len(samples), threshold)
	}

	n := len(time)
	peaks := make([]float64, len(kept))
	faint := make([]float64, len(kept))
	for i, s := range kept {
		if len(s) != n {
			return sum, kerrors.DataFormat("band %s: sample has %d points, time axis has %d", band, len(s), n)
		}
		// A negative scale flips the order, so compare in magnitudes.
		a, b := floats.Max(s)*scale, floats.Min(s)*scale
		peaks[i], faint[i] = min(a, b), max(a, b)
	}
	sum.Peaks, sum.peaks = spread(peaks), peaks
	sum.Faint, sum.faint = spread(faint), faint

	sum.Mean = make([]float64, n)
	sum.Lower = make([]float64, n)
	sum.Upper = make([]float64, n)
	column := make([]float64, len(kept))
	for t := 0; t < n; t++ {
		for i, s := range kept {
			column[i] = s[t]
		}
		mean, err := stats.Mean(column)
		if err != nil {
			return sum, kerrors.WithCode(kerrors.CodeDataFormat, err, "band "+band)
		}
		std, err := stats.StandardDeviationPopulation(column)
		if err != nil {
			return sum, kerrors.WithCode(kerrors.CodeDataFormat, err, "band "+band)
		}
		a := (mean - sigma*std) * scale
		b := (mean + sigma*std) * scale
		sum.Mean[t] = mean * scale
		sum.Lower[t], sum.Upper[t] = min(a, b), max(a, b)
	}
	return sum, nil
}

// Run draws samples for every band and summarizes them. In mean mode it draws
// cfg.Samples trajectories at the averaged prior; in priors mode it draws one trajectory
// per prior with m2 >= 1.
func Run(cfg config.Sampling, sampler Sampler, time []float64, bands []string, scales map[string]float64,
	priors []params.Row, log *zap.Logger) (params.Row, []BandSummary, error) {
	cond, err := ConditioningVector(priors)
	if err != nil {
		return params.Row{}, nil, err
	}
	log.Info("conditioning vector",
		zap.Float64("m1", cond.M1), zap.Float64("m2", cond.M2),
		zap.Float64("l1", cond.L1), zap.Float64("l2", cond.L2))

	summaries := make([]BandSummary, 0, len(bands))
	for _, band := range bands {
		scale, ok := scales[band]
		if !ok {
			return cond, nil, kerrors.Configuration("no scale for band %q", band)
		}

		var samples [][]float64
		switch cfg.Mode {
		case config.SampleModePriors:
			for _, p := range priors {
				if p.M2 < 1 {
					continue
				}
				draw, err := sampler.Sample(band, p, 1)
				if err != nil {
					return cond, nil, err
				}
				samples = append(samples, draw...)
			}
		default:
			samples, err = sampler.Sample(band, cond, cfg.Samples)
			if err != nil {
				return cond, nil, err
			}
		}

		sum, err := Summarize(band, time, samples, scale, cfg.Sigma, cfg.RangeThreshold)
		if err != nil {
			return cond, nil, err
		}
		log.Info("band summarized",
			zap.String("band", band),
			zap.Int("kept", sum.Kept),
			zap.Int("dropped", sum.Dropped),
			zap.Float64("peak_median", sum.Peaks.Median),
			zap.Float64("faint_median", sum.Faint.Median),
			zap.Float64("range_p95", sum.Ranges.P95))
		summaries = append(summaries, sum)
	}
	return cond, summaries, nil
}
