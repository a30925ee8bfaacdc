package sampling

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// Band scaling constants. Samplers work in magnitude divided by the band scale.
var DefaultScales = map[string]float64{
	"g": -14.019296288484181,
	"r": -16.169625368881167,
	"i": -17.85982432553296,
	"z": -18.901707797571483,
}

// Sampler draws n normalized magnitude trajectories for one band, conditioned on a binary.
type Sampler interface {
	Sample(band string, cond params.Row, n int) ([][]float64, error)
}

// ArchiveSampler stands in for a trained conditional model. Each draw is a random convex
// blend of the archived trajectories nearest to the conditioning point, where distance is
// measured over masses and log deformabilities.
type ArchiveSampler struct {
	records    []lightcurve.Record
	scales     map[string]float64
	neighbours int

	mu        sync.Mutex
	dirichlet *distmv.Dirichlet // Blend weights, one per neighbour
}

// NewArchiveSampler indexes records for sampling. Draws are reproducible for a given seed.
func NewArchiveSampler(records []lightcurve.Record, scales map[string]float64, neighbours int, seed int64) (*ArchiveSampler, error) {
	if len(records) == 0 {
		return nil, kerrors.DataFormat("archive holds no records to sample from")
	}
	if neighbours < 1 {
		return nil, kerrors.Configuration("neighbours must be positive, got %d", neighbours)
	}
	if neighbours > len(records) {
		neighbours = len(records)
	}
	alpha := make([]float64, neighbours)
	for i := range alpha {
		alpha[i] = 1
	}
	return &ArchiveSampler{
		records:    records,
		scales:     scales,
		neighbours: neighbours,
		dirichlet:  distmv.NewDirichlet(alpha, rand.NewPCG(uint64(seed), 0x6b6e67656e)),
	}, nil
}

func distance(a, b params.Row) float64 {
	dl1 := math.Log(a.L1) - math.Log(b.L1)
	dl2 := math.Log(a.L2) - math.Log(b.L2)
	return math.Hypot(math.Hypot(a.M1-b.M1, a.M2-b.M2), math.Hypot(dl1, dl2))
}

// nearest returns the indices of the k records closest to cond.
func (s *ArchiveSampler) nearest(cond params.Row) []int {
	d := make([]float64, len(s.records))
	for i, r := range s.records {
		d[i] = distance(cond, params.Row{M1: r.M1, M2: r.M2, L1: r.L1, L2: r.L2})
	}
	inds := make([]int, len(d))
	floats.Argsort(d, inds)
	return inds[:s.neighbours]
}

// Sample returns n blended trajectories of band for cond, each divided by the band scale.
func (s *ArchiveSampler) Sample(band string, cond params.Row, n int) ([][]float64, error) {
	scale, ok := s.scales[band]
	if !ok || scale == 0 {
		return nil, kerrors.Configuration("no scale for band %q", band)
	}
	if !(cond.L1 > 0) || !(cond.L2 > 0) {
		return nil, kerrors.DataFormat("conditioning deformabilities must be positive, got %g and %g", cond.L1, cond.L2)
	}

	idx := s.nearest(cond)
	base := make([][]float64, len(idx))
	for i, j := range idx {
		mags, ok := s.records[j].Band(band)
		if !ok {
			return nil, kerrors.DataFormat("archived record %d has no %s band", j, band)
		}
		if i > 0 && len(mags) != len(base[0]) {
			return nil, kerrors.DataFormat("archived record %d has %d samples, expected %d", j, len(mags), len(base[0]))
		}
		norm := make([]float64, len(mags))
		floats.ScaleTo(norm, 1/scale, mags)
		base[i] = norm
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]float64, n)
	w := make([]float64, len(base))
	for k := range out {
		s.dirichlet.Rand(w)
		draw := make([]float64, len(base[0]))
		for i, b := range base {
			floats.AddScaled(draw, w[i], b)
		}
		out[k] = draw
	}
	return out, nil
}
