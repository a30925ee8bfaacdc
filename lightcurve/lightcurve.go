// Package lightcurve provides the kilonova light-curve integrator, the band selection
// that turns a nine-band magnitude matrix into a training record, and plotting of
// generated curves.
package lightcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bob-anderson-ok/kilonovagen/ejecta"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

// Physical constants in cgs units.
const (
	solarMassG     = 1.989e33
	speedOfLight   = 2.99792458e10
	stefanBoltzman = 5.670374419e-5
	planck         = 6.62607015e-27
	boltzmann      = 1.380649e-16
	tenParsecsCm   = 3.0856775814913673e19
	secondsPerDay  = 86400.0
)

// The model is never evaluated before minEvalTimeDays so that the t=0 grid point
// carries finite magnitudes.
const minEvalTimeDays = 1e-3

// Below temperatureFloorK the photosphere recedes into the ejecta instead of cooling further.
const temperatureFloorK = 2500.0

// NumBands is the number of photometric bands produced by Integrate.
const NumBands = 9

// BandNames lists the bands of the magnitude matrix, in row order.
var BandNames = [NumBands]string{"u", "g", "r", "i", "z", "y", "J", "H", "K"}

// bandWavelengthNm holds the effective wavelength of each band.
var bandWavelengthNm = [NumBands]float64{354, 477, 621, 754, 870, 1004, 1235, 1662, 2159}

// DefaultBands selects g, r, i and z.
var DefaultBands = []int{1, 2, 3, 4}

// Simulation holds the time grid and heating parameters handed to the integrator.
// They are policy for a whole run and never vary per row.
type Simulation struct {
	TIni               float64 // Start time (days)
	TMax               float64 // End time (days)
	Dt                 float64 // Time step (days)
	Kappa              float64 // Grey opacity (cm^2/g)
	Eps0               float64 // Heating rate constant at 1 day (erg/g/s)
	Alpha              float64 // Heating rate power-law index
	Eth                float64 // Thermalization efficiency
	VMin               float64 // Minimum ejecta velocity (units of c)
	HalfLifeCorrection bool    // Use a time-dependent thermalization efficiency
}

// DefaultSimulation returns the simulation constants used to build the training set.
func DefaultSimulation() Simulation {
	return Simulation{
		TIni:  0,
		TMax:  11,
		Dt:    0.01,
		Kappa: 10,
		Eps0:  1.58e10,
		Alpha: 1.2,
		Eth:   0.5,
		VMin:  0.02,
	}
}

// GridLength returns the number of time samples: round((TMax-TIni)/Dt) + 1.
func (s Simulation) GridLength() int {
	return int(math.Round((s.TMax-s.TIni)/s.Dt)) + 1
}

// gridStepTolerance bounds how far (TMax-TIni)/Dt may sit from a whole number of steps.
const gridStepTolerance = 1e-9

// Validate reports a configuration error for parameters the integrator cannot use.
func (s Simulation) Validate() error {
	switch {
	case !(s.Dt > 0):
		return kerrors.Configuration("simulation dt must be positive, got %g", s.Dt)
	case !(s.TMax > s.TIni):
		return kerrors.Configuration("simulation tmax (%g) must exceed tini (%g)", s.TMax, s.TIni)
	case s.TIni < 0:
		return kerrors.Configuration("simulation tini must not be negative, got %g", s.TIni)
	case s.GridLength() < 2:
		return kerrors.Configuration("simulation grid needs at least 2 points, dt=%g is too coarse", s.Dt)
	case !wholeSteps(s.TMax-s.TIni, s.Dt):
		return kerrors.Configuration("simulation dt=%g does not divide the window [%g, %g]", s.Dt, s.TIni, s.TMax)
	case !(s.Kappa > 0):
		return kerrors.Configuration("opacity must be positive, got %g", s.Kappa)
	case !(s.Eps0 > 0):
		return kerrors.Configuration("heating rate constant must be positive, got %g", s.Eps0)
	case !(s.Eth > 0) || s.Eth > 1:
		return kerrors.Configuration("thermalization efficiency must be in (0, 1], got %g", s.Eth)
	case s.VMin < 0 || s.VMin >= 1:
		return kerrors.Configuration("minimum ejecta velocity must be in [0, 1), got %g", s.VMin)
	}
	return nil
}

func wholeSteps(span, dt float64) bool {
	steps := span / dt
	return math.Abs(steps-math.Round(steps)) <= gridStepTolerance*math.Max(1, steps)
}

// Curve is the raw integrator output.
type Curve struct {
	Time []float64           // Days since merger
	Lbol []float64           // Bolometric luminosity (erg/s)
	Mags [NumBands][]float64 // Absolute AB magnitudes, one row per entry of BandNames
}

// Integrate evaluates the light curve of ejecta with mass mej (solar masses), mean
// velocity vej (units of c) and opening angles theta, phi (radians) on the grid of s.
//
// The fraction of ejecta that can radiate its deposited heat grows as (t/tc)^2 until
// the whole ejecta becomes transparent at tc. The emitting surface expands at vej and
// radiates as a blackbody, observed at 10 pc.
func Integrate(s Simulation, mej, vej, theta, phi float64) (*Curve, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !(mej > 0) {
		return nil, kerrors.PhysicalModel("ejecta mass must be positive, got %g", mej)
	}
	if !(vej > s.VMin) || vej >= 1 {
		return nil, kerrors.PhysicalModel("ejecta velocity %g must lie in (vmin=%g, 1)", vej, s.VMin)
	}
	if !(theta > 0) || !(phi > 0) {
		return nil, kerrors.PhysicalModel("ejecta opening angles must be positive, got theta=%g phi=%g", theta, phi)
	}

	n := s.GridLength()
	c := &Curve{
		// Validate guarantees the span is a whole number of dt steps.
		Time: floats.Span(make([]float64, n), s.TIni, s.TMax),
		Lbol: make([]float64, n),
	}
	for b := range c.Mags {
		c.Mags[b] = make([]float64, n)
	}

	massG := mej * solarMassG
	vMax := 2*vej - s.VMin
	tc := math.Sqrt(theta * s.Kappa * massG / (2 * phi * (vMax - s.VMin) * speedOfLight * speedOfLight))

	for i, tDays := range c.Time {
		t := math.Max(tDays, minEvalTimeDays) * secondsPerDay

		frac := math.Min(1, (t/tc)*(t/tc))
		eth := s.Eth
		if s.HalfLifeCorrection {
			eth *= thermalization(t / secondsPerDay)
		}
		lbol := (1 + theta) * eth * s.Eps0 * math.Pow(t/secondsPerDay, -s.Alpha) * massG * frac

		radius := vej * speedOfLight * t
		area := 2 * phi * radius * radius
		temp := math.Pow(lbol/(stefanBoltzman*area), 0.25)
		if temp < temperatureFloorK {
			temp = temperatureFloorK
			area = lbol / (stefanBoltzman * math.Pow(temp, 4))
		}

		c.Lbol[i] = lbol
		for b := range c.Mags {
			mag := absoluteMagnitude(area, temp, bandWavelengthNm[b])
			if math.IsNaN(mag) || math.IsInf(mag, 0) {
				return nil, kerrors.PhysicalModel("non-finite %s magnitude at t=%g d", BandNames[b], tDays)
			}
			c.Mags[b][i] = mag
		}
	}

	return c, nil
}

// thermalization is the time-dependent efficiency shape of Barnes et al. (2016),
// normalized to 1 at early times.
func thermalization(tDays float64) float64 {
	const (
		a = 0.56
		b = 0.17
		d = 0.74
	)
	x := 2 * b * math.Pow(tDays, d)
	return (math.Exp(-a*tDays) + math.Log1p(x)/x) / 2
}

// absoluteMagnitude returns the AB magnitude at 10 pc of a blackbody surface.
func absoluteMagnitude(area, temp, wavelengthNm float64) float64 {
	nu := speedOfLight / (wavelengthNm * 1e-7)
	x := planck * nu / (boltzmann * temp)
	bnu := 2 * planck * nu * nu * nu / (speedOfLight * speedOfLight) / math.Expm1(x)
	flux := area * bnu / (4 * tenParsecsCm * tenParsecsCm)
	return -2.5*math.Log10(flux) - 48.6
}

// BandCurve is one retained photometric band.
type BandCurve struct {
	Name string
	Mag  []float64
}

// Record is one training example: the binary parameters and its selected band trajectories.
type Record struct {
	M1, M2 float64
	L1, L2 float64
	Time   []float64
	Bands  []BandCurve
}

// Band returns the magnitudes of the named band.
func (r Record) Band(name string) ([]float64, bool) {
	for _, b := range r.Bands {
		if b.Name == name {
			return b.Mag, true
		}
	}
	return nil, false
}

// BandColumns returns the names of the retained bands in order.
func (r Record) BandColumns() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// ValidateBands checks that indices name distinct rows of the magnitude matrix.
func ValidateBands(indices []int) error {
	if len(indices) == 0 {
		return kerrors.Configuration("at least one band must be selected")
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= NumBands {
			return kerrors.Configuration("band index %d is outside 0..%d", idx, NumBands-1)
		}
		if seen[idx] {
			return kerrors.Configuration("band index %d selected twice", idx)
		}
		seen[idx] = true
	}
	return nil
}

// SelectBands copies the requested rows of the magnitude matrix, in the order given.
func SelectBands(c *Curve, indices []int) ([]BandCurve, error) {
	if err := ValidateBands(indices); err != nil {
		return nil, err
	}
	bands := make([]BandCurve, len(indices))
	for i, idx := range indices {
		bands[i] = BandCurve{
			Name: BandNames[idx],
			Mag:  append([]float64(nil), c.Mags[idx]...),
		}
	}
	return bands, nil
}

// Generator runs the full per-row pipeline: ejecta fits, integration and band selection.
type Generator struct {
	Sim   Simulation
	Bands []int
}

// NewGenerator validates its inputs and returns a Generator.
func NewGenerator(sim Simulation, bands []int) (*Generator, error) {
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateBands(bands); err != nil {
		return nil, err
	}
	return &Generator{Sim: sim, Bands: append([]int(nil), bands...)}, nil
}

// BandColumns returns the names of the selected bands in output order.
func (g *Generator) BandColumns() []string {
	names := make([]string, len(g.Bands))
	for i, b := range g.Bands {
		names[i] = BandNames[b]
	}
	return names
}

// Curve returns the full nine-band curve together with the derived ejecta properties.
func (g *Generator) Curve(m1, m2, l1, l2 float64) (*Curve, ejecta.Properties, error) {
	props, err := ejecta.FromBinary(m1, m2, l1, l2)
	if err != nil {
		return nil, props, err
	}
	c, err := Integrate(g.Sim, props.Mass, props.V, props.Theta, props.Phi)
	if err != nil {
		return nil, props, fmt.Errorf("integrating m1=%g m2=%g l1=%g l2=%g: %w", m1, m2, l1, l2, err)
	}
	return c, props, nil
}

// Generate produces the training record for one binary.
func (g *Generator) Generate(m1, m2, l1, l2 float64) (Record, error) {
	c, _, err := g.Curve(m1, m2, l1, l2)
	if err != nil {
		return Record{}, err
	}
	bands, err := SelectBands(c, g.Bands)
	if err != nil {
		return Record{}, err
	}
	return Record{
		M1:    m1,
		M2:    m2,
		L1:    l1,
		L2:    l2,
		Time:  c.Time,
		Bands: bands,
	}, nil
}

// GenerateAll runs Generate over aligned parameter columns, in order, stopping at the first error.
func (g *Generator) GenerateAll(m1, m2, l1, l2 []float64) ([]Record, error) {
	if len(m2) != len(m1) || len(l1) != len(m1) || len(l2) != len(m1) {
		return nil, kerrors.DataFormat("parameter columns differ in length: %d %d %d %d", len(m1), len(m2), len(l1), len(l2))
	}
	records := make([]Record, 0, len(m1))
	for i := range m1 {
		rec, err := g.Generate(m1[i], m2[i], l1[i], l2[i])
		if err != nil {
			return records, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
