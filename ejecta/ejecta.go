// Package ejecta provides the closed-form fits that turn a neutron-star binary
// (two gravitational masses and two tidal deformabilities) into the dynamical ejecta
// properties needed by the kilonova light-curve integrator: compactness from the
// C-Love relation, baryonic masses from an equation-of-state fit, and the
// Dietrich & Ujevic (2017) ejecta mass, velocity and geometry fits.
package ejecta

import (
	"math"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

// BuchdahlLimit is the largest compactness allowed for a static star.
const BuchdahlLimit = 4.0 / 9.0

// Properties holds everything the light-curve integrator needs to know about the ejecta.
type Properties struct {
	C1, C2   float64 // Compactness of each star
	Mb1, Mb2 float64 // Baryonic mass of each star (solar masses)
	Mass     float64 // Ejecta mass (solar masses)
	VRho     float64 // Velocity in the orbital plane (units of c)
	VZ       float64 // Velocity perpendicular to the orbital plane (units of c)
	V        float64 // Mean ejecta velocity (units of c)
	Theta    float64 // Vertical opening angle (radians)
	Phi      float64 // Azimuthal opening angle (radians)
}

// Compactness evaluates the compactness-Love relation of Yagi & Yunes (2017):
//
//	C = 0.360 - 0.0355 ln(lambda) + 0.000705 ln(lambda)^2
//
// The fit diverges for small lambda and turns negative for very large lambda,
// so results outside (0, 4/9] are reported as a physical model error.
func Compactness(lambda float64) (float64, error) {
	if !(lambda > 0) || math.IsInf(lambda, 1) {
		return 0, kerrors.PhysicalModel("tidal deformability %g is outside the C-Love domain", lambda)
	}
	lnL := math.Log(lambda)
	c := 0.360 - 0.0355*lnL + 0.000705*lnL*lnL
	if c <= 0 || c > BuchdahlLimit {
		return 0, kerrors.PhysicalModel("compactness %g from lambda %g is outside (0, 4/9]", c, lambda)
	}
	return c, nil
}

// BaryonicMass converts a gravitational mass to a baryonic mass using the
// universal equation-of-state fit mb = m (1 + 0.8858 C^1.2082).
func BaryonicMass(mass, compactness float64) float64 {
	return mass * (1 + 0.8857853174243745*math.Pow(compactness, 1.2082383572002926))
}

// Mass returns the dynamical ejecta mass in solar masses (DU17 eq. 1).
// Negative fit values are clipped to zero, as in the published fit.
func Mass(m1, mb1, c1, m2, mb2, c2 float64) float64 {
	const (
		a = -1.35695
		b = 6.11252
		c = -49.43355
		d = 16.1144
		n = -2.5484
	)
	q12 := m2 / m1
	q21 := m1 / m2

	tmp1 := (mb1*math.Cbrt(q12)*(1-2*c1)/c1 + mb2*math.Cbrt(q21)*(1-2*c2)/c2) * a
	tmp2 := (mb1*math.Pow(q12, n) + mb2*math.Pow(q21, n)) * b
	tmp3 := (mb1*(1-m1/mb1) + mb2*(1-m2/mb2)) * c

	return math.Max(tmp1+tmp2+tmp3+d, 0) / 1000.0
}

// Velocities returns the in-plane, vertical and total ejecta velocities in units of c
// (DU17 eqs. 5-6).
func Velocities(m1, c1, m2, c2 float64) (vRho, vZ, v float64) {
	vRho = velocityFit(m1, c1, m2, c2, -0.219479, 0.444836, -2.67385)
	vZ = velocityFit(m1, c1, m2, c2, -0.315585, 0.63808, -1.00757)
	v = math.Hypot(vRho, vZ)
	return vRho, vZ, v
}

func velocityFit(m1, c1, m2, c2, a, b, c float64) float64 {
	return a*((m1/m2)*(1+c*c1)+(m2/m1)*(1+c*c2)) + b
}

// Geometry returns the ejecta opening angles (theta, phi) in radians.
// Theta is the real root of theta^3 + 12 theta = 24 vz/vrho, written in Cardano form;
// phi = 4 theta + pi/2.
func Geometry(m1, c1, m2, c2 float64) (theta, phi float64) {
	vRho, vZ, _ := Velocities(m1, c1, m2, c2)
	t := 3*vZ + math.Sqrt(9*vZ*vZ+4*vRho*vRho)
	theta = math.Cbrt(4*t/vRho) - math.Cbrt(16*vRho/t)
	phi = 4*theta + math.Pi/2
	return theta, phi
}

// FromBinary runs the full chain from (m1, m2, lambda1, lambda2) to ejecta properties.
func FromBinary(m1, m2, lambda1, lambda2 float64) (Properties, error) {
	var p Properties
	if !(m1 > 0) || !(m2 > 0) {
		return p, kerrors.PhysicalModel("masses must be positive, got m1=%g m2=%g", m1, m2)
	}

	var err error
	if p.C1, err = Compactness(lambda1); err != nil {
		return p, err
	}
	if p.C2, err = Compactness(lambda2); err != nil {
		return p, err
	}

	p.Mb1 = BaryonicMass(m1, p.C1)
	p.Mb2 = BaryonicMass(m2, p.C2)

	p.Mass = Mass(m1, p.Mb1, p.C1, m2, p.Mb2, p.C2)
	if p.Mass <= 0 {
		return p, kerrors.PhysicalModel("no dynamical ejecta for m1=%g m2=%g lambda1=%g lambda2=%g", m1, m2, lambda1, lambda2)
	}

	p.VRho, p.VZ, p.V = Velocities(m1, p.C1, m2, p.C2)
	if !(p.VRho > 0) || !(p.VZ > 0) {
		return p, kerrors.PhysicalModel("non-physical ejecta velocity vrho=%g vz=%g", p.VRho, p.VZ)
	}

	p.Theta, p.Phi = Geometry(m1, p.C1, m2, p.C2)
	return p, nil
}
