package integrate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Euler returns the explicit Euler step of p along v.
func Euler(p, v r3.Vec, dt float64) r3.Vec {
	return r3.Add(p, r3.Scale(dt, v))
}

// StepControl bounds the adaptive step size.
type StepControl struct {
	DtMin, DtMax float64
	Tolerance    float64
}

// Step is the outcome of one adaptive step.
type Step struct {
	Next r3.Vec  // fifth order position
	Dt   float64 // step size for the next step
	Err  float64 // |p5 - p4|
	// Partial is set when a stage after the first had no data. Next is
	// then the Euler step along k1 and Dt is unchanged.
	Partial bool
}

// Runge-Kutta-Fehlberg 4(5) tableau.
const (
	b21 = 1.0 / 4

	b31, b32 = 3.0 / 32, 9.0 / 32

	b41, b42, b43 = 1932.0 / 2197, -7200.0 / 2197, 7296.0 / 2197

	b51, b52, b53, b54 = 439.0 / 216, -8.0, 3680.0 / 513, -845.0 / 4104

	b61, b62, b63, b64, b65 = -8.0 / 27, 2.0, -3544.0 / 2565, 1859.0 / 4104, -11.0 / 40

	c1, c3, c4, c5, c6 = 16.0 / 135, 6656.0 / 12825, 28561.0 / 56430, -9.0 / 50, 2.0 / 55

	d1, d3, d4, d5 = 25.0 / 216, 1408.0 / 2565, 2197.0 / 4104, -1.0 / 5
)

func combine(p r3.Vec, dt float64, k []r3.Vec, w ...float64) r3.Vec {
	var sum r3.Vec
	for i, wi := range w {
		if wi != 0 {
			sum = r3.Add(sum, r3.Scale(wi, k[i]))
		}
	}
	return r3.Add(p, r3.Scale(dt, sum))
}

// RKF45 advances p by one Runge-Kutta-Fehlberg step of size dt. k1 is
// the velocity at p. The fifth order estimate is the stepped position;
// the distance to the fourth order estimate drives the next step size.
func RKF45(f VelocityFunc, p, k1 r3.Vec, dt float64, ctl StepControl) Step {
	var k [6]r3.Vec
	k[0] = k1
	stages := [5][]float64{
		{b21},
		{b31, b32},
		{b41, b42, b43},
		{b51, b52, b53, b54},
		{b61, b62, b63, b64, b65},
	}
	for s, w := range stages {
		v, ok := f(combine(p, dt, k[:], w...))
		if !ok {
			return Step{Next: Euler(p, k1, dt), Dt: dt, Partial: true}
		}
		k[s+1] = v
	}
	p5 := combine(p, dt, k[:], c1, 0, c3, c4, c5, c6)
	p4 := combine(p, dt, k[:], d1, 0, d3, d4, d5)
	errEst := r3.Norm(r3.Sub(p5, p4))
	return Step{Next: p5, Dt: NextDt(dt, errEst, ctl), Err: errEst}
}

// NextDt returns the step size following a step of size dt with local
// error errEst. Below tolerance the step grows by at most a factor of two
// and never shrinks; otherwise it shrinks, floored at DtMin. DtMax caps
// both branches.
func NextDt(dt, errEst float64, ctl StepControl) float64 {
	var next float64
	if errEst < ctl.Tolerance {
		if errEst == 0 {
			next = 2 * dt
		} else {
			next = min(0.9*dt*math.Pow(ctl.Tolerance/errEst, 0.2), 2*dt)
		}
		next = max(next, dt)
	} else {
		next = max(0.9*dt*math.Pow(ctl.Tolerance/errEst, 0.2), ctl.DtMin)
	}
	return min(next, ctl.DtMax)
}
