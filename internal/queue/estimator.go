package queue

// Single-server Markovian (M/M/1) estimators. Everything here is pure
// arithmetic: rates in patients/hour, waits in hours. The position-scaling
// heuristic lives in ScaledWaitMinutes, deliberately apart from the closed
// forms it adjusts.

// Rates holds the measured arrival and service rates and their ratio.
type Rates struct {
	Lambda float64 `json:"lambda"` // arrivals, patients/hour
	Mu     float64 `json:"mu"`     // service, patients/hour
	Rho    float64 `json:"rho"`    // utilization, lambda/mu
}

// Stable reports whether the queue drains: rho < 1.
func (r Rates) Stable() bool {
	return r.Rho < 1
}

// ComputeRates derives lambda and mu from raw counts. completedCount is taken
// over lookbackDays trailing days of hoursPerDay working hours; mu is floored
// at minServiceRate so an idle history cannot produce a zero divisor.
// validCount is the day's active appointment count.
func ComputeRates(validCount, completedCount int, hoursPerDay float64, lookbackDays int, minServiceRate float64) Rates {
	mu := float64(completedCount) / (hoursPerDay * float64(lookbackDays))
	if mu < minServiceRate {
		mu = minServiceRate
	}

	lambda := float64(validCount) / hoursPerDay

	return Rates{
		Lambda: lambda,
		Mu:     mu,
		Rho:    lambda / mu,
	}
}

// Metrics are the M/M/1 closed-form outputs, valid only when Stable is true.
type Metrics struct {
	WHours  float64 // expected time in system
	WqHours float64 // expected wait in queue
	L       float64 // expected number in system
	Lq      float64 // expected number in queue
	Stable  bool
}

// MM1 evaluates the closed forms. When rho >= 1 the queue grows without
// bound and 1/(mu-lambda) is meaningless, so the formulas are not evaluated
// and the zero metrics come back with Stable=false.
func MM1(r Rates) Metrics {
	if !r.Stable() {
		return Metrics{Stable: false}
	}

	gap := r.Mu - r.Lambda
	return Metrics{
		WHours:  1 / gap,
		WqHours: r.Rho / gap,
		L:       r.Rho / (1 - r.Rho),
		Lq:      r.Rho * r.Rho / (1 - r.Rho),
		Stable:  true,
	}
}

// ScaledWaitMinutes adjusts the base in-system wait for queue depth:
// back-of-queue patients wait disproportionately longer than the steady-state
// average, front-of-queue ones do not. Heuristic, not part of the model.
func ScaledWaitMinutes(baseWaitHours float64, position int) float64 {
	factor := float64(position) / 5
	if factor < 1 {
		factor = 1
	}
	return baseWaitHours * 60 * factor
}
