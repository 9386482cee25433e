package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMM1StableFormulas(t *testing.T) {
	// 4 arrivals/hr against 6 served/hr: the textbook stable case.
	r := Rates{Lambda: 4, Mu: 6, Rho: 4.0 / 6.0}
	require.True(t, r.Stable())

	m := MM1(r)
	require.True(t, m.Stable)

	assert.InDelta(t, 0.5, m.WHours, 1e-9)            // 30 minutes in system
	assert.InDelta(t, 1.0/3.0, m.WqHours, 1e-9)       // 20 minutes in queue
	assert.InDelta(t, 2.0, m.L, 1e-9)                 // 2 in system
	assert.InDelta(t, 4.0/3.0, m.Lq, 1e-6)            // ~1.33 in queue
}

func TestMM1UnstableSkipsFormulas(t *testing.T) {
	// 6 arrivals/hr against 5 served/hr: rho = 1.2, the queue grows forever.
	r := Rates{Lambda: 6, Mu: 5, Rho: 1.2}
	require.False(t, r.Stable())

	m := MM1(r)
	assert.False(t, m.Stable)
	assert.Zero(t, m.WHours)
	assert.Zero(t, m.WqHours)
	assert.Zero(t, m.L)
	assert.Zero(t, m.Lq)
}

func TestMM1SaturatedBoundary(t *testing.T) {
	// rho exactly 1 must also be treated as unstable: W would divide by zero.
	m := MM1(Rates{Lambda: 5, Mu: 5, Rho: 1})
	assert.False(t, m.Stable)
}

func TestComputeRates(t *testing.T) {
	// 112 completions over 7 days of 8 hours = 2/hr service;
	// 8 active today over an 8-hour day = 1/hr arrivals.
	r := ComputeRates(8, 112, 8, 7, 0.1)

	assert.InDelta(t, 1.0, r.Lambda, 1e-9)
	assert.InDelta(t, 2.0, r.Mu, 1e-9)
	assert.InDelta(t, 0.5, r.Rho, 1e-9)
	assert.True(t, r.Stable())
}

func TestComputeRatesFloorsServiceRate(t *testing.T) {
	// No completion history: mu is floored, never zero.
	r := ComputeRates(4, 0, 8, 7, 0.1)

	assert.InDelta(t, 0.1, r.Mu, 1e-9)
	assert.InDelta(t, 0.5, r.Lambda, 1e-9)
	assert.False(t, r.Stable(), "a floored mu under real arrivals reads as overloaded")
}

func TestScaledWaitMinutes(t *testing.T) {
	// Front of the queue keeps the base wait.
	assert.InDelta(t, 30.0, ScaledWaitMinutes(0.5, 1), 1e-9)
	assert.InDelta(t, 30.0, ScaledWaitMinutes(0.5, 5), 1e-9)
	// Deep positions scale linearly past the threshold.
	assert.InDelta(t, 60.0, ScaledWaitMinutes(0.5, 10), 1e-9)
	assert.InDelta(t, 120.0, ScaledWaitMinutes(0.5, 20), 1e-9)
}
