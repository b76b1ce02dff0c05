package service

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// EstimatorParams are the coefficients of the default cost model. The zero
// value is not usable; start from DefaultEstimatorParams.
type EstimatorParams struct {
	LinkMbps           float64 `mapstructure:"link_mbps"`            // Reference uplink used for transfer time
	PropagationKmPerS  float64 `mapstructure:"propagation_km_per_s"` // Signal speed through the backhaul
	ProcessingOverhead float64 `mapstructure:"processing_overhead"`  // Fixed fraction added to ideal compute time
	LoadPenalty        float64 `mapstructure:"load_penalty"`         // Extra fraction of compute time at full load
	IdleWatts          float64 `mapstructure:"idle_watts"`
	BusyWatts          float64 `mapstructure:"busy_watts"`
	NetworkWatts       float64 `mapstructure:"network_watts"`
	Jitter             float64 `mapstructure:"jitter"` // Bounded multiplicative noise, 0 disables
	Seed               int64   `mapstructure:"seed"`   // Noise seed, 0 means time based
}

// DefaultEstimatorParams matches the simulation profile shipped in
// config.yaml.
func DefaultEstimatorParams() EstimatorParams {
	return EstimatorParams{
		LinkMbps:           100,
		PropagationKmPerS:  200000, // light through fiber
		ProcessingOverhead: 0.15,
		LoadPenalty:        0.25,
		IdleWatts:          4,
		BusyWatts:          18,
		NetworkWatts:       2.5,
		Jitter:             0.07,
	}
}

// costEstimator is the default ServiceTimeEstimator: a banded transfer
// model, a load scaled compute model and a two level power model. With
// Jitter disabled the model is fully deterministic and monotone in task
// size, distance and load.
type costEstimator struct {
	params EstimatorParams

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEstimator(params EstimatorParams) *costEstimator {
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if params.LinkMbps <= 0 {
		params.LinkMbps = DefaultEstimatorParams().LinkMbps
	}
	return &costEstimator{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// distancePenalty widens with the great circle distance band, standing in
// for the longer multi hop paths behind far away sites.
func distancePenalty(distanceKm float64) float64 {
	switch {
	case distanceKm <= 100:
		return 1.0
	case distanceKm <= 500:
		return 1.15
	case distanceKm <= 1000:
		return 1.3
	case distanceKm <= 2000:
		return 1.5
	default:
		return 1.7
	}
}

// Estimate implements port.ServiceTimeEstimator.
func (e *costEstimator) Estimate(req domain.EstimateRequest) domain.Estimate {
	p := e.params

	size := math.Max(req.SizeMI, 0)
	distance := math.Max(req.DistanceKm, 0)
	load := clamp01(req.LoadFactor)
	rate := req.ComputeRate
	if rate <= 0 {
		rate = 1
	}

	// 1. Transfer: per km per MI cost over the reference link, widened by
	// the distance band, plus propagation delay.
	transfer := distance * size / (p.LinkMbps * 1000) * distancePenalty(distance)
	if p.PropagationKmPerS > 0 {
		transfer += distance / p.PropagationKmPerS
	}

	// 2. Compute: ideal time stretched by fixed overhead and current load.
	compute := size / rate * (1 + p.ProcessingOverhead + load*p.LoadPenalty)

	transfer *= e.noise()
	compute *= e.noise()

	// 3. Power: radio active during transfer, CPU drawing between idle and
	// busy watts depending on how loaded the node already is.
	joules := transfer*p.NetworkWatts + compute*(p.IdleWatts+(p.BusyWatts-p.IdleWatts)*load)

	return domain.Estimate{
		Transmission: secondsToDuration(transfer),
		Processing:   secondsToDuration(compute),
		EnergyWh:     math.Max(joules/3600, 0),
	}
}

// noise returns a multiplier in [1-Jitter, 1+Jitter].
func (e *costEstimator) noise() float64 {
	if e.params.Jitter <= 0 {
		return 1
	}
	e.mu.Lock()
	f := e.rng.Float64()
	e.mu.Unlock()
	return 1 + e.params.Jitter*(2*f-1)
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
