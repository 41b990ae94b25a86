// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ctxCheckInterval is how many trials run between context checks.
const ctxCheckInterval = 256

// Simulator runs a finite number of trials strictly in sequence:
// generate a matrix, count collisions, record the counts.
type Simulator struct {
	Config  SimConfig
	RNG     *PartitionedRNG
	Matrix  *TrialMatrix
	Counter *CollisionCounter
	Acc     *Accumulator
}

// NewSimulator validates cfg and allocates per-run scratch space.
// An invalid config is rejected before anything is allocated.
func NewSimulator(cfg SimConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		Config:  cfg,
		RNG:     NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		Matrix:  NewTrialMatrix(cfg.NCells, cfg.NGenes),
		Counter: NewCollisionCounter(cfg.NCells, cfg.NGenes),
		Acc:     NewAccumulator(cfg.NCells),
	}, nil
}

// Run executes Config.Resolution trials and returns the full result.
// The result is complete or absent: cancellation of ctx or a counter
// invariant violation returns an error and no result.
// Every call starts from a fresh accumulator and the seed's first draw,
// so repeated calls return identical results.
func (sim *Simulator) Run(ctx context.Context) (*Result, error) {
	sim.RNG = NewPartitionedRNG(NewSimulationKey(sim.Config.Seed))
	sim.Acc = NewAccumulator(sim.Config.NCells)
	rng := sim.RNG.ForSubsystem(SubsystemTrials)
	logrus.Debugf("Running %d trials: n_cells=%d, n_genes=%d, prob=%v, seed=%d",
		sim.Config.Resolution, sim.Config.NCells, sim.Config.NGenes, sim.Config.Prob, sim.Config.Seed)

	for trial := 0; trial < sim.Config.Resolution; trial++ {
		if trial%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := sim.step(rng); err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}
	}
	return sim.Acc.Result(), nil
}

func (sim *Simulator) step(rng *rand.Rand) error {
	sim.Matrix.Generate(rng, sim.Config.Prob)
	zero, intersections := sim.Counter.Count(sim.Matrix)
	if zero < 0 || zero > sim.Config.NCells {
		return fmt.Errorf("%w: zero-expression count %d outside [0, %d]", ErrCounterInvariant, zero, sim.Config.NCells)
	}
	if err := sim.Acc.Record(intersections); err != nil {
		return err
	}
	sim.Acc.RecordZero(zero)
	return nil
}

// Simulate is a convenience wrapper for a single finite run.
func Simulate(ctx context.Context, cfg SimConfig) (*Result, error) {
	s, err := NewSimulator(cfg)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
