package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/config"
	"github.com/danielpatrickdp/projector-align/internal/device"
	"github.com/danielpatrickdp/projector-align/internal/driver"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/strategy"
	"github.com/danielpatrickdp/projector-align/internal/transform"
	"go.uber.org/zap"
)

// defaultMaxTicks bounds a run whose fixture sets no limit.
const defaultMaxTicks = 1000

// #region types
// TickResult captures one driver tick of a replay run.
type TickResult struct {
	Tick      int
	Outcome   driver.Outcome
	Decision  strategy.Decision
	Reason    string
	Step      int
	Fitness   float64
	Applied   transform.Transform
	Applies   bool
	Escalated bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTicks   int
	Keeps        int
	Rollbacks    int
	Scans        int
	Escalations  int
	FinalOutcome driver.Outcome
	FinalPhase   state.Phase
	FinalApplied transform.Transform
	Aligned      bool
}

// #endregion types

// #region replay
// Run drives the fixture's scenario through the driver against a simulator until a
// non-continue outcome or the tick limit. Tick n draws from seed Seed+n.
func Run(ctx context.Context, f *Fixture, log *zap.Logger) ([]TickResult, ReplaySummary, error) {
	cfg := f.ToConfig()
	if err := cfg.Validate(); err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("fixture config: %w", err)
	}
	sim, err := f.Device.ToSim(cfg.Tag)
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("fixture device: %w", err)
	}

	n := uint64(0)
	drv, err := driver.New(driver.Options{
		Config:   func() (config.Config, error) { return cfg, nil },
		Resolver: device.NewRegistry(sim),
		Backend:  state.NewMemoryStore(),
		Log:      log,
		NewRand: func() (strategy.Rand, uint64) {
			n++
			seed := f.Seed + n
			return strategy.NewSeededRand(seed), seed
		},
	})
	if err != nil {
		return nil, ReplaySummary{}, err
	}

	limit := f.MaxTicks
	if limit <= 0 {
		limit = defaultMaxTicks
	}
	results := make([]TickResult, 0, limit)
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return results, Summarize(results, sim), err
		}
		rep := drv.Tick(ctx, "")
		results = append(results, TickResult{
			Tick:      i,
			Outcome:   rep.Outcome,
			Decision:  rep.Decision,
			Reason:    rep.Reason,
			Step:      rep.Step,
			Fitness:   rep.Fitness,
			Applied:   rep.Applied,
			Applies:   rep.Applies,
			Escalated: rep.Escalated,
		})
		if rep.Outcome != driver.OutcomeContinue {
			break
		}
	}
	sum := Summarize(results, sim)
	return results, sum, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []TickResult, sim *device.Sim) ReplaySummary {
	s := ReplaySummary{TotalTicks: len(results)}
	for _, r := range results {
		switch r.Decision {
		case strategy.DecisionKeep:
			s.Keeps++
		case strategy.DecisionRollback:
			s.Rollbacks++
		case strategy.DecisionScan:
			s.Scans++
		}
		if r.Escalated {
			s.Escalations++
		}
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		s.FinalOutcome = last.Outcome
		switch last.Outcome {
		case driver.OutcomeSuccess:
			s.FinalPhase = state.PhaseConverged
		case driver.OutcomeExhausted:
			s.FinalPhase = state.PhaseExhausted
		case driver.OutcomeFatal:
			s.FinalPhase = state.PhaseFailed
		default:
			s.FinalPhase = state.PhaseSearching
		}
	}
	if sim != nil {
		s.FinalApplied = sim.Applied()
		s.Aligned = sim.Counters(s.FinalApplied).Aligned()
	}
	return s
}

// Check compares a summary with the fixture's expectations and returns every mismatch.
func Check(sum ReplaySummary, want FixtureExpected) []string {
	var out []string
	if want.Outcome != "" && string(sum.FinalOutcome) != want.Outcome {
		out = append(out, fmt.Sprintf("outcome %s, want %s", sum.FinalOutcome, want.Outcome))
	}
	if want.MaxTicks > 0 && sum.TotalTicks > want.MaxTicks {
		out = append(out, fmt.Sprintf("took %d ticks, want at most %d", sum.TotalTicks, want.MaxTicks))
	}
	if sum.Escalations < want.MinEscalations {
		out = append(out, fmt.Sprintf("%d escalations, want at least %d", sum.Escalations, want.MinEscalations))
	}
	if want.Aligned && !sum.Aligned {
		out = append(out, fmt.Sprintf("final transform %s is not aligned", sum.FinalApplied))
	}
	return out
}

// #endregion replay
