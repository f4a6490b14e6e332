package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/projector-align/internal/config"
	"github.com/danielpatrickdp/projector-align/internal/device"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay scenario.
type Fixture struct {
	Description string          `json:"description"`
	Tag         string          `json:"tag"`
	Strategy    string          `json:"strategy"`
	Seed        uint64          `json:"seed"`
	MaxTicks    int             `json:"max_ticks"`
	Config      FixtureConfig   `json:"config"`
	Device      FixtureDevice   `json:"device"`
	Expected    FixtureExpected `json:"expected"`
}

// FixtureConfig overrides strategy knobs. Absent fields keep the defaults.
type FixtureConfig struct {
	MaxSteps           *int     `json:"max_steps,omitempty"`
	ForceAcceptPercent *int     `json:"force_accept_percent,omitempty"`
	OffsetMovePercent  *int     `json:"offset_move_percent,omitempty"`
	ForceApplyRate     *float64 `json:"force_apply_rate,omitempty"`
	MutationRate       *float64 `json:"mutation_rate,omitempty"`
	StallThreshold     *int     `json:"stall_threshold,omitempty"`
}

// FixtureDevice describes the simulated projector. Cells use the "x,y,z" form.
type FixtureDevice struct {
	Name      string           `json:"name"`
	Position  string           `json:"position"`
	Blueprint []string         `json:"blueprint"`
	Truth     FixtureTransform `json:"truth"`
	Extra     []string         `json:"extra,omitempty"`
}

// FixtureTransform is the hidden placement that aligns the projection.
type FixtureTransform struct {
	Offset   string `json:"offset"`
	Rotation string `json:"rotation"`
}

// FixtureExpected lists the checks a run must satisfy. Zero values are not checked.
type FixtureExpected struct {
	Outcome        string `json:"outcome,omitempty"`
	MaxTicks       int    `json:"max_ticks,omitempty"`
	MinEscalations int    `json:"min_escalations,omitempty"`
	Aligned        bool   `json:"aligned,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig applies the fixture over the default config.
func (f *Fixture) ToConfig() config.Config {
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	cfg.Device.Addr = ""
	if f.Tag != "" {
		cfg.Tag = f.Tag
	}
	if f.Strategy != "" {
		cfg.Strategy = f.Strategy
	}
	c := f.Config
	if c.MaxSteps != nil {
		cfg.MaxSteps = *c.MaxSteps
	}
	if c.ForceAcceptPercent != nil {
		cfg.ForceAcceptPercent = *c.ForceAcceptPercent
	}
	if c.OffsetMovePercent != nil {
		cfg.OffsetMovePercent = *c.OffsetMovePercent
	}
	if c.ForceApplyRate != nil {
		cfg.ForceApplyRate = *c.ForceApplyRate
	}
	if c.MutationRate != nil {
		cfg.MutationRate = *c.MutationRate
	}
	if c.StallThreshold != nil {
		cfg.StallThreshold = *c.StallThreshold
	}
	return cfg
}

// ToSim builds the simulated projector.
func (fd *FixtureDevice) ToSim(tag string) (*device.Sim, error) {
	name := fd.Name
	if name == "" {
		name = "Projector " + device.TagMarker(tag)
	}
	pos, err := parseOptional(fd.Position)
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	blueprint, err := parseCells(fd.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("blueprint: %w", err)
	}
	extra, err := parseCells(fd.Extra)
	if err != nil {
		return nil, fmt.Errorf("extra: %w", err)
	}
	var truth transform.Transform
	if truth.Offset, err = parseOptional(fd.Truth.Offset); err != nil {
		return nil, fmt.Errorf("truth offset: %w", err)
	}
	if truth.Rotation, err = parseOptional(fd.Truth.Rotation); err != nil {
		return nil, fmt.Errorf("truth rotation: %w", err)
	}
	return device.SimFromTruth(name, pos, blueprint, truth, extra...), nil
}

// #endregion fixture-loader

// #region helpers
func parseOptional(s string) (transform.Vec3, error) {
	if s == "" {
		return transform.Vec3{}, nil
	}
	return transform.ParseVec3(s)
}

func parseCells(in []string) ([]transform.Vec3, error) {
	out := make([]transform.Vec3, 0, len(in))
	for _, s := range in {
		v, err := transform.ParseVec3(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// #endregion helpers
