package device

import (
	"context"
	"errors"
	"sync"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region sim

// ErrNotStarted is returned when a simulated device is driven before Start.
var ErrNotStarted = errors.New("device not started")

// SimConfig describes a simulated projector and the world around it.
type SimConfig struct {
	Name string
	// Position is the device's grid cell.
	Position transform.Vec3
	// Blueprint cells are in the projection's own frame.
	Blueprint []transform.Vec3
	// Structure cells are in grid coordinates.
	Structure []transform.Vec3
	// Broken makes the device report not working.
	Broken bool
	// NoProjection makes Start leave the projection off.
	NoProjection bool
}

// Sim is an in-memory projector. A blueprint cell b lands at Position + rotate(b) + offset;
// it is complete when that grid cell is part of the structure.
type Sim struct {
	mu       sync.Mutex
	cfg      SimConfig
	world    candidates.Occupancy
	started  bool
	applied  transform.Transform
	staged   transform.Transform
	commits  int
	override *fitness.Counters
}

// NewSim builds a simulated projector from cfg.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg, world: candidates.NewOccupancy(cfg.Structure)}
}

// SimFromTruth builds a simulator whose structure is the blueprint placed with the hidden
// transform truth, plus any extra cells. The projection aligns exactly when truth is applied.
func SimFromTruth(name string, position transform.Vec3, blueprint []transform.Vec3, truth transform.Transform, extra ...transform.Vec3) *Sim {
	structure := make([]transform.Vec3, 0, len(blueprint)+len(extra))
	for _, b := range blueprint {
		structure = append(structure, place(position, b, truth))
	}
	structure = append(structure, extra...)
	return NewSim(SimConfig{
		Name:      name,
		Position:  position,
		Blueprint: blueprint,
		Structure: structure,
	})
}

func (s *Sim) Name() string { return s.cfg.Name }

func (s *Sim) Kind() string { return KindProjector }

// Start enables the device and spawns the projection. Calling it again is a no-op.
func (s *Sim) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Sim) Status(_ context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Working:    s.started && !s.cfg.Broken,
		Projecting: s.started && !s.cfg.Broken && !s.cfg.NoProjection,
		Position:   s.cfg.Position,
		Structure:  append([]transform.Vec3(nil), s.cfg.Structure...),
	}
	if s.override != nil {
		st.Counters = *s.override
	} else {
		st.Counters = s.count(s.applied)
	}
	return st, nil
}

func (s *Sim) SetOffset(v transform.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.Offset = v
}

func (s *Sim) SetRotation(r transform.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged.Rotation = r
}

func (s *Sim) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	s.applied = s.staged
	s.commits++
	return nil
}

// Applied returns the transform currently projected.
func (s *Sim) Applied() transform.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Commits counts successful commits.
func (s *Sim) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// ForceCounters pins the reported counters regardless of the applied transform. Nil
// restores computed counters.
func (s *Sim) ForceCounters(c *fitness.Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = c
}

// Counters computes what the device would report with t applied.
func (s *Sim) Counters(t transform.Transform) fitness.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(t)
}

func (s *Sim) count(t transform.Transform) fitness.Counters {
	c := fitness.Counters{Total: len(s.cfg.Blueprint)}
	for _, b := range s.cfg.Blueprint {
		cell := place(s.cfg.Position, b, t)
		if s.world.Has(cell) {
			continue
		}
		c.Remaining++
		if s.touches(cell) {
			c.Buildable++
		}
	}
	return c
}

// touches reports whether cell shares a face with the structure.
func (s *Sim) touches(cell transform.Vec3) bool {
	for axis := range 3 {
		for _, d := range []int{-1, 1} {
			if s.world.Has(cell.WithAxis(axis, cell.Axis(axis)+d)) {
				return true
			}
		}
	}
	return false
}

func place(position, b transform.Vec3, t transform.Transform) transform.Vec3 {
	return position.Add(b.Rotate(t.Rotation)).Add(t.Offset)
}

// #endregion sim
