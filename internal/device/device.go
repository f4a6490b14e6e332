package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region types

// KindProjector is the only device kind the aligner drives.
const KindProjector = "projector"

// Status is one observation of a device.
type Status struct {
	Working    bool
	Projecting bool
	Counters   fitness.Counters
	// Position is the device's own grid cell, the origin of its local frame.
	Position transform.Vec3
	// Structure holds the grid cells occupied by the structure the device sits on.
	Structure []transform.Vec3
}

// Device is a controllable projector. SetOffset and SetRotation stage values; Commit
// applies both at once.
type Device interface {
	Name() string
	Kind() string
	Start(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	SetOffset(v transform.Vec3)
	SetRotation(r transform.Vec3)
	Commit(ctx context.Context) error
}

// Apply stages t on d and commits it.
func Apply(ctx context.Context, d Device, t transform.Transform) error {
	d.SetOffset(t.Offset)
	d.SetRotation(t.Rotation)
	if err := d.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", t, err)
	}
	return nil
}

// #endregion types

// #region resolver

var (
	ErrNotFound  = errors.New("no device matches tag")
	ErrAmbiguous = errors.New("more than one device matches tag")
)

// Resolver finds the single device carrying a tag.
type Resolver interface {
	Resolve(ctx context.Context, tag string) (Device, error)
}

// TagMarker renders tag the way it appears in device names.
func TagMarker(tag string) string {
	return "[" + tag + "]"
}

// Registry is an in-process Resolver over a fixed set of devices.
type Registry struct {
	mu      sync.RWMutex
	devices []Device
}

// NewRegistry creates a registry holding devs.
func NewRegistry(devs ...Device) *Registry {
	return &Registry{devices: devs}
}

// Add registers d.
func (r *Registry) Add(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, d)
}

// Resolve returns the one projector whose name contains "[tag]". Devices of other kinds are
// ignored.
func (r *Registry) Resolve(_ context.Context, tag string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	marker := TagMarker(tag)
	var matches []Device
	for _, d := range r.devices {
		if d.Kind() == KindProjector && strings.Contains(d.Name(), marker) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w %s", ErrNotFound, marker)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, d := range matches {
			names[i] = d.Name()
		}
		return nil, fmt.Errorf("%w %s: %s", ErrAmbiguous, marker, strings.Join(names, ", "))
	}
}

// #endregion resolver
