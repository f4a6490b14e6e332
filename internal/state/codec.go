package state

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/projector-align/internal/transform"
	"gopkg.in/yaml.v3"
)

// #region flat-record
// flatState is the on-disk shape: one scalar per key so the blob stays a flat
// key-value document that a human can edit.
type flatState struct {
	Strategy string `yaml:"strategy,omitempty"`
	Phase    string `yaml:"phase,omitempty"`
	Step     int    `yaml:"step"`

	OffsetX int `yaml:"offsetX"`
	OffsetY int `yaml:"offsetY"`
	OffsetZ int `yaml:"offsetZ"`
	RotX    int `yaml:"rotX"`
	RotY    int `yaml:"rotY"`
	RotZ    int `yaml:"rotZ"`

	PrevOffsetX int `yaml:"prevOffsetX"`
	PrevOffsetY int `yaml:"prevOffsetY"`
	PrevOffsetZ int `yaml:"prevOffsetZ"`
	PrevRotX    int `yaml:"prevRotX"`
	PrevRotY    int `yaml:"prevRotY"`
	PrevRotZ    int `yaml:"prevRotZ"`

	Fitness     float64 `yaml:"fitness"`
	PrevFitness float64 `yaml:"prevFitness"`
	Seeded      bool    `yaml:"seeded,omitempty"`

	Stall          int     `yaml:"stall,omitempty"`
	BestInRotation float64 `yaml:"bestInRotation,omitempty"`
	RotationCode   int     `yaml:"rotationCode,omitempty"`
	RotationIndex  int     `yaml:"rotationIndex,omitempty"`
	Cursor         int     `yaml:"cursor,omitempty"`
	Candidates     string  `yaml:"candidates,omitempty"`
	BoxMin         string  `yaml:"boxMin,omitempty"`
	BoxMax         string  `yaml:"boxMax,omitempty"`
	Seed           uint64  `yaml:"seed,omitempty"`
}

// #endregion flat-record

// #region encode
// Encode renders s as a flat key-value document.
func Encode(s SearchState) (string, error) {
	f := flatState{
		Strategy:       s.Strategy,
		Phase:          string(s.Phase),
		Step:           s.Step,
		OffsetX:        s.Current.Offset.X,
		OffsetY:        s.Current.Offset.Y,
		OffsetZ:        s.Current.Offset.Z,
		RotX:           s.Current.Rotation.X,
		RotY:           s.Current.Rotation.Y,
		RotZ:           s.Current.Rotation.Z,
		PrevOffsetX:    s.Previous.Offset.X,
		PrevOffsetY:    s.Previous.Offset.Y,
		PrevOffsetZ:    s.Previous.Offset.Z,
		PrevRotX:       s.Previous.Rotation.X,
		PrevRotY:       s.Previous.Rotation.Y,
		PrevRotZ:       s.Previous.Rotation.Z,
		Fitness:        s.CurrentFitness,
		PrevFitness:    s.PreviousFitness,
		Seeded:         s.Seeded,
		Stall:          s.Stall,
		BestInRotation: s.BestInRotation,
		RotationCode:   int(s.RotationCode),
		RotationIndex:  s.RotationIndex,
		Cursor:         s.Cursor,
		Candidates:     encodeCells(s.Candidates),
		Seed:           s.Seed,
	}
	if s.HasBox {
		f.BoxMin = s.Box.Min.String()
		f.BoxMax = s.Box.Max.String()
	}
	out, err := yaml.Marshal(&f)
	if err != nil {
		return "", fmt.Errorf("encode search state: %w", err)
	}
	return string(out), nil
}

// #endregion encode

// #region decode
// Decode parses a blob produced by Encode. Missing keys keep their zero value, and an
// empty blob yields an uninitialized state.
func Decode(blob string) (SearchState, error) {
	var f flatState
	if strings.TrimSpace(blob) != "" {
		if err := yaml.Unmarshal([]byte(blob), &f); err != nil {
			return SearchState{}, fmt.Errorf("decode search state: %w", err)
		}
	}

	s := SearchState{
		Strategy: f.Strategy,
		Phase:    Phase(f.Phase),
		Step:     f.Step,
		Current: transform.Transform{
			Offset:   transform.Vec3{X: f.OffsetX, Y: f.OffsetY, Z: f.OffsetZ},
			Rotation: transform.Vec3{X: f.RotX, Y: f.RotY, Z: f.RotZ},
		},
		Previous: transform.Transform{
			Offset:   transform.Vec3{X: f.PrevOffsetX, Y: f.PrevOffsetY, Z: f.PrevOffsetZ},
			Rotation: transform.Vec3{X: f.PrevRotX, Y: f.PrevRotY, Z: f.PrevRotZ},
		},
		CurrentFitness:  f.Fitness,
		PreviousFitness: f.PrevFitness,
		Seeded:          f.Seeded,
		Stall:           f.Stall,
		BestInRotation:  f.BestInRotation,
		RotationCode:    transform.RotationCode(f.RotationCode),
		RotationIndex:   f.RotationIndex,
		Cursor:          f.Cursor,
		Seed:            f.Seed,
	}
	if s.Phase == "" {
		s.Phase = PhaseUninitialized
	}

	cells, err := decodeCells(f.Candidates)
	if err != nil {
		return SearchState{}, fmt.Errorf("decode candidates: %w", err)
	}
	s.Candidates = cells

	if f.BoxMin != "" && f.BoxMax != "" {
		if s.Box.Min, err = transform.ParseVec3(f.BoxMin); err != nil {
			return SearchState{}, fmt.Errorf("decode box: %w", err)
		}
		if s.Box.Max, err = transform.ParseVec3(f.BoxMax); err != nil {
			return SearchState{}, fmt.Errorf("decode box: %w", err)
		}
		s.HasBox = true
	}
	return s, nil
}

// #endregion decode

// #region cells
// encodeCells joins cells as "x,y,z;x,y,z".
func encodeCells(cells []transform.Vec3) string {
	if len(cells) == 0 {
		return ""
	}
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.String()
	}
	return strings.Join(parts, ";")
}

func decodeCells(s string) ([]transform.Vec3, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]transform.Vec3, 0, len(parts))
	for _, p := range parts {
		c, err := transform.ParseVec3(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// #endregion cells
