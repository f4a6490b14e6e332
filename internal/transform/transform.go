package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// #region vec3

// Vec3 is an integer grid vector.
type Vec3 struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// DistSq returns the squared Euclidean length of v.
func (v Vec3) DistSq() int {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Axis returns the component for axis 0=X, 1=Y, 2=Z.
func (v Vec3) Axis(axis int) int {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithAxis returns a copy of v with the given axis component replaced.
func (v Vec3) WithAxis(axis, value int) Vec3 {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// Less orders vectors lexicographically by X, then Y, then Z.
func (v Vec3) Less(o Vec3) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

func (v Vec3) String() string {
	return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z)
}

// ParseVec3 parses the "x,y,z" form produced by String.
func ParseVec3(s string) (Vec3, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("parse vec3 %q: want 3 components, got %d", s, len(parts))
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Vec3{}, fmt.Errorf("parse vec3 %q: %w", s, err)
		}
		out[i] = n
	}
	return Vec3{out[0], out[1], out[2]}, nil
}

// #endregion vec3

// #region transform

// Transform is a projection placement: an integer offset plus a rotation given as
// quarter turns about X, Y and Z (applied in that order).
type Transform struct {
	Offset   Vec3 `json:"offset" yaml:"offset"`
	Rotation Vec3 `json:"rotation" yaml:"rotation"`
}

// NoMatch is the sentinel transform reported when an enumeration runs out of candidates.
var NoMatch = Transform{
	Offset: Vec3{math.MinInt32, math.MinInt32, math.MinInt32},
}

// IsNoMatch reports whether t is the NoMatch sentinel.
func (t Transform) IsNoMatch() bool {
	return t == NoMatch
}

func (t Transform) String() string {
	if t.IsNoMatch() {
		return "no-match"
	}
	return fmt.Sprintf("offset(%s) rot(%s)", t.Offset, t.Rotation)
}

// #endregion transform

// #region rotation-code

// RotationCodes is the size of the flattened 4x4x4 rotation encoding.
const RotationCodes = 64

// RotationCode packs a quarter-turn triple with components in [-2, 1] into [0, 64).
type RotationCode int

// Valid reports whether c lies in [0, RotationCodes).
func (c RotationCode) Valid() bool {
	return c >= 0 && c < RotationCodes
}

// Next returns the following code, wrapping after 63.
func (c RotationCode) Next() RotationCode {
	return RotationCode((int(c.normalize()) + 1) % RotationCodes)
}

func (c RotationCode) normalize() RotationCode {
	n := int(c) % RotationCodes
	if n < 0 {
		n += RotationCodes
	}
	return RotationCode(n)
}

// Decode unpacks c into its quarter-turn triple. Out-of-range codes are first
// reduced modulo RotationCodes so every code decodes to a valid rotation.
func (c RotationCode) Decode() Vec3 {
	n := int(c.normalize())
	return Vec3{
		X: n/16 - 2,
		Y: (n%16)/4 - 2,
		Z: n%4 - 2,
	}
}

// EncodeRotation packs r into a RotationCode. It reports false when a component
// falls outside [-2, 1].
func EncodeRotation(r Vec3) (RotationCode, bool) {
	for _, c := range []int{r.X, r.Y, r.Z} {
		if c < -2 || c > 1 {
			return 0, false
		}
	}
	return RotationCode((r.X+2)*16 + (r.Y+2)*4 + (r.Z + 2)), true
}

// WrapQuarter folds a quarter-turn count into the device range [-2, 1].
func WrapQuarter(q int) int {
	m := ((q+2)%4 + 4) % 4
	return m - 2
}

// #endregion rotation-code

// #region canonical

// Canonical lists the 24 distinct axis-aligned orientations as quarter-turn triples,
// smallest total turn first. The order is part of the cell-scan contract.
var Canonical = [24]Vec3{
	{0, 0, 0},
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
	{-2, 0, 0},
	{-1, -1, 0}, {-1, 1, 0}, {1, -1, 0}, {1, 1, 0},
	{0, -2, 0},
	{-1, 0, -1}, {-1, 0, 1}, {1, 0, -1}, {1, 0, 1},
	{0, 0, -2},
	{-2, -1, 0}, {-2, 1, 0},
	{-1, -2, 0}, {1, -2, 0},
	{-2, 0, -1}, {-2, 0, 1},
}

// #endregion canonical

// #region rotate

// Rotate applies the quarter-turn triple r to v: X turns first, then Y, then Z.
func (v Vec3) Rotate(r Vec3) Vec3 {
	for i := 0; i < quarters(r.X); i++ {
		v = Vec3{v.X, -v.Z, v.Y}
	}
	for i := 0; i < quarters(r.Y); i++ {
		v = Vec3{v.Z, v.Y, -v.X}
	}
	for i := 0; i < quarters(r.Z); i++ {
		v = Vec3{-v.Y, v.X, v.Z}
	}
	return v
}

// quarters maps a signed quarter-turn count to the equivalent count in [0, 4).
func quarters(q int) int {
	return ((q % 4) + 4) % 4
}

// #endregion rotate
