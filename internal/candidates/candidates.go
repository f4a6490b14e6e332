package candidates

import (
	"sort"

	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region occupancy

// Occupancy is a set of occupied cells in device-local coordinates.
type Occupancy map[transform.Vec3]struct{}

// NewOccupancy builds a set from cells.
func NewOccupancy(cells []transform.Vec3) Occupancy {
	o := make(Occupancy, len(cells))
	for _, c := range cells {
		o[c] = struct{}{}
	}
	return o
}

// Has reports whether c is occupied. A nil set has no occupied cells.
func (o Occupancy) Has(c transform.Vec3) bool {
	_, ok := o[c]
	return ok
}

// #endregion occupancy

// #region build

// Build corrects grid cells into the device frame (cell - origin), drops duplicates and
// orders the result nearest-first. Ties break on X, then Y, then Z so the order is total.
func Build(occupied []transform.Vec3, origin transform.Vec3) []transform.Vec3 {
	seen := make(map[transform.Vec3]struct{}, len(occupied))
	out := make([]transform.Vec3, 0, len(occupied))
	for _, c := range occupied {
		local := c.Sub(origin)
		if _, dup := seen[local]; dup {
			continue
		}
		seen[local] = struct{}{}
		out = append(out, local)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistSq(), out[j].DistSq()
		if di != dj {
			return di < dj
		}
		return out[i].Less(out[j])
	})
	return out
}

// Local corrects grid cells into the device frame without reordering.
func Local(cells []transform.Vec3, origin transform.Vec3) []transform.Vec3 {
	out := make([]transform.Vec3, len(cells))
	for i, c := range cells {
		out[i] = c.Sub(origin)
	}
	return out
}

// #endregion build

// #region box

// Box is an inclusive axis-aligned bounding box.
type Box struct {
	Min transform.Vec3 `json:"min" yaml:"min"`
	Max transform.Vec3 `json:"max" yaml:"max"`
}

// BoundsOf returns the smallest box containing every cell. It reports false for no cells.
func BoundsOf(cells []transform.Vec3) (Box, bool) {
	if len(cells) == 0 {
		return Box{}, false
	}
	b := Box{Min: cells[0], Max: cells[0]}
	for _, c := range cells[1:] {
		b.Min = transform.Vec3{X: min(b.Min.X, c.X), Y: min(b.Min.Y, c.Y), Z: min(b.Min.Z, c.Z)}
		b.Max = transform.Vec3{X: max(b.Max.X, c.X), Y: max(b.Max.Y, c.Y), Z: max(b.Max.Z, c.Z)}
	}
	return b, true
}

// Dims returns the cell count along each axis. An inverted box has zero dims.
func (b Box) Dims() transform.Vec3 {
	d := transform.Vec3{
		X: b.Max.X - b.Min.X + 1,
		Y: b.Max.Y - b.Min.Y + 1,
		Z: b.Max.Z - b.Min.Z + 1,
	}
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		return transform.Vec3{}
	}
	return d
}

// Volume is the number of lattice cells in the box.
func (b Box) Volume() int {
	d := b.Dims()
	return d.X * d.Y * d.Z
}

// At maps a flattened index to its cell, X fastest, then Y, then Z.
func (b Box) At(i int) (transform.Vec3, bool) {
	if i < 0 || i >= b.Volume() {
		return transform.Vec3{}, false
	}
	d := b.Dims()
	return transform.Vec3{
		X: b.Min.X + i%d.X,
		Y: b.Min.Y + (i/d.X)%d.Y,
		Z: b.Min.Z + i/(d.X*d.Y),
	}, true
}

// Contains reports whether c lies inside the box.
func (b Box) Contains(c transform.Vec3) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// NextFree returns the first index >= i whose cell is not occupied, or Volume()
// when the rest of the lattice is occupied.
func (b Box) NextFree(i int, occ Occupancy) int {
	if i < 0 {
		i = 0
	}
	vol := b.Volume()
	for ; i < vol; i++ {
		c, _ := b.At(i)
		if !occ.Has(c) {
			return i
		}
	}
	return vol
}

// #endregion box
