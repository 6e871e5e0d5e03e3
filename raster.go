/*
Copyright © 2020 the Geodata authors.
This file is part of Geodata.

Geodata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Geodata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Geodata.  If not, see <http://www.gnu.org/licenses/>.
*/

package geodata

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// RasterLayer is a two-dimensional grid of values with an affine
// transform and a coordinate reference system. The grid shape is
// [ny, nx]. A layer optionally owns the file handle it was read from;
// the handle stays open for repeated reads until the layer is closed
// by its container.
type RasterLayer struct {
	Data      *sparse.DenseArray
	Transform Affine
	SR        *proj.SR
	Proj4     string
	NoData    float64

	src *os.File
}

// NewRasterLayer creates a layer from an in-memory grid. data must
// have exactly two dimensions.
func NewRasterLayer(data *sparse.DenseArray, transform Affine, proj4 string, noData float64) (*RasterLayer, error) {
	if len(data.Shape) != 2 {
		return nil, fmt.Errorf("geodata: NewRasterLayer: grid must have 2 dimensions but has %d", len(data.Shape))
	}
	sr, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: NewRasterLayer: parsing CRS %q: %v", proj4, err)
	}
	return &RasterLayer{
		Data:      data,
		Transform: transform,
		SR:        sr,
		Proj4:     proj4,
		NoData:    noData,
	}, nil
}

// Shape returns (ny, nx).
func (l *RasterLayer) Shape() (ny, nx int) {
	return l.Data.Shape[0], l.Data.Shape[1]
}

// IsNoData reports whether v is the layer's no-data sentinel. NaN is
// always treated as no-data.
func (l *RasterLayer) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == l.NoData
}

// Bounds returns the layer's bounding box, derived from its shape and
// transform.
func (l *RasterLayer) Bounds() *geom.Bounds {
	ny, nx := l.Shape()
	return l.Transform.GridBounds(ny, nx)
}

// Resolution holds a layer's pixel size.
type Resolution struct {
	Dx, Dy float64
}

// Product returns the pixel area |Dx·Dy| in the layer's CRS units.
func (r Resolution) Product() float64 {
	return math.Abs(r.Dx * r.Dy)
}

// Resolution returns the layer's pixel size.
func (l *RasterLayer) Resolution() Resolution {
	return Resolution{Dx: math.Abs(l.Transform.Dx), Dy: math.Abs(l.Transform.Dy)}
}

// Copy returns a deep copy of the layer's grid and metadata. The file
// handle, if any, is not copied; the copy is purely in-memory.
func (l *RasterLayer) Copy() *RasterLayer {
	return &RasterLayer{
		Data:      l.Data.Copy(),
		Transform: l.Transform,
		SR:        l.SR,
		Proj4:     l.Proj4,
		NoData:    l.NoData,
	}
}

// Close releases the layer's underlying file handle, if it owns one.
func (l *RasterLayer) Close() error {
	if l.src == nil {
		return nil
	}
	err := l.src.Close()
	l.src = nil
	return err
}

// sparseFull returns a ny×nx array with every element set to v.
func sparseFull(ny, nx int, v float64) *sparse.DenseArray {
	a := sparse.ZerosDense(ny, nx)
	for i := range a.Elements {
		a.Elements[i] = v
	}
	return a
}

// setCell writes v at (r, c). sparse.DenseArray.Set silently drops
// zero values, so all writes that may carry a zero go through here.
func setCell(a *sparse.DenseArray, v float64, r, c int) {
	a.Elements[a.Index1d(r, c)] = v
}

// Window is a rectangular index window into a raster.
type Window struct {
	Row0, Col0   int
	NRows, NCols int
}

// windowForBounds returns the smallest index window covering the part
// of b that intersects the layer. ok is false if there is no
// intersection. Requires a rectilinear transform.
func (l *RasterLayer) windowForBounds(b *geom.Bounds) (Window, bool) {
	ny, nx := l.Shape()
	c0, r0, err := l.Transform.Index(b.Min.X, b.Min.Y)
	if err != nil {
		return Window{}, false
	}
	c1, r1, err := l.Transform.Index(b.Max.X, b.Max.Y)
	if err != nil {
		return Window{}, false
	}
	cMin, cMax := math.Min(c0, c1), math.Max(c0, c1)
	rMin, rMax := math.Min(r0, r1), math.Max(r0, r1)
	w := Window{
		Row0:  int(math.Floor(rMin)),
		Col0:  int(math.Floor(cMin)),
		NRows: int(math.Ceil(rMax)) - int(math.Floor(rMin)),
		NCols: int(math.Ceil(cMax)) - int(math.Floor(cMin)),
	}
	return clipWindow(w, ny, nx)
}

func clipWindow(w Window, ny, nx int) (Window, bool) {
	r1 := w.Row0 + w.NRows
	c1 := w.Col0 + w.NCols
	if w.Row0 < 0 {
		w.Row0 = 0
	}
	if w.Col0 < 0 {
		w.Col0 = 0
	}
	if r1 > ny {
		r1 = ny
	}
	if c1 > nx {
		c1 = nx
	}
	w.NRows = r1 - w.Row0
	w.NCols = c1 - w.Col0
	if w.NRows <= 0 || w.NCols <= 0 {
		return Window{}, false
	}
	return w, true
}

// crop returns a new layer windowed to w. The transform origin is
// shifted so cell (0,0) of the result is cell (w.Row0, w.Col0) of the
// source.
func (l *RasterLayer) crop(w Window) *RasterLayer {
	out := sparse.ZerosDense(w.NRows, w.NCols)
	for r := 0; r < w.NRows; r++ {
		for c := 0; c < w.NCols; c++ {
			setCell(out, l.Data.Get(w.Row0+r, w.Col0+c), r, c)
		}
	}
	t := l.Transform
	t.X0, t.Y0 = t.Apply(float64(w.Col0), float64(w.Row0))
	return &RasterLayer{
		Data:      out,
		Transform: t,
		SR:        l.SR,
		Proj4:     l.Proj4,
		NoData:    l.NoData,
	}
}

// trim returns a layer with all-no-data border rows and columns
// removed. Trimming is idempotent: a second call returns an identical
// raster. A layer that is entirely no-data is returned unchanged.
func (l *RasterLayer) trim() *RasterLayer {
	return l.trimWhere(l.IsNoData)
}

// trimWhere removes border rows and columns whose every cell satisfies
// empty.
func (l *RasterLayer) trimWhere(empty func(float64) bool) *RasterLayer {
	ny, nx := l.Shape()
	rowEmpty := func(r int) bool {
		for c := 0; c < nx; c++ {
			if !empty(l.Data.Get(r, c)) {
				return false
			}
		}
		return true
	}
	colEmpty := func(c int) bool {
		for r := 0; r < ny; r++ {
			if !empty(l.Data.Get(r, c)) {
				return false
			}
		}
		return true
	}
	r0, r1 := 0, ny
	for r0 < r1 && rowEmpty(r0) {
		r0++
	}
	if r0 == r1 {
		return l.Copy()
	}
	for rowEmpty(r1 - 1) {
		r1--
	}
	c0, c1 := 0, nx
	for c0 < c1 && colEmpty(c0) {
		c0++
	}
	for colEmpty(c1 - 1) {
		c1--
	}
	return l.crop(Window{Row0: r0, Col0: c0, NRows: r1 - r0, NCols: c1 - c0})
}

// Filter selects cells by value. A cell matches if its value is in
// Values or lies within [Min, Max] (both inclusive; either bound may
// be nil). Non-matching cells become no-data, or 0 when Binarize is
// set, in which case matching cells become 1.
type Filter struct {
	Values   []float64
	Min, Max *float64
	Binarize bool
}

func (f Filter) matches(v float64) bool {
	for _, fv := range f.Values {
		if v == fv {
			return true
		}
	}
	if f.Min == nil && f.Max == nil {
		return false
	}
	if f.Min != nil && v < *f.Min {
		return false
	}
	if f.Max != nil && v > *f.Max {
		return false
	}
	return true
}

// filter returns a new layer with f applied. Binarized layers carry
// no no-data cells: non-matching and no-data cells both read as
// unsuitable (0).
func (l *RasterLayer) filter(f Filter) *RasterLayer {
	out := l.Copy()
	ny, nx := l.Shape()
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			v := l.Data.Get(r, c)
			match := !l.IsNoData(v) && f.matches(v)
			switch {
			case f.Binarize && match:
				setCell(out.Data, 1, r, c)
			case f.Binarize:
				setCell(out.Data, 0, r, c)
			case match:
				setCell(out.Data, v, r, c)
			default:
				setCell(out.Data, l.NoData, r, c)
			}
		}
	}
	if f.Binarize {
		out.NoData = math.NaN()
	}
	return out
}
