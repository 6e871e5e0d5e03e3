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

	"github.com/ctessum/geom"
)

// Affine is a six-term affine transform mapping grid indices to
// coordinates, following the GDAL convention:
//
//	x = X0 + col·Dx + row·Bx
//	y = Y0 + col·By + row·Dy
//
// (X0, Y0) is the outer corner of cell (row 0, col 0). For a north-up
// raster Bx and By are zero and Dy is negative.
type Affine struct {
	Dx, Dy float64
	Bx, By float64
	X0, Y0 float64
}

// NewAffine returns a north-up transform with the given cell size and
// origin corner.
func NewAffine(dx, dy, x0, y0 float64) Affine {
	return Affine{Dx: dx, Dy: dy, X0: x0, Y0: y0}
}

// Apply maps fractional grid indices to a coordinate. Integer inputs
// address cell corners; add 0.5 to each index for the cell center.
func (a Affine) Apply(col, row float64) (x, y float64) {
	x = a.X0 + col*a.Dx + row*a.Bx
	y = a.Y0 + col*a.By + row*a.Dy
	return x, y
}

// CellCenter returns the coordinate of the center of cell (row, col).
func (a Affine) CellCenter(row, col int) (x, y float64) {
	return a.Apply(float64(col)+0.5, float64(row)+0.5)
}

// Index maps a coordinate to fractional grid indices. Cell (r, c)
// covers col ∈ [c, c+1), row ∈ [r, r+1).
func (a Affine) Index(x, y float64) (col, row float64, err error) {
	det := a.Dx*a.Dy - a.Bx*a.By
	if det == 0 {
		return 0, 0, fmt.Errorf("geodata: affine transform %+v is not invertible", a)
	}
	u, v := x-a.X0, y-a.Y0
	col = (a.Dy*u - a.Bx*v) / det
	row = (-a.By*u + a.Dx*v) / det
	return col, row, nil
}

// Rectilinear reports whether the transform has no rotation terms.
func (a Affine) Rectilinear() bool {
	return a.Bx == 0 && a.By == 0
}

// GridBounds returns the bounding box of a ny×nx grid under the
// transform.
func (a Affine) GridBounds(ny, nx int) *geom.Bounds {
	b := geom.NewBounds()
	for _, c := range [][2]float64{
		{0, 0},
		{float64(nx), 0},
		{0, float64(ny)},
		{float64(nx), float64(ny)},
	} {
		x, y := a.Apply(c[0], c[1])
		b.Extend(geom.Point{X: x, Y: y}.Bounds())
	}
	return b
}

// CellPolygon returns the outline of cell (row, col) as a closed ring.
func (a Affine) CellPolygon(row, col int) geom.Polygon {
	c, r := float64(col), float64(row)
	x0, y0 := a.Apply(c, r)
	x1, y1 := a.Apply(c+1, r)
	x2, y2 := a.Apply(c+1, r+1)
	x3, y3 := a.Apply(c, r+1)
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y1},
		{X: x2, Y: y2}, {X: x3, Y: y3},
		{X: x0, Y: y0},
	}}
}
