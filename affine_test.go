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

import "testing"

func TestAffineRoundTrip(t *testing.T) {
	transforms := []Affine{
		NewAffine(0.25, -0.25, -180, 90), // north-up global grid
		NewAffine(1000, 1000, -2e6, -1e6),
		{Dx: 2, Dy: -3, Bx: 0.1, By: -0.2, X0: 10, Y0: 20}, // rotated
	}
	for _, a := range transforms {
		for _, idx := range [][2]float64{{0, 0}, {3.5, 7.5}, {-2, 12.25}} {
			x, y := a.Apply(idx[0], idx[1])
			col, row, err := a.Index(x, y)
			if err != nil {
				t.Fatal(err)
			}
			if different(col, idx[0], testTolerance) || different(row, idx[1], testTolerance) {
				t.Errorf("%+v: (%g, %g) round-tripped to (%g, %g)",
					a, idx[0], idx[1], col, row)
			}
		}
	}
}

func TestAffineNotInvertible(t *testing.T) {
	a := Affine{Dx: 1, Dy: 0}
	if _, _, err := a.Index(0, 0); err == nil {
		t.Error("degenerate transform should not invert")
	}
}

func TestCellCenter(t *testing.T) {
	a := NewAffine(0.5, -0.5, -180, 90)
	x, y := a.CellCenter(0, 0)
	if different(x, -179.75, testTolerance) || different(y, 89.75, testTolerance) {
		t.Errorf("cell (0,0) center = (%g, %g), want (-179.75, 89.75)", x, y)
	}
	x, y = a.CellCenter(2, 3)
	if different(x, -178.25, testTolerance) || different(y, 88.75, testTolerance) {
		t.Errorf("cell (2,3) center = (%g, %g), want (-178.25, 88.75)", x, y)
	}
}

func TestRectilinear(t *testing.T) {
	if !NewAffine(1, -1, 0, 0).Rectilinear() {
		t.Error("north-up transform should be rectilinear")
	}
	if (Affine{Dx: 1, Dy: -1, Bx: 0.5}).Rectilinear() {
		t.Error("sheared transform should not be rectilinear")
	}
}

func TestGridBounds(t *testing.T) {
	a := NewAffine(0.5, -0.5, -10, 5)
	b := a.GridBounds(4, 6)
	if different(b.Min.X, -10, testTolerance) || different(b.Max.X, -7, testTolerance) ||
		different(b.Min.Y, 3, testTolerance) || different(b.Max.Y, 5, testTolerance) {
		t.Errorf("bounds = %+v, want [-10, 3] to [-7, 5]", b)
	}
}

func TestCellPolygon(t *testing.T) {
	a := NewAffine(2, 3, 100, 200)
	p := a.CellPolygon(1, 2)
	if area := p.Area(); different(area, 6, testTolerance) {
		t.Errorf("cell area = %g, want 6", area)
	}
	b := p.Bounds()
	if different(b.Min.X, 104, testTolerance) || different(b.Min.Y, 203, testTolerance) ||
		different(b.Max.X, 106, testTolerance) || different(b.Max.Y, 206, testTolerance) {
		t.Errorf("cell bounds = %+v", b)
	}
}
