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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1e-9

func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) != math.IsNaN(b) {
		return true
	}
	if math.IsNaN(a) && math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) > tolerance
}

// testLayer builds a layer on a unit-cell grid with origin (0, 0) in
// the canonical CRS. NaN marks no-data.
func testLayer(t *testing.T, vals [][]float64) *RasterLayer {
	t.Helper()
	ny := len(vals)
	nx := len(vals[0])
	d := sparse.ZerosDense(ny, nx)
	for r, row := range vals {
		for c, v := range row {
			setCell(d, v, r, c)
		}
	}
	l, err := NewRasterLayer(d, NewAffine(1, 1, 0, 0), LongLat, math.NaN())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// uniformLayer builds an ny×nx layer where every cell holds v.
func uniformLayer(t *testing.T, ny, nx int, v float64) *RasterLayer {
	t.Helper()
	l, err := NewRasterLayer(sparseFull(ny, nx, v), NewAffine(1, 1, 0, 0), LongLat, math.NaN())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestTrimIdempotent(t *testing.T) {
	nan := math.NaN()
	l := testLayer(t, [][]float64{
		{nan, nan, nan, nan},
		{nan, 1, 2, nan},
		{nan, 3, 4, nan},
		{nan, nan, nan, nan},
	})
	once := l.trim()
	twice := once.trim()
	if ny, nx := once.Shape(); ny != 2 || nx != 2 {
		t.Fatalf("trimmed shape = %d×%d, want 2×2", ny, nx)
	}
	if !reflect.DeepEqual(once.Data.Elements, []float64{1, 2, 3, 4}) {
		t.Errorf("trimmed elements = %v", once.Data.Elements)
	}
	if !reflect.DeepEqual(once.Data.Elements, twice.Data.Elements) ||
		once.Transform != twice.Transform {
		t.Error("second trim changed the raster")
	}
	// Cell (1, 1) of the source is now cell (0, 0); the transform
	// must shift accordingly.
	x, y := once.Transform.CellCenter(0, 0)
	if different(x, 1.5, testTolerance) || different(y, 1.5, testTolerance) {
		t.Errorf("trimmed origin cell center = (%g, %g), want (1.5, 1.5)", x, y)
	}
}

func TestFilterValues(t *testing.T) {
	l := testLayer(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	out := l.filter(Filter{Values: []float64{2, 5}})
	for i, want := range []float64{math.NaN(), 2, math.NaN(), math.NaN(), 5, math.NaN()} {
		if different(out.Data.Elements[i], want, testTolerance) {
			t.Errorf("element %d = %g, want %g", i, out.Data.Elements[i], want)
		}
	}
}

func TestFilterBounds(t *testing.T) {
	l := testLayer(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	min, max := 2., 5.
	out := l.filter(Filter{Min: &min, Max: &max})
	for i, want := range []float64{math.NaN(), 2, 3, 4, 5, math.NaN()} {
		if different(out.Data.Elements[i], want, testTolerance) {
			t.Errorf("element %d = %g, want %g", i, out.Data.Elements[i], want)
		}
	}
}

func TestFilterBinarize(t *testing.T) {
	l := testLayer(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	min := 4.
	out := l.filter(Filter{Min: &min, Binarize: true})
	want := []float64{0, 0, 0, 1, 1, 1}
	if !reflect.DeepEqual(out.Data.Elements, want) {
		t.Errorf("binarized elements = %v, want %v", out.Data.Elements, want)
	}
}

func TestCropWindow(t *testing.T) {
	l := testLayer(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	})
	out := l.crop(Window{Row0: 1, Col0: 1, NRows: 2, NCols: 2})
	if !reflect.DeepEqual(out.Data.Elements, []float64{5, 6, 8, 9}) {
		t.Errorf("cropped elements = %v", out.Data.Elements)
	}
	x, y := out.Transform.CellCenter(0, 0)
	if different(x, 1.5, testTolerance) || different(y, 1.5, testTolerance) {
		t.Errorf("cropped origin cell center = (%g, %g), want (1.5, 1.5)", x, y)
	}
}

func TestCropOutOfBounds(t *testing.T) {
	m := NewMaskContainer(nil)
	if err := m.AddLayer(InMemoryGrid{Data: uniformLayer(t, 3, 3, 1).Data, Transform: NewAffine(1, 1, 0, 0)}, "a", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	err := m.CropLayerWindow("a", Window{Row0: 10, Col0: 10, NRows: 2, NCols: 2})
	if _, ok := err.(OutOfBoundsError); !ok {
		t.Errorf("error = %v, want OutOfBoundsError", err)
	}
}

func TestResolutionAndBounds(t *testing.T) {
	l := uniformLayer(t, 4, 5, 1)
	res := l.Resolution()
	if different(res.Dx, 1, testTolerance) || different(res.Dy, 1, testTolerance) {
		t.Errorf("resolution = %+v, want 1×1", res)
	}
	if different(res.Product(), 1, testTolerance) {
		t.Errorf("resolution product = %g, want 1", res.Product())
	}
	b := l.Bounds()
	if different(b.Max.X, 5, testTolerance) || different(b.Max.Y, 4, testTolerance) {
		t.Errorf("bounds max = %+v, want (5, 4)", b.Max)
	}
}
