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

package cutout

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"

	geodata "github.com/gschivley/geodata-1"
)

const testFill = -999.0

// writeTestCutout writes a small cutout file with a 3×4 grid, two time
// steps, one gridded variable, and one non-gridded variable.
func writeTestCutout(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "western.nc")

	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{2, 3, 4})
	h.AddAttribute("", "proj4", geodata.LongLat)
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since 2013-01-01")
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddVariable("wnd", []string{"time", "y", "x"}, []float32{0})
	h.AddAttribute("wnd", "_FillValue", []float32{testFill})
	h.AddVariable("height", []string{"time"}, []float64{0})
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}

	wnd := make([]float32, 2*3*4)
	for i := range wnd {
		wnd[i] = float32(i)
	}
	wnd[5] = testFill
	for _, v := range []struct {
		name string
		data interface{}
	}{
		{"time", []float64{0, 1}},
		{"y", []float64{40.5, 41.5, 42.5}},
		{"x", []float64{-110.5, -109.5, -108.5, -107.5}},
		{"wnd", wnd},
		{"height", []float64{100, 100}},
	} {
		end := nc.Header.Lengths(v.name)
		start := make([]int, len(end))
		if _, err := nc.Writer(v.name, start, end).Write(v.data); err != nil {
			t.Fatalf("writing %s: %v", v.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	c, err := Open(writeTestCutout(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	g := c.Grid()
	if g.Name != "western" {
		t.Errorf("grid name = %q, want %q (from the file name)", g.Name, "western")
	}
	if g.Nx() != 4 || g.Ny() != 3 {
		t.Errorf("grid is %d×%d, want 3×4", g.Ny(), g.Nx())
	}
	if g.Proj4 != geodata.LongLat {
		t.Errorf("grid CRS = %q, want %q", g.Proj4, geodata.LongLat)
	}
	if want := []float64{0, 1}; !reflect.DeepEqual(c.Times(), want) {
		t.Errorf("Times() = %v, want %v", c.Times(), want)
	}
	if c.TimeUnits() != "hours since 2013-01-01" {
		t.Errorf("TimeUnits() = %q", c.TimeUnits())
	}
	if want := []string{"wnd"}; !reflect.DeepEqual(c.Variables(), want) {
		t.Errorf("Variables() = %v, want %v", c.Variables(), want)
	}
}

func TestVariable(t *testing.T) {
	c, err := Open(writeTestCutout(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	v, err := c.Variable("wnd")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Shape, []int{2, 3, 4}) {
		t.Fatalf("shape = %v, want [2 3 4]", v.Shape)
	}
	if got := v.Get(1, 1, 1); got != 17 {
		t.Errorf("wnd[1,1,1] = %g, want 17", got)
	}
	if got := v.Get(0, 1, 1); !math.IsNaN(got) {
		t.Errorf("fill value read back as %g, want NaN", got)
	}

	if _, err := c.Variable("height"); err == nil {
		t.Error("non-gridded variable should be rejected")
	}
	if _, err := c.Variable("nonesuch"); err == nil {
		t.Error("missing variable should be rejected")
	}
}

func TestCellAreas(t *testing.T) {
	c, err := Open(writeTestCutout(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	areas, err := c.CellAreas()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(areas.Shape, []int{3, 4}) {
		t.Fatalf("shape = %v, want [3 4]", areas.Shape)
	}
	// A one degree cell near 41°N covers roughly 9300 km².
	for i, a := range areas.Elements {
		if a < 8500 || a > 10000 {
			t.Errorf("cell %d area = %g km², want about 9300", i, a)
		}
	}
}
