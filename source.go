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

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// LayerSource is a raster input to a MaskContainer. The three
// implementations are FilePath, OpenHandle, and InMemoryGrid; all are
// normalized into a RasterLayer by a single step on ingestion.
type LayerSource interface {
	open() (*RasterLayer, error)
}

// FilePath reads a raster from a COARDS-style NetCDF file on disk
// (NetCDF 4 and greater not supported). The file must have 1-D
// coordinate variables named lat/lon or y/x holding cell centers with
// uniform spacing (ascending or descending), and at least one
// floating-point variable over those two dimensions. The CRS is read
// from a global proj4 attribute, defaulting to longlat. A per-variable
// _FillValue attribute marks no-data.
type FilePath struct {
	Path string
	// Variable selects the raster variable; if empty, the first
	// floating-point [y, x] variable is used.
	Variable string
}

func (s FilePath) open() (*RasterLayer, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("geodata: opening raster file %s: %v", s.Path, err)
	}
	l, err := OpenHandle{File: f, Variable: s.Variable}.open()
	if err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// OpenHandle reads a raster from an already-open NetCDF file. The
// container takes ownership of the handle: it stays open for repeated
// reads and is closed when the layer is removed, overwritten, or the
// container is closed.
type OpenHandle struct {
	File     *os.File
	Variable string
}

func (s OpenHandle) open() (*RasterLayer, error) {
	name := s.File.Name()
	nc, err := cdf.Open(s.File)
	if err != nil {
		return nil, fmt.Errorf("geodata: opening raster file %s: %v", name, err)
	}

	yDim, xDim := "lat", "lon"
	if _, err := coordVar(nc, yDim); err != nil {
		yDim, xDim = "y", "x"
	}
	ys, err := coordVar(nc, yDim)
	if err != nil {
		return nil, fmt.Errorf("geodata: raster file %s: %v", name, err)
	}
	xs, err := coordVar(nc, xDim)
	if err != nil {
		return nil, fmt.Errorf("geodata: raster file %s: %v", name, err)
	}

	v := s.Variable
	if v == "" {
		for _, cand := range nc.Header.Variables() {
			dims := nc.Header.Dimensions(cand)
			if len(dims) == 2 && dims[0] == yDim && dims[1] == xDim {
				v = cand
				break
			}
		}
		if v == "" {
			return nil, fmt.Errorf("geodata: raster file %s: no variable with dimensions [%s, %s]", name, yDim, xDim)
		}
	}
	data, err := readGridVar(nc, v)
	if err != nil {
		return nil, fmt.Errorf("geodata: reading variable %s from raster file %s: %v", v, name, err)
	}
	if data == nil {
		return nil, fmt.Errorf("geodata: raster file %s: variable %s is not floating point", name, v)
	}
	if len(data) != len(xs)*len(ys) {
		return nil, fmt.Errorf("geodata: raster file %s: variable %s has %d elements but grid is %d×%d",
			name, v, len(data), len(ys), len(xs))
	}

	proj4 := LongLat
	if p := nc.Header.GetAttribute("", "proj4"); p != nil {
		proj4 = p.(string)
	}

	t, err := transformFromCenters(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("geodata: raster file %s: %v", name, err)
	}
	grid := sparse.ZerosDense(len(ys), len(xs))
	copy(grid.Elements, data)
	l, err := NewRasterLayer(grid, t, proj4, math.NaN())
	if err != nil {
		return nil, err
	}
	l.src = s.File
	return l, nil
}

// InMemoryGrid wraps a raster that already lives in memory.
type InMemoryGrid struct {
	Data      *sparse.DenseArray
	Transform Affine
	Proj4     string
	NoData    float64
}

func (s InMemoryGrid) open() (*RasterLayer, error) {
	proj4 := s.Proj4
	if proj4 == "" {
		proj4 = LongLat
	}
	return NewRasterLayer(s.Data.Copy(), s.Transform, proj4, s.NoData)
}

// coordVar reads a 1-D coordinate variable of cell centers.
func coordVar(nc *cdf.File, name string) ([]float64, error) {
	found := false
	for _, v := range nc.Header.Variables() {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no coordinate variable %q", name)
	}
	vals, err := readGridVar(nc, name)
	if err != nil {
		return nil, err
	}
	if vals == nil {
		return nil, fmt.Errorf("coordinate variable %q is not floating point", name)
	}
	if len(vals) < 2 {
		return nil, fmt.Errorf("coordinate variable %q must have length >= 2 but has %d", name, len(vals))
	}
	return vals, nil
}

// readGridVar reads a floating point variable, converting any
// _FillValue cells to NaN. It returns nil if the variable is not
// floating point.
func readGridVar(nc *cdf.File, v string) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	dataI := r.Zero(-1)
	switch dataI.(type) {
	case []float32, []float64:
	default:
		return nil, nil
	}
	if _, err := r.Read(dataI); err != nil {
		return nil, err
	}
	var data []float64
	switch d := dataI.(type) {
	case []float64:
		data = d
	case []float32:
		data = make([]float64, len(d))
		for i, val := range d {
			data[i] = float64(val)
		}
	}
	noDataI := nc.Header.GetAttribute(v, "_FillValue")
	if noDataI != nil {
		var noData float64
		switch nd := noDataI.(type) {
		case []float32:
			noData = float64(nd[0])
		case []float64:
			noData = nd[0]
		default:
			return nil, fmt.Errorf("invalid type for _FillValue: %T", noDataI)
		}
		for i, d := range data {
			if d == noData {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

// transformFromCenters derives an affine transform from 1-D cell
// center arrays. The arrays may ascend or descend; row 0 of the grid
// corresponds to ys[0] either way, so no data flipping occurs.
func transformFromCenters(xs, ys []float64) (Affine, error) {
	dx := (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1)
	dy := (ys[len(ys)-1] - ys[0]) / float64(len(ys)-1)
	if dx == 0 || dy == 0 {
		return Affine{}, fmt.Errorf("zero coordinate spacing (dx=%g, dy=%g)", dx, dy)
	}
	return Affine{
		Dx: dx,
		Dy: dy,
		X0: xs[0] - dx/2,
		Y0: ys[0] - dy/2,
	}, nil
}
