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

// Package cutout reads prepared per-region cutout files: NetCDF
// datasets holding a target grid and gridded time-series variables,
// consumed by mask alignment and weighted aggregation.
package cutout

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	geodata "github.com/gschivley/geodata-1"
)

// Cutout allows interaction with a NetCDF-formatted cutout file. A
// cutout carries 1-D cell center coordinate arrays (ascending or
// descending), an optional time axis, and float variables over
// [time, y, x] or [y, x].
type Cutout struct {
	cdf.File

	file      *os.File
	grid      *geodata.GridSpec
	yDim      string
	xDim      string
	times     []float64
	timeUnits string
}

// Open opens the cutout file at path.
func Open(path string) (*Cutout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cutout: opening %s: %v", path, err)
	}
	c, err := New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cutout: %s: %v", path, err)
	}
	c.file = f
	if c.grid.Name == "" {
		c.grid.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return c, nil
}

// New creates a cutout from an open NetCDF source.
func New(r cdf.ReaderWriterAt) (*Cutout, error) {
	nc, err := cdf.Open(r)
	if err != nil {
		return nil, err
	}
	c := &Cutout{File: *nc}

	c.yDim, c.xDim = "y", "x"
	if !c.hasVariable(c.yDim) {
		c.yDim, c.xDim = "lat", "lon"
	}
	ys, err := c.readFloats(c.yDim)
	if err != nil {
		return nil, fmt.Errorf("reading coordinate variable %s: %v", c.yDim, err)
	}
	xs, err := c.readFloats(c.xDim)
	if err != nil {
		return nil, fmt.Errorf("reading coordinate variable %s: %v", c.xDim, err)
	}

	proj4 := geodata.LongLat
	if p := c.Header.GetAttribute("", "proj4"); p != nil {
		proj4 = p.(string)
	}
	name := ""
	if n := c.Header.GetAttribute("", "name"); n != nil {
		name = n.(string)
	}
	c.grid, err = geodata.NewGridSpec(name, xs, ys, proj4)
	if err != nil {
		return nil, err
	}

	if c.hasVariable("time") {
		c.times, err = c.readFloats("time")
		if err != nil {
			return nil, fmt.Errorf("reading time axis: %v", err)
		}
		if u := c.Header.GetAttribute("time", "units"); u != nil {
			c.timeUnits = u.(string)
		}
	}
	return c, nil
}

// Grid returns the cutout's target grid.
func (c *Cutout) Grid() *geodata.GridSpec { return c.grid }

// Times returns the raw time axis values, or nil if the cutout has no
// time axis. TimeUnits gives their meaning.
func (c *Cutout) Times() []float64 { return c.times }

// TimeUnits returns the units attribute of the time axis, e.g.
// "hours since 2013-01-01".
func (c *Cutout) TimeUnits() string { return c.timeUnits }

// Variables returns the names of the gridded data variables: those
// with dimensions [time, y, x] or [y, x].
func (c *Cutout) Variables() []string {
	var out []string
	for _, v := range c.Header.Variables() {
		if c.isGridded(v) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Cutout) isGridded(v string) bool {
	dims := c.Header.Dimensions(v)
	switch len(dims) {
	case 2:
		return dims[0] == c.yDim && dims[1] == c.xDim
	case 3:
		return dims[0] == "time" && dims[1] == c.yDim && dims[2] == c.xDim
	}
	return false
}

// Variable reads a gridded variable in full, returning an array of
// shape [time, y, x] (or [y, x] for time-invariant variables) with
// fill values converted to NaN.
func (c *Cutout) Variable(name string) (*sparse.DenseArray, error) {
	if !c.isGridded(name) {
		if !c.hasVariable(name) {
			return nil, fmt.Errorf("cutout: no variable %q", name)
		}
		return nil, fmt.Errorf("cutout: variable %q is not gridded over [%s, %s]", name, c.yDim, c.xDim)
	}
	data, err := c.readFloats(name)
	if err != nil {
		return nil, fmt.Errorf("cutout: reading variable %q: %v", name, err)
	}
	out := sparse.ZerosDense(c.Header.Lengths(name)...)
	copy(out.Elements, data)
	return out, nil
}

// CellAreas returns the area in km² of every grid cell, using
// equal-area reprojection from the grid's CRS.
func (c *Cutout) CellAreas() (*sparse.DenseArray, error) {
	measurer, err := geodata.NewAreaMeasurer(c.grid.Proj4, geodata.EqualArea)
	if err != nil {
		return nil, err
	}
	return c.grid.CellAreas(measurer)
}

// Close releases the underlying file handle, if the cutout owns one.
func (c *Cutout) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}

func (c *Cutout) hasVariable(name string) bool {
	for _, v := range c.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readFloats reads a float variable in full, converting fill values
// to NaN.
func (c *Cutout) readFloats(v string) ([]float64, error) {
	r := c.File.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	var data []float64
	switch d := buf.(type) {
	case []float64:
		data = d
	case []float32:
		data = make([]float64, len(d))
		for i, val := range d {
			data[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("variable %q has non-float type %T", v, buf)
	}
	if fv := c.Header.GetAttribute(v, "_FillValue"); fv != nil {
		var fill float64
		switch nd := fv.(type) {
		case []float32:
			fill = float64(nd[0])
		case []float64:
			fill = nd[0]
		default:
			return nil, fmt.Errorf("variable %q has invalid _FillValue type %T", v, fv)
		}
		for i, d := range data {
			if d == fill {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}
