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
	"runtime"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
)

// AreaMeasurer measures the true area of a polygon in km². The engine
// calls area measurement through this interface so the filtering
// contract can be tested independently of the projection library.
type AreaMeasurer interface {
	AreaKm2(p geom.Polygon) (float64, error)
}

type equalAreaMeasurer struct {
	ct proj.Transformer
}

// NewAreaMeasurer returns an AreaMeasurer that reprojects polygons
// from srcProj4 to the given equal-area CRS before measuring, since
// raw cell counts in geographic coordinates do not yield km².
func NewAreaMeasurer(srcProj4, equalAreaProj4 string) (AreaMeasurer, error) {
	src, err := proj.Parse(srcProj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: NewAreaMeasurer: parsing CRS %q: %v", srcProj4, err)
	}
	dst, err := proj.Parse(equalAreaProj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: NewAreaMeasurer: parsing CRS %q: %v", equalAreaProj4, err)
	}
	ct, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("geodata: NewAreaMeasurer: from %q to %q: %v", srcProj4, equalAreaProj4, err)
	}
	return &equalAreaMeasurer{ct: ct}, nil
}

func (m *equalAreaMeasurer) AreaKm2(p geom.Polygon) (float64, error) {
	g, err := p.Transform(m.ct)
	if err != nil {
		return 0, err
	}
	return g.(geom.Polygon).Area() / 1e6, nil
}

// AreaFilterOptions control FilterArea. The zero value filters the
// merged mask on cells of value 1 using the container's equal-area
// CRS and returns the result without storing it.
type AreaFilterOptions struct {
	// ShapeValue is the cell value grouped into regions. Default 1.
	ShapeValue float64
	// LayerName selects the input layer; if empty, the merged mask is
	// filtered.
	LayerName string
	// DestName, if non-empty, additionally stores the result as a
	// layer under this name.
	DestName string
	// Measurer overrides the default equal-area measurement.
	Measurer AreaMeasurer
}

// FilterArea removes connected regions smaller than minAreaKm2 from a
// binary raster. Cells sharing ShapeValue are grouped 4-connected
// (diagonal neighbors are separate regions), each region's outline is
// measured in an equal-area CRS, and regions whose area is strictly
// less than the threshold are zeroed; regions exactly at the threshold
// are retained. The source raster is not mutated; a new raster with
// the same shape and transform is returned.
//
// Cost grows with the number of connected regions and can run for
// minutes on large grids. The call is single-pass: either the full
// output raster is produced or an error is returned with no partial
// state.
func (m *MaskContainer) FilterArea(minAreaKm2 float64, opts AreaFilterOptions) (*RasterLayer, error) {
	var src *RasterLayer
	if opts.LayerName != "" {
		l, ok := m.layers[opts.LayerName]
		if !ok {
			return nil, NotFoundError{Op: "FilterArea", Name: opts.LayerName}
		}
		src = l
	} else {
		if m.merged == nil {
			return nil, NotFoundError{Op: "FilterArea", Name: "merged mask"}
		}
		src = m.merged
	}
	shapeValue := opts.ShapeValue
	if shapeValue == 0 {
		shapeValue = 1
	}
	measurer := opts.Measurer
	if measurer == nil {
		var err error
		measurer, err = NewAreaMeasurer(src.Proj4, m.cfg.EqualAreaProj4)
		if err != nil {
			return nil, err
		}
	}

	labels, n := labelRegions(src, shapeValue)
	m.Log.WithFields(logrus.Fields{"regions": n, "minAreaKm2": minAreaKm2}).
		Info("measuring connected regions")

	areas, err := measureRegions(src, labels, n, measurer)
	if err != nil {
		return nil, fmt.Errorf("geodata: FilterArea: measuring region area: %v", err)
	}

	out := src.Copy()
	ny, nx := src.Shape()
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			lab := labels[r*nx+c]
			if lab >= 0 && areas[lab] < minAreaKm2 {
				setCell(out.Data, 0, r, c)
			}
		}
	}

	if opts.DestName != "" {
		if old, ok := m.layers[opts.DestName]; ok {
			old.Close()
		} else {
			m.names = append(m.names, opts.DestName)
		}
		m.layers[opts.DestName] = out
		m.mutate()
	}
	return out, nil
}

// labelRegions assigns each cell of value shapeValue a 4-connected
// region label; other cells get -1. Returns the label grid (row-major)
// and the number of regions.
func labelRegions(l *RasterLayer, shapeValue float64) ([]int, int) {
	ny, nx := l.Shape()
	labels := make([]int, ny*nx)
	for i := range labels {
		labels[i] = -1
	}
	inRegion := func(r, c int) bool {
		v := l.Data.Get(r, c)
		return !l.IsNoData(v) && v == shapeValue
	}
	n := 0
	var stack [][2]int
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			if labels[r*nx+c] >= 0 || !inRegion(r, c) {
				continue
			}
			stack = append(stack[:0], [2]int{r, c})
			labels[r*nx+c] = n
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					rr, cc := p[0]+d[0], p[1]+d[1]
					if rr < 0 || rr >= ny || cc < 0 || cc >= nx {
						continue
					}
					if labels[rr*nx+cc] < 0 && inRegion(rr, cc) {
						labels[rr*nx+cc] = n
						stack = append(stack, [2]int{rr, cc})
					}
				}
			}
			n++
		}
	}
	return labels, n
}

// regionPolygon builds the outline of one labeled region as a polygon
// with one ring per horizontal run of cells. The rings partition the
// region, so the polygon's measured area equals the region's area.
func regionPolygon(l *RasterLayer, labels []int, label int) geom.Polygon {
	ny, nx := l.Shape()
	var p geom.Polygon
	for r := 0; r < ny; r++ {
		c := 0
		for c < nx {
			if labels[r*nx+c] != label {
				c++
				continue
			}
			c0 := c
			for c < nx && labels[r*nx+c] == label {
				c++
			}
			x0, y0 := l.Transform.Apply(float64(c0), float64(r))
			x1, y1 := l.Transform.Apply(float64(c), float64(r))
			x2, y2 := l.Transform.Apply(float64(c), float64(r+1))
			x3, y3 := l.Transform.Apply(float64(c0), float64(r+1))
			p = append(p, geom.Path{
				{X: x0, Y: y0}, {X: x1, Y: y1},
				{X: x2, Y: y2}, {X: x3, Y: y3},
				{X: x0, Y: y0},
			})
		}
	}
	return p
}

// measureRegions computes each region's area in parallel. Each region
// is independent, so the workers share no mutable state beyond the
// result slots they own.
func measureRegions(l *RasterLayer, labels []int, n int, measurer AreaMeasurer) ([]float64, error) {
	areas := make([]float64, n)
	nprocs := runtime.GOMAXPROCS(0)
	errChan := make(chan error, nprocs)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			for i := procnum; i < n; i += nprocs {
				a, err := measurer.AreaKm2(regionPolygon(l, labels, i))
				if err != nil {
					errChan <- err
					return
				}
				areas[i] = a
			}
			errChan <- nil
		}(procnum)
	}
	var firstErr error
	for procnum := 0; procnum < nprocs; procnum++ {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return areas, nil
}
