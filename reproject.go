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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// LongLat is the canonical coordinate reference system all stored
// layers are normalized to.
const LongLat = "+proj=longlat +datum=WGS84 +no_defs"

// EqualArea is the fixed global equal-area CRS used for area
// measurement and kilometer buffering. Using one global Albers
// projection for all regions is an approximation for very large or
// near-antimeridian geometries. The standard parallels must not be
// symmetric about the equator; the Albers cone degenerates there.
const EqualArea = "+proj=aea +lat_1=-20 +lat_2=40 +lat_0=0 +lon_0=0 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"

// Resample identifies a resampling method used when warping a raster
// between grids or coordinate systems.
type Resample int

const (
	// Nearest assigns each output cell the value of the nearest input
	// cell. Appropriate for categorical and binary data.
	Nearest Resample = iota
	// Bilinear interpolates among the four surrounding input cell
	// centers, skipping no-data cells. Appropriate for continuous data.
	Bilinear
)

// sameSR reports whether two layers' CRSs are interchangeable.
func sameSR(aProj4 string, a *proj.SR, bProj4 string, b *proj.SR) bool {
	if aProj4 == bProj4 {
		return true
	}
	return a.Equal(b, 10)
}

// Reproject warps the layer onto a new grid in the CRS given by proj4,
// preserving the source's cell count along each axis. If the layer is
// already in the requested CRS it is returned unchanged. The result is
// north-up; cells in the output that fall outside the source extent
// are no-data. Requires a rectilinear source transform.
func (l *RasterLayer) Reproject(proj4 string, method Resample) (*RasterLayer, error) {
	dst, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: Reproject: parsing CRS %q: %v", proj4, err)
	}
	if sameSR(l.Proj4, l.SR, proj4, dst) {
		return l, nil
	}
	if !l.Transform.Rectilinear() {
		return nil, fmt.Errorf("geodata: Reproject: source transform %+v has rotation terms", l.Transform)
	}
	fwd, err := l.SR.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("geodata: Reproject: from %q to %q: %v", l.Proj4, proj4, err)
	}
	inv, err := dst.NewTransform(l.SR)
	if err != nil {
		return nil, fmt.Errorf("geodata: Reproject: from %q to %q: %v", proj4, l.Proj4, err)
	}

	ny, nx := l.Shape()
	b, err := l.boundaryBounds(fwd)
	if err != nil {
		return nil, fmt.Errorf("geodata: Reproject: projecting extent of source: %v", err)
	}
	t := Affine{
		Dx: (b.Max.X - b.Min.X) / float64(nx),
		Dy: -(b.Max.Y - b.Min.Y) / float64(ny),
		X0: b.Min.X,
		Y0: b.Max.Y,
	}

	out := &RasterLayer{
		Data:      sparseFull(ny, nx, l.NoData),
		Transform: t,
		SR:        dst,
		Proj4:     proj4,
		NoData:    l.NoData,
	}
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			x, y := t.CellCenter(r, c)
			sx, sy, err := inv(x, y)
			if err != nil {
				continue // unprojectable point stays no-data
			}
			v, ok := l.sample(sx, sy, method)
			if ok {
				setCell(out.Data, v, r, c)
			}
		}
	}
	return out, nil
}

// boundaryBounds projects the source's corner and edge-midpoint
// coordinates and returns their bounding box.
func (l *RasterLayer) boundaryBounds(fwd proj.Transformer) (*geom.Bounds, error) {
	ny, nx := l.Shape()
	fx, fy := float64(nx), float64(ny)
	pts := [][2]float64{
		{0, 0}, {fx / 2, 0}, {fx, 0},
		{0, fy / 2}, {fx, fy / 2},
		{0, fy}, {fx / 2, fy}, {fx, fy},
	}
	b := geom.NewBounds()
	for _, p := range pts {
		x, y := l.Transform.Apply(p[0], p[1])
		px, py, err := fwd(x, y)
		if err != nil {
			return nil, err
		}
		b.Extend(geom.Point{X: px, Y: py}.Bounds())
	}
	if b.Empty() {
		return nil, fmt.Errorf("empty projected extent")
	}
	return b, nil
}

// sample reads the layer at a coordinate in the layer's own CRS.
// ok is false outside the grid or where the source is no-data.
func (l *RasterLayer) sample(x, y float64, method Resample) (v float64, ok bool) {
	col, row, err := l.Transform.Index(x, y)
	if err != nil {
		return 0, false
	}
	ny, nx := l.Shape()
	switch method {
	case Bilinear:
		// Interpolate among the four surrounding cell centers,
		// renormalizing the weights of any no-data neighbors.
		u := col - 0.5
		w := row - 0.5
		c0 := int(math.Floor(u))
		r0 := int(math.Floor(w))
		fu := u - float64(c0)
		fw := w - float64(r0)
		var sum, wsum float64
		for dr := 0; dr <= 1; dr++ {
			for dc := 0; dc <= 1; dc++ {
				r, c := r0+dr, c0+dc
				if r < 0 || r >= ny || c < 0 || c >= nx {
					continue
				}
				val := l.Data.Get(r, c)
				if l.IsNoData(val) {
					continue
				}
				wt := (1 - math.Abs(float64(dc)-fu)) * (1 - math.Abs(float64(dr)-fw))
				sum += wt * val
				wsum += wt
			}
		}
		if wsum == 0 {
			return 0, false
		}
		return sum / wsum, true
	default: // Nearest
		c := int(math.Floor(col))
		r := int(math.Floor(row))
		if r < 0 || r >= ny || c < 0 || c >= nx {
			return 0, false
		}
		val := l.Data.Get(r, c)
		if l.IsNoData(val) {
			return 0, false
		}
		return val, true
	}
}
