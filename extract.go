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
	"github.com/sirupsen/logrus"
)

// A Rasterizer turns a polygonal region into a 0/1 mask on a raster
// grid. Implementations may trade accuracy for speed; the default
// tests cell centers only.
type Rasterizer interface {
	Rasterize(p geom.Polygonal, ref *RasterLayer) (*RasterLayer, error)
}

// CellCenterRasterizer marks a cell as inside a region when the cell
// center lies inside the region or on its edge.
type CellCenterRasterizer struct{}

// Rasterize implements Rasterizer.
func (CellCenterRasterizer) Rasterize(p geom.Polygonal, ref *RasterLayer) (*RasterLayer, error) {
	ny, nx := ref.Shape()
	out, err := NewRasterLayer(sparseFull(ny, nx, 0), ref.Transform, ref.Proj4, math.NaN())
	if err != nil {
		return nil, err
	}
	pb := p.Bounds()
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			x, y := ref.Transform.CellCenter(row, col)
			if x < pb.Min.X || x > pb.Max.X || y < pb.Min.Y || y > pb.Max.Y {
				continue
			}
			if (geom.Point{X: x, Y: y}).Within(p) != geom.Outside {
				out.Data.Set(1, row, col)
			}
		}
	}
	return out, nil
}

// ExtractOptions control ExtractShapes.
type ExtractOptions struct {
	// ReferenceLayer names the layer whose grid the masks are built
	// on. Empty means the merged layer.
	ReferenceLayer string

	// BufferKm expands each region outward by this many kilometers
	// before rasterizing. Zero means no buffer.
	BufferKm float64

	// Rasterizer overrides the cell-center rasterizer.
	Rasterizer Rasterizer
}

// ExtractShapes rasterizes each region of shapes onto the reference
// grid and stores the product of the stencil and the reference raster
// as a named shape mask: values equal the reference inside the region
// and 0 outside. A region that does not overlap the grid produces an
// all-zero mask rather than an error. Existing shape masks with the
// same names are replaced.
func (m *MaskContainer) ExtractShapes(shapes *ShapeCollection, opts *ExtractOptions) error {
	if opts == nil {
		opts = &ExtractOptions{}
	}
	ref, err := m.referenceLayer(opts.ReferenceLayer, "ExtractShapes")
	if err != nil {
		return err
	}
	shapes, err = shapes.Reproject(ref.Proj4)
	if err != nil {
		return err
	}
	rz := opts.Rasterizer
	if rz == nil {
		rz = CellCenterRasterizer{}
	}
	// Masks are committed only after every region succeeds, so a
	// failure partway through leaves the container unchanged.
	masks := make(map[string]*RasterLayer, len(shapes.Shapes))
	for _, name := range shapes.Names() {
		p := shapes.Shapes[name]
		if opts.BufferKm > 0 {
			p, err = m.bufferPolygon(p, ref.Proj4, opts.BufferKm)
			if err != nil {
				return fmt.Errorf("geodata: ExtractShapes: buffering region %q: %v", name, err)
			}
		}
		mask, err := rz.Rasterize(p, ref)
		if err != nil {
			return fmt.Errorf("geodata: ExtractShapes: region %q: %v", name, err)
		}
		cells := 0
		for i, s := range mask.Data.Elements {
			if s == 0 {
				continue
			}
			cells++
			if v := ref.Data.Elements[i]; ref.IsNoData(v) {
				mask.Data.Elements[i] = 0
			} else {
				mask.Data.Elements[i] = s * v
			}
		}
		masks[name] = mask
		m.Log.WithFields(logrus.Fields{
			"region": name,
			"cells":  cells,
			"buffer": opts.BufferKm,
		}).Debug("extracted shape mask")
	}
	for _, name := range shapes.Names() {
		if old, ok := m.shapes[name]; ok {
			old.Close()
		} else {
			m.shapeNames = append(m.shapeNames, name)
		}
		m.shapes[name] = masks[name]
	}
	m.mutate()
	return nil
}

// referenceLayer resolves a layer name, defaulting to the merged mask.
func (m *MaskContainer) referenceLayer(name, op string) (*RasterLayer, error) {
	if name == "" {
		if m.merged == nil {
			return nil, fmt.Errorf("geodata: %s: no merged mask; run MergeLayers first or name a reference layer", op)
		}
		return m.merged, nil
	}
	l, ok := m.layers[name]
	if !ok {
		return nil, NotFoundError{Op: op, Name: name}
	}
	return l, nil
}

const bufferSegments = 16

// bufferPolygon expands p outward by km kilometers. The polygon is
// transformed to the equal-area CRS, unioned with rectangles along each
// edge and discs at each vertex, then transformed back to proj4.
func (m *MaskContainer) bufferPolygon(p geom.Polygonal, proj4 string, km float64) (geom.Polygonal, error) {
	src, err := proj.Parse(proj4)
	if err != nil {
		return nil, err
	}
	ea, err := proj.Parse(m.cfg.EqualAreaProj4)
	if err != nil {
		return nil, err
	}
	fwd, err := src.NewTransform(ea)
	if err != nil {
		return nil, err
	}
	back, err := ea.NewTransform(src)
	if err != nil {
		return nil, err
	}
	g, err := p.Transform(fwd)
	if err != nil {
		return nil, err
	}
	buffered := bufferEqualArea(g.(geom.Polygonal), km*1000)
	g, err = buffered.Transform(back)
	if err != nil {
		return nil, err
	}
	return g.(geom.Polygonal), nil
}

// bufferEqualArea dilates p by radius r (in the units of p's CRS,
// assumed planar) by unioning p with a rectangle along each ring edge
// and a disc at each ring vertex.
func bufferEqualArea(p geom.Polygonal, r float64) geom.Polygonal {
	out := p
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			n := len(ring)
			for i := 0; i < n; i++ {
				a := ring[i]
				b := ring[(i+1)%n]
				if q, ok := edgeQuad(a, b, r); ok {
					out = out.Union(q)
				}
				out = out.Union(vertexDisc(a, r))
			}
		}
	}
	return out
}

// edgeQuad returns a rectangle of half-width r centered on segment ab.
func edgeQuad(a, b geom.Point, r float64) (geom.Polygon, bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, false
	}
	// Unit normal to ab.
	nx := -dy / length * r
	ny := dx / length * r
	return geom.Polygon{{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}}, true
}

// vertexDisc returns a regular polygon approximating a disc of radius
// r centered on c.
func vertexDisc(c geom.Point, r float64) geom.Polygon {
	ring := make(geom.Path, bufferSegments)
	for i := 0; i < bufferSegments; i++ {
		theta := 2 * math.Pi * float64(i) / bufferSegments
		ring[i] = geom.Point{
			X: c.X + r*math.Cos(theta),
			Y: c.Y + r*math.Sin(theta),
		}
	}
	return geom.Polygon{ring}
}
