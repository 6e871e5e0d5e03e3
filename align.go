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
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	goshp "github.com/jonas-p/go-shp"
)

// GridSpec is a target grid for resampling, typically coarser than the
// mask rasters and supplied by the cutout subsystem. Coordinate arrays
// hold cell centers and may be ascending or descending.
type GridSpec struct {
	Name   string
	Proj4  string
	SR     *proj.SR
	X, Y   []float64
	Cells  []*GridCell
	Extent geom.Polygon
	index  *rtree.Rtree
}

// GridCell is one cell of a GridSpec.
type GridCell struct {
	geom.Polygonal
	Row, Col int
}

// Nx returns the number of grid columns.
func (g *GridSpec) Nx() int { return len(g.X) }

// Ny returns the number of grid rows.
func (g *GridSpec) Ny() int { return len(g.Y) }

// gridSpacing returns the size of the grid cell at index i given the
// cell center points. Spacing is signed, matching the direction of the
// coordinate array.
func gridSpacing(centers []float64, i int) float64 {
	if i == 0 {
		return centers[1] - centers[0]
	} else if i == len(centers)-1 {
		return centers[len(centers)-1] - centers[len(centers)-2]
	}
	return (centers[i+1] - centers[i-1]) / 2
}

// NewGridSpec creates a grid from cell center coordinate arrays,
// inferring cell sizes from the center spacing. Both arrays must have
// at least two elements for the spacing to be inferable; proj4 gives
// the CRS (LongLat if empty).
func NewGridSpec(name string, x, y []float64, proj4 string) (*GridSpec, error) {
	if len(x) < 2 || len(y) < 2 {
		return nil, fmt.Errorf("geodata: NewGridSpec %s: need at least 2 coordinates per axis to infer spacing, have %d x %d", name, len(x), len(y))
	}
	dxAt := func(col int) float64 { return math.Abs(gridSpacing(x, col)) }
	dyAt := func(row int) float64 { return math.Abs(gridSpacing(y, row)) }
	return newGrid(name, x, y, dxAt, dyAt, proj4)
}

// newGrid builds a GridSpec from cell centers plus per-index cell
// sizes.
func newGrid(name string, x, y []float64, dxAt, dyAt func(int) float64, proj4 string) (*GridSpec, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, fmt.Errorf("geodata: grid %s: empty coordinate axis", name)
	}
	if proj4 == "" {
		proj4 = LongLat
	}
	sr, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: grid %s: parsing CRS %q: %v", name, proj4, err)
	}
	g := &GridSpec{
		Name:  name,
		Proj4: proj4,
		SR:    sr,
		X:     append([]float64(nil), x...),
		Y:     append([]float64(nil), y...),
		index: rtree.NewTree(25, 50),
	}
	g.Cells = make([]*GridCell, 0, len(x)*len(y))
	for row, yc := range g.Y {
		dy := dyAt(row)
		for col, xc := range g.X {
			dx := dxAt(col)
			cell := &GridCell{
				Row: row,
				Col: col,
				Polygonal: geom.Polygon{{
					{X: xc - dx/2, Y: yc - dy/2},
					{X: xc + dx/2, Y: yc - dy/2},
					{X: xc + dx/2, Y: yc + dy/2},
					{X: xc - dx/2, Y: yc + dy/2},
				}},
			}
			g.Cells = append(g.Cells, cell)
			g.index.Insert(cell)
		}
	}
	b := geom.NewBounds()
	for _, c := range g.Cells {
		b.Extend(c.Bounds())
	}
	g.Extent = geom.Polygon{{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
	}}
	return g, nil
}

// NewGridRegular creates a grid where all cells are the same size.
// X0, Y0 give the outer corner of cell (0, 0). The explicit cell size
// allows single-cell axes, which NewGridSpec cannot infer.
func NewGridRegular(name string, nx, ny int, dx, dy, x0, y0 float64, proj4 string) (*GridSpec, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("geodata: grid %s: need at least 1 cell per axis, have %d x %d", name, nx, ny)
	}
	x := make([]float64, nx)
	for i := range x {
		x[i] = x0 + (float64(i)+0.5)*dx
	}
	y := make([]float64, ny)
	for j := range y {
		y[j] = y0 + (float64(j)+0.5)*dy
	}
	adx, ady := math.Abs(dx), math.Abs(dy)
	return newGrid(name, x, y, func(int) float64 { return adx }, func(int) float64 { return ady }, proj4)
}

// cell returns the cell at (row, col).
func (g *GridSpec) cell(row, col int) *GridCell {
	return g.Cells[row*g.Nx()+col]
}

// maskCell pairs a source cell polygon with its mask value, for
// spatial indexing.
type maskCell struct {
	geom.Polygonal
	val float64
}

// AlignMask resamples a mask raster onto the grid, returning a
// coverage array of shape [ny, nx]: each value is the area-weighted
// average of the mask over the grid cell, with source no-data and
// area outside the mask's extent counting as zero. The mask must be
// in the grid's CRS.
func (g *GridSpec) AlignMask(l *RasterLayer) (*sparse.DenseArray, error) {
	if !sameSR(l.Proj4, l.SR, g.Proj4, g.SR) {
		return nil, CRSMismatchError{Op: "AlignMask", Have: l.Proj4, Want: g.Proj4}
	}
	srcNy, srcNx := l.Shape()
	src := rtree.NewTree(25, 50)
	for row := 0; row < srcNy; row++ {
		for col := 0; col < srcNx; col++ {
			v := l.Data.Get(row, col)
			if l.IsNoData(v) || v == 0 {
				continue
			}
			src.Insert(&maskCell{Polygonal: l.Transform.CellPolygon(row, col), val: v})
		}
	}
	out := sparse.ZerosDense(g.Ny(), g.Nx())
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	for p := 0; p < nprocs; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := p; i < len(g.Cells); i += nprocs {
				cell := g.Cells[i]
				cellArea := cell.Area()
				if cellArea == 0 {
					continue
				}
				var sum float64
				for _, sI := range src.SearchIntersect(cell.Bounds()) {
					s := sI.(*maskCell)
					isect := cell.Intersection(s.Polygonal)
					if isect == nil {
						continue
					}
					sum += s.val * isect.Area()
				}
				setCell(out, sum/cellArea, cell.Row, cell.Col)
			}
		}(p)
	}
	wg.Wait()
	return out, nil
}

// AlignToGrid resamples a stored mask onto grid. layerName may name a
// layer or a shape mask; empty means the merged mask.
func (m *MaskContainer) AlignToGrid(layerName string, grid *GridSpec) (*sparse.DenseArray, error) {
	var l *RasterLayer
	if layerName == "" {
		if m.merged == nil {
			return nil, fmt.Errorf("geodata: AlignToGrid: no merged mask; run MergeLayers first or name a layer")
		}
		l = m.merged
	} else if lay, ok := m.layers[layerName]; ok {
		l = lay
	} else if s, ok := m.shapes[layerName]; ok {
		l = s
	} else {
		return nil, NotFoundError{Op: "AlignToGrid", Name: layerName}
	}
	return grid.AlignMask(l)
}

// CellAreas returns the area of each grid cell in km², shape [ny, nx].
func (g *GridSpec) CellAreas(measurer AreaMeasurer) (*sparse.DenseArray, error) {
	out := sparse.ZerosDense(g.Ny(), g.Nx())
	nprocs := runtime.GOMAXPROCS(0)
	errChan := make(chan error, nprocs)
	for p := 0; p < nprocs; p++ {
		go func(p int) {
			for i := p; i < len(g.Cells); i += nprocs {
				cell := g.Cells[i]
				a, err := measurer.AreaKm2(cell.Polygonal.(geom.Polygon))
				if err != nil {
					errChan <- err
					return
				}
				setCell(out, a, cell.Row, cell.Col)
			}
			errChan <- nil
		}(p)
	}
	for p := 0; p < nprocs; p++ {
		if err := <-errChan; err != nil {
			return nil, fmt.Errorf("geodata: CellAreas: %v", err)
		}
	}
	return out, nil
}

// WriteToShp writes the grid definition to a shapefile in directory
// outdir, one polygon per cell with row and col attributes.
func (g *GridSpec) WriteToShp(outdir string) error {
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(filepath.Join(outdir, g.Name+ext))
	}
	fields := make([]goshp.Field, 2)
	fields[0] = goshp.NumberField("row", 10)
	fields[1] = goshp.NumberField("col", 10)
	shpf, err := shp.NewEncoderFromFields(filepath.Join(outdir, g.Name+".shp"),
		goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("geodata: error creating shapefile to write grid %s: %v", g.Name, err)
	}
	for _, cell := range g.Cells {
		data := []interface{}{cell.Row, cell.Col}
		if err = shpf.EncodeFields(cell.Polygonal, data...); err != nil {
			shpf.Close()
			return fmt.Errorf("geodata: error writing grid %s to shapefile: %v", g.Name, err)
		}
	}
	shpf.Close()
	return nil
}

// WriteMaskToShp writes the non-zero cells of a stored mask (layer or
// shape mask; empty name means merged) to a shapefile, one polygon per
// cell with row, col, and value attributes.
func (m *MaskContainer) WriteMaskToShp(name, filename string) error {
	var l *RasterLayer
	if name == "" {
		if m.merged == nil {
			return fmt.Errorf("geodata: WriteMaskToShp: no merged mask")
		}
		l = m.merged
	} else if lay, ok := m.layers[name]; ok {
		l = lay
	} else if s, ok := m.shapes[name]; ok {
		l = s
	} else {
		return NotFoundError{Op: "WriteMaskToShp", Name: name}
	}
	fields := make([]goshp.Field, 3)
	fields[0] = goshp.NumberField("row", 10)
	fields[1] = goshp.NumberField("col", 10)
	fields[2] = goshp.FloatField("value", 16, 6)
	shpf, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("geodata: error creating shapefile %s: %v", filename, err)
	}
	ny, nx := l.Shape()
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			v := l.Data.Get(row, col)
			if l.IsNoData(v) || v == 0 {
				continue
			}
			data := []interface{}{row, col, v}
			if err = shpf.EncodeFields(l.Transform.CellPolygon(row, col), data...); err != nil {
				shpf.Close()
				return fmt.Errorf("geodata: error writing mask %q to shapefile: %v", name, err)
			}
		}
	}
	shpf.Close()
	return nil
}
