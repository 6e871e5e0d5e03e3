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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// WeightedSeries is the aggregated output for one region: one value
// per time step of the input variable.
type WeightedSeries []float64

// Aggregate reduces a gridded variable to a weighted time series. The
// variable has shape [nt, ny, nx] or [ny, nx] (treated as a single
// time step); mask is a coverage array and area a per-cell area grid,
// both of shape [ny, nx]. Each output value is
// Σ(variable·mask·area) / Σ(mask·area) over the spatial dimensions.
// NaN mask or area cells are dropped from both sums. A NaN variable
// cell adds nothing to the numerator but its weight stays in the
// denominator, treating missing data as zero for that time step. If
// the denominator is zero, a NoSuitableAreaError is returned.
func Aggregate(variable, mask, area *sparse.DenseArray) (WeightedSeries, error) {
	var nt, ny, nx int
	switch len(variable.Shape) {
	case 2:
		nt, ny, nx = 1, variable.Shape[0], variable.Shape[1]
	case 3:
		nt, ny, nx = variable.Shape[0], variable.Shape[1], variable.Shape[2]
	default:
		return nil, fmt.Errorf("geodata: Aggregate: variable must have 2 or 3 dimensions, have %d", len(variable.Shape))
	}
	if len(mask.Shape) != 2 || mask.Shape[0] != ny || mask.Shape[1] != nx {
		return nil, fmt.Errorf("geodata: Aggregate: mask shape %v does not match variable spatial shape [%d %d]", mask.Shape, ny, nx)
	}
	if len(area.Shape) != 2 || area.Shape[0] != ny || area.Shape[1] != nx {
		return nil, fmt.Errorf("geodata: Aggregate: area shape %v does not match variable spatial shape [%d %d]", area.Shape, ny, nx)
	}

	// Spatial weights are constant across time steps.
	w := make([]float64, ny*nx)
	floats.MulTo(w, mask.Elements, area.Elements)
	var denom float64
	for i, v := range w {
		if math.IsNaN(v) {
			w[i] = 0
			continue
		}
		denom += v
	}
	if denom == 0 {
		return nil, NoSuitableAreaError{}
	}

	out := make(WeightedSeries, nt)
	for t := 0; t < nt; t++ {
		slab := variable.Elements[t*ny*nx : (t+1)*ny*nx]
		var num float64
		for i, v := range slab {
			if w[i] == 0 || math.IsNaN(v) {
				continue
			}
			num += v * w[i]
		}
		out[t] = num / denom
	}
	return out, nil
}

// AggregateShapes aligns each of the container's shape masks onto
// grid and aggregates variable over each, returning one weighted
// series per region. Regions whose mask covers no suitable area map
// to a NoSuitableAreaError carrying the region name.
func (m *MaskContainer) AggregateShapes(grid *GridSpec, variable, area *sparse.DenseArray) (map[string]WeightedSeries, error) {
	if len(m.shapes) == 0 {
		return nil, EmptySelectionError{Op: "AggregateShapes"}
	}
	out := make(map[string]WeightedSeries, len(m.shapes))
	for _, name := range m.shapeNames {
		coverage, err := grid.AlignMask(m.shapes[name])
		if err != nil {
			return nil, fmt.Errorf("geodata: AggregateShapes: region %q: %v", name, err)
		}
		series, err := Aggregate(variable, coverage, area)
		if err != nil {
			if _, ok := err.(NoSuitableAreaError); ok {
				return nil, NoSuitableAreaError{Region: name}
			}
			return nil, fmt.Errorf("geodata: AggregateShapes: region %q: %v", name, err)
		}
		out[name] = series
	}
	return out, nil
}
