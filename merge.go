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
	"github.com/sirupsen/logrus"
)

// MergeMethod selects the rule used to combine layers.
type MergeMethod string

const (
	// MergeAnd produces 1 where every selected layer is non-zero and
	// not no-data, 0 elsewhere: a location is usable only if all
	// constraints permit it.
	MergeAnd MergeMethod = "and"
	// MergeSum produces the weighted sum of the selected layers.
	// Weights express relative importance and need not sum to 1.
	MergeSum MergeMethod = "sum"
)

// MergeOptions control MergeLayers. The zero value merges all layers
// with the "and" rule onto the finest-resolution layer's grid.
type MergeOptions struct {
	Method MergeMethod
	// Weights gives per-layer weights for MergeSum; layers without an
	// entry weigh 1.
	Weights map[string]float64
	// ReferenceLayer names the layer whose grid the output uses. If
	// empty, the finest-resolution selected layer is used.
	ReferenceLayer string
	// Trim removes all-zero border rows and columns from the result.
	Trim bool
}

// MergeLayers combines the named layers (all layers if names is nil)
// into a single raster, resamples every input onto a common grid
// (nearest-neighbor), stores the result as the container's merged
// mask, and returns it. Source no-data cells count as 0 under both
// rules.
func (m *MaskContainer) MergeLayers(names []string, opts MergeOptions) (*RasterLayer, error) {
	if names == nil {
		names = m.LayerNames()
	}
	if len(names) == 0 {
		return nil, EmptySelectionError{Op: "MergeLayers"}
	}
	method := opts.Method
	if method == "" {
		method = MergeAnd
	}
	if method != MergeAnd && method != MergeSum {
		return nil, fmt.Errorf("geodata: MergeLayers: unknown method %q", method)
	}

	selected := make([]*RasterLayer, len(names))
	for i, n := range names {
		l, ok := m.layers[n]
		if !ok {
			return nil, NotFoundError{Op: "MergeLayers", Name: n}
		}
		selected[i] = l
	}

	// Output grid: the reference layer's, or the finest-resolution
	// selected layer's.
	var ref *RasterLayer
	if opts.ReferenceLayer != "" {
		l, ok := m.layers[opts.ReferenceLayer]
		if !ok {
			return nil, NotFoundError{Op: "MergeLayers", Name: opts.ReferenceLayer}
		}
		ref = l
	} else {
		for _, l := range selected {
			if ref == nil || l.Resolution().Product() < ref.Resolution().Product() {
				ref = l
			}
		}
	}

	ny, nx := ref.Shape()
	resampled := make([]*sparse.DenseArray, len(selected))
	for i, l := range selected {
		rl, err := m.resampleOnto(l, ref)
		if err != nil {
			return nil, fmt.Errorf("geodata: MergeLayers: resampling layer %q: %v", names[i], err)
		}
		resampled[i] = rl
	}
	for i, a := range resampled {
		// Resampling guarantees shape compatibility.
		if a.Shape[0] != ny || a.Shape[1] != nx {
			panic(fmt.Errorf("geodata: MergeLayers: resampled layer %q shape %v does not match output %d×%d",
				names[i], a.Shape, ny, nx))
		}
	}

	out := sparse.ZerosDense(ny, nx)
	switch method {
	case MergeAnd:
		for i := range out.Elements {
			v := 1.
			for _, a := range resampled {
				if a.Elements[i] == 0 || math.IsNaN(a.Elements[i]) {
					v = 0
					break
				}
			}
			out.Elements[i] = v
		}
	case MergeSum:
		for j, a := range resampled {
			w := 1.
			if opts.Weights != nil {
				if wt, ok := opts.Weights[names[j]]; ok {
					w = wt
				}
			}
			for i, v := range a.Elements {
				if !math.IsNaN(v) {
					out.Elements[i] += w * v
				}
			}
		}
	}

	merged := &RasterLayer{
		Data:      out,
		Transform: ref.Transform,
		SR:        ref.SR,
		Proj4:     ref.Proj4,
		NoData:    math.NaN(),
	}
	if opts.Trim {
		merged = merged.trimWhere(func(v float64) bool { return v == 0 || math.IsNaN(v) })
	}

	if m.merged != nil {
		m.merged.Close()
	}
	m.merged = merged
	m.mergeMethod = string(method)
	// Copy the weights so later caller mutation cannot change what
	// the snapshot manifest records.
	m.mergeWeights = nil
	if opts.Weights != nil {
		m.mergeWeights = make(map[string]float64, len(opts.Weights))
		for k, v := range opts.Weights {
			m.mergeWeights[k] = v
		}
	}
	m.mutate()
	m.Log.WithFields(logrus.Fields{"method": method, "layers": len(names)}).
		Info("merged layers")
	return merged, nil
}

// resampleOnto samples l nearest-neighbor at every cell center of
// ref's grid. Cells outside l, or no-data in l, come back NaN. Layers
// stored with a bypassed CRS are reconciled to the reference CRS
// first; this always succeeds because the container defines a
// canonical CRS.
func (m *MaskContainer) resampleOnto(l, ref *RasterLayer) (*sparse.DenseArray, error) {
	if !sameSR(l.Proj4, l.SR, ref.Proj4, ref.SR) {
		warped, err := l.Reproject(ref.Proj4, Nearest)
		if err != nil {
			return nil, err
		}
		l = warped
	}
	ny, nx := ref.Shape()
	out := sparseFull(ny, nx, math.NaN())
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			x, y := ref.Transform.CellCenter(r, c)
			if v, ok := l.sample(x, y, Nearest); ok {
				setCell(out, v, r, c)
			}
		}
	}
	return out, nil
}
