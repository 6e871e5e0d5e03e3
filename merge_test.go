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
	"testing"
)

// abContainer builds the two-layer scenario used throughout: a 10×10
// layer A of all ones and a 10×10 layer B that is 0 in the 2×2 block
// at rows 0-1, cols 0-1 and 1 elsewhere.
func abContainer(t *testing.T) *MaskContainer {
	t.Helper()
	m := NewMaskContainer(nil)
	a := uniformLayer(t, 10, 10, 1)
	b := uniformLayer(t, 10, 10, 1)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			setCell(b.Data, 0, r, c)
		}
	}
	for name, l := range map[string]*RasterLayer{"a": a, "b": b} {
		err := m.AddLayer(InMemoryGrid{Data: l.Data, Transform: l.Transform}, name, AddOptions{})
		if err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func inBlock(r, c int) bool { return r < 2 && c < 2 }

func TestMergeAnd(t *testing.T) {
	m := abContainer(t)
	merged, err := m.MergeLayers(nil, MergeOptions{Method: MergeAnd})
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			want := 1.
			if inBlock(r, c) {
				want = 0
			}
			if got := merged.Data.Get(r, c); got != want {
				t.Errorf("cell (%d, %d) = %g, want %g", r, c, got, want)
			}
		}
	}
	if m.Merged() != merged {
		t.Error("merged mask was not stored in the container")
	}
}

func TestMergeSumEqualWeights(t *testing.T) {
	m := abContainer(t)
	merged, err := m.MergeLayers(nil, MergeOptions{
		Method:  MergeSum,
		Weights: map[string]float64{"a": 0.5, "b": 0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			want := 1.
			if inBlock(r, c) {
				want = 0.5
			}
			if got := merged.Data.Get(r, c); different(got, want, testTolerance) {
				t.Errorf("cell (%d, %d) = %g, want %g", r, c, got, want)
			}
		}
	}
}

// Merging with weights {1, 1} then halving must equal merging with
// weights {0.5, 0.5}.
func TestMergeSumLinearity(t *testing.T) {
	m := abContainer(t)
	full, err := m.MergeLayers(nil, MergeOptions{
		Method:  MergeSum,
		Weights: map[string]float64{"a": 1, "b": 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	fullData := full.Data.Copy()
	half, err := m.MergeLayers(nil, MergeOptions{
		Method:  MergeSum,
		Weights: map[string]float64{"a": 0.5, "b": 0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := range fullData.Elements {
		if different(fullData.Elements[i]/2, half.Data.Elements[i], testTolerance) {
			t.Fatalf("element %d: %g/2 != %g", i, fullData.Elements[i], half.Data.Elements[i])
		}
	}
}

// Flipping any single contributing cell to 0 must flip the AND-merged
// cell to 0.
func TestMergeAndMonotonicity(t *testing.T) {
	m := abContainer(t)
	a, err := m.Layer("a")
	if err != nil {
		t.Fatal(err)
	}
	setCell(a.Data, 0, 7, 7)
	merged, err := m.MergeLayers(nil, MergeOptions{Method: MergeAnd})
	if err != nil {
		t.Fatal(err)
	}
	if got := merged.Data.Get(7, 7); got != 0 {
		t.Errorf("cell (7, 7) = %g, want 0", got)
	}
	if got := merged.Data.Get(7, 8); got != 1 {
		t.Errorf("cell (7, 8) = %g, want 1", got)
	}
}

func TestMergeSelection(t *testing.T) {
	m := NewMaskContainer(nil)
	if _, err := m.MergeLayers(nil, MergeOptions{}); err == nil {
		t.Error("merging an empty container should fail")
	} else if _, ok := err.(EmptySelectionError); !ok {
		t.Errorf("error = %v, want EmptySelectionError", err)
	}

	m = abContainer(t)
	if _, err := m.MergeLayers([]string{"a", "missing"}, MergeOptions{}); err == nil {
		t.Error("merging a missing layer should fail")
	} else if _, ok := err.(NotFoundError); !ok {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestMergeTrim(t *testing.T) {
	m := abContainer(t)
	// With only layer b selected, the AND result is 0 in the corner
	// block, which trims away rows 0-1 only if the whole border
	// row/column is zero. Shrink b to make the first row all zero.
	b, err := m.Layer("b")
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 10; c++ {
		setCell(b.Data, 0, 0, c)
	}
	merged, err := m.MergeLayers([]string{"b"}, MergeOptions{Method: MergeAnd, Trim: true})
	if err != nil {
		t.Fatal(err)
	}
	if ny, nx := merged.Shape(); ny != 9 || nx != 10 {
		t.Errorf("trimmed merge shape = %d×%d, want 9×10", ny, nx)
	}
}

func TestMergeWeightsCopied(t *testing.T) {
	m := abContainer(t)
	weights := map[string]float64{"a": 2, "b": 1}
	_, err := m.MergeLayers(nil, MergeOptions{Method: MergeSum, Weights: weights})
	if err != nil {
		t.Fatal(err)
	}
	weights["a"] = 100
	if m.mergeWeights["a"] != 2 {
		t.Errorf("recorded weight for a = %g, want 2; caller mutation leaked in", m.mergeWeights["a"])
	}
}
