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
	"reflect"
	"testing"
)

func addUniform(t *testing.T, m *MaskContainer, name string, v float64) {
	t.Helper()
	l := uniformLayer(t, 4, 4, v)
	err := m.AddLayer(InMemoryGrid{Data: l.Data, Transform: l.Transform}, name, AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddLayerConflict(t *testing.T) {
	m := NewMaskContainer(nil)
	addUniform(t, m, "slope", 1)
	l := uniformLayer(t, 4, 4, 2)
	err := m.AddLayer(InMemoryGrid{Data: l.Data, Transform: l.Transform}, "slope",
		AddOptions{KeepExisting: true})
	if _, ok := err.(NameConflictError); !ok {
		t.Fatalf("error = %v, want NameConflictError", err)
	}
	// Without KeepExisting the new layer replaces the old one.
	err = m.AddLayer(InMemoryGrid{Data: l.Data, Transform: l.Transform}, "slope", AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Layer("slope")
	if err != nil {
		t.Fatal(err)
	}
	if got.Data.Get(0, 0) != 2 {
		t.Errorf("layer value = %g, want 2", got.Data.Get(0, 0))
	}
	if names := m.LayerNames(); !reflect.DeepEqual(names, []string{"slope"}) {
		t.Errorf("layer names = %v, want [slope]", names)
	}
}

func TestRemoveLayer(t *testing.T) {
	m := NewMaskContainer(nil)
	addUniform(t, m, "a", 1)
	addUniform(t, m, "b", 1)
	if err := m.RemoveLayer("a"); err != nil {
		t.Fatal(err)
	}
	if names := m.LayerNames(); !reflect.DeepEqual(names, []string{"b"}) {
		t.Errorf("layer names = %v, want [b]", names)
	}
	if _, err := m.Layer("a"); err == nil {
		t.Error("removed layer should not be retrievable")
	}
	err := m.RemoveLayer("missing")
	if _, ok := err.(NotFoundError); !ok {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestRenameLayer(t *testing.T) {
	m := NewMaskContainer(nil)
	addUniform(t, m, "a", 1)
	addUniform(t, m, "b", 2)
	if err := m.RenameLayer("a", "c"); err != nil {
		t.Fatal(err)
	}
	if names := m.LayerNames(); !reflect.DeepEqual(names, []string{"c", "b"}) {
		t.Errorf("layer names = %v, want [c b]", names)
	}
	err := m.RenameLayer("c", "b")
	if _, ok := err.(NameConflictError); !ok {
		t.Errorf("renaming onto an existing name: error = %v, want NameConflictError", err)
	}
	err = m.RenameLayer("missing", "x")
	if _, ok := err.(NotFoundError); !ok {
		t.Errorf("renaming a missing layer: error = %v, want NotFoundError", err)
	}
}

func TestFilterLayerDest(t *testing.T) {
	m := NewMaskContainer(nil)
	addUniform(t, m, "slope", 3)
	if err := m.FilterLayer("slope", Filter{Values: []float64{3}, Binarize: true}, "steep"); err != nil {
		t.Fatal(err)
	}
	if names := m.LayerNames(); !reflect.DeepEqual(names, []string{"slope", "steep"}) {
		t.Errorf("layer names = %v, want [slope steep]", names)
	}
	src, err := m.Layer("slope")
	if err != nil {
		t.Fatal(err)
	}
	if src.Data.Get(0, 0) != 3 {
		t.Error("filtering into a new layer should not change the source")
	}
	dst, err := m.Layer("steep")
	if err != nil {
		t.Fatal(err)
	}
	if dst.Data.Get(0, 0) != 1 {
		t.Errorf("binarized value = %g, want 1", dst.Data.Get(0, 0))
	}
}

func TestSavedFlag(t *testing.T) {
	m := NewMaskContainer(nil)
	if m.Saved() {
		t.Error("new container should not be marked saved")
	}
	addUniform(t, m, "a", 1)
	m.saved = true
	if err := m.RemoveLayer("a"); err != nil {
		t.Fatal(err)
	}
	if m.Saved() {
		t.Error("removing a layer should clear the saved flag")
	}
}

func TestResolutionsAndBounds(t *testing.T) {
	m := NewMaskContainer(nil)
	addUniform(t, m, "a", 1)
	res := m.Resolutions()
	if r, ok := res["a"]; !ok || different(r.Dx, 1, testTolerance) || different(r.Dy, 1, testTolerance) {
		t.Errorf("resolutions = %v", res)
	}
	b := m.LayerBounds()["a"]
	if different(b.Max.X, 4, testTolerance) || different(b.Max.Y, 4, testTolerance) {
		t.Errorf("bounds = %+v", b)
	}
}
