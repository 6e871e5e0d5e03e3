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
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DataVersion is the version of the snapshot raster format. It is
// embedded in every written raster file and checked on load.
const DataVersion = "1.1.0"

// snapshot no-data sentinel, substituted for NaN on write.
const fillValue = -9.e33

const (
	manifestFile = "manifest.gob"
	mergedFile   = "merged.nc"
	layerDir     = "layers"
	shapeDir     = "shapes"
)

// manifest records the container contents of a snapshot directory.
// Rasters are stored in index-named files so that layer names need not
// be legal file names.
type manifest struct {
	Config       Config
	Layers       []string
	ShapeMasks   []string
	HasMerged    bool
	MergeMethod  string
	MergeWeights map[string]float64
}

// Save persists the container to a snapshot directory: one NetCDF
// raster per layer and shape mask, the merged mask if present, and a
// manifest. An existing snapshot at dir is overwritten. On success the
// container is marked saved.
func (m *MaskContainer) Save(dir string) error {
	for _, d := range []string{dir, filepath.Join(dir, layerDir), filepath.Join(dir, shapeDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("geodata: Save: %v", err)
		}
	}
	for i, name := range m.names {
		if err := writeRaster(layerPath(dir, layerDir, i), m.layers[name]); err != nil {
			return fmt.Errorf("geodata: Save: layer %q: %v", name, err)
		}
	}
	for i, name := range m.shapeNames {
		if err := writeRaster(layerPath(dir, shapeDir, i), m.shapes[name]); err != nil {
			return fmt.Errorf("geodata: Save: shape mask %q: %v", name, err)
		}
	}
	if m.merged != nil {
		if err := writeRaster(filepath.Join(dir, mergedFile), m.merged); err != nil {
			return fmt.Errorf("geodata: Save: merged mask: %v", err)
		}
	}

	mf, err := os.Create(filepath.Join(dir, manifestFile))
	if err != nil {
		return fmt.Errorf("geodata: Save: %v", err)
	}
	defer mf.Close()
	man := manifest{
		Config:       m.cfg,
		Layers:       m.names,
		ShapeMasks:   m.shapeNames,
		HasMerged:    m.merged != nil,
		MergeMethod:  m.mergeMethod,
		MergeWeights: m.mergeWeights,
	}
	if err := gob.NewEncoder(mf).Encode(man); err != nil {
		return fmt.Errorf("geodata: Save: encoding manifest: %v", err)
	}
	m.saved = true
	m.Log.WithField("dir", dir).Info("saved container snapshot")
	return nil
}

// Load reconstructs a container from a snapshot directory written by
// Save. All raster files are re-opened and stay open until the
// corresponding layer is removed or the container is closed. The
// returned container is marked saved.
func Load(dir string) (*MaskContainer, error) {
	mf, err := os.Open(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("geodata: Load: %v", err)
	}
	defer mf.Close()
	var man manifest
	if err := gob.NewDecoder(mf).Decode(&man); err != nil {
		return nil, fmt.Errorf("geodata: Load: decoding manifest: %v", err)
	}

	m := NewMaskContainer(&man.Config)
	for i, name := range man.Layers {
		l, err := readRaster(layerPath(dir, layerDir, i))
		if err != nil {
			return nil, fmt.Errorf("geodata: Load: layer %q: %v", name, err)
		}
		m.layers[name] = l
		m.names = append(m.names, name)
	}
	for i, name := range man.ShapeMasks {
		l, err := readRaster(layerPath(dir, shapeDir, i))
		if err != nil {
			return nil, fmt.Errorf("geodata: Load: shape mask %q: %v", name, err)
		}
		m.shapes[name] = l
		m.shapeNames = append(m.shapeNames, name)
	}
	if man.HasMerged {
		l, err := readRaster(filepath.Join(dir, mergedFile))
		if err != nil {
			return nil, fmt.Errorf("geodata: Load: merged mask: %v", err)
		}
		m.merged = l
	}
	m.mergeMethod = man.MergeMethod
	m.mergeWeights = man.MergeWeights
	m.saved = true
	return m, nil
}

func layerPath(dir, sub string, i int) string {
	return filepath.Join(dir, sub, fmt.Sprintf("%03d.nc", i))
}

// writeRaster writes one raster to a NetCDF file with its transform
// and CRS in global attributes. Values are stored as float64 so the
// round trip is bit-exact; NaN is stored as the fill value.
func writeRaster(path string, l *RasterLayer) error {
	ny, nx := l.Shape()
	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddAttribute("", "proj4", l.Proj4)
	h.AddAttribute("", "x0", []float64{l.Transform.X0})
	h.AddAttribute("", "y0", []float64{l.Transform.Y0})
	h.AddAttribute("", "dx", []float64{l.Transform.Dx})
	h.AddAttribute("", "dy", []float64{l.Transform.Dy})
	h.AddAttribute("", "bx", []float64{l.Transform.Bx})
	h.AddAttribute("", "by", []float64{l.Transform.By})
	h.AddAttribute("", "nx", []int32{int32(nx)})
	h.AddAttribute("", "ny", []int32{int32(ny)})
	h.AddAttribute("", "data_version", DataVersion)
	h.AddVariable("mask", []string{"y", "x"}, []float64{0})
	h.AddAttribute("mask", "_FillValue", []float64{fillValue})
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	data := make([]float64, len(l.Data.Elements))
	for i, v := range l.Data.Elements {
		if math.IsNaN(v) {
			data[i] = fillValue
		} else {
			data[i] = v
		}
	}
	end := f.Header.Lengths("mask")
	start := make([]int, len(end))
	if _, err := f.Writer("mask", start, end).Write(data); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(w)
}

// readRaster reads a raster written by writeRaster, leaving the file
// handle open and owned by the returned layer.
func readRaster(path string) (*RasterLayer, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	nc, err := cdf.Open(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	if v := nc.Header.GetAttribute("", "data_version"); v == nil || v.(string) != DataVersion {
		r.Close()
		return nil, fmt.Errorf("raster file %s is version %v but version %s is required", path, v, DataVersion)
	}
	attr := func(name string) float64 {
		return nc.Header.GetAttribute("", name).([]float64)[0]
	}
	t := Affine{
		X0: attr("x0"), Y0: attr("y0"),
		Dx: attr("dx"), Dy: attr("dy"),
		Bx: attr("bx"), By: attr("by"),
	}
	proj4 := nc.Header.GetAttribute("", "proj4").(string)
	ny := int(nc.Header.GetAttribute("", "ny").([]int32)[0])
	nx := int(nc.Header.GetAttribute("", "nx").([]int32)[0])

	data, err := readGridVar(nc, "mask")
	if err != nil {
		r.Close()
		return nil, err
	}
	if len(data) != ny*nx {
		r.Close()
		return nil, fmt.Errorf("raster file %s: mask has %d elements but grid is %d×%d", path, len(data), ny, nx)
	}
	grid := sparse.ZerosDense(ny, nx)
	copy(grid.Elements, data)
	l, err := NewRasterLayer(grid, t, proj4, math.NaN())
	if err != nil {
		r.Close()
		return nil, err
	}
	l.src = r
	return l, nil
}
