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
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// Config holds the otherwise-implicit configuration of a
// MaskContainer: the canonical CRS layers are normalized to and the
// equal-area CRS used for measurement and buffering.
type Config struct {
	// Proj4 is the canonical CRS. Default: LongLat.
	Proj4 string
	// EqualAreaProj4 is the CRS used for area measurement. Default:
	// EqualArea.
	EqualAreaProj4 string
}

func (c *Config) withDefaults() Config {
	out := Config{Proj4: LongLat, EqualAreaProj4: EqualArea}
	if c != nil {
		if c.Proj4 != "" {
			out.Proj4 = c.Proj4
		}
		if c.EqualAreaProj4 != "" {
			out.EqualAreaProj4 = c.EqualAreaProj4
		}
	}
	return out
}

// MaskContainer owns a set of named raster layers, at most one merged
// mask derived from them, and a set of per-region shape masks. Every
// stored layer is in the container's canonical CRS unless reprojection
// was explicitly bypassed on ingestion. All operations run to
// completion before returning; none leaves the container in a partial
// state.
type MaskContainer struct {
	// Log receives progress information. Defaults to the standard
	// logrus logger.
	Log logrus.FieldLogger

	cfg        Config
	names      []string // insertion order of layers
	layers     map[string]*RasterLayer
	merged     *RasterLayer
	shapeNames []string
	shapes     map[string]*RasterLayer

	mergeMethod  string
	mergeWeights map[string]float64

	saved bool
}

// NewMaskContainer creates an empty container. cfg may be nil for
// defaults.
func NewMaskContainer(cfg *Config) *MaskContainer {
	return &MaskContainer{
		Log:    logrus.StandardLogger(),
		cfg:    cfg.withDefaults(),
		layers: make(map[string]*RasterLayer),
		shapes: make(map[string]*RasterLayer),
	}
}

// Config returns the container's configuration.
func (m *MaskContainer) Config() Config { return m.cfg }

// Saved reports whether the container matches its last persisted
// snapshot. It is true immediately after Save or Load and false after
// any mutation.
func (m *MaskContainer) Saved() bool { return m.saved }

func (m *MaskContainer) mutate() { m.saved = false }

// AddOptions control layer ingestion. The zero value replaces an
// existing layer of the same name, trims no-data borders, reprojects
// to the canonical CRS, and resamples nearest-neighbor.
type AddOptions struct {
	// KeepExisting makes AddLayer fail with NameConflictError instead
	// of replacing a layer that already has the requested name.
	KeepExisting bool
	// NoTrim skips removal of all-no-data border rows and columns
	// after reprojection.
	NoTrim bool
	// NoReproject stores the layer in its source CRS, bypassing the
	// canonical-CRS invariant.
	NoReproject bool
	// Resample selects the reprojection resampling method: Nearest
	// for categorical data (the default), Bilinear for continuous.
	Resample Resample
}

// AddLayer ingests a raster source and stores it under name. Sources
// in a CRS other than the canonical one are reprojected on the way in.
// If a layer of the same name exists it is closed and replaced unless
// opts.KeepExisting is set.
func (m *MaskContainer) AddLayer(src LayerSource, name string, opts AddOptions) error {
	if _, ok := m.layers[name]; ok && opts.KeepExisting {
		return NameConflictError{Op: "AddLayer", Name: name}
	}
	l, err := src.open()
	if err != nil {
		return err
	}
	if !opts.NoReproject {
		warped, err := l.Reproject(m.cfg.Proj4, opts.Resample)
		if err != nil {
			l.Close()
			return err
		}
		if warped != l {
			l.Close()
			l = warped
		}
	}
	if !opts.NoTrim {
		trimmed := l.trim()
		trimmed.src = l.src
		l = trimmed
	}
	if old, ok := m.layers[name]; ok {
		old.Close()
	} else {
		m.names = append(m.names, name)
	}
	m.layers[name] = l
	m.mutate()
	ny, nx := l.Shape()
	m.Log.WithFields(logrus.Fields{"layer": name, "ny": ny, "nx": nx, "crs": l.Proj4}).
		Debug("added layer")
	return nil
}

// RemoveLayer closes and evicts a layer.
func (m *MaskContainer) RemoveLayer(name string) error {
	l, ok := m.layers[name]
	if !ok {
		return NotFoundError{Op: "RemoveLayer", Name: name}
	}
	err := l.Close()
	delete(m.layers, name)
	m.names = removeName(m.names, name)
	m.mutate()
	return err
}

// RenameLayer renames a layer atomically.
func (m *MaskContainer) RenameLayer(old, new string) error {
	l, ok := m.layers[old]
	if !ok {
		return NotFoundError{Op: "RenameLayer", Name: old}
	}
	if _, ok := m.layers[new]; ok {
		return NameConflictError{Op: "RenameLayer", Name: new}
	}
	delete(m.layers, old)
	m.layers[new] = l
	for i, n := range m.names {
		if n == old {
			m.names[i] = new
		}
	}
	m.mutate()
	return nil
}

// CropLayer windows a layer to the part of it that intersects b,
// replacing the stored layer.
func (m *MaskContainer) CropLayer(name string, b *geom.Bounds) error {
	l, ok := m.layers[name]
	if !ok {
		return NotFoundError{Op: "CropLayer", Name: name}
	}
	w, ok := l.windowForBounds(b)
	if !ok {
		return OutOfBoundsError{Op: "CropLayer", Name: name}
	}
	return m.replaceLayer(name, l.crop(w))
}

// CropLayerWindow windows a layer to the given index window,
// replacing the stored layer.
func (m *MaskContainer) CropLayerWindow(name string, w Window) error {
	l, ok := m.layers[name]
	if !ok {
		return NotFoundError{Op: "CropLayerWindow", Name: name}
	}
	ny, nx := l.Shape()
	w, ok = clipWindow(w, ny, nx)
	if !ok {
		return OutOfBoundsError{Op: "CropLayerWindow", Name: name}
	}
	return m.replaceLayer(name, l.crop(w))
}

// TrimLayer removes all-no-data border rows and columns from a layer.
// Trimming an already-trimmed layer is a no-op.
func (m *MaskContainer) TrimLayer(name string) error {
	l, ok := m.layers[name]
	if !ok {
		return NotFoundError{Op: "TrimLayer", Name: name}
	}
	return m.replaceLayer(name, l.trim())
}

// FilterLayer applies f to a layer, storing the result under destName,
// or over the source layer if destName is empty.
func (m *MaskContainer) FilterLayer(name string, f Filter, destName string) error {
	l, ok := m.layers[name]
	if !ok {
		return NotFoundError{Op: "FilterLayer", Name: name}
	}
	out := l.filter(f)
	if destName == "" || destName == name {
		return m.replaceLayer(name, out)
	}
	if old, ok := m.layers[destName]; ok {
		old.Close()
	} else {
		m.names = append(m.names, destName)
	}
	m.layers[destName] = out
	m.mutate()
	return nil
}

// replaceLayer swaps the grid stored under name, carrying the source
// file handle over to the replacement so it stays open for re-reads.
func (m *MaskContainer) replaceLayer(name string, l *RasterLayer) error {
	l.src = m.layers[name].src
	m.layers[name] = l
	m.mutate()
	return nil
}

// Layer returns a stored layer by name.
func (m *MaskContainer) Layer(name string) (*RasterLayer, error) {
	l, ok := m.layers[name]
	if !ok {
		return nil, NotFoundError{Op: "Layer", Name: name}
	}
	return l, nil
}

// LayerNames returns the names of the stored layers in insertion
// order.
func (m *MaskContainer) LayerNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Merged returns the current merged mask, or nil if no merge has been
// performed.
func (m *MaskContainer) Merged() *RasterLayer { return m.merged }

// SetMerged replaces the merged mask, closing the previous one. Used
// to store back the result of an operation that returns a new raster,
// such as FilterArea.
func (m *MaskContainer) SetMerged(l *RasterLayer) {
	if m.merged != nil && m.merged != l {
		m.merged.Close()
	}
	m.merged = l
	m.mutate()
}

// ShapeMask returns the mask extracted for the named region.
func (m *MaskContainer) ShapeMask(name string) (*RasterLayer, error) {
	l, ok := m.shapes[name]
	if !ok {
		return nil, NotFoundError{Op: "ShapeMask", Name: name}
	}
	return l, nil
}

// ShapeMaskNames returns the names of the extracted shape masks.
func (m *MaskContainer) ShapeMaskNames() []string {
	out := make([]string, len(m.shapeNames))
	copy(out, m.shapeNames)
	return out
}

// Resolutions returns the pixel size of every stored layer in the
// canonical CRS.
func (m *MaskContainer) Resolutions() map[string]Resolution {
	out := make(map[string]Resolution, len(m.layers))
	for n, l := range m.layers {
		out[n] = l.Resolution()
	}
	return out
}

// LayerBounds returns the bounding box of every stored layer in the
// canonical CRS.
func (m *MaskContainer) LayerBounds() map[string]*geom.Bounds {
	out := make(map[string]*geom.Bounds, len(m.layers))
	for n, l := range m.layers {
		out[n] = l.Bounds()
	}
	return out
}

// CloseAll releases every open raster file handle held by the
// container's layers and masks. Call before serializing the container
// to avoid file-lock conflicts on reload. The in-memory grids remain
// usable.
func (m *MaskContainer) CloseAll() error {
	var firstErr error
	for _, l := range m.layers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.merged != nil {
		if err := m.merged.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, l := range m.shapes {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
