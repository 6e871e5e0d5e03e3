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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// ShapeCollection is a set of named polygon regions in a common CRS.
// Regions are used both as additive layer sources and as extraction
// keys.
type ShapeCollection struct {
	Proj4  string
	SR     *proj.SR
	Shapes map[string]geom.Polygonal
}

// NewShapeCollection creates an empty collection in the given CRS
// (LongLat if empty).
func NewShapeCollection(proj4 string) (*ShapeCollection, error) {
	if proj4 == "" {
		proj4 = LongLat
	}
	sr, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: NewShapeCollection: parsing CRS %q: %v", proj4, err)
	}
	return &ShapeCollection{
		Proj4:  proj4,
		SR:     sr,
		Shapes: make(map[string]geom.Polygonal),
	}, nil
}

// Names returns the region names in sorted order.
func (s *ShapeCollection) Names() []string {
	names := make([]string, 0, len(s.Shapes))
	for n := range s.Shapes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add registers a named region.
func (s *ShapeCollection) Add(name string, p geom.Polygonal) {
	s.Shapes[name] = p
}

// AddGeoJSON registers a region from a GeoJSON geometry document
// (Polygon or MultiPolygon).
func (s *ShapeCollection) AddGeoJSON(name string, data []byte) error {
	g, err := geojson.Decode(data)
	if err != nil {
		return fmt.Errorf("geodata: decoding GeoJSON for region %q: %v", name, err)
	}
	p, ok := g.(geom.Polygonal)
	if !ok {
		return fmt.Errorf("geodata: region %q: geometry type %T is not polygonal", name, g)
	}
	s.Shapes[name] = p
	return nil
}

// Reproject returns a copy of the collection transformed to the CRS
// given by proj4. The receiver is returned unchanged if it is already
// in that CRS.
func (s *ShapeCollection) Reproject(proj4 string) (*ShapeCollection, error) {
	dst, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geodata: ShapeCollection.Reproject: parsing CRS %q: %v", proj4, err)
	}
	if sameSR(s.Proj4, s.SR, proj4, dst) {
		return s, nil
	}
	ct, err := s.SR.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("geodata: ShapeCollection.Reproject: from %q to %q: %v", s.Proj4, proj4, err)
	}
	out := &ShapeCollection{
		Proj4:  proj4,
		SR:     dst,
		Shapes: make(map[string]geom.Polygonal, len(s.Shapes)),
	}
	for name, p := range s.Shapes {
		g, err := p.Transform(ct)
		if err != nil {
			return nil, fmt.Errorf("geodata: ShapeCollection.Reproject: region %q: %v", name, err)
		}
		out.Shapes[name] = g.(geom.Polygonal)
	}
	return out, nil
}

// ReadShapefile loads named regions from a shapefile, keyed by the
// value of nameField in each row. proj4 gives the CRS of the file
// (LongLat if empty). Rows with non-polygonal geometry are skipped.
func ReadShapefile(filename, nameField, proj4 string) (*ShapeCollection, error) {
	s, err := NewShapeCollection(proj4)
	if err != nil {
		return nil, err
	}
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("geodata: opening shapefile %s: %v", filename, err)
	}
	defer d.Close()
	for {
		g, fields, more := d.DecodeRowFields(nameField)
		if !more {
			break
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			continue
		}
		name := fields[nameField]
		if prev, ok := s.Shapes[name]; ok {
			// Rows sharing a name form one multi-part region.
			s.Shapes[name] = joinPolygons(prev, p)
		} else {
			s.Shapes[name] = p
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("geodata: reading shapefile %s: %v", filename, err)
	}
	return s, nil
}

// ReadGeoJSON loads named regions from a GeoJSON FeatureCollection
// document, keyed by the value of nameProperty in each feature's
// properties. proj4 gives the CRS of the document (LongLat if empty).
// Features with non-polygonal geometry are skipped.
func ReadGeoJSON(data []byte, nameProperty, proj4 string) (*ShapeCollection, error) {
	s, err := NewShapeCollection(proj4)
	if err != nil {
		return nil, err
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
			Geometry   *geojson.Geometry      `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("geodata: decoding GeoJSON: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("geodata: GeoJSON document is a %q, want a FeatureCollection", fc.Type)
	}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g, err := geojson.FromGeoJSON(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("geodata: GeoJSON feature %d: %v", i, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			continue
		}
		v, ok := f.Properties[nameProperty]
		if !ok || v == nil {
			return nil, fmt.Errorf("geodata: GeoJSON feature %d has no property %q", i, nameProperty)
		}
		name := fmt.Sprint(v)
		if prev, ok := s.Shapes[name]; ok {
			s.Shapes[name] = joinPolygons(prev, p)
		} else {
			s.Shapes[name] = p
		}
	}
	return s, nil
}

func joinPolygons(a, b geom.Polygonal) geom.Polygonal {
	var out geom.Polygon
	for _, p := range a.Polygons() {
		out = append(out, p...)
	}
	for _, p := range b.Polygons() {
		out = append(out, p...)
	}
	return out
}
