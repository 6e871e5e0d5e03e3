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

package geodatautil

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"

	geodata "github.com/gschivley/geodata-1"
	"github.com/gschivley/geodata-1/cutout"
)

// MaskConfig extracts the mask engine configuration from cfg.
func MaskConfig(cfg *viper.Viper) *geodata.Config {
	return &geodata.Config{
		Proj4:          os.ExpandEnv(cfg.GetString("Mask.Proj4")),
		EqualAreaProj4: os.ExpandEnv(cfg.GetString("Mask.EqualAreaProj4")),
	}
}

// Build creates a container from the configured layers and merges
// them.
func Build(cfg *viper.Viper) (*geodata.MaskContainer, error) {
	layers := GetStringMapString("Build.Layers", cfg)
	if len(layers) == 0 {
		return nil, fmt.Errorf("geodata: no layers configured; set Build.Layers")
	}
	m := geodata.NewMaskContainer(MaskConfig(cfg))
	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := os.ExpandEnv(layers[name])
		if err := m.AddLayer(geodata.FilePath{Path: path}, name, geodata.AddOptions{}); err != nil {
			return nil, err
		}
	}
	weights, err := floatMap(GetStringMapString("Build.MergeWeights", cfg))
	if err != nil {
		return nil, fmt.Errorf("geodata: Build.MergeWeights: %v", err)
	}
	_, err = m.MergeLayers(nil, geodata.MergeOptions{
		Method:         geodata.MergeMethod(cfg.GetString("Build.MergeMethod")),
		Weights:        weights,
		ReferenceLayer: cfg.GetString("Build.ReferenceLayer"),
		Trim:           cfg.GetBool("Build.Trim"),
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// AreaFilter removes small contiguous regions from the configured
// layer of m, storing the result back under the same name.
func AreaFilter(cfg *viper.Viper, m *geodata.MaskContainer) error {
	name := cfg.GetString("AreaFilter.LayerName")
	out, err := m.FilterArea(cfg.GetFloat64("AreaFilter.MinAreaKm2"), geodata.AreaFilterOptions{
		ShapeValue: cfg.GetFloat64("AreaFilter.ShapeValue"),
		LayerName:  name,
		DestName:   name,
	})
	if err != nil {
		return err
	}
	if name == "" {
		m.SetMerged(out)
	}
	return nil
}

// Extract rasterizes the configured region file (shapefile or GeoJSON
// FeatureCollection, by extension) into per-region masks of m.
func Extract(cfg *viper.Viper, m *geodata.MaskContainer) error {
	file := os.ExpandEnv(cfg.GetString("Shapes.File"))
	if file == "" {
		return fmt.Errorf("geodata: no region file configured; set Shapes.File")
	}
	nameField := cfg.GetString("Shapes.NameField")
	proj4 := os.ExpandEnv(cfg.GetString("Shapes.Proj4"))
	var shapes *geodata.ShapeCollection
	var err error
	switch filepath.Ext(file) {
	case ".geojson", ".json":
		var data []byte
		data, err = os.ReadFile(file)
		if err == nil {
			shapes, err = geodata.ReadGeoJSON(data, nameField, proj4)
		}
	default:
		shapes, err = geodata.ReadShapefile(file, nameField, proj4)
	}
	if err != nil {
		return err
	}
	return m.ExtractShapes(shapes, &geodata.ExtractOptions{
		BufferKm: cfg.GetFloat64("Shapes.BufferKm"),
	})
}

// Aggregate aligns each shape mask of m onto the configured cutout
// grid, aggregates the configured variable over each region, and
// writes the weighted series as CSV to w (or the configured output
// file).
func Aggregate(cfg *viper.Viper, m *geodata.MaskContainer, w io.Writer) error {
	path := os.ExpandEnv(cfg.GetString("Aggregate.CutoutFile"))
	if path == "" {
		return fmt.Errorf("geodata: no cutout configured; set Aggregate.CutoutFile")
	}
	c, err := cutout.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()
	varName := cfg.GetString("Aggregate.Variable")
	if varName == "" {
		return fmt.Errorf("geodata: no variable configured; set Aggregate.Variable")
	}
	variable, err := c.Variable(varName)
	if err != nil {
		return err
	}
	area, err := c.CellAreas()
	if err != nil {
		return err
	}
	series, err := m.AggregateShapes(c.Grid(), variable, area)
	if err != nil {
		return err
	}

	if out := os.ExpandEnv(cfg.GetString("Aggregate.OutputFile")); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("geodata: creating output file: %v", err)
		}
		defer f.Close()
		w = f
	}
	return writeSeriesCSV(w, varName, series)
}

// writeSeriesCSV writes one row per region and time step:
// region,step,value.
func writeSeriesCSV(w io.Writer, varName string, series map[string]geodata.WeightedSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"region", "step", varName}); err != nil {
		return err
	}
	regions := make([]string, 0, len(series))
	for r := range series {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	for _, r := range regions {
		for t, v := range series[r] {
			err := cw.Write([]string{r, strconv.Itoa(t),
				strconv.FormatFloat(v, 'g', -1, 64)})
			if err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// floatMap converts string map values to float64.
func floatMap(in map[string]string) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("weight for %q: %v", k, err)
		}
		out[k] = f
	}
	return out, nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it might be a json
// object if it was set from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}, string:
		b, err := json.Marshal(i)
		if err != nil {
			panic(err)
		}
		var out map[string]string
		if s, ok := i.(string); ok {
			b = []byte(s)
		}
		if err := json.Unmarshal(b, &out); err != nil {
			panic(fmt.Errorf("geodata: parsing %s: %v", varName, err))
		}
		return out
	case nil:
		return nil
	default:
		panic(fmt.Errorf("geodata: invalid type for %s: %T", varName, i))
	}
}
