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

// Package geodatautil translates configuration into calls to the
// geodata mask engine.
package geodatautil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	geodata "github.com/gschivley/geodata-1"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the geodata
	// commands.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the logging verbosity: panic, fatal, error,
              warn, info, debug, or trace.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SnapshotDir",
			usage: `
              SnapshotDir is the directory the container snapshot is
              written to and read from.`,
			shorthand:  "d",
			defaultVal: "geodata_snapshot",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mask.Proj4",
			usage: `
              Mask.Proj4 is the canonical CRS all ingested layers are
              normalized to, as a proj4 string.`,
			defaultVal: geodata.LongLat,
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Mask.EqualAreaProj4",
			usage: `
              Mask.EqualAreaProj4 is the CRS used for area measurement
              and kilometer buffering, as a proj4 string.`,
			defaultVal: geodata.EqualArea,
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Build.Layers",
			usage: `
              Build.Layers maps layer names to NetCDF raster file paths
              to be ingested.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Build.MergeMethod",
			usage: `
              Build.MergeMethod selects how layers are combined: "and"
              for a conjunction of suitability indicators or "sum" for a
              weighted sum.`,
			defaultVal: "and",
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Build.MergeWeights",
			usage: `
              Build.MergeWeights maps layer names to weights for the
              "sum" merge method. Layers without an entry get weight 1.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Build.ReferenceLayer",
			usage: `
              Build.ReferenceLayer names the layer whose grid the merged
              mask is built on. If empty, the finest-resolution layer is
              used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "Build.Trim",
			usage: `
              Build.Trim removes all-zero border rows and columns from
              the merged mask.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{buildCmd.Flags()},
		},
		{
			name: "AreaFilter.MinAreaKm2",
			usage: `
              AreaFilter.MinAreaKm2 is the minimum contiguous region
              area, in square kilometers, kept by the area filter.
              Regions of exactly this area are retained.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{areaFilterCmd.Flags()},
		},
		{
			name: "AreaFilter.ShapeValue",
			usage: `
              AreaFilter.ShapeValue is the cell value grouped into
              contiguous regions.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{areaFilterCmd.Flags()},
		},
		{
			name: "AreaFilter.LayerName",
			usage: `
              AreaFilter.LayerName names the layer to filter. If empty,
              the merged mask is filtered.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{areaFilterCmd.Flags()},
		},
		{
			name: "Shapes.File",
			usage: `
              Shapes.File is the path to a shapefile or GeoJSON
              FeatureCollection of named regions to extract.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Shapes.NameField",
			usage: `
              Shapes.NameField is the shapefile attribute column or
              GeoJSON property holding region names.`,
			defaultVal: "name",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Shapes.Proj4",
			usage: `
              Shapes.Proj4 is the CRS of the region shapefile, as a
              proj4 string.`,
			defaultVal: geodata.LongLat,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Shapes.BufferKm",
			usage: `
              Shapes.BufferKm expands each region outward by this many
              kilometers before rasterizing.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Aggregate.CutoutFile",
			usage: `
              Aggregate.CutoutFile is the path to the NetCDF cutout
              holding the target grid and the gridded variable.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
		{
			name: "Aggregate.Variable",
			usage: `
              Aggregate.Variable names the cutout variable to
              aggregate.`,
			shorthand:  "v",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
		{
			name: "Aggregate.OutputFile",
			usage: `
              Aggregate.OutputFile is the CSV file the weighted series
              are written to. If empty, results go to standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GEODATA")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(buildCmd)
	Root.AddCommand(areaFilterCmd)
	Root.AddCommand(extractCmd)
	Root.AddCommand(aggregateCmd)
}

// setConfig finds and reads in the configuration file, if there is
// one, and applies the configured log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geodata: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("geodata: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "geodata",
	Short: "A land-suitability mask engine.",
	Long: `Geodata builds per-region suitability masks from raster and vector
constraint layers and aggregates gridded time-series variables over them.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GEODATA_var' where 'var' is
the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of geodata.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("geodata v%s\n", geodata.Version)
	},
	DisableAutoGenTag: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Ingest raster layers and merge them into a mask.",
	Long: `build reads the configured raster layers, normalizes them to the
canonical CRS, merges them with the configured method, and writes the
resulting container snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := Build(Cfg)
		if err != nil {
			return err
		}
		defer m.CloseAll()
		return m.Save(Cfg.GetString("SnapshotDir"))
	},
	DisableAutoGenTag: true,
}

var areaFilterCmd = &cobra.Command{
	Use:   "areafilter",
	Short: "Remove small contiguous regions from the mask.",
	Long: `areafilter loads the container snapshot, removes contiguous mask
regions smaller than the configured area, and writes the snapshot back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := geodata.Load(Cfg.GetString("SnapshotDir"))
		if err != nil {
			return err
		}
		defer m.CloseAll()
		if err := AreaFilter(Cfg, m); err != nil {
			return err
		}
		return m.Save(Cfg.GetString("SnapshotDir"))
	},
	DisableAutoGenTag: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Rasterize named regions into per-region masks.",
	Long: `extract loads the container snapshot, rasterizes the configured
region shapefile onto the merged mask's grid, and writes the snapshot back
with one shape mask per region.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := geodata.Load(Cfg.GetString("SnapshotDir"))
		if err != nil {
			return err
		}
		defer m.CloseAll()
		if err := Extract(Cfg, m); err != nil {
			return err
		}
		return m.Save(Cfg.GetString("SnapshotDir"))
	},
	DisableAutoGenTag: true,
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate a cutout variable over the extracted regions.",
	Long: `aggregate loads the container snapshot and the configured cutout,
aligns each shape mask onto the cutout grid, and writes one weighted time
series per region.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := geodata.Load(Cfg.GetString("SnapshotDir"))
		if err != nil {
			return err
		}
		defer m.CloseAll()
		return Aggregate(Cfg, m, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}
