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
	"reflect"
	"testing"

	"github.com/lnashier/viper"
)

func TestGetStringMapString(t *testing.T) {
	want := map[string]string{"slope": "2", "landuse": "0.5"}
	cases := []struct {
		name string
		set  interface{}
		want map[string]string
	}{
		{"map", map[string]string{"slope": "2", "landuse": "0.5"}, want},
		{"interface map", map[string]interface{}{"slope": "2", "landuse": "0.5"}, want},
		{"json string", `{"slope":"2","landuse":"0.5"}`, want},
		{"unset", nil, nil},
	}
	for _, c := range cases {
		cfg := viper.New()
		if c.set != nil {
			cfg.Set("Build.MergeWeights", c.set)
		}
		got := GetStringMapString("Build.MergeWeights", cfg)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFloatMap(t *testing.T) {
	got, err := floatMap(map[string]string{"slope": "2", "landuse": "0.5"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"slope": 2, "landuse": 0.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if out, err := floatMap(nil); err != nil || out != nil {
		t.Errorf("empty input: got %v, %v", out, err)
	}
	if _, err := floatMap(map[string]string{"slope": "steep"}); err == nil {
		t.Error("non-numeric weight should fail")
	}
}
