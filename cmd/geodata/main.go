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

// Command geodata is a command-line interface for the geodata
// land-suitability mask engine.
package main

import (
	"fmt"
	"os"

	"github.com/gschivley/geodata-1/geodatautil"
)

func main() {
	if err := geodatautil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
