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

// Package geodata builds per-region land-suitability masks. Raster
// constraint layers are ingested into a MaskContainer, normalized to a
// canonical CRS, filtered, and merged into a single mask; named vector
// regions are rasterized against the mask; and the resulting per-region
// masks are aligned to an external grid and aggregated into weighted
// time series.
package geodata

// Version gives the version number of this version of geodata.
const Version = "1.1.0"
