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

import "fmt"

// NotFoundError is returned when an operation references a layer or
// region that is not present in the container.
type NotFoundError struct {
	Op   string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("geodata: %s: layer %q does not exist", e.Op, e.Name)
}

// NameConflictError is returned when an operation would overwrite an
// existing layer without being asked to replace it.
type NameConflictError struct {
	Op   string
	Name string
}

func (e NameConflictError) Error() string {
	return fmt.Sprintf("geodata: %s: layer %q already exists and replacement was not requested", e.Op, e.Name)
}

// OutOfBoundsError is returned when a crop window or bounds does not
// intersect the raster it is applied to.
type OutOfBoundsError struct {
	Op   string
	Name string
}

func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf("geodata: %s: window does not intersect layer %q", e.Op, e.Name)
}

// EmptySelectionError is returned when a merge resolves to zero input
// layers.
type EmptySelectionError struct {
	Op string
}

func (e EmptySelectionError) Error() string {
	return fmt.Sprintf("geodata: %s: no layers selected", e.Op)
}

// CRSMismatchError is returned when an operation receives inputs in
// incompatible coordinate reference systems and no canonical CRS is
// available to reconcile them.
type CRSMismatchError struct {
	Op   string
	Have string
	Want string
}

func (e CRSMismatchError) Error() string {
	return fmt.Sprintf("geodata: %s: CRS %q is incompatible with %q and no canonical CRS is defined", e.Op, e.Have, e.Want)
}

// NoSuitableAreaError is returned by aggregation when the weighted
// denominator is zero for a region, i.e. the mask contains no suitable
// area at all. It distinguishes "no data" from a legitimate zero
// result.
type NoSuitableAreaError struct {
	Region string
}

func (e NoSuitableAreaError) Error() string {
	if e.Region == "" {
		return "geodata: aggregate: mask contains no suitable area"
	}
	return fmt.Sprintf("geodata: aggregate: region %q contains no suitable area", e.Region)
}
