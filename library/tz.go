/*
	Chronofile
	Copyright (c) 2020 Chronofile Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package library

import (
	"sync"

	"github.com/ringsaturn/tzf"
	"go.uber.org/zap"
)

var (
	tzOnce   sync.Once
	tzFinder tzf.F
)

// TimeZoneName maps coordinates to an IANA time zone name, or "" if
// the lookup is not possible. The finder loads its embedded polygon
// data on first use and is shared after that.
func TimeZoneName(lat, lon float64) string {
	tzOnce.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			Log.Warn("time zone lookups unavailable", zap.Error(err))
			return
		}
		tzFinder = finder
	})
	if tzFinder == nil {
		return ""
	}
	return tzFinder.GetTimezoneName(lon, lat)
}
