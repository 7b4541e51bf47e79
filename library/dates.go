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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SignalKind identifies where a date signal came from.
type SignalKind int

const (
	SignalNone SignalKind = iota

	// SignalEmbedded is metadata recorded inside the media file itself
	// (EXIF, XMP packet, MP4 boxes, tags).
	SignalEmbedded

	// SignalSidecar is metadata from a companion file next to the media
	// file (.xmp, Takeout .json, .AAE).
	SignalSidecar

	// SignalFolder is a date parsed from an ancestor folder name.
	SignalFolder

	// SignalFilename is a date parsed from the file's own name.
	SignalFilename

	// SignalFileTime is the filesystem's own timestamp for the file; it
	// rides the metadata channel at lowest priority, as a last resort.
	SignalFileTime
)

func (k SignalKind) String() string {
	switch k {
	case SignalEmbedded:
		return "embedded"
	case SignalSidecar:
		return "sidecar"
	case SignalFolder:
		return "folder"
	case SignalFilename:
		return "filename"
	case SignalFileTime:
		return "filetime"
	}
	return ""
}

// Precision describes how much of a DateSignal's value is known.
type Precision int

const (
	PrecisionYear Precision = iota
	PrecisionMonth
	PrecisionDay
	PrecisionTime
)

// DateSignal is a single candidate date for a file. A Month or Day of 0
// means that part is unknown; HasTime reports whether the time-of-day
// fields carry a real value. The zero DateSignal is not meaningful on
// its own; absent signals are represented as nil pointers.
type DateSignal struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	HasTime              bool

	// Offset is the UTC offset in minutes east, when the source
	// recorded one. It never participates in resolution; it is
	// carried through for reporting.
	Offset *int

	Source SignalKind
}

// sentinelYear is the "no data available" year some tooling writes in
// place of an empty date field (dates like "1900-01-01 00:00" mean the
// field had no value).
const sentinelYear = 1900

// IsPlaceholder reports whether the signal is a known no-data sentinel
// rather than a real date.
func (ds DateSignal) IsPlaceholder() bool {
	return ds.Year == 0 || ds.Year == sentinelYear
}

// Precision returns how much of the signal's value is known.
func (ds DateSignal) Precision() Precision {
	switch {
	case ds.HasTime:
		return PrecisionTime
	case ds.Day != 0:
		return PrecisionDay
	case ds.Month != 0:
		return PrecisionMonth
	}
	return PrecisionYear
}

// DateString renders the date part as "YYYY-MM-DD" with unknown month
// or day rendered as "00". Strings rendered this way sort
// lexicographically in chronological order, but resolution always goes
// through CompareDates rather than relying on that.
func (ds DateSignal) DateString() string {
	return fmt.Sprintf("%04d-%02d-%02d", ds.Year, ds.Month, ds.Day)
}

// TimeString renders the time-of-day part as "HH:MM", or "00:00" when
// the signal has no time.
func (ds DateSignal) TimeString() string {
	if !ds.HasTime {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", ds.Hour, ds.Minute)
}

func (ds DateSignal) String() string {
	return ds.DateString() + " " + ds.TimeString()
}

// Time converts the signal to a time.Time in loc (or time.Local if loc
// is nil), substituting 1 for unknown month/day and zeros for a missing
// time-of-day.
func (ds DateSignal) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	month, day := ds.Month, ds.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(ds.Year, time.Month(month), day, ds.Hour, ds.Minute, ds.Second, 0, loc)
}

// SignalFromTime builds a full-precision signal from t.
func SignalFromTime(t time.Time, kind SignalKind) *DateSignal {
	ds := &DateSignal{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		HasTime: true,
		Source:  kind,
	}
	_, offsetSec := t.Zone()
	if offsetSec != 0 {
		offMin := offsetSec / 60
		ds.Offset = &offMin
	}
	return ds
}

// CompareDates orders two signals by their date parts only; time of day
// is ignored. An unknown month or day is never greater than a concrete
// one: when either side lacks a part, comparison stops there and the
// signals count as equal at that level. Returns -1, 0, or +1.
func CompareDates(a, b DateSignal) int {
	if a.Year != b.Year {
		if a.Year < b.Year {
			return -1
		}
		return 1
	}
	if a.Month == 0 || b.Month == 0 {
		return 0
	}
	if a.Month != b.Month {
		if a.Month < b.Month {
			return -1
		}
		return 1
	}
	if a.Day == 0 || b.Day == 0 {
		return 0
	}
	if a.Day != b.Day {
		if a.Day < b.Day {
			return -1
		}
		return 1
	}
	return 0
}

// sameMonth reports whether two signals fall in the same calendar
// month. Two signals that both lack a month compare by year alone.
func sameMonth(a, b DateSignal) bool {
	return a.Year == b.Year && a.Month == b.Month
}

// normalizeSignal maps placeholder sentinels to absent. Real signals
// pass through unchanged.
func normalizeSignal(ds *DateSignal) *DateSignal {
	if ds == nil || ds.IsPlaceholder() {
		return nil
	}
	return ds
}

// dateStringRE matches the date shapes the catalog and external tools
// hand back: "2008-05-08 09:15:30", "2008_05_08T09:15", "2008-05",
// "2008:05:08 09:15:30" (metadata tool output), with "00" accepted for
// an unknown month or day.
var dateStringRE = regexp.MustCompile(
	`^(\d{4})(?:[-_:](\d{2})(?:[-_:](\d{2}))?)?(?:[ T_](\d{2})[:.](\d{2})(?:[:.](\d{2}))?)?(Z|[+-]\d{2}:?\d{2})?`)

// ParseDate extracts a DateSignal from a date string in any of the
// shapes media tooling produces. Unknown or zero month/day degrade the
// precision rather than failing. It returns nil when s holds no usable
// date or only a placeholder.
func ParseDate(s string, kind SignalKind) *DateSignal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	m := dateStringRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	ds := &DateSignal{Source: kind}
	ds.Year, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		ds.Month, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		ds.Day, _ = strconv.Atoi(m[3])
	}
	if ds.Month > 12 || ds.Day > 31 {
		return nil
	}
	if ds.Month == 0 {
		// a day without a month is meaningless
		ds.Day = 0
	}

	if m[4] != "" {
		ds.Hour, _ = strconv.Atoi(m[4])
		ds.Minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			ds.Second, _ = strconv.Atoi(m[6])
		}
		ds.HasTime = ds.Hour < 24 && ds.Minute < 60 && ds.Second < 60
		if !ds.HasTime {
			ds.Hour, ds.Minute, ds.Second = 0, 0, 0
		}
	}

	if tz := m[7]; tz != "" && tz != "Z" {
		sign := 1
		if tz[0] == '-' {
			sign = -1
		}
		hhmm := strings.ReplaceAll(tz[1:], ":", "")
		if len(hhmm) == 4 {
			hh, _ := strconv.Atoi(hhmm[:2])
			mm, _ := strconv.Atoi(hhmm[2:])
			off := sign * (hh*60 + mm)
			ds.Offset = &off
		}
	}

	return normalizeSignal(ds)
}
