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

import "errors"

// ErrNoDate is returned by Resolve when every date signal is absent
// (or a placeholder) and no date can be derived. The caller decides
// per-file policy: skip, flag for review, or abort the batch.
var ErrNoDate = errors.New("no usable date signal")

// Resolution is the outcome of reducing a file's date signals to one
// canonical date. It keeps the normalized inputs and the intermediate
// name-derived date so reports can show how the final date was chosen.
type Resolution struct {
	// Normalized inputs; nil means absent after placeholder handling.
	Folder   *DateSignal
	Filename *DateSignal
	Metadata *DateSignal

	// Name is the intermediate date derived from the folder and
	// filename signals alone.
	Name *DateSignal

	// Resolved is the final canonical date. It always has at least a
	// year.
	Resolved DateSignal

	// DateSource and TimeSource record which signal kind supplied the
	// date part and the time part of Resolved. TimeSource is
	// SignalNone when Resolved carries no time of day.
	DateSource SignalKind
	TimeSource SignalKind
}

// Resolve reduces the folder-name, filename, and metadata date signals
// into one canonical date. The metadata signal should be the first
// non-absent of the embedded and sidecar channels, in that order; the
// engine prepares that before calling here.
//
// Step 1 reduces folder and filename into the intermediate NameDate:
// the filename date is preferred (camera timestamps are usually the
// most precise), except that a folder indicating an earlier year than
// the filename overrides it, because folders tend to name the event
// while a camera clock that was never set produces bogus filename
// years.
//
// Step 2 reduces NameDate against the metadata date: metadata wins only
// when its date part is not later than NameDate's, in which case its
// time of day is adopted too. A later metadata date usually records a
// rescan or reprocess, not the event, so the older name-derived date is
// kept. The comparison is date-only; see CompareDates for how unknown
// month/day degrade.
//
// Placeholder sentinels are normalized to absent before any of the
// above. If all inputs end up absent, Resolve returns ErrNoDate.
func Resolve(folder, filename, meta *DateSignal) (Resolution, error) {
	r := Resolution{
		Folder:   normalizeSignal(folder),
		Filename: normalizeSignal(filename),
		Metadata: normalizeSignal(meta),
	}

	switch {
	case r.Filename == nil:
		r.Name = r.Folder
	case r.Folder == nil:
		r.Name = r.Filename
	case sameMonth(*r.Folder, *r.Filename):
		r.Name = r.Filename
	case r.Folder.Year < r.Filename.Year:
		r.Name = r.Folder
	default:
		r.Name = r.Filename
	}

	switch {
	case r.Name == nil && r.Metadata == nil:
		return r, ErrNoDate
	case r.Name == nil:
		r.Resolved = *r.Metadata
	case r.Metadata != nil && CompareDates(*r.Metadata, *r.Name) <= 0:
		r.Resolved = *r.Metadata
	default:
		r.Resolved = *r.Name
	}

	r.DateSource = r.Resolved.Source
	if r.Resolved.HasTime {
		r.TimeSource = r.Resolved.Source
	}

	return r, nil
}

// Agreement classifies how well the metadata date and the name-derived
// date agree, at calendar-month granularity. Reports surface this so
// mismatched files can be reviewed by hand.
type Agreement int

const (
	// AgreementMatch: metadata and name-derived dates fall in the same
	// calendar month.
	AgreementMatch Agreement = iota

	// AgreementNameOnly: only folder/filename signals were present.
	AgreementNameOnly

	// AgreementMetadataOnly: only the metadata signal was present.
	AgreementMetadataOnly

	// AgreementMismatch: both were present but disagree on the month.
	AgreementMismatch
)

func (a Agreement) String() string {
	switch a {
	case AgreementMatch:
		return "Match"
	case AgreementNameOnly:
		return "Name Only"
	case AgreementMetadataOnly:
		return "Metadata Only"
	case AgreementMismatch:
		return "Mismatch"
	}
	return ""
}

// Agreement reports the month-level accord between the resolution's
// metadata date and its name-derived date.
func (r Resolution) Agreement() Agreement {
	switch {
	case r.Metadata == nil && r.Name == nil:
		return AgreementMismatch
	case r.Metadata == nil:
		return AgreementNameOnly
	case r.Name == nil:
		return AgreementMetadataOnly
	case sameMonth(*r.Metadata, *r.Name):
		return AgreementMatch
	}
	return AgreementMismatch
}
