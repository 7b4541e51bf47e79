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

// Package namedate reads date signals spelled out in file and folder
// names: camera timestamp filenames like "20190702_100612.jpg", dated
// event folders like "2008-05 Cub Scouts", and the names this tool's
// own composer writes, so an organized tree rescans to the same dates.
package namedate

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

func init() {
	for _, ex := range []library.Extractor{
		{
			Name:     "filename",
			Title:    "Filename pattern",
			Kind:     library.SignalFilename,
			Priority: 10,
			New:      func() (library.SignalExtractor, error) { return FilenameExtractor{}, nil },
		},
		{
			Name:     "folder",
			Title:    "Folder name",
			Kind:     library.SignalFolder,
			Priority: 10,
			New:      func() (library.SignalExtractor, error) { return FolderExtractor{}, nil },
		},
	} {
		if err := library.RegisterExtractor(ex); err != nil {
			library.Log.Fatal("registering extractor", zap.Error(err))
		}
	}
}

// FilenameExtractor reads a date out of the file's own base name.
type FilenameExtractor struct{}

func (FilenameExtractor) Recognize(entry library.DirEntry) bool {
	return library.MediaKind(entry.Filename) != ""
}

func (FilenameExtractor) Extract(_ context.Context, entry library.DirEntry, _ *zap.Logger) (*library.Findings, error) {
	findings := new(library.Findings)
	if sig := parseFilename(path.Base(entry.Filename)); sig != nil {
		findings.Signals = append(findings.Signals, *sig)
	}
	return findings, nil
}

// FolderExtractor reads a date out of the file's ancestor folder
// names, nearest first. Event folders are usually dated at the level
// directly holding the files, but a dated grandparent ("2019/Hawaii")
// counts too.
type FolderExtractor struct{}

func (FolderExtractor) Recognize(entry library.DirEntry) bool {
	return library.MediaKind(entry.Filename) != ""
}

func (FolderExtractor) Extract(_ context.Context, entry library.DirEntry, _ *zap.Logger) (*library.Findings, error) {
	findings := new(library.Findings)

	dir := path.Dir(entry.Filename)
	var segments []string
	if dir != "." && dir != "/" {
		segments = strings.Split(dir, "/")
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if sig := parseFolder(segments[i]); sig != nil {
			findings.Signals = append(findings.Signals, *sig)
			return findings, nil
		}
	}

	// the scanned root itself is the outermost ancestor; an archive's
	// own filename lands here too ("Photos 2008.zip")
	if sig := parseFolder(filepath.Base(entry.FSRoot)); sig != nil {
		findings.Signals = append(findings.Signals, *sig)
	}
	return findings, nil
}

var (
	// composedRE is the shape this tool's own composer writes, with 00
	// month/day and 0000 time as its unknown markers. Anchored so only
	// a previously organized file matches.
	composedRE = regexp.MustCompile(`^((?:19|20)\d{2})-(\d{2})-(\d{2})_(\d{4})(?:[._]|$)`)

	// dateTimeRE is a separated date with a time attached:
	// "2019-07-02 10.06.12", "2019-07-02_10-06".
	dateTimeRE = regexp.MustCompile(`((?:19|20)\d{2})[-_.](0[1-9]|1[0-2])[-_.](0[1-9]|[12]\d|3[01])[-_ .T](\d{2})[-_.:](\d{2})(?:[-_.:](\d{2}))?`)

	// compactDateTimeRE is the run-together camera shape:
	// "20190702_100612", with the milliseconds some phones append
	// swallowed so the digit-boundary check still passes.
	compactDateTimeRE = regexp.MustCompile(`((?:19|20)\d{2})(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])[-_ .](\d{2})(\d{2})(\d{2})(?:\d{3})?`)

	// dateOnlyRE is a separated date with no time: "2019-07-02",
	// "2019_07_02", "2019-07".
	dateOnlyRE = regexp.MustCompile(`((?:19|20)\d{2})[-_.](0[1-9]|1[0-2])(?:[-_.](0[1-9]|[12]\d|3[01]))?`)

	// compactDateRE is a run-together date, all eight digits:
	// "20190702". Six-digit YYYYMM is deliberately not recognized;
	// too many filenames carry six-digit counters.
	compactDateRE = regexp.MustCompile(`((?:19|20)\d{2})(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])`)

	// folderDateRE is a year with an optional month, anywhere in a
	// folder name: "2008-05 Cub Scouts", "Christmas 1984". Any day
	// that follows is left on the floor; folder names date events,
	// not moments.
	folderDateRE = regexp.MustCompile(`((?:19|20)\d{2})(?:[-_. ](0[1-9]|1[0-2]))?`)
)

// parseFilename returns the date spelled in a file's base name, or
// nil. The composer's own shape is tried first and only at the start
// of the name; the natural shapes are searched anywhere, most
// specific first, and must not sit inside a longer run of digits.
func parseFilename(base string) *library.DateSignal {
	stem := strings.TrimSuffix(base, path.Ext(base))

	if m := composedRE.FindStringSubmatch(stem); m != nil {
		if sig := composedSignal(m); sig != nil {
			return sig
		}
	}

	if m := searchClean(stem, dateTimeRE); m != nil {
		sig := &library.DateSignal{
			Source: library.SignalFilename,
			Year:   atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
		}
		setTime(sig, m[4], m[5], m[6])
		return normalized(sig)
	}

	if m := searchClean(stem, compactDateTimeRE); m != nil {
		sig := &library.DateSignal{
			Source: library.SignalFilename,
			Year:   atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
		}
		setTime(sig, m[4], m[5], m[6])
		if sig.HasTime {
			return normalized(sig)
		}
		// six digits after the date that are not a clock reading;
		// the date-only shapes get their own look at the name
	}

	if m := searchClean(stem, dateOnlyRE); m != nil {
		sig := &library.DateSignal{
			Source: library.SignalFilename,
			Year:   atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
		}
		return normalized(sig)
	}

	if m := searchClean(stem, compactDateRE); m != nil {
		sig := &library.DateSignal{
			Source: library.SignalFilename,
			Year:   atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
		}
		return normalized(sig)
	}

	return nil
}

// parseFolder returns the date spelled in one folder name segment, or
// nil. Folder dates carry at most year and month.
func parseFolder(segment string) *library.DateSignal {
	m := searchClean(segment, folderDateRE)
	if m == nil {
		return nil
	}
	sig := &library.DateSignal{
		Source: library.SignalFolder,
		Year:   atoi(m[1]), Month: atoi(m[2]),
	}
	return normalized(sig)
}

// composedSignal rebuilds the signal a composed filename encodes.
func composedSignal(m []string) *library.DateSignal {
	sig := &library.DateSignal{
		Source: library.SignalFilename,
		Year:   atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
	}
	if sig.Month > 12 || sig.Day > 31 {
		return nil
	}
	if sig.Month == 0 {
		sig.Day = 0
	}
	if hhmm := m[4]; hhmm != "0000" {
		setTime(sig, hhmm[:2], hhmm[2:], "")
	}
	return normalized(sig)
}

// setTime attaches a clock reading to the signal when it is a valid
// one; a nonsense reading leaves the signal date-only.
func setTime(sig *library.DateSignal, hh, mm, ss string) {
	h, m := atoi(hh), atoi(mm)
	if h > 23 || m > 59 {
		return
	}
	s := atoi(ss)
	if s > 59 {
		s = 0
	}
	sig.Hour, sig.Minute, sig.Second = h, m, s
	sig.HasTime = true
}

// searchClean returns the submatches of the first match of re in s
// that does not butt up against an adjacent digit, so part of a
// longer number is never mistaken for a date.
func searchClean(s string, re *regexp.Regexp) []string {
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > 0 && isDigit(s[loc[0]-1]) {
			continue
		}
		if loc[1] < len(s) && isDigit(s[loc[1]]) {
			continue
		}
		m := make([]string, 0, len(loc)/2)
		for i := 0; i < len(loc); i += 2 {
			if loc[i] < 0 {
				m = append(m, "")
			} else {
				m = append(m, s[loc[i]:loc[i+1]])
			}
		}
		return m
	}
	return nil
}

func normalized(sig *library.DateSignal) *library.DateSignal {
	if sig.IsPlaceholder() {
		return nil
	}
	return sig
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
