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

// Package filetimes reads the filesystem's own timestamps as a date
// signal of last resort. The scan engine only enables it when the
// caller opts in, because a copied file's times say when it was
// copied, not when it was taken.
package filetimes

import (
	"context"
	"time"

	"github.com/chronofile/chronofile/library"
	"github.com/djherbis/times"
	"go.uber.org/zap"
)

func init() {
	err := library.RegisterExtractor(library.Extractor{
		Name:     "filetimes",
		Title:    "File times",
		Kind:     library.SignalFileTime,
		Priority: 90,
		New:      func() (library.SignalExtractor, error) { return Extractor{}, nil },
	})
	if err != nil {
		library.Log.Fatal("registering extractor", zap.Error(err))
	}
}

// Extractor reads timestamps from the filesystem.
type Extractor struct{}

func (Extractor) Recognize(entry library.DirEntry) bool {
	return library.MediaKind(entry.Filename) != ""
}

// Extract prefers the file's birth time where the platform records
// one, since the modification time moves on every touch. Entries
// inside archives have no stat on disk; their recorded mod time
// stands in.
func (Extractor) Extract(_ context.Context, entry library.DirEntry, _ *zap.Logger) (*library.Findings, error) {
	findings := new(library.Findings)

	var t time.Time
	if ts, err := times.Stat(entry.FullPath()); err == nil {
		if ts.HasBirthTime() {
			t = ts.BirthTime()
		} else {
			t = ts.ModTime()
		}
	} else {
		info, ierr := entry.Info()
		if ierr != nil {
			return nil, ierr
		}
		t = info.ModTime()
	}
	if t.IsZero() {
		return findings, nil
	}

	sig := library.SignalFromTime(t.Local(), library.SignalFileTime)
	findings.Signals = append(findings.Signals, *sig)
	return findings, nil
}
