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

// Package exiftool reads metadata through an installed exiftool
// binary, which understands far more formats and makers than the
// native readers. It registers at a higher priority than the native
// embedded extractor and quietly sits out runs where the binary is
// not installed.
package exiftool

import (
	"context"
	"fmt"
	"os"

	"github.com/barasher/go-exiftool"
	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

func init() {
	err := library.RegisterExtractor(library.Extractor{
		Name:     "exiftool",
		Title:    "ExifTool",
		Kind:     library.SignalEmbedded,
		Priority: 10,
		New:      New,
	})
	if err != nil {
		library.Log.Fatal("registering extractor", zap.Error(err))
	}
}

// Extractor shells out to a long-running exiftool process in
// stay-open mode. One process serves one scan worker.
type Extractor struct {
	et *exiftool.Exiftool
}

// New starts the exiftool process. It fails when the binary is not
// installed, which removes this extractor from the run; the native
// readers still cover the common formats.
func New() (library.SignalExtractor, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("starting exiftool: %w", err)
	}
	return &Extractor{et: et}, nil
}

// Close stops the exiftool process.
func (e *Extractor) Close() error {
	return e.et.Close()
}

// Recognize reports whether the entry is a media file exiftool can be
// pointed at. The binary reads from a path on disk, so entries inside
// archives are left to the native readers.
func (e *Extractor) Recognize(entry library.DirEntry) bool {
	if library.MediaKind(entry.Filename) == "" {
		return false
	}
	info, err := os.Stat(entry.FullPath())
	return err == nil && info.Mode().IsRegular()
}

// captureDateFields are tried in order; the first few are the true
// "when was this taken" tags, the later ones are container write
// times that stand in when nothing better survives. The filesystem
// date is deliberately not in this list, that belongs to the filetime
// channel.
var captureDateFields = []string{
	"DateTimeOriginal",
	"DateCreated",
	"CreateDate",
	"ModifyDate",
	"MediaCreateDate",
	"MediaModifyDate",
	"TrackCreateDate",
	"TrackModifyDate",
}

// Extract runs exiftool on the file and maps its fields onto findings.
func (e *Extractor) Extract(_ context.Context, entry library.DirEntry, logger *zap.Logger) (*library.Findings, error) {
	metas := e.et.ExtractMetadata(entry.FullPath())
	if len(metas) == 0 {
		return new(library.Findings), nil
	}
	fm := metas[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("reading metadata: %w", fm.Err)
	}

	findings := new(library.Findings)

	for _, field := range captureDateFields {
		s, err := fm.GetString(field)
		if err != nil {
			continue
		}
		if sig := library.ParseDate(s, library.SignalEmbedded); sig != nil {
			findings.Signals = append(findings.Signals, *sig)
		}
	}

	width, werr := fm.GetInt("ImageWidth")
	height, herr := fm.GetInt("ImageHeight")
	if werr == nil && herr == nil && width > 0 && height > 0 {
		findings.Width = int(width)
		findings.Height = int(height)
	}

	if s, err := fm.GetString("Make"); err == nil {
		findings.CameraMake = s
	}
	if s, err := fm.GetString("Model"); err == nil {
		findings.CameraModel = s
	}

	lat, laterr := fm.GetFloat("GPSLatitude")
	lon, lonerr := fm.GetFloat("GPSLongitude")
	if laterr == nil && lonerr == nil {
		findings.Latitude = &lat
		findings.Longitude = &lon
	}

	if s, err := fm.GetString("Title"); err == nil && s != "" {
		if findings.Fields == nil {
			findings.Fields = make(map[string]any)
		}
		findings.Fields["Title"] = s
	}

	logger.Debug("exiftool finished",
		zap.String("file", entry.Filename),
		zap.Int("fields", len(fm.Fields)))

	return findings, nil
}
