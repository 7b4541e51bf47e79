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

// Package sidecar reads date signals from companion metadata files
// sitting beside a media file: XMP sidecars written by photo editors,
// Google Takeout's per-photo JSON, and Apple's .AAE adjustment files.
package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/chronofile/chronofile/library"
	"github.com/trimmer-io/go-xmp/xmp"
	"go.uber.org/zap"
	"howett.net/plist"
)

func init() {
	err := library.RegisterExtractor(library.Extractor{
		Name:     "sidecar",
		Title:    "Sidecar files",
		Kind:     library.SignalSidecar,
		Priority: 10,
		New:      func() (library.SignalExtractor, error) { return Extractor{}, nil },
	})
	if err != nil {
		library.Log.Fatal("registering extractor", zap.Error(err))
	}
}

// sidecars are small; anything bigger than this is not one.
const maxSidecarSize = 1024 * 1024 * 10

// Extractor probes for companion files next to a primary media file
// and reads dates out of the ones it finds.
type Extractor struct{}

// Recognize reports whether the entry is a media file that could have
// companions. The companions themselves are never primary entries.
func (Extractor) Recognize(entry library.DirEntry) bool {
	return library.MediaKind(entry.Filename) != ""
}

// Extract probes the primary's directory for each companion shape and
// folds whatever parses into the findings. A malformed companion is
// logged and skipped; the others still count.
func (Extractor) Extract(_ context.Context, entry library.DirEntry, logger *zap.Logger) (*library.Findings, error) {
	findings := new(library.Findings)
	name := entry.Filename
	stem := strings.TrimSuffix(name, path.Ext(name))

	// appended companions keep the primary's full name, replaced ones
	// swap its extension; same shapes the organizer moves
	probes := []struct {
		candidate string
		parse     func([]byte, *library.Findings) error
	}{
		{name + ".xmp", parseXMPSidecar},
		{stem + ".xmp", parseXMPSidecar},
		{name + ".json", parseTakeoutSidecar},
		{stem + ".aae", parseAAESidecar},
	}

	for _, probe := range probes {
		p, ok := probeCase(entry.FS, probe.candidate)
		if !ok {
			continue
		}
		data, err := readAllFS(entry.FS, p)
		if err != nil {
			logger.Debug("reading sidecar",
				zap.String("sidecar", p),
				zap.Error(err))
			continue
		}
		if err := probe.parse(data, findings); err != nil {
			logger.Debug("unparseable sidecar",
				zap.String("sidecar", p),
				zap.Error(err))
		}
	}

	return findings, nil
}

// probeCase looks for name as given and then with its extension
// uppercased, the spelling cameras and phones tend to write (".AAE"
// especially).
func probeCase(fsys fs.FS, name string) (string, bool) {
	if library.FileExistsFS(fsys, name) {
		return name, true
	}
	ext := path.Ext(name)
	upper := strings.TrimSuffix(name, ext) + strings.ToUpper(ext)
	if upper != name && library.FileExistsFS(fsys, upper) {
		return upper, true
	}
	return "", false
}

func readAllFS(fsys fs.FS, name string) ([]byte, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxSidecarSize))
}

// xmpDatePaths are the XMP properties that can carry the capture
// date, in preference order.
var xmpDatePaths = []string{
	"photoshop:DateCreated",
	"exif:DateTimeOriginal",
	"xmp:CreateDate",
}

// parseXMPSidecar reads a standalone XMP document. Editors write the
// packet either bare or wrapped in xpacket markers; the XML decoder
// skips to the first element either way.
func parseXMPSidecar(data []byte, findings *library.Findings) error {
	var doc xmp.Document
	if err := xmp.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshaling XMP document: %w", err)
	}
	paths, err := doc.ListPaths()
	if err != nil {
		return fmt.Errorf("listing XMP paths: %w", err)
	}

	byPath := make(map[string]string)
	for _, p := range paths {
		byPath[string(p.Path)] = p.Value
	}
	for _, xp := range xmpDatePaths {
		if sig := library.ParseDate(byPath[xp], library.SignalSidecar); sig != nil {
			findings.Signals = append(findings.Signals, *sig)
		}
	}
	return nil
}

// takeoutMetadata is the slice of Google Takeout's per-photo JSON we
// care about. Timestamps are strings of epoch seconds, in UTC.
type takeoutMetadata struct {
	PhotoTakenTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"photoTakenTime"`
	CreationTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"creationTime"`
}

func parseTakeoutSidecar(data []byte, findings *library.Findings) error {
	var meta takeoutMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("unmarshaling sidecar JSON: %w", err)
	}
	ts := meta.PhotoTakenTime.Timestamp
	if ts == "" {
		ts = meta.CreationTime.Timestamp
	}
	if ts == "" {
		return nil
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", ts, err)
	}
	sig := library.SignalFromTime(time.Unix(sec, 0).UTC(), library.SignalSidecar)
	findings.Signals = append(findings.Signals, *sig)
	return nil
}

// parseAAESidecar reads an Apple adjustment file, a plist whose
// adjustmentTimestamp says when the photo was edited. That is an edit
// date, never a capture date.
func parseAAESidecar(data []byte, findings *library.Findings) error {
	var adj struct {
		AdjustmentTimestamp time.Time `plist:"adjustmentTimestamp"`
	}
	if _, err := plist.Unmarshal(data, &adj); err != nil {
		return fmt.Errorf("unmarshaling plist: %w", err)
	}
	if adj.AdjustmentTimestamp.IsZero() {
		return nil
	}
	findings.EditDate = library.SignalFromTime(adj.AdjustmentTimestamp.UTC(), library.SignalSidecar)
	return nil
}
