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

// Package embedded reads date signals and media attributes from
// metadata embedded in media files themselves: EXIF and XMP in
// images, MP4 boxes and ID3-style tags in videos.
package embedded

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	// decoders for image.DecodeConfig beyond the stdlib formats
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chronofile/chronofile/library"
	"github.com/cozy/goexif2/exif"
	"github.com/cozy/goexif2/mknote"
	"github.com/trimmer-io/go-xmp/xmp"
	"go.uber.org/zap"
)

func init() {
	exif.RegisterParsers(mknote.All...)

	err := library.RegisterExtractor(library.Extractor{
		Name:     "embedded",
		Title:    "Embedded metadata",
		Kind:     library.SignalEmbedded,
		Priority: 20,
		New:      func() (library.SignalExtractor, error) { return Extractor{}, nil },
	})
	if err != nil {
		library.Log.Fatal("registering extractor", zap.Error(err))
	}
}

// Extractor reads metadata embedded within media files.
type Extractor struct{}

// Recognize reports whether the file is a media file, by extension.
func (Extractor) Recognize(entry library.DirEntry) bool {
	return library.MediaKind(entry.Filename) != ""
}

// Extract reads whatever embedded metadata the file carries. Files
// with no metadata blocks at all are normal and yield empty findings.
func (Extractor) Extract(_ context.Context, entry library.DirEntry, logger *zap.Logger) (*library.Findings, error) {
	file, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// several passes over the file are needed, so seeking is required;
	// entries inside archives are not seekable, so buffer those and
	// hope the metadata lives within the cap (it is almost always near
	// the start of the file)
	var r io.ReadSeeker
	if seeker, ok := file.(io.ReadSeeker); ok {
		r = seeker
	} else {
		buf := bufPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer bufPool.Put(buf)
		if _, err := io.Copy(buf, io.LimitReader(file, maxBufferSize)); err != nil {
			return nil, err
		}
		r = bytes.NewReader(buf.Bytes())
	}

	findings := new(library.Findings)
	switch library.MediaKind(entry.Filename) {
	case "image":
		err = readImageMetadata(r, findings, logger)
	case "video":
		err = readVideoMetadata(r, findings, logger)
	}
	if err != nil {
		return findings, err
	}

	return findings, nil
}

const maxBufferSize = 1024 * 1024 * 50

var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func readImageMetadata(r io.ReadSeeker, findings *library.Findings, logger *zap.Logger) error {
	if err := readEXIF(r, findings); err != nil {
		logger.Debug("no usable EXIF data", zap.Error(err))
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding file after EXIF: %w", err)
	}

	if err := readXMP(r, findings); err != nil {
		logger.Debug("no usable XMP data", zap.Error(err))
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding file after XMP: %w", err)
	}

	// dimensions straight from the codec when the metadata had none
	if findings.Width == 0 && findings.Height == 0 {
		if cfg, _, err := image.DecodeConfig(r); err == nil {
			findings.Width, findings.Height = cfg.Width, cfg.Height
		}
	}

	return nil
}

// exifDateFields can carry the capture date, in preference order.
// Placeholder values like "0000:00:00 00:00:00" are dropped at parse.
var exifDateFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

func readEXIF(r io.Reader, findings *library.Findings) error {
	ex, err := exif.Decode(r)
	if err != nil && exif.IsCriticalError(err) {
		// plenty of files simply have no EXIF block
		return err
	}

	for _, field := range exifDateFields {
		if sig := library.ParseDate(exifString(ex, field), library.SignalEmbedded); sig != nil {
			findings.Signals = append(findings.Signals, *sig)
		}
	}

	if lat, lon, err := ex.LatLong(); err == nil {
		findings.Latitude, findings.Longitude = &lat, &lon
	}

	findings.Width = exifInt(ex, exif.PixelXDimension)
	findings.Height = exifInt(ex, exif.PixelYDimension)
	if findings.Width == 0 || findings.Height == 0 {
		findings.Width = exifInt(ex, exif.ImageWidth)
		findings.Height = exifInt(ex, exif.ImageLength)
	}

	findings.CameraMake = exifString(ex, exif.Make)
	findings.CameraModel = exifString(ex, exif.Model)

	return nil
}

func exifString(ex *exif.Exif, field exif.FieldName) string {
	tag, err := ex.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	// some cameras pad string tags with NULs
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func exifInt(ex *exif.Exif, field exif.FieldName) int {
	tag, err := ex.Get(field)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

// xmpDatePaths are the XMP properties that can carry the capture
// date, in preference order.
var xmpDatePaths = []string{
	"photoshop:DateCreated",
	"exif:DateTimeOriginal",
	"xmp:CreateDate",
}

func readXMP(r io.Reader, findings *library.Findings) error {
	packets, err := xmp.ScanPackets(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil // no XMP block at all
		}
		return err
	}

	for _, packet := range packets {
		var doc xmp.Document
		if err := xmp.Unmarshal(packet, &doc); err != nil {
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
		for _, path := range xmpDatePaths {
			if sig := library.ParseDate(byPath[path], library.SignalEmbedded); sig != nil {
				findings.Signals = append(findings.Signals, *sig)
			}
		}
	}

	return nil
}

