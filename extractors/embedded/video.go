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

package embedded

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/abema/go-mp4"
	"github.com/chronofile/chronofile/library"
	"github.com/dhowden/tag"
	"go.uber.org/zap"
)

// readVideoMetadata reads MP4 box structure and ID3-style tags from a
// video file. Non-MP4 containers (AVI, MKV, ...) fail the box walk,
// which is fine; any signal they carry has to come from elsewhere.
func readVideoMetadata(r io.ReadSeeker, findings *library.Findings, logger *zap.Logger) error {
	if err := readMP4Boxes(r, findings, logger); err != nil {
		logger.Debug("reading mp4 structure", zap.Error(err))
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding file after mp4: %w", err)
	}

	readTags(r, findings, logger)
	return nil
}

// readMP4Boxes walks the box structure of an ISO base media file.
// The movie header carries the creation time; track headers carry the
// frame dimensions and, as a fallback, their own creation times; and
// phones put GPS coordinates in the ©xyz user-data box.
func readMP4Boxes(r io.ReadSeeker, findings *library.Findings, logger *zap.Logger) error {
	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (any, error) {
		switch {
		case h.BoxInfo.IsSupportedType() && h.BoxInfo.Type.String() != "mdat":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading box payload: %w", err)
			}

			switch b := box.(type) {
			case *mp4.Mvhd:
				if sig := mp4CreationSignal(b.GetCreationTime()); sig != nil {
					findings.Signals = append(findings.Signals, *sig)
				}
			case *mp4.Tkhd:
				// just in case (for some reason) the mvhd box didn't have it
				if sig := mp4CreationSignal(b.GetCreationTime()); sig != nil {
					findings.Signals = append(findings.Signals, *sig)
				}
				if findings.Width == 0 && findings.Height == 0 {
					if w, ht := b.GetWidthInt(), b.GetHeightInt(); w > 0 && ht > 0 {
						findings.Width, findings.Height = int(w), int(ht)
					}
				}
			}

			return h.Expand()

		case h.BoxInfo.Context.UnderUdta && h.BoxInfo.Type == [4]byte{'©', 'x', 'y', 'z'}:
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("reading ©xyz box: %w", err)
			}
			lat, lon, err := parseXYZCoords(buf.String())
			if err != nil {
				logger.Debug("parsing ©xyz coordinates",
					zap.String("raw", buf.String()),
					zap.Error(err))
			} else {
				findings.Latitude, findings.Longitude = &lat, &lon
			}
		}

		return nil, nil
	})
	return err
}

// mp4Epoch is the number of seconds between January 1, 1904 (the
// epoch MP4 box timestamps count from, per ISO/IEC 14496-12) and the
// Unix epoch.
const mp4Epoch uint64 = 2082844800

// mp4CreationSignal converts an MP4 creation timestamp to a date
// signal. A zero or epoch-zero value means the recorder didn't know
// the time, and some apps write small garbage values, so anything
// before the Unix epoch is rejected. MP4 timestamps are UTC.
func mp4CreationSignal(ts uint64) *library.DateSignal {
	if ts <= mp4Epoch {
		return nil
	}
	t := time.Unix(int64(ts-mp4Epoch), 0).UTC() //nolint:gosec
	return library.SignalFromTime(t, library.SignalEmbedded)
}

// readTags harvests what dhowden/tag understands (MP4 atoms, ID3):
// usually just a year, sometimes a title.
func readTags(r io.ReadSeeker, findings *library.Findings, logger *zap.Logger) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			logger.Debug("no tag metadata", zap.Error(err))
		}
		return
	}

	if year := m.Year(); year > 0 {
		findings.Signals = append(findings.Signals, library.DateSignal{
			Year:   year,
			Source: library.SignalEmbedded,
		})
	}
	if title := m.Title(); title != "" {
		if findings.Fields == nil {
			findings.Fields = make(map[string]any)
		}
		findings.Fields["Title"] = title
	}
}

// xyzCoordsRE matches the latitude and longitude of an ©xyz box
// value, which looks like "*data+50.1234-101.1234+000.000/".
var xyzCoordsRE = regexp.MustCompile(`([+-]\d+\.\d+)([+-]\d+\.\d+)`)

func parseXYZCoords(raw string) (lat, lon float64, err error) {
	m := xyzCoordsRE.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, fmt.Errorf("no coordinates in %q", raw)
	}
	lat, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
