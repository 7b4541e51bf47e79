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
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestFindingsMerge(t *testing.T) {
	lat, lon := 35.6, -120.7
	f := &Findings{
		Signals:    []DateSignal{{Year: 2019, Month: 7, Day: 2, Source: SignalEmbedded}},
		Width:      4032,
		Height:     3024,
		CameraMake: "Apple",
	}
	f.merge(&Findings{
		Signals:     []DateSignal{{Year: 2019, Month: 7, Day: 1, Source: SignalSidecar}},
		Width:       100,
		Height:      100,
		CameraMake:  "SomeoneElse",
		CameraModel: "iPhone X",
		Latitude:    &lat,
		Longitude:   &lon,
		TimeZone:    "America/Los_Angeles",
		Fields:      map[string]any{"iso": 200},
	})

	if len(f.Signals) != 2 {
		t.Errorf("expected 2 signals after merge, got %d", len(f.Signals))
	}
	if f.Width != 4032 || f.Height != 3024 {
		t.Errorf("dimensions should keep the first pair seen, got %dx%d", f.Width, f.Height)
	}
	if f.CameraMake != "Apple" {
		t.Errorf("camera make should keep the first value seen, got %s", f.CameraMake)
	}
	if f.CameraModel != "iPhone X" {
		t.Errorf("empty camera model should adopt the merged value, got %q", f.CameraModel)
	}
	if f.Latitude == nil || *f.Latitude != lat || f.Longitude == nil || *f.Longitude != lon {
		t.Error("empty coordinates should adopt the merged pair")
	}
	if f.TimeZone != "America/Los_Angeles" {
		t.Errorf("wrong time zone: %s", f.TimeZone)
	}
	if f.Fields["iso"] != 200 {
		t.Errorf("wrong field value: %v", f.Fields["iso"])
	}
}

func TestBestSignals(t *testing.T) {
	f := &Findings{Signals: []DateSignal{
		{Year: 1900, Month: 1, Day: 1, Source: SignalEmbedded}, // placeholder, must lose
		{Year: 2019, Month: 7, Day: 2, Source: SignalEmbedded},
		{Year: 2018, Month: 1, Source: SignalFilename},
		{Year: 2017, Month: 3, Day: 4, Source: SignalEmbedded}, // later in order, must lose
	}}

	best := f.BestSignals()
	if len(best) != 2 {
		t.Fatalf("expected signals of 2 kinds, got %d", len(best))
	}
	if got := best[SignalEmbedded]; got == nil || got.Year != 2019 {
		t.Errorf("embedded winner should be the first non-placeholder, got %v", got)
	}
	if got := best[SignalFilename]; got == nil || got.Year != 2018 {
		t.Errorf("wrong filename winner: %v", got)
	}
}

func TestMetadataSignal(t *testing.T) {
	embedded := &DateSignal{Year: 2019, Source: SignalEmbedded}
	sidecar := &DateSignal{Year: 2018, Source: SignalSidecar}
	filetime := &DateSignal{Year: 2017, Source: SignalFileTime}

	for i, tc := range []struct {
		best     map[SignalKind]*DateSignal
		expected *DateSignal
	}{
		{
			best:     map[SignalKind]*DateSignal{SignalEmbedded: embedded, SignalSidecar: sidecar, SignalFileTime: filetime},
			expected: embedded,
		},
		{
			best:     map[SignalKind]*DateSignal{SignalSidecar: sidecar, SignalFileTime: filetime},
			expected: sidecar,
		},
		{
			best:     map[SignalKind]*DateSignal{SignalFileTime: filetime},
			expected: filetime,
		},
		{
			best:     map[SignalKind]*DateSignal{SignalFilename: {Year: 2020, Source: SignalFilename}},
			expected: nil,
		},
		{
			best:     map[SignalKind]*DateSignal{},
			expected: nil,
		},
	} {
		if got := MetadataSignal(tc.best); got != tc.expected {
			t.Errorf("Test %d: expected %v but got %v", i, tc.expected, got)
		}
	}
}

// inertExtractor satisfies SignalExtractor but never takes a file, so
// leftover registrations cannot disturb scans in later tests.
type inertExtractor struct{}

func (inertExtractor) Recognize(DirEntry) bool { return false }
func (inertExtractor) Extract(context.Context, DirEntry, *zap.Logger) (*Findings, error) {
	return nil, nil
}

func TestRegisterExtractor(t *testing.T) {
	ctor := func() (SignalExtractor, error) { return inertExtractor{}, nil }

	if err := RegisterExtractor(Extractor{New: ctor}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := RegisterExtractor(Extractor{Name: "test_no_ctor"}); err == nil {
		t.Error("expected error for missing constructor")
	}
	if err := RegisterExtractor(Extractor{Name: "test_dup", New: ctor}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := RegisterExtractor(Extractor{Name: "test_dup", New: ctor}); err == nil {
		t.Error("expected error for duplicate name")
	}
}
