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
	"path"
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	for i, tc := range []struct {
		date           DateSignal
		width, height  int
		parent, base   string
		ext            string
		expectFilename string
		expectPath     string
	}{
		{
			date:           DateSignal{Year: 2008, Month: 5, Day: 8, HasTime: true},
			width:          600,
			height:         450,
			parent:         "2008-05-03 Cub Scouts Photos",
			base:           "CIMG3926",
			ext:            ".jpg",
			expectFilename: "2008-05-08_0000_600x450_Cub Scouts Photos_CIMG3926.jpg",
			expectPath:     "2000+/2008/2008-05/2008-05-03 Cub Scouts Photos/2008-05-08_0000_600x450_Cub Scouts Photos_CIMG3926.jpg",
		},
		{
			// date-only parent folders are omitted entirely
			date:           DateSignal{Year: 2024, Month: 5, Day: 12},
			parent:         "2024-05",
			base:           "IMG_1234",
			ext:            "JPG",
			expectFilename: "2024-05-12_0000_0x0_IMG_1234.jpg",
			expectPath:     "2020+/2024/2024-05/2024-05-12_0000_0x0_IMG_1234.jpg",
		},
		{
			date:           DateSignal{Year: 2021, Month: 11, Day: 14, Hour: 21, Minute: 23, Second: 23, HasTime: true},
			width:          4032,
			height:         3024,
			parent:         "Vacation",
			base:           "DSC01",
			ext:            "jpg",
			expectFilename: "2021-11-14_2123_4032x3024_Vacation_DSC01.jpg",
			expectPath:     "2020+/2021/2021-11/Vacation/2021-11-14_2123_4032x3024_Vacation_DSC01.jpg",
		},
		{
			// a stem that is nothing but the date being prefixed is
			// dropped rather than repeated
			date:           DateSignal{Year: 2024, Month: 5, Day: 12, Hour: 13, Minute: 30, Second: 5, HasTime: true},
			base:           "20240512_133005",
			ext:            "mp4",
			expectFilename: "2024-05-12_1330_0x0.mp4",
			expectPath:     "2020+/2024/2024-05/2024-05-12_1330_0x0.mp4",
		},
		{
			// parent text already present in the stem is stripped
			date:           DateSignal{Year: 2010, Month: 7, Day: 4},
			parent:         "2010-07 Lake Trip",
			base:           "Lake Trip 003",
			ext:            "jpg",
			expectFilename: "2010-07-04_0000_0x0_Lake Trip_003.jpg",
			expectPath:     "2010+/2010/2010-07/2010-07 Lake Trip/2010-07-04_0000_0x0_Lake Trip_003.jpg",
		},
		{
			// dimension tokens already in the stem are stripped
			date:           DateSignal{Year: 2019, Month: 1, Day: 1},
			width:          1920,
			height:         1080,
			base:           "screenshot_1920x1080",
			ext:            "png",
			expectFilename: "2019-01-01_0000_1920x1080_screenshot.png",
			expectPath:     "2010+/2019/2019-01/2019-01-01_0000_1920x1080_screenshot.png",
		},
		{
			// year-only dates render 00 placeholders all the way down
			date:           DateSignal{Year: 1998},
			parent:         "1998 Scans",
			base:           "scan-042",
			ext:            "tif",
			expectFilename: "1998-00-00_0000_0x0_Scans_scan-042.tif",
			expectPath:     "1990+/1998/1998-00/1998 Scans/1998-00-00_0000_0x0_Scans_scan-042.tif",
		},
		{
			// a leading date that disagrees with the resolved date is
			// information, not redundancy, and stays
			date:           DateSignal{Year: 2015, Month: 6, Day: 1},
			base:           "20120223_party",
			ext:            "jpg",
			expectFilename: "2015-06-01_0000_0x0_20120223_party.jpg",
			expectPath:     "2010+/2015/2015-06/2015-06-01_0000_0x0_20120223_party.jpg",
		},
		{
			// underscores in parent text become spaces so the composed
			// fields stay unambiguous
			date:           DateSignal{Year: 2010, Month: 7, Day: 4},
			parent:         "Family_Reunion_2010",
			base:           "P1000653",
			ext:            "jpg",
			expectFilename: "2010-07-04_0000_0x0_Family Reunion_P1000653.jpg",
			expectPath:     "2010+/2010/2010-07/Family_Reunion_2010/2010-07-04_0000_0x0_Family Reunion_P1000653.jpg",
		},
	} {
		tn := Compose(tc.date, tc.width, tc.height, tc.parent, tc.base, tc.ext)
		if tn.Filename != tc.expectFilename {
			t.Errorf("Test %d (%s): expected filename %q but got %q", i, tc.base, tc.expectFilename, tn.Filename)
		}
		if got := tn.Path(); got != tc.expectPath {
			t.Errorf("Test %d (%s): expected path %q but got %q", i, tc.base, tc.expectPath, got)
		}
	}
}

// Composing a name this composer already produced must yield the same
// name again, or re-running over an organized tree would rename
// everything a second time.
func TestComposeIdempotent(t *testing.T) {
	for i, tc := range []struct {
		date          DateSignal
		width, height int
		parent, base  string
	}{
		{DateSignal{Year: 2008, Month: 5, Day: 8}, 600, 450, "2008-05-03 Cub Scouts Photos", "CIMG3926"},
		{DateSignal{Year: 2024, Month: 5, Day: 12, Hour: 13, Minute: 30, HasTime: true}, 0, 0, "", "20240512_133005"},
		{DateSignal{Year: 2010, Month: 7, Day: 4}, 3264, 2448, "Family_Reunion_2010", "P1000653"},
		{DateSignal{Year: 1998}, 0, 0, "1998 Scans", "scan-042"},
	} {
		first := Compose(tc.date, tc.width, tc.height, tc.parent, tc.base, "jpg")
		stem := strings.TrimSuffix(first.Filename, path.Ext(first.Filename))
		second := Compose(tc.date, tc.width, tc.height, tc.parent, stem, "jpg")
		if first.Filename != second.Filename {
			t.Errorf("Test %d (%s): not idempotent: first %q, second %q", i, tc.base, first.Filename, second.Filename)
		}
	}
}

func TestDescriptiveParent(t *testing.T) {
	for input, expect := range map[string]string{
		"2024-05":                      "",
		"2024-05-12":                   "",
		"20240512":                     "",
		"1950s":                        "",
		"":                             "",
		"123 456":                      "",
		"2024-05 Family Reunion":       "Family Reunion",
		"2008-05-03 Cub Scouts Photos": "Cub Scouts Photos",
		"Family_Reunion_2010":          "Family Reunion",
		"Vacation":                     "Vacation",
		"2010-2011 School Year":        "School Year",
	} {
		got, descriptive := descriptiveParent(input)
		if expect == "" {
			if descriptive {
				t.Errorf("%q: expected not descriptive, got %q", input, got)
			}
			continue
		}
		if !descriptive {
			t.Errorf("%q: expected descriptive %q, got not descriptive", input, expect)
			continue
		}
		if got != expect {
			t.Errorf("%q: expected %q but got %q", input, expect, got)
		}
	}
}
