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
	"encoding/json"
	"fmt"
	weakrand "math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
)

// SampleOptions configures sample library generation.
type SampleOptions struct {
	// Events is how many event folders to create. Default 12.
	Events int `json:"events,omitempty"`

	// Seed makes the generated tree reproducible. 0 picks a
	// time-based seed (which gets logged, so a run can be replayed).
	Seed uint64 `json:"seed,omitempty"`
}

// SampleStats counts what a generation run produced.
type SampleStats struct {
	Folders  int `json:"folders"`
	Files    int `json:"files"`
	Sidecars int `json:"sidecars"`
}

var sampleEventNames = []string{
	"Birthday Party",
	"Camping Trip",
	"Beach Day",
	"Graduation",
	"Piano Recital",
	"Road Trip",
	"Family Reunion",
	"Christmas Morning",
	"Thanksgiving",
	"Soccer Game",
	"County Fair",
	"Backyard BBQ",
	"Zoo Visit",
	"First Day of School",
	"Snow Day",
}

var sampleUndatedNames = []string{
	"Old Scans",
	"Misc",
	"From Grandma",
	"To Sort",
	"Camera Uploads",
}

// common photo dimensions, landscape; flipped for the occasional portrait
var sampleDims = [][2]int{
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 960},
	{1600, 1200},
}

// GenerateSampleLibrary fills dir with a synthetic but realistic photo
// tree: event folders named in the various styles people actually use,
// camera-style filenames (some carrying datestamps, some not), real
// JPEG payloads, the occasional Takeout-style JSON sidecar, and file
// mod times set to the pretend shot times. Handy for demos and for
// exercising a full analyze/organize cycle without anyone's real
// photos.
func GenerateSampleLibrary(ctx context.Context, dir string, opts SampleOptions) (SampleStats, error) {
	logger := Log.Named("sample")

	if opts.Events <= 0 {
		opts.Events = 12
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec
	}

	src := weakrand.NewPCG(seed, 0)
	rnd := weakrand.New(src)
	faker := gofakeit.NewFaker(src, false)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return SampleStats{}, err
	}

	logger.Info("generating sample library",
		zap.String("dir", dir),
		zap.Int("events", opts.Events),
		zap.Uint64("seed", seed))

	var stats SampleStats

	// both bounds fixed, so the same seed draws the same dates; a
	// moving bound would shift every draw after it
	earliest := time.Date(1998, time.January, 1, 0, 0, 0, 0, time.Local)
	latest := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.Local)

	for range opts.Events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		when := faker.DateRange(earliest, latest)
		eventName := faker.RandomString(sampleEventNames)

		var folderRel string
		dated := true
		switch rnd.IntN(10) {
		case 0, 1, 2:
			folderRel = fmt.Sprintf("%04d-%02d %s", when.Year(), when.Month(), eventName)
		case 3, 4:
			folderRel = fmt.Sprintf("%s %04d", eventName, when.Year())
		case 5:
			folderRel = when.Format("2006-01-02")
		case 6, 7:
			// year folder with the event nested inside it
			folderRel = filepath.Join(when.Format("2006"), eventName)
		default:
			folderRel = faker.RandomString(sampleUndatedNames)
			dated = false
		}

		folderPath := filepath.Join(dir, folderRel)
		if err := os.MkdirAll(folderPath, 0755); err != nil {
			return stats, err
		}
		stats.Folders++

		files, sidecars, err := generateEventFiles(rnd, faker, folderPath, eventName, when, dated)
		if err != nil {
			return stats, err
		}
		stats.Files += files
		stats.Sidecars += sidecars
	}

	logger.Info("sample library ready",
		zap.Int("folders", stats.Folders),
		zap.Int("files", stats.Files),
		zap.Int("sidecars", stats.Sidecars))

	return stats, nil
}

// generateEventFiles writes one event's worth of photos into dir.
// Cameras number their shots sequentially, so we do too.
func generateEventFiles(rnd *weakrand.Rand, faker *gofakeit.Faker, dir, eventName string, when time.Time, dated bool) (files, sidecars int, err error) {
	count := rnd.IntN(10) + 3
	counterBase := rnd.IntN(8000) + 1000
	style := rnd.IntN(6)

	// shots start at some hour of the event day and trickle forward
	shot := time.Date(when.Year(), when.Month(), when.Day(),
		8+rnd.IntN(10), rnd.IntN(60), rnd.IntN(60), 0, time.Local)

	for i := range count {
		shot = shot.Add(time.Duration(rnd.IntN(19)+1) * time.Minute)

		var name string
		switch {
		case !dated && style >= 4:
			// undated folder, undated name: nothing to go on but
			// metadata or mod times
			name = fmt.Sprintf("Scan-%03d.jpg", counterBase%900+i)
		case style <= 1:
			name = fmt.Sprintf("IMG_%04d.JPG", counterBase+i)
		case style == 2:
			name = fmt.Sprintf("DSC%05d.JPG", counterBase*10+i)
		case style == 3:
			name = shot.Format("20060102_150405") + ".jpg"
		case style == 4:
			name = "IMG_" + shot.Format("20060102_150405") + ".jpg"
		default:
			name = fmt.Sprintf("%s %03d.jpg", eventName, i+1)
		}

		dims := sampleDims[rnd.IntN(len(sampleDims))]
		w, h := dims[0], dims[1]
		if rnd.IntN(4) == 0 {
			w, h = h, w
		}

		// two events can share an undated folder with overlapping shot
		// counters; suffix the way exports do instead of overwriting
		filePath := filepath.Join(dir, name)
		for n := 1; FileExists(filePath); n++ {
			ext := filepath.Ext(name)
			filePath = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", strings.TrimSuffix(name, ext), n, ext))
		}

		if err := os.WriteFile(filePath, faker.ImageJpeg(w, h), 0644); err != nil {
			return files, sidecars, err
		}
		if err := os.Chtimes(filePath, shot, shot); err != nil {
			return files, sidecars, err
		}
		files++

		if rnd.IntN(6) == 0 {
			if err := writeTakeoutSidecar(filePath, name, shot); err != nil {
				return files, sidecars, err
			}
			sidecars++
		}
	}

	return files, sidecars, nil
}

// writeTakeoutSidecar writes the Google Takeout-style JSON sidecar
// that accompanies exported photos.
func writeTakeoutSidecar(primaryPath, title string, shot time.Time) error {
	meta := struct {
		Title          string `json:"title"`
		PhotoTakenTime struct {
			Timestamp string `json:"timestamp"`
			Formatted string `json:"formatted"`
		} `json:"photoTakenTime"`
	}{Title: title}
	meta.PhotoTakenTime.Timestamp = fmt.Sprintf("%d", shot.Unix())
	meta.PhotoTakenTime.Formatted = shot.UTC().Format("Jan 2, 2006, 3:04:05 PM UTC")

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	sidecarPath := primaryPath + ".json"
	if err := os.WriteFile(sidecarPath, encoded, 0644); err != nil {
		return err
	}
	return os.Chtimes(sidecarPath, shot, shot)
}
