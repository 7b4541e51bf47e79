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
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubExtractor stands in for the real extractor packages, which
// register from the main module and are not linked into these tests.
// It only takes files named stub_* so it cannot disturb other tests.
type stubExtractor struct{}

func init() {
	err := RegisterExtractor(Extractor{
		Name:     "scan_stub",
		Title:    "Scan test stub",
		Kind:     SignalEmbedded,
		Priority: 10,
		New:      func() (SignalExtractor, error) { return stubExtractor{}, nil },
	})
	if err != nil {
		panic(err)
	}
}

func (stubExtractor) Recognize(entry DirEntry) bool {
	return strings.HasPrefix(path.Base(entry.Filename), "stub_")
}

func (stubExtractor) Extract(_ context.Context, entry DirEntry, _ *zap.Logger) (*Findings, error) {
	findings := new(Findings)
	if strings.HasPrefix(path.Base(entry.Filename), "stub_beach") {
		findings.Signals = append(findings.Signals, DateSignal{
			Year: 2019, Month: 7, Day: 2,
			Hour: 10, Minute: 6, Second: 12, HasTime: true,
			Source: SignalEmbedded,
		})
		findings.Width, findings.Height = 4032, 3024
		findings.CameraMake, findings.CameraModel = "Apple", "iPhone X"
	}
	return findings, nil
}

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))
	return buf.Bytes()
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	photo := filepath.Join(root, "Vacation", "stub_beach.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(photo), 0755))
	require.NoError(t, os.WriteFile(photo, encodeTestJPEG(t), 0644))

	undated := filepath.Join(root, "To Sort", "stub_nothing.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(undated), 0755))
	require.NoError(t, os.WriteFile(undated, []byte("junk"), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	var progressed atomic.Int32
	stats, err := lib.Scan(ctx, ScanOptions{
		Workers:  2,
		Previews: true,
		OnProgress: func(_, total int, _ string) {
			progressed.Add(1)
			assert.Equal(t, 2, total)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ScanStats{Files: 2, Resolved: 1, Failed: 1, Skipped: 1}, stats)
	assert.Equal(t, int32(2), progressed.Load())
	assert.False(t, lib.Empty())

	var targetFilename, targetPath string
	var width int
	var thumb []byte
	err = lib.db.QueryRow(`SELECT target_filename, target_path, width, thumbhash
		FROM items WHERE source_path = ?`, photo).
		Scan(&targetFilename, &targetPath, &width, &thumb)
	require.NoError(t, err)
	assert.Equal(t, "2019-07-02_1006_4032x3024_Vacation_stub_beach.jpg", targetFilename)
	assert.Equal(t, "2010+/2019/2019-07/Vacation/2019-07-02_1006_4032x3024_Vacation_stub_beach.jpg", targetPath)
	assert.Equal(t, 4032, width)
	assert.NotEmpty(t, thumb, "previews were requested for images")

	var itemErr string
	err = lib.db.QueryRow(`SELECT error FROM items WHERE source_path = ?`, undated).Scan(&itemErr)
	require.NoError(t, err)
	assert.Equal(t, "no usable date signal", itemErr)

	// a second scan must update rows in place, not duplicate them
	_, err = lib.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	var count int
	require.NoError(t, lib.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 2, count)

	var report bytes.Buffer
	rows, err := lib.WriteReport(ctx, &report)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	got := report.String()
	assert.Contains(t, got, "stub_beach.jpg")
	assert.Contains(t, got, "2019-07-02 10:06")
	assert.Contains(t, got, "Apple iPhone X")
	assert.Contains(t, got, "no usable date signal")
}

func TestScanSingleFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	photo := filepath.Join(root, "Vacation", "stub_beach.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(photo), 0755))
	require.NoError(t, os.WriteFile(photo, []byte("img"), 0644))

	stats, err := lib.Scan(ctx, ScanOptions{Source: photo})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Resolved)

	// the parent folder still names the event even when the scan is
	// rooted at the file itself
	var targetPath string
	err = lib.db.QueryRow(`SELECT target_path FROM items WHERE source_path = ?`, photo).Scan(&targetPath)
	require.NoError(t, err)
	assert.Contains(t, targetPath, "/Vacation/")
}

func TestScanArchive(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	zipPath := filepath.Join(root, "inbox", "Photos 2019.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0755))

	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	zf, err := zw.Create("Trip 2019/stub_beach.jpg")
	require.NoError(t, err)
	_, err = zf.Write([]byte("zipped"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipPath, zbuf.Bytes(), 0644))

	stats, err := lib.Scan(ctx, ScanOptions{Source: zipPath})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Resolved)

	var sourcePath string
	err = lib.db.QueryRow(`SELECT source_path FROM items WHERE target_filename LIKE '%stub_beach%'`).Scan(&sourcePath)
	require.NoError(t, err)
	assert.Contains(t, sourcePath, "Photos 2019.zip")
}
