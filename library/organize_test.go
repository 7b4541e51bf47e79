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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertTestItem catalogs a file as if a scan had resolved it.
func insertTestItem(t *testing.T, lib *Library, sourcePath, targetFilename, targetPath string) {
	t.Helper()
	info, err := os.Stat(sourcePath)
	require.NoError(t, err)
	_, err = lib.db.Exec(`INSERT INTO items
		(source_path, size, mod_time, kind, target_filename, target_path, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sourcePath, info.Size(), info.ModTime().Unix(), "image",
		targetFilename, targetPath, time.Now().Unix())
	require.NoError(t, err)
}

func TestOrganizeAndUndo(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	// a messy source folder with a photo, its Takeout sidecar, and a clip
	eventDir := filepath.Join(root, "Camera Uploads")
	require.NoError(t, os.MkdirAll(eventDir, 0755))

	photo := filepath.Join(eventDir, "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("photo"), 0644))
	require.NoError(t, os.WriteFile(photo+".json", []byte(`{"title":"IMG_0001.jpg"}`), 0644))

	clip := filepath.Join(eventDir, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("clip"), 0644))

	// a file that is already exactly where it belongs
	already := filepath.Join(root, "2010+", "2019", "2019-07", "2019-07-02_1010_0x0_done.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(already), 0755))
	require.NoError(t, os.WriteFile(already, []byte("done"), 0644))

	insertTestItem(t, lib, photo, "2019-07-02_1006_0x0_IMG_0001.jpg",
		"2010+/2019/2019-07/2019-07-02_1006_0x0_IMG_0001.jpg")
	insertTestItem(t, lib, clip, "2019-07-04_0000_0x0_clip.mp4",
		"2010+/2019/2019-07/2019-07-04_0000_0x0_clip.mp4")
	insertTestItem(t, lib, already, "2019-07-02_1010_0x0_done.jpg",
		"2010+/2019/2019-07/2019-07-02_1010_0x0_done.jpg")

	stats, err := lib.Organize(ctx, OrganizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Moved)
	assert.Equal(t, 1, stats.Skipped, "the already-canonical file should be skipped")
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.Sidecars)
	assert.Equal(t, 1, stats.PrunedDirs, "the drained source folder should be pruned")
	assert.Equal(t, int64(len("photo")+len("clip")), stats.BytesMoved)

	monthDir := filepath.Join(root, "2010+", "2019", "2019-07")
	movedPhoto := filepath.Join(monthDir, "2019-07-02_1006_0x0_IMG_0001.jpg")
	assert.True(t, FileExists(movedPhoto))
	assert.True(t, FileExists(movedPhoto+".json"), "the sidecar should travel with its primary")
	assert.True(t, FileExists(filepath.Join(monthDir, "2019-07-04_0000_0x0_clip.mp4")))
	assert.False(t, FileExists(photo))
	assert.False(t, FileExists(eventDir))

	// and back again
	jobID, err := lib.LastJobID(ctx)
	require.NoError(t, err)
	require.Equal(t, stats.JobID, jobID)

	undoStats, err := lib.Undo(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, undoStats.Moved)
	assert.Equal(t, 1, undoStats.Sidecars)
	assert.Equal(t, 0, undoStats.Skipped)
	assert.Equal(t, 0, undoStats.Failed)
	assert.Equal(t, 0, undoStats.PrunedDirs, "the month folder still holds a file and must stay")

	assert.True(t, FileExists(photo))
	assert.True(t, FileExists(photo+".json"))
	assert.True(t, FileExists(clip))
	assert.False(t, FileExists(movedPhoto))
	assert.True(t, FileExists(already), "the skipped file should be untouched")

	_, err = lib.LastJobID(ctx)
	assert.Error(t, err, "after a full undo there is nothing left to undo")
}

func TestOrganizeDryRun(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	photo := filepath.Join(root, "pics", "IMG_0002.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(photo), 0755))
	require.NoError(t, os.WriteFile(photo, []byte("photo"), 0644))
	insertTestItem(t, lib, photo, "2020-01-05_0000_0x0_IMG_0002.jpg",
		"2020+/2020/2020-01/2020-01-05_0000_0x0_IMG_0002.jpg")

	stats, err := lib.Organize(ctx, OrganizeOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Moved, "the plan should count the would-be move")
	assert.True(t, FileExists(photo), "a dry run must not touch files")
	assert.False(t, FileExists(filepath.Join(root, "2020+")))

	_, err = lib.LastJobID(ctx)
	assert.Error(t, err, "a dry run must not journal anything")
}

func TestOrganizeRenameOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	photo := filepath.Join(root, "pics", "IMG_0003.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(photo), 0755))
	require.NoError(t, os.WriteFile(photo, []byte("photo"), 0644))
	insertTestItem(t, lib, photo, "2021-03-09_1415_0x0_IMG_0003.jpg",
		"2020+/2021/2021-03/2021-03-09_1415_0x0_IMG_0003.jpg")

	stats, err := lib.Organize(ctx, OrganizeOptions{RenameOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Moved)

	assert.True(t, FileExists(filepath.Join(root, "pics", "2021-03-09_1415_0x0_IMG_0003.jpg")),
		"rename-only should keep the file in its own folder")
	assert.False(t, FileExists(photo))
	assert.False(t, FileExists(filepath.Join(root, "2020+")))
}

func TestOrganizeSourceFilter(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	lib, err := Create(ctx, root)
	require.NoError(t, err)
	defer lib.Close()

	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	for _, p := range []string{
		filepath.Join(dirA, "one.jpg"),
		filepath.Join(dirB, "two.jpg"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	insertTestItem(t, lib, filepath.Join(dirA, "one.jpg"), "2022-05-01_0000_0x0_one.jpg",
		"2020+/2022/2022-05/2022-05-01_0000_0x0_one.jpg")
	insertTestItem(t, lib, filepath.Join(dirB, "two.jpg"), "2022-06-01_0000_0x0_two.jpg",
		"2020+/2022/2022-06/2022-06-01_0000_0x0_two.jpg")

	stats, err := lib.Organize(ctx, OrganizeOptions{Source: dirA, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Moved, "only items under the source filter should be planned")
}
