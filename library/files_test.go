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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFile(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "incoming", "pic.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0644))

	destDir := filepath.Join(tempDir, "sorted", "2019", "2019-07")
	dest, err := moveFile(src, destDir, "2019-07-02_1006_0x0_pic.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "2019-07-02_1006_0x0_pic.jpg"), dest)

	moved, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(moved))
	assert.False(t, FileExists(src), "source should be gone after the move")
}

func TestMoveFileCollision(t *testing.T) {
	tempDir := t.TempDir()
	destDir := filepath.Join(tempDir, "sorted")

	src1 := filepath.Join(tempDir, "a.jpg")
	src2 := filepath.Join(tempDir, "b.jpg")
	require.NoError(t, os.WriteFile(src1, []byte("one"), 0644))
	require.NoError(t, os.WriteFile(src2, []byte("two"), 0644))

	first, err := moveFile(src1, destDir, "pic.jpg")
	require.NoError(t, err)
	second, err := moveFile(src2, destDir, "pic.jpg")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	base := filepath.Base(second)
	assert.True(t, strings.HasPrefix(base, "pic__"), "collision should suffix the stem, got %s", base)
	assert.True(t, strings.HasSuffix(base, ".jpg"), "collision should keep the extension, got %s", base)

	kept, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(kept), "the first file must not be clobbered")
	renamed, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(renamed))
}

func TestFindSidecars(t *testing.T) {
	tempDir := t.TempDir()
	primary := filepath.Join(tempDir, "IMG_1234.jpg")

	for _, name := range []string{
		"IMG_1234.jpg",
		"IMG_1234.jpg.xmp",  // appended style
		"IMG_1234.jpg.json", // Takeout export
		"IMG_1234.AAE",      // replaced style, uppercase as iOS writes it
		"IMG_5678.xmp",      // belongs to some other file
	} {
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), []byte("x"), 0644))
	}

	found := findSidecars(primary)
	require.Len(t, found, 3)

	assert.Equal(t, filepath.Join(tempDir, "IMG_1234.jpg.xmp"), found[0].path)
	assert.Equal(t, sidecarAppended, found[0].style)
	assert.Equal(t, filepath.Join(tempDir, "IMG_1234.jpg.json"), found[1].path)
	assert.Equal(t, sidecarAppended, found[1].style)
	assert.Equal(t, filepath.Join(tempDir, "IMG_1234.AAE"), found[2].path)
	assert.Equal(t, sidecarReplaced, found[2].style)
	assert.Equal(t, ".AAE", found[2].ext, "the on-disk spelling of the extension should be kept")
}

func TestSidecarTargetName(t *testing.T) {
	for i, tc := range []struct {
		sidecar  sidecarFile
		primary  string
		expected string
	}{
		{
			sidecar:  sidecarFile{ext: ".xmp", style: sidecarAppended},
			primary:  "2019-07-02_1006_4032x3024_IMG_1234.jpg",
			expected: "2019-07-02_1006_4032x3024_IMG_1234.jpg.xmp",
		},
		{
			sidecar:  sidecarFile{ext: ".json", style: sidecarAppended},
			primary:  "pic.jpg",
			expected: "pic.jpg.json",
		},
		{
			sidecar:  sidecarFile{ext: ".AAE", style: sidecarReplaced},
			primary:  "2019-07-02_1006_4032x3024_IMG_1234.jpg",
			expected: "2019-07-02_1006_4032x3024_IMG_1234.AAE",
		},
		{
			sidecar:  sidecarFile{ext: ".xmp", style: sidecarReplaced},
			primary:  "pic.jpeg",
			expected: "pic.xmp",
		},
	} {
		if got := tc.sidecar.targetName(tc.primary); got != tc.expected {
			t.Errorf("Test %d: expected %s but got %s", i, tc.expected, got)
		}
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "keep.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", ".DS_Store"), []byte("x"), 0644))

	pruned, err := pruneEmptyDirs(root, deep)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned, "c and b should be pruned, a should survive")
	assert.False(t, FileExists(filepath.Join(root, "a", "b")))
	assert.True(t, FileExists(filepath.Join(root, "a", "keep.jpg")))

	// the root itself is never removed, even when empty
	solo := filepath.Join(root, "solo")
	require.NoError(t, os.MkdirAll(solo, 0755))
	pruned, err = pruneEmptyDirs(solo, solo)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
	assert.True(t, FileExists(solo))

	// folders outside the root are left alone
	pruned, err = pruneEmptyDirs(filepath.Join(root, "elsewhere"), filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
	assert.True(t, FileExists(filepath.Join(root, "a")))
}

func TestDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, first, err := directoryEmpty(dir, false)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, first)

	// pointless files don't count as contents, and survive unless asked
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0644))
	empty, _, err = directoryEmpty(dir, false)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.True(t, FileExists(filepath.Join(dir, ".DS_Store")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.jpg"), []byte("x"), 0644))
	empty, first, err = directoryEmpty(dir, false)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, "real.jpg", first)
}
