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
	"errors"
	"fmt"
	"io"
	"io/fs"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// moveFile moves src to the path named by destDir and filename,
// returning the actual destination path, which differs from the
// requested one when the name was already taken. The destination is
// claimed with an exclusive create before moving, so concurrent moves
// into the same folder cannot silently overwrite each other; on a
// collision the filename gets a "__" plus a short random suffix before
// its extension, for a bounded number of attempts.
//
// A move across devices falls back to copy+sync+remove, preserving the
// source's modification time.
func moveFile(src, destDir, filename string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("making destination folder: %w", err)
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for i := 0; i < 10; i++ {
		tryName := stem
		if i > 0 {
			// same case == true for portability to case-insensitive file systems
			tryName += fmt.Sprintf("__%s", safeRandomString(4, true, nil))
		}
		tryName += ext
		tryPath := filepath.Join(destDir, tryName)

		// claim the name with an exclusive create so a concurrent
		// worker gets fs.ErrExist instead of a clobbered file
		f, err := os.OpenFile(tryPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
		if errors.Is(err, fs.ErrExist) {
			continue // name already taken; try another one
		}
		if err != nil {
			return "", fmt.Errorf("claiming destination file: %w", err)
		}

		if err := renameOrCopy(src, tryPath, f); err != nil {
			f.Close()
			os.Remove(tryPath)
			return "", err
		}
		return tryPath, nil
	}

	return "", fmt.Errorf("unable to find available filename for: %s", filename)
}

// renameOrCopy moves src onto the already-claimed destination path.
// claimed is the open handle from the exclusive create; rename
// replaces the empty claimed file atomically, and the cross-device
// fallback writes through the handle instead.
func renameOrCopy(src, dest string, claimed *os.File) error {
	renameErr := os.Rename(src, dest)
	if renameErr == nil {
		claimed.Close()
		return nil
	}

	// a rename across devices (or into some network mounts) cannot
	// succeed; copy the contents and remove the original
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("moving file: %w", renameErr)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("checking source file: %w", err)
	}

	if _, err := io.Copy(claimed, srcFile); err != nil {
		claimed.Close()
		return fmt.Errorf("copying file contents: %w", err)
	}
	if err := claimed.Sync(); err != nil {
		claimed.Close()
		return fmt.Errorf("syncing destination file: %w", err)
	}
	if err := claimed.Close(); err != nil {
		return fmt.Errorf("closing destination file: %w", err)
	}

	modTime := info.ModTime()
	if err := os.Chtimes(dest, modTime, modTime); err != nil {
		Log.Warn("preserving file times", zap.String("file", dest), zap.Error(err))
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing source file after copy: %w", err)
	}
	return nil
}

// Sidecar attachment styles. Appended sidecars keep the primary's full
// name ("IMG_1234.jpg.xmp"); replaced sidecars swap the primary's
// extension for their own ("IMG_1234.xmp").
type sidecarStyle int

const (
	sidecarAppended sidecarStyle = iota
	sidecarReplaced
)

// sidecarFile is a companion metadata file found beside a primary
// media file.
type sidecarFile struct {
	path  string // OS path of the sidecar
	ext   string // the sidecar's own extension, as found on disk
	style sidecarStyle
}

// sidecarExts are the companion extensions that travel with a primary:
// XMP in both attachment styles, Google Takeout JSON appended, and
// Apple adjustment files with the extension replaced.
var sidecarExts = []struct {
	ext      string
	appended bool
	replaced bool
}{
	{ext: ".xmp", appended: true, replaced: true},
	{ext: ".json", appended: true},
	{ext: ".aae", replaced: true},
}

// findSidecars probes for companion files beside the primary media
// file at the given OS path.
func findSidecars(primary string) []sidecarFile {
	var found []sidecarFile
	stem := strings.TrimSuffix(primary, filepath.Ext(primary))

	// probe the lowercase spelling first, then the uppercase one
	// cameras and phones tend to write (".AAE" especially)
	try := func(candidate string, style sidecarStyle) {
		ext := filepath.Ext(candidate)
		upper := strings.TrimSuffix(candidate, ext) + strings.ToUpper(ext)
		for _, p := range []string{candidate, upper} {
			if FileExists(p) {
				found = append(found, sidecarFile{path: p, ext: filepath.Ext(p), style: style})
				return
			}
		}
	}

	for _, sc := range sidecarExts {
		if sc.appended {
			try(primary+sc.ext, sidecarAppended)
		}
		if sc.replaced {
			try(stem+sc.ext, sidecarReplaced)
		}
	}
	return found
}

// targetName returns the sidecar's filename when its primary is
// renamed to primaryFilename, preserving the attachment style.
func (s sidecarFile) targetName(primaryFilename string) string {
	if s.style == sidecarAppended {
		return primaryFilename + s.ext
	}
	return strings.TrimSuffix(primaryFilename, filepath.Ext(primaryFilename)) + s.ext
}

// pruneEmptyDirs removes dir if it is empty, then walks up toward
// root removing emptied parents, stopping at the first non-empty
// folder. root itself is never removed. Pointless files are deleted
// rather than counted as contents. Returns how many folders were
// removed.
func pruneEmptyDirs(root, dir string) (int, error) {
	root = filepath.Clean(root)
	dir = filepath.Clean(dir)

	var pruned int
	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		empty, _, err := directoryEmpty(dir, true)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return pruned, nil
			}
			return pruned, err
		}
		if !empty {
			return pruned, nil
		}
		if err := os.Remove(dir); err != nil {
			return pruned, fmt.Errorf("removing empty folder: %w", err)
		}
		pruned++
		dir = filepath.Dir(dir)
	}
	return pruned, nil
}

// randomString returns a string of n random characters.
// It is not even remotely secure or a proper distribution.
// But it's good enough for some things. It elides certain
// confusing characters like I, l, 1, 0, O, etc. If sameCase
// is true, then uppercase letters are excluded.
func randomString(n int, sameCase bool, r mathrand.Source) string {
	if n <= 0 {
		return ""
	}
	dict := []rune("ABCDEFGHJKLMNPQRTUVWXYabcdefghijkmnopqrstuvwxyz23456789")
	if sameCase {
		dict = dict[22:]
	}
	b := make([]rune, n)
	for i := range b {
		var rnd int64
		if r == nil {
			rnd = mathrand.Int63()
		} else {
			rnd = r.Int63()
		}
		b[i] = dict[rnd%int64(len(dict))]
	}
	return string(b)
}

// safeRandomString is like randomString, but it retries a few times if
// the result happens to spell something unfortunate for a filename.
func safeRandomString(n int, sameCase bool, r mathrand.Source) string {
	var s string
	for i := 0; i < 10; i++ {
		s = randomString(n, sameCase, r)
		if !containsBlocklistedWord(s) {
			break
		}
	}
	return s
}

func containsBlocklistedWord(s string) bool {
	s = strings.ToLower(s)
	for _, word := range []string{"fuk", "fuc", "sht", "ass", "cum", "sex", "die", "wtf"} {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}
