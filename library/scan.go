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
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	// the extractors register further decoders (webp, tiff, avif, ...)
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/maruel/natural"
	"github.com/mholt/archives"
	"github.com/zeebo/blake3"
	"go.n16f.net/thumbhash"
	"go.uber.org/zap"
)

// ScanOptions configures a catalog scan.
type ScanOptions struct {
	// Source is the folder (or archive) to scan. Empty means the
	// library root itself.
	Source string `json:"source,omitempty"`

	// Workers is the number of files processed concurrently.
	// 0 means NumCPU.
	Workers int `json:"workers,omitempty"`

	// Previews computes a compact thumbhash for images.
	Previews bool `json:"previews,omitempty"`

	// ModTimeFallback lets the filesystem's timestamp stand in as a
	// metadata date when the file has no better one.
	ModTimeFallback bool `json:"mod_time_fallback,omitempty"`

	// DisableExifTool skips the external exiftool extractor even when
	// the binary is installed.
	DisableExifTool bool `json:"disable_exiftool,omitempty"`

	// OnProgress, if set, is called after each file.
	OnProgress func(done, total int, name string) `json:"-"`
}

// ScanStats summarizes a scan.
type ScanStats struct {
	Files    int `json:"files"`    // media files catalogued
	Resolved int `json:"resolved"` // of those, with a resolved date
	Failed   int `json:"failed"`   // of those, with no usable date
	Skipped  int `json:"skipped"`  // non-media files passed over
}

// Scan walks the source tree, resolves a date for every media file,
// composes its target name, and records everything in the catalog.
// Files whose date cannot be resolved are catalogued with the error
// rather than failing the scan.
func (l *Library) Scan(ctx context.Context, opts ScanOptions) (ScanStats, error) {
	source := opts.Source
	if source == "" {
		source = l.root
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := Log.Named("scan").With(zap.String("source", source))

	fsys, fsRoot, start, err := openSourceFS(ctx, source)
	if err != nil {
		return ScanStats{}, err
	}

	files, skipped, err := listMediaFiles(ctx, fsys, start)
	if err != nil {
		return ScanStats{}, fmt.Errorf("listing files in %s: %w", source, err)
	}

	logger.Info("scanning",
		zap.Int("files", len(files)),
		zap.Int("workers", workers))

	disabled := make(map[string]bool)
	if opts.DisableExifTool {
		disabled["exiftool"] = true
	}
	if !opts.ModTimeFallback {
		disabled["filetimes"] = true
	}

	var done, resolved, failed atomic.Int64
	total := len(files)

	jobs := make(chan walkedFile)
	wg := new(sync.WaitGroup)
	for i := range workers {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			workerLog := logger.With(zap.Int("worker", workerNum))

			set := newExtractorSet(disabled, workerLog)
			defer set.Close()

			for wf := range jobs {
				if ctx.Err() != nil {
					continue // drain the channel
				}
				entry := DirEntry{
					DirEntry: wf.d,
					FS:       fsys,
					FSRoot:   fsRoot,
					Filename: wf.name,
				}
				ok, err := l.scanOne(ctx, entry, set, opts, workerLog)
				if err != nil {
					workerLog.Error("scanning file",
						zap.String("file", wf.name),
						zap.Error(err))
				} else if ok {
					resolved.Add(1)
				} else {
					failed.Add(1)
				}
				n := done.Add(1)
				if opts.OnProgress != nil {
					opts.OnProgress(int(n), total, wf.name)
				}
			}
		}(i)
	}

	for _, wf := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		jobs <- wf
	}
	close(jobs)
	wg.Wait()

	stats := ScanStats{
		Files:    int(done.Load()),
		Resolved: int(resolved.Load()),
		Failed:   int(failed.Load()),
		Skipped:  skipped,
	}
	logger.Info("scan complete",
		zap.Int("files", stats.Files),
		zap.Int("resolved", stats.Resolved),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped))

	return stats, ctx.Err()
}

type walkedFile struct {
	name string // slash path within the scan FS
	d    fs.DirEntry
}

// openSourceFS roots a file system for the scan. A directory becomes
// the FS root itself; a file's parent folder becomes the root so that
// sidecars beside it stay reachable; archives are entered
// transparently, including paths that traverse into one.
func openSourceFS(ctx context.Context, source string) (fs.FS, string, string, error) {
	fsRoot, startName := source, "."

	var fsys fs.FS
	var err error
	if archives.PathContainsArchive(filepath.ToSlash(fsRoot)) {
		fsys = &archives.DeepFS{Root: fsRoot, Context: ctx}
	} else {
		fsys, err = archives.FileSystem(ctx, fsRoot, nil)
		if err != nil {
			return nil, "", "", fmt.Errorf("creating file system at %s: %w", fsRoot, err)
		}
	}

	info, err := fs.Stat(fsys, startName)
	if err != nil {
		return nil, "", "", fmt.Errorf("could not stat scan source %s: %w", source, err)
	}
	if !info.IsDir() {
		// root the FS at the parent folder and point the start name
		// at the file within it
		dir, base := filepath.Split(fsRoot)
		fsRoot, startName = filepath.Clean(dir), base

		switch f := fsys.(type) {
		case *archives.DeepFS:
			f.Root = fsRoot
		default:
			fsys, err = archives.FileSystem(ctx, fsRoot, nil)
			if err != nil {
				return nil, "", "", fmt.Errorf("recreating file system at %s: %w", fsRoot, err)
			}
		}
	}

	return fsys, fsRoot, startName, nil
}

// listMediaFiles walks the FS from start and returns the media files
// in natural sort order, plus a count of files passed over. Hidden
// entries, catalog folders, and sidecars (catalogued with their
// primaries) are not returned.
func listMediaFiles(ctx context.Context, fsys fs.FS, start string) ([]walkedFile, int, error) {
	var files []walkedFile
	var skipped int

	err := fs.WalkDir(fsys, start, func(fpath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if fpath != start && (strings.HasPrefix(name, ".") || name == CatalogDirName) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if MediaKind(name) == "" {
			if !isSidecarName(name) {
				skipped++
			}
			return nil
		}
		files = append(files, walkedFile{name: fpath, d: d})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool {
		return natural.Less(files[i].name, files[j].name)
	})
	return files, skipped, nil
}

// scanOne extracts, resolves, composes, and catalogs a single file.
// The bool reports whether a date was resolved; resolution failures
// are recorded on the item row and are not errors.
func (l *Library) scanOne(ctx context.Context, entry DirEntry, set *extractorSet, opts ScanOptions, logger *zap.Logger) (bool, error) {
	info, err := entry.Info()
	if err != nil {
		return false, fmt.Errorf("stat: %w", err)
	}

	findings, err := set.extract(ctx, entry)
	if err != nil {
		return false, err
	}
	if findings.TimeZone == "" && findings.Latitude != nil && findings.Longitude != nil {
		findings.TimeZone = TimeZoneName(*findings.Latitude, *findings.Longitude)
	}

	best := findings.BestSignals()
	res, resErr := Resolve(best[SignalFolder], best[SignalFilename], MetadataSignal(best))

	var target TargetName
	if resErr == nil {
		base := path.Base(entry.Filename)
		ext := path.Ext(base)
		target = Compose(res.Resolved, findings.Width, findings.Height,
			parentFolderName(entry), strings.TrimSuffix(base, ext), ext)
	} else {
		logger.Debug("no date resolved",
			zap.String("file", entry.Filename),
			zap.Error(resErr))
	}

	contentHash, err := hashFile(entry)
	if err != nil {
		logger.Warn("hashing file", zap.String("file", entry.Filename), zap.Error(err))
	}

	item := &catalogItem{
		sourcePath: entry.FullPath(),
		size:       info.Size(),
		modTime:    info.ModTime(),
		hash:       contentHash,
		kind:       MediaKind(entry.Filename),
		findings:   findings,
		best:       best,
		res:        res,
		resErr:     resErr,
		target:     target,
	}

	if opts.Previews && item.kind == "image" {
		if preview, err := previewHash(entry); err == nil {
			item.thumbhash = preview
		} else {
			logger.Debug("no preview computed",
				zap.String("file", entry.Filename),
				zap.Error(err))
		}
	}

	if err := l.upsertItem(ctx, item); err != nil {
		return false, fmt.Errorf("cataloguing %s: %w", entry.Filename, err)
	}
	return resErr == nil, nil
}

// parentFolderName is the name of the file's immediate parent folder.
// For a file at the top of the scan FS that is the root folder's own
// name, which matters when the user scans an event folder directly.
func parentFolderName(entry DirEntry) string {
	dir := path.Dir(entry.Filename)
	if dir == "." || dir == "/" {
		return filepath.Base(entry.FSRoot)
	}
	return path.Base(dir)
}

// hashFile computes the BLAKE3-256 hash of the file's content.
func hashFile(entry DirEntry) ([]byte, error) {
	f, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// previewHash decodes the image and encodes a compact thumbhash
// preview of it.
func previewHash(entry DirEntry) ([]byte, error) {
	f, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return thumbhash.EncodeImage(img), nil
}

// catalogItem is one item row's worth of scan results.
type catalogItem struct {
	sourcePath string
	size       int64
	modTime    time.Time
	hash       []byte
	kind       string
	findings   *Findings
	best       map[SignalKind]*DateSignal
	res        Resolution
	resErr     error
	target     TargetName
	thumbhash  []byte
}

func (l *Library) upsertItem(ctx context.Context, item *catalogItem) error {
	signal := func(ds *DateSignal) any {
		if ds == nil {
			return nil
		}
		return ds.String()
	}
	str := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}

	var nameDate, resolvedDate, dateSource, timeSource, agreement, errText any
	if item.resErr == nil {
		nameDate = signal(item.res.Name)
		resolvedDate = item.res.Resolved.String()
		dateSource = item.res.DateSource.String()
		timeSource = str(item.res.TimeSource.String())
		agreement = item.res.Agreement().String()
	} else {
		errText = item.resErr.Error()
	}

	var targetFilename, targetPath any
	if item.resErr == nil {
		targetFilename = item.target.Filename
		targetPath = item.target.Path()
	}

	l.dbMu.Lock()
	defer l.dbMu.Unlock()

	_, err := l.db.ExecContext(ctx, `INSERT INTO items
		(source_path, size, mod_time, hash, kind, width, height,
		 camera_make, camera_model, latitude, longitude, time_zone, thumbhash,
		 embedded_date, sidecar_date, folder_date, filename_date, filetime_date, edit_date,
		 name_date, resolved_date, date_source, time_source, agreement,
		 target_filename, target_path, error, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_path) DO UPDATE SET
		size=excluded.size, mod_time=excluded.mod_time, hash=excluded.hash,
		kind=excluded.kind, width=excluded.width, height=excluded.height,
		camera_make=excluded.camera_make, camera_model=excluded.camera_model,
		latitude=excluded.latitude, longitude=excluded.longitude,
		time_zone=excluded.time_zone, thumbhash=excluded.thumbhash,
		embedded_date=excluded.embedded_date, sidecar_date=excluded.sidecar_date,
		folder_date=excluded.folder_date, filename_date=excluded.filename_date,
		filetime_date=excluded.filetime_date, edit_date=excluded.edit_date,
		name_date=excluded.name_date, resolved_date=excluded.resolved_date,
		date_source=excluded.date_source, time_source=excluded.time_source,
		agreement=excluded.agreement, target_filename=excluded.target_filename,
		target_path=excluded.target_path, error=excluded.error,
		scanned_at=excluded.scanned_at`,
		item.sourcePath, item.size, item.modTime.Unix(), item.hash, str(item.kind),
		item.findings.Width, item.findings.Height,
		str(item.findings.CameraMake), str(item.findings.CameraModel),
		item.findings.Latitude, item.findings.Longitude, str(item.findings.TimeZone), item.thumbhash,
		signal(item.best[SignalEmbedded]), signal(item.best[SignalSidecar]),
		signal(item.best[SignalFolder]), signal(item.best[SignalFilename]),
		signal(item.best[SignalFileTime]), signal(item.findings.EditDate),
		nameDate, resolvedDate, dateSource, timeSource, agreement,
		targetFilename, targetPath, errText, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting item row: %w", err)
	}
	return nil
}

// Media file extensions the scanner considers primaries. Sidecar
// formats are attachments, not primaries, even though some (XMP) are
// metadata-rich.
var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".heic": true, ".heif": true, ".tif": true, ".tiff": true,
		".bmp": true, ".webp": true, ".avif": true, ".jxl": true,
		".dng": true, ".cr2": true, ".cr3": true, ".nef": true,
		".arw": true, ".orf": true, ".raf": true, ".rw2": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".mov": true, ".m4v": true, ".avi": true,
		".mpg": true, ".mpeg": true, ".wmv": true, ".3gp": true,
		".mts": true, ".m2ts": true, ".mkv": true, ".webm": true,
	}
)

// MediaKind reports "image" or "video" for recognized media filenames,
// and "" for everything else.
func MediaKind(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case imageExts[ext]:
		return "image"
	case videoExts[ext]:
		return "video"
	}
	return ""
}

func isSidecarName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xmp", ".json", ".aae":
		return true
	}
	return false
}

// osPathExists reports whether the catalogued source path still exists
// as a real file on disk (it won't for items scanned inside archives).
func osPathExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
