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

// Package library implements the core of a media library under
// management: date resolution and target naming, signal extraction,
// the on-disk catalog, and the scan/organize/report engines.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Library is an opened media library: a root directory of photos and
// videos with a catalog kept in a subdirectory. The zero value is NOT
// valid; use Open or Create to obtain one.
type Library struct {
	root string // the media tree under management
	id   uuid.UUID

	// The database handle and its mutex. Why a mutex for a DB handle?
	// Because concurrent scan workers can yield "database is locked"
	// errors when scanning rows (`for rows.Next()`) while a write
	// happens from another goroutine:
	// https://github.com/mattn/go-sqlite3/issues/607#issuecomment-808739698
	// Wrapping DB calls in this mutex makes the problem disappear.
	db   *sql.DB
	dbMu sync.RWMutex
}

func (l *Library) String() string { return fmt.Sprintf("%s:%s", l.id, l.root) }
func (l *Library) Root() string   { return l.root }
func (l *Library) ID() uuid.UUID  { return l.id }

// Files and folders belonging to a library's catalog.
const (
	// The subdirectory of the library root holding the catalog. It is
	// marked hidden on Windows.
	CatalogDirName = ".chronofile"

	// The name of the catalog database file, within the catalog dir.
	DBFilename = "catalog.db"

	// An informational file placed beside the database.
	MarkerFilename = "README.txt"
)

// CatalogDBFile returns the path of the catalog database for the
// library rooted at root.
func CatalogDBFile(root string) string {
	return filepath.Join(root, CatalogDirName, DBFilename)
}

// Create provisions a new catalog for the media tree rooted at root,
// creating root if needed, and opens the resulting library. The
// catalog is an unobtrusive subdirectory, so root may already contain
// files; but if it is already a library, fs.ErrExist is returned.
//
// Libraries should always be Close()'d for a clean shutdown when done.
func Create(ctx context.Context, root string) (*Library, error) {
	err := os.MkdirAll(root, 0755)
	if err != nil {
		return nil, fmt.Errorf("creating library root: %w", err)
	}

	if FileExists(CatalogDBFile(root)) {
		return nil, fmt.Errorf("%w: folder is already a library: %s", fs.ErrExist, root)
	}

	catalogDir := filepath.Join(root, CatalogDirName)
	if err := os.MkdirAll(catalogDir, 0755); err != nil {
		return nil, fmt.Errorf("creating catalog folder: %w", err)
	}
	if err := hideFolder(catalogDir); err != nil {
		Log.Warn("marking catalog folder hidden", zap.String("dir", catalogDir), zap.Error(err))
	}
	if fsType, err := getFileSystemType(root); err == nil && fsType != "" {
		Log.Debug("library volume", zap.String("filesystem", fsType))
	}

	return openAndProvisionLibrary(ctx, root)
}

// Open strictly opens an existing library at the given root; it does
// not attempt to create one if it does not already exist. Libraries
// should always be Close()'d for a clean shutdown when done.
func Open(ctx context.Context, root string) (*Library, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("checking library root: %w", err)
	}
	if _, err := os.Stat(CatalogDBFile(root)); err != nil {
		return nil, fmt.Errorf("checking catalog DB file: %w", err)
	}
	return openAndProvisionLibrary(ctx, root)
}

// OpenOrCreate opens the library at root, creating its catalog first
// if there is none.
func OpenOrCreate(ctx context.Context, root string) (*Library, error) {
	if FileExists(CatalogDBFile(root)) {
		return Open(ctx, root)
	}
	return Create(ctx, root)
}

func openAndProvisionLibrary(ctx context.Context, root string) (*Library, error) {
	db, err := openAndProvisionDB(ctx, filepath.Join(root, CatalogDirName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return openLibrary(ctx, root, db)
}

func openLibrary(ctx context.Context, root string, db *sql.DB) (*Library, error) {
	var err error
	defer func() {
		if err != nil {
			Log.Warn("closing database due to error when opening library", zap.Error(err))
			db.Close()
		}
	}()

	id, err := loadLibraryID(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading library ID: %w", err)
	}

	// marker file is for informational purposes only
	markerFile := filepath.Join(root, CatalogDirName, MarkerFilename)
	if !FileExists(markerFile) {
		contents := strings.ReplaceAll(libraryMarkerContents, "{{library_id}}", id.String())
		err = os.WriteFile(markerFile, []byte(contents), 0600)
		if err != nil {
			return nil, fmt.Errorf("writing marker file: %w", err)
		}
	}

	return &Library{
		root: root,
		id:   id,
		db:   db,
	}, nil
}

// Close frees up resources allocated from Open.
func (l *Library) Close() error {
	if l.db != nil {
		l.dbMu.Lock()
		defer l.dbMu.Unlock()
		return l.db.Close()
	}
	return nil
}

// Empty returns true if no items have been catalogued yet.
func (l *Library) Empty() bool {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()
	err := l.db.QueryRow(`SELECT id FROM items LIMIT 1`).Scan()
	return errors.Is(err, sql.ErrNoRows)
}

// Valid reports whether a valid library exists at root. It is not a
// super-thorough check, but it does look for the key factors: catalog
// database existence, and the library UUID within it. It returns an
// error only if it is unable to assess whether a valid library exists.
func Valid(ctx context.Context, root string) (bool, error) {
	if !FileExists(CatalogDBFile(root)) {
		return false, nil
	}
	db, err := openDB(ctx, filepath.Join(root, CatalogDirName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if _, err = loadLibraryID(ctx, db); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("database does not contain valid library UUID: %w", err)
	}
	return true, nil
}

// FolderAssessment is the analysis of a folder related to the
// existence or possibility of a library catalog.
//
//nolint:errname
type FolderAssessment struct {
	HasCatalog          bool   `json:"has_catalog"`
	CatalogCanBeCreated bool   `json:"catalog_can_be_created"`
	LibraryPath         string `json:"library_path,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

func (fa FolderAssessment) Error() string {
	return fmt.Sprintf("Has catalog: %t - Catalog can be created: %t - Path: %s - Reason: '%s'",
		fa.HasCatalog, fa.CatalogCanBeCreated, fa.LibraryPath, fa.Reason)
}

// AssessFolder reports whether fpath holds a library catalog already,
// or whether one could be created there.
func AssessFolder(fpath string) FolderAssessment {
	info, err := os.Stat(fpath)
	if errors.Is(err, fs.ErrNotExist) {
		return FolderAssessment{
			CatalogCanBeCreated: true,
			LibraryPath:         filepath.Clean(fpath),
			Reason:              "folder does not exist yet",
		}
	}
	if err != nil {
		return FolderAssessment{Reason: err.Error()}
	}
	if !info.IsDir() {
		return FolderAssessment{Reason: "path is not a directory"}
	}

	if FileExists(CatalogDBFile(fpath)) {
		return FolderAssessment{
			HasCatalog:  true,
			LibraryPath: fpath,
			Reason:      "catalog database exists",
		}
	}

	assessment := FolderAssessment{
		CatalogCanBeCreated: true,
		LibraryPath:         fpath,
	}
	dirEmpty, firstFile, err := directoryEmpty(fpath, false)
	if err != nil {
		return FolderAssessment{Reason: err.Error()}
	}
	if !dirEmpty {
		assessment.Reason = fmt.Sprintf("folder is not empty (has file named %s); its contents will be catalogued in place", firstFile)
	}
	return assessment
}

// directoryEmpty returns true if dirPath is an empty directory. If false,
// the name of the first discovered file is returned. If deletePointlessFiles
// is true, then unintentional files (like .DS_Store) will be deleted while
// considering whether a dir is empty. (It is not required to delete the file
// to still consider it empty, but if preparing an empty dir for deletion,
// emptying the dir of pointless files will come in handy.)
func directoryEmpty(dirPath string, deletePointlessFiles bool) (bool, string, error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return false, "", fmt.Errorf("opening folder: %w", err)
	}
	defer dir.Close()

	// no need to read the whole listing; all we need to do is find one
	// non-intentional file (reading 2 allows for 1 pointless file)
	fileList, err := dir.Readdirnames(2) //nolint:mnd
	if err != nil && !errors.Is(err, io.EOF) {
		return false, "", fmt.Errorf("reading folder contents: %w", err)
	}

	for _, f := range fileList {
		if isPointlessFile(f) {
			if deletePointlessFiles {
				err := os.Remove(filepath.Join(dirPath, f))
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return false, f, fmt.Errorf("unable to delete pointless file: %w", err)
				}
			}
			continue
		}
		return false, f, nil
	}

	return true, "", nil
}

// isPointlessFile reports whether name is one of the files operating
// systems strew around that don't count as folder contents.
func isPointlessFile(name string) bool {
	return name == ".DS_Store" || name == "Thumbs.db" || name == "desktop.ini"
}

// FileExists returns true if file exists.
func FileExists(file string) bool {
	_, err := os.Stat(file)
	return err == nil || errors.Is(err, fs.ErrPermission)
}

// FileExistsFS returns true if name exists in fsys.
func FileExistsFS(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, name)
	return err == nil || errors.Is(err, fs.ErrPermission)
}

const libraryMarkerContents = `This folder holds a Chronofile catalog.

It contains a database describing the media files in the surrounding
library folder: their dates, how those dates were determined, and a
journal of the file moves Chronofile has performed (which makes those
moves undoable). Deleting this folder does not harm your media files,
but it forgets that history.

The catalog can be rebuilt at any time by scanning the library again.

Library ID: {{library_id}}
`
