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
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// OrganizeOptions configures a pass that moves catalogued files into
// their canonical locations.
type OrganizeOptions struct {
	// Source limits the pass to items catalogued under this path.
	// Empty means every item in the catalog.
	Source string `json:"source,omitempty"`

	// RenameOnly keeps every file in its current folder and only
	// renames it to its canonical filename.
	RenameOnly bool `json:"rename_only,omitempty"`

	// DryRun logs the plan without touching any file.
	DryRun bool `json:"dry_run,omitempty"`

	// OnProgress, if set, is called after each item.
	OnProgress func(done, total int, name string) `json:"-"`
}

// OrganizeStats summarizes an organize (or undo) pass.
type OrganizeStats struct {
	JobID      string `json:"job_id,omitempty"`
	Moved      int    `json:"moved"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Sidecars   int    `json:"sidecars"`
	PrunedDirs int    `json:"pruned_dirs"`
	BytesMoved int64  `json:"bytes_moved"`
}

// organizeItem is the slice of an item row the organizer works from.
type organizeItem struct {
	id             int64
	sourcePath     string
	size           int64
	targetPath     string
	targetFilename string
}

// Organize moves every catalogued item with a resolved date into the
// canonical hierarchy under the library root, journaling each move so
// the pass can be undone. Files already in place are skipped; files
// whose source has vanished (or lives inside an archive) are skipped
// with a warning. Emptied source folders are pruned afterward.
//
// Scan must have populated the catalog first.
func (l *Library) Organize(ctx context.Context, opts OrganizeOptions) (OrganizeStats, error) {
	logger := Log.Named("organize")

	// the plan logger is exempt from sampling so dry runs print complete
	planLogger := Log.Named("organize.plan")

	items, err := l.organizableItems(ctx, opts.Source)
	if err != nil {
		return OrganizeStats{}, err
	}

	jobID := uuid.New().String()
	stats := OrganizeStats{JobID: jobID}
	action := "move"
	if opts.RenameOnly {
		action = "rename"
	}

	logger.Info("organizing",
		zap.String("job_id", jobID),
		zap.Int("items", len(items)),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("rename_only", opts.RenameOnly))

	sourceDirs := make(map[string]bool)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		destDir, destName := l.itemDestination(item, opts.RenameOnly)
		destPath := filepath.Join(destDir, destName)

		switch {
		case item.sourcePath == destPath:
			stats.Skipped++
		case !osPathExists(item.sourcePath):
			logger.Warn("source file missing; skipping",
				zap.String("file", item.sourcePath))
			stats.Skipped++
		case opts.DryRun:
			sidecars := findSidecars(item.sourcePath)
			planLogger.Info("would "+action,
				zap.String("from", item.sourcePath),
				zap.String("to", destPath),
				zap.Int("sidecars", len(sidecars)))
			stats.Moved++
			stats.Sidecars += len(sidecars)
		default:
			moved, sidecarsMoved, err := l.moveItem(ctx, jobID, action, item, destDir, destName, logger)
			if err != nil {
				logger.Error("organizing item",
					zap.String("file", item.sourcePath),
					zap.Error(err))
				stats.Failed++
				break
			}
			stats.Moved++
			stats.Sidecars += sidecarsMoved
			stats.BytesMoved += item.size
			if !opts.RenameOnly && moved {
				sourceDirs[filepath.Dir(item.sourcePath)] = true
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(items), item.sourcePath)
		}
	}

	if !opts.DryRun {
		stats.PrunedDirs = l.pruneSourceDirs(opts.Source, sourceDirs, logger)
	}

	logger.Info("organize complete",
		zap.String("job_id", jobID),
		zap.Int("moved", stats.Moved),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("sidecars", stats.Sidecars),
		zap.Int("pruned_dirs", stats.PrunedDirs),
		zap.Int64("bytes_moved", stats.BytesMoved))

	return stats, nil
}

// itemDestination computes where an item belongs: its canonical path
// under the library root, or its own folder when only renaming.
func (l *Library) itemDestination(item organizeItem, renameOnly bool) (dir, filename string) {
	if renameOnly {
		return filepath.Dir(item.sourcePath), item.targetFilename
	}
	rel := filepath.FromSlash(item.targetPath)
	return filepath.Dir(filepath.Join(l.root, rel)), item.targetFilename
}

// moveItem executes one planned move: the primary file, its sidecars,
// the journal entries, and the catalog update, in that order. The
// journal row is written only after the file move succeeded, so undo
// never replays a move that did not happen.
func (l *Library) moveItem(ctx context.Context, jobID, action string, item organizeItem, destDir, destName string, logger *zap.Logger) (bool, int, error) {
	sidecars := findSidecars(item.sourcePath)

	finalPath, err := moveFile(item.sourcePath, destDir, destName)
	if err != nil {
		return false, 0, err
	}
	if err := l.journalOperation(ctx, jobID, item.id, action, item.sourcePath, finalPath); err != nil {
		return true, 0, err
	}
	if err := l.updateItemSourcePath(ctx, item.id, finalPath); err != nil {
		return true, 0, err
	}

	var sidecarsMoved int
	finalName := filepath.Base(finalPath)
	for _, sc := range sidecars {
		scFinal, err := moveFile(sc.path, destDir, sc.targetName(finalName))
		if err != nil {
			logger.Warn("moving sidecar",
				zap.String("sidecar", sc.path),
				zap.Error(err))
			continue
		}
		if err := l.journalOperation(ctx, jobID, item.id, "sidecar", sc.path, scFinal); err != nil {
			return true, sidecarsMoved, err
		}
		sidecarsMoved++
	}

	logger.Debug(action+"d file",
		zap.String("from", item.sourcePath),
		zap.String("to", finalPath),
		zap.Int("sidecars", sidecarsMoved))

	return true, sidecarsMoved, nil
}

// pruneSourceDirs removes source folders (and their emptied parents)
// that the pass drained, bounded by the source root.
func (l *Library) pruneSourceDirs(source string, dirs map[string]bool, logger *zap.Logger) int {
	if len(dirs) == 0 {
		return 0
	}
	root := source
	if root == "" {
		root = l.root
	}

	// deepest first, so children empty out before their parents are tried
	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return strings.Count(ordered[i], string(filepath.Separator)) >
			strings.Count(ordered[j], string(filepath.Separator))
	})

	var pruned int
	for _, dir := range ordered {
		n, err := pruneEmptyDirs(root, dir)
		if err != nil {
			logger.Warn("pruning empty folders",
				zap.String("dir", dir),
				zap.Error(err))
		}
		pruned += n
	}
	return pruned
}

// organizableItems loads the items eligible for organizing: resolved,
// with a composed target, optionally limited to a source prefix.
// Items come back in natural path order for deterministic runs.
func (l *Library) organizableItems(ctx context.Context, source string) ([]organizeItem, error) {
	l.dbMu.RLock()
	rows, err := l.db.QueryContext(ctx, `SELECT id, source_path, size, target_path, target_filename
		FROM items WHERE error IS NULL AND target_path IS NOT NULL`)
	if err != nil {
		l.dbMu.RUnlock()
		return nil, fmt.Errorf("querying items: %w", err)
	}

	var items []organizeItem
	for rows.Next() {
		var item organizeItem
		if err := rows.Scan(&item.id, &item.sourcePath, &item.size, &item.targetPath, &item.targetFilename); err != nil {
			rows.Close()
			l.dbMu.RUnlock()
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, item)
	}
	err = rows.Err()
	rows.Close()
	l.dbMu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}

	if source != "" {
		prefix := filepath.Clean(source) + string(filepath.Separator)
		filtered := items[:0]
		for _, item := range items {
			if strings.HasPrefix(item.sourcePath, prefix) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	sort.Slice(items, func(i, j int) bool {
		return natural.Less(items[i].sourcePath, items[j].sourcePath)
	})
	return items, nil
}

func (l *Library) journalOperation(ctx context.Context, jobID string, itemID int64, op, fromPath, toPath string) error {
	l.dbMu.Lock()
	defer l.dbMu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO operations (job_id, item_id, op, from_path, to_path, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		jobID, itemID, op, fromPath, toPath, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("journaling operation: %w", err)
	}
	return nil
}

func (l *Library) updateItemSourcePath(ctx context.Context, itemID int64, newPath string) error {
	l.dbMu.Lock()
	defer l.dbMu.Unlock()
	_, err := l.db.ExecContext(ctx, `UPDATE items SET source_path=? WHERE id=?`, newPath, itemID)
	if err != nil {
		return fmt.Errorf("updating item location: %w", err)
	}
	return nil
}

// LastJobID returns the most recent organize job that still has moves
// to undo, or sql.ErrNoRows if there is none.
func (l *Library) LastJobID(ctx context.Context) (string, error) {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()
	var jobID string
	err := l.db.QueryRowContext(ctx,
		`SELECT job_id FROM operations WHERE undone=0 ORDER BY id DESC LIMIT 1`).Scan(&jobID)
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// undoOperation is one journal row to replay.
type undoOperation struct {
	id       int64
	itemID   sql.NullInt64
	op       string
	fromPath string
	toPath   string
}

// Undo replays the journal of one organize job in reverse, moving
// every file back where it came from. Files that have since moved or
// vanished are reported and skipped; the rest still get restored.
func (l *Library) Undo(ctx context.Context, jobID string) (OrganizeStats, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return OrganizeStats{}, fmt.Errorf("malformed job ID %s: %w", jobID, err)
	}

	logger := Log.Named("undo").With(zap.String("job_id", jobID))

	ops, err := l.jobOperations(ctx, jobID)
	if err != nil {
		return OrganizeStats{}, err
	}
	if len(ops) == 0 {
		return OrganizeStats{}, fmt.Errorf("no operations to undo for job %s", jobID)
	}

	stats := OrganizeStats{JobID: jobID}
	targetDirs := make(map[string]bool)

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !osPathExists(op.toPath) {
			logger.Warn("file no longer where the journal left it; skipping",
				zap.String("file", op.toPath))
			stats.Skipped++
			continue
		}

		restored, err := moveFile(op.toPath, filepath.Dir(op.fromPath), filepath.Base(op.fromPath))
		if err != nil {
			logger.Error("restoring file",
				zap.String("from", op.toPath),
				zap.String("to", op.fromPath),
				zap.Error(err))
			stats.Failed++
			continue
		}

		if err := l.markOperationUndone(ctx, op.id); err != nil {
			return stats, err
		}
		if op.itemID.Valid && op.op != "sidecar" {
			if err := l.updateItemSourcePath(ctx, op.itemID.Int64, restored); err != nil {
				return stats, err
			}
			stats.Moved++
		} else {
			stats.Sidecars++
		}
		targetDirs[filepath.Dir(op.toPath)] = true

		if restored != op.fromPath {
			logger.Warn("original name was taken; restored under a new name",
				zap.String("original", op.fromPath),
				zap.String("restored", restored))
		}

		if g := i + 1; g%100 == 0 {
			logger.Info("undo progress", zap.Int("done", g), zap.Int("total", len(ops)))
		}
	}

	stats.PrunedDirs = l.pruneSourceDirs("", targetDirs, logger)

	logger.Info("undo complete",
		zap.Int("restored", stats.Moved),
		zap.Int("sidecars", stats.Sidecars),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("pruned_dirs", stats.PrunedDirs))

	return stats, nil
}

// jobOperations loads a job's journal, newest first, so undo unwinds
// moves in the opposite order they were made.
func (l *Library) jobOperations(ctx context.Context, jobID string) ([]undoOperation, error) {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, item_id, op, from_path, to_path FROM operations
		WHERE job_id=? AND undone=0 ORDER BY id DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var ops []undoOperation
	for rows.Next() {
		var op undoOperation
		if err := rows.Scan(&op.id, &op.itemID, &op.op, &op.fromPath, &op.toPath); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation rows: %w", err)
	}
	return ops, nil
}

func (l *Library) markOperationUndone(ctx context.Context, opID int64) error {
	l.dbMu.Lock()
	defer l.dbMu.Unlock()
	_, err := l.db.ExecContext(ctx, `UPDATE operations SET undone=1 WHERE id=?`, opID)
	if err != nil {
		return fmt.Errorf("marking operation undone: %w", err)
	}
	return nil
}

var errNoUndoableJob = errors.New("no undoable organize job found")

// ResolveJobID returns jobID itself when given, otherwise the most
// recent undoable job.
func (l *Library) ResolveJobID(ctx context.Context, jobID string) (string, error) {
	if jobID != "" {
		return jobID, nil
	}
	id, err := l.LastJobID(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoUndoableJob
	}
	if err != nil {
		return "", fmt.Errorf("finding last job: %w", err)
	}
	return id, nil
}
