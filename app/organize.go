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

package app

import (
	"context"
	"fmt"

	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

// Organize scans source and moves its media files into the library's
// dated folder tree, sidecars in tow, journaling every move so the
// job can be undone. An empty source organizes the library folder
// itself. With dryRun the plan is logged and nothing moves.
func (a *App) Organize(ctx context.Context, source, target string, dryRun bool) error {
	dir, err := a.libraryDir(target)
	if err != nil {
		return err
	}

	lib, err := library.OpenOrCreate(ctx, dir)
	if err != nil {
		return err
	}
	defer lib.Close()

	scanOpts := a.scanOptions(source)
	callback, finish := progress("scanning")
	scanOpts.OnProgress = callback
	scanStats, err := lib.Scan(ctx, scanOpts)
	finish()
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if scanStats.Failed > 0 {
		a.log.Warn("some files have no resolvable date and will stay where they are",
			zap.Int("no_date", scanStats.Failed))
	}

	orgOpts := library.OrganizeOptions{
		Source: source,
		DryRun: dryRun,
	}
	if !dryRun {
		orgOpts.OnProgress, finish = progress("organizing")
	}
	stats, err := lib.Organize(ctx, orgOpts)
	if !dryRun {
		finish()
	}
	if err != nil {
		return fmt.Errorf("organizing: %w", err)
	}

	a.log.Info("organized",
		zap.String("library", dir),
		zap.String("job_id", stats.JobID),
		zap.Bool("dry_run", dryRun),
		zap.Int("moved", stats.Moved),
		zap.Int("sidecars", stats.Sidecars),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("pruned_dirs", stats.PrunedDirs),
		zap.Int64("bytes_moved", stats.BytesMoved))
	return nil
}
