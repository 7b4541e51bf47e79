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

// Rename gives every media file under the folder its canonical
// filename without moving it out of its current folder. Sidecars are
// renamed along with their primary, and the job is journaled like any
// other, so it can be undone.
func (a *App) Rename(ctx context.Context, folder string, dryRun bool) error {
	dir, err := a.libraryDir(folder)
	if err != nil {
		return err
	}

	lib, err := library.OpenOrCreate(ctx, dir)
	if err != nil {
		return err
	}
	defer lib.Close()

	scanOpts := a.scanOptions("")
	callback, finish := progress("scanning")
	scanOpts.OnProgress = callback
	if _, err := lib.Scan(ctx, scanOpts); err != nil {
		finish()
		return fmt.Errorf("scanning: %w", err)
	}
	finish()

	stats, err := lib.Organize(ctx, library.OrganizeOptions{
		RenameOnly: true,
		DryRun:     dryRun,
	})
	if err != nil {
		return fmt.Errorf("renaming: %w", err)
	}

	a.log.Info("renamed",
		zap.String("library", dir),
		zap.String("job_id", stats.JobID),
		zap.Bool("dry_run", dryRun),
		zap.Int("renamed", stats.Moved),
		zap.Int("sidecars", stats.Sidecars),
		zap.Int("already_canonical", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return nil
}
