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

// Undo moves the files of a previous organize or rename job back
// where they came from, working through the job's journal in reverse.
// An empty jobID undoes the most recent job that has not been undone
// yet.
func (a *App) Undo(ctx context.Context, folder, jobID string) error {
	dir, err := a.libraryDir(folder)
	if err != nil {
		return err
	}

	// undo without a catalog is meaningless, so no OpenOrCreate here
	lib, err := library.Open(ctx, dir)
	if err != nil {
		return err
	}
	defer lib.Close()

	jobID, err = lib.ResolveJobID(ctx, jobID)
	if err != nil {
		return err
	}

	stats, err := lib.Undo(ctx, jobID)
	if err != nil {
		return fmt.Errorf("undoing job %s: %w", jobID, err)
	}

	a.log.Info("undone",
		zap.String("library", dir),
		zap.String("job_id", jobID),
		zap.Int("restored", stats.Moved),
		zap.Int("sidecars", stats.Sidecars),
		zap.Int("skipped", stats.Skipped),
		zap.Int("pruned_dirs", stats.PrunedDirs))
	return nil
}
