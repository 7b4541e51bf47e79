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
	"io"
	"os"

	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

// Analyze scans the folder and writes the per-file CSV report: every
// date signal found, the resolved date, and the target name each file
// would get. No file is touched. The report goes to out, or to
// standard output when out is empty or "-".
func (a *App) Analyze(ctx context.Context, folder, out string) error {
	dir, err := a.libraryDir(folder)
	if err != nil {
		return err
	}

	lib, err := library.OpenOrCreate(ctx, dir)
	if err != nil {
		return err
	}
	defer lib.Close()

	opts := a.scanOptions("")
	callback, finish := progress("analyzing")
	opts.OnProgress = callback
	stats, err := lib.Scan(ctx, opts)
	finish()
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	var w io.Writer = os.Stdout
	if out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	rows, err := lib.WriteReport(ctx, w)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	a.log.Info("analyzed",
		zap.String("library", dir),
		zap.Int("files", stats.Files),
		zap.Int("resolved", stats.Resolved),
		zap.Int("no_date", stats.Failed),
		zap.Int("report_rows", rows),
		zap.String("report", out))
	return nil
}
