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

// Sample fabricates a messy play library in dir: dated event folders,
// camera filenames, stray sidecars. Handy for trying the other
// commands without risking real photos. The same seed fabricates the
// same tree.
func (a *App) Sample(ctx context.Context, dir string, events int, seed uint64) error {
	if dir == "" {
		return fmt.Errorf("a folder for the sample library is required")
	}

	stats, err := library.GenerateSampleLibrary(ctx, dir, library.SampleOptions{
		Events: events,
		Seed:   seed,
	})
	if err != nil {
		return fmt.Errorf("generating sample library: %w", err)
	}

	a.log.Info("sample library ready",
		zap.String("dir", dir),
		zap.Int("folders", stats.Folders),
		zap.Int("files", stats.Files),
		zap.Int("sidecars", stats.Sidecars))
	return nil
}
