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

// Package app provides the application functionality around the
// library engine: configuration, the commands the CLI exposes, and
// progress reporting on the terminal.
package app

import (
	"fmt"
	"sync"

	"github.com/chronofile/chronofile/library"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// App runs the commands of the command line against a library.
type App struct {
	cfg *Config
	log *zap.Logger
}

func New(cfg *Config) *App {
	cfg.fillDefaults()
	return &App{
		cfg: cfg,
		log: library.Log.Named("app"),
	}
}

// libraryDir resolves the library folder for a command: the folder
// given on the command line, else the configured one.
func (a *App) libraryDir(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	a.cfg.RLock()
	defer a.cfg.RUnlock()
	if a.cfg.Library != "" {
		return a.cfg.Library, nil
	}
	return "", fmt.Errorf("no library folder given and none configured")
}

func (a *App) scanOptions(source string) library.ScanOptions {
	a.cfg.RLock()
	defer a.cfg.RUnlock()
	return library.ScanOptions{
		Source:          source,
		Workers:         a.cfg.Workers,
		Previews:        a.cfg.Previews,
		ModTimeFallback: a.cfg.ModTimeFallback,
		DisableExifTool: a.cfg.DisableExifTool,
	}
}

// progress returns a per-file callback driving a terminal progress
// bar, and a finisher. The bar is created on the first call, when the
// total is known; scan workers call it concurrently, which the bar
// tolerates.
func progress(description string) (func(done, total int, name string), func()) {
	var (
		bar  *progressbar.ProgressBar
		once sync.Once
	)
	callback := func(_, total int, _ string) {
		once.Do(func() {
			bar = progressbar.Default(int64(total), description)
		})
		_ = bar.Add(1)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return callback, finish
}
