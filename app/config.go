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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

// Config describes the tool configuration.
// Config values must not be copied (i.e. use pointers).
type Config struct {
	sync.RWMutex `json:"-"`

	// The library folder commands operate on when none is given on
	// the command line.
	Library string `json:"library,omitempty"`

	// The number of files scanned concurrently. 0 means one per CPU.
	Workers int `json:"workers,omitempty"`

	// Skips the external exiftool extractor even when the binary is
	// installed.
	DisableExifTool bool `json:"disable_exiftool,omitempty"`

	// Lets a file's filesystem timestamp stand in as a metadata date
	// when nothing better is found.
	ModTimeFallback bool `json:"mod_time_fallback,omitempty"`

	// Computes compact preview hashes for images during scans.
	Previews bool `json:"previews,omitempty"`

	// Mirrors the log to this file as JSON lines.
	LogFile string `json:"log_file,omitempty"`

	log *zap.Logger
}

func (cfg *Config) fillDefaults() {
	cfg.Lock()
	defer cfg.Unlock()
	if cfg.log == nil {
		cfg.log = library.Log.Named("config").With(zap.Time("loaded", time.Now()))
	}
	if cfg.LogFile != "" {
		if err := library.AttachLogFile(cfg.LogFile); err != nil {
			cfg.log.Error("attaching log file", zap.Error(err))
		}
	}
}

// DefaultConfigFilePath returns the file path where configuration is
// persisted. The CHRONOFILE_CONFIG environment variable overrides it.
func DefaultConfigFilePath() string {
	if envVal := os.Getenv("CHRONOFILE_CONFIG"); envVal != "" {
		return envVal
	}
	cfgDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(cfgDir, "chronofile", "config.json")
	}
	cfgDir, err = os.UserHomeDir()
	if err == nil {
		return filepath.Join(cfgDir, ".chronofile", "config.json")
	}
	return filepath.Join(".chronofile", "config.json")
}
