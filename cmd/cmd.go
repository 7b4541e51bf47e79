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

// Package cfcmd facilitates the command line interface (CLI)
// and implements the main().
package cfcmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"runtime/debug"
	"strings"

	"github.com/chronofile/chronofile/app"
	"github.com/chronofile/chronofile/library"
	"go.uber.org/zap"
)

var (
	outFile    = flag.String("out", "", "analyze: write the report to this file instead of stdout")
	dryRun     = flag.Bool("dry-run", false, "organize/rename: log what would happen without touching any file")
	jobID      = flag.String("job", "", "undo: the job to undo (default: the most recent one)")
	events     = flag.Int("events", 0, "sample: how many dated event folders to fabricate (default 12)")
	seed       = flag.Uint64("seed", 0, "sample: random seed, for fabricating the same library again")
	workers    = flag.Int("workers", 0, "number of files scanned at once (default: one per CPU)")
	noExiftool = flag.Bool("no-exiftool", false, "don't shell out to exiftool even if it is installed")
	modTimes   = flag.Bool("mod-times", false, "trust file modification times when nothing better is found")
	previews   = flag.Bool("previews", false, "compute preview hashes of scanned images")
	logFile    = flag.String("log", "", "also append logs to this file as JSON")
)

func Main() {
	cfg, err := loadConfigFile()
	if err != nil {
		library.Log.Fatal("failed loading config", zap.Error(err))
	}

	flag.Parse()

	// flags beat the config file, but only for this invocation;
	// they are never saved back
	applyFlagOverrides(cfg)

	a := app.New(cfg)

	ctx := context.Background()

	subCommand, subCommandFunc := getSubcommand(ctx, a)
	if subCommandFunc == nil {
		if flag.NArg() > 0 {
			library.Log.Fatal("unknown subcommand; try 'chronofile help'",
				zap.String("subcommand", flag.Arg(0)))
		}
		printHelp()
		return
	}

	if err := checkFlagParsing(); err != nil {
		library.Log.Fatal("possible syntax error detected", zap.Error(err))
	}
	if err := subCommandFunc(); err != nil {
		library.Log.Fatal("subcommand failed",
			zap.String("subcommand", subCommand),
			zap.Error(err))
	}
}

// Gets the subcommand implementation, if one was named.
func getSubcommand(ctx context.Context, a *app.App) (string, func() error) {
	subcommands := map[string]func() error{
		"analyze": func() error {
			return a.Analyze(ctx, flag.Arg(1), *outFile)
		},
		"organize": func() error {
			return a.Organize(ctx, flag.Arg(1), flag.Arg(2), *dryRun)
		},
		"rename": func() error {
			return a.Rename(ctx, flag.Arg(1), *dryRun)
		},
		"undo": func() error {
			return a.Undo(ctx, flag.Arg(1), *jobID)
		},
		"sample": func() error {
			return a.Sample(ctx, flag.Arg(1), *events, *seed)
		},
		"version": func() error {
			fmt.Println("chronofile", version())
			return nil
		},
		"help": func() error {
			printHelp()
			return nil
		},
	}

	if len(flag.Args()) > 0 {
		subCommand := flag.Arg(0)
		subCommandFunc, ok := subcommands[subCommand]
		if ok {
			return subCommand, subCommandFunc
		}
	}
	return "", nil
}

// applyFlagOverrides copies flags the user actually set over the
// loaded config. flag.Visit only visits set flags, so config values
// survive for everything left at its flag default.
func applyFlagOverrides(cfg *app.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "no-exiftool":
			cfg.DisableExifTool = *noExiftool
		case "mod-times":
			cfg.ModTimeFallback = *modTimes
		case "previews":
			cfg.Previews = *previews
		case "log":
			cfg.LogFile = *logFile
		}
	})
}

// checkFlagParsing returns an error if it looks like the
// program may have been invoked with the flags in the
// wrong place. The standard flag package stops parsing at
// the first positional argument, so running the program as:
// `chronofile organize -dry-run ~/inbox`
// silently treats -dry-run as a folder name, when it
// actually needs to be run as:
// `chronofile -dry-run organize ~/inbox`
// in order to set the flag. Failing to catch this could
// move files the user only meant to preview.
func checkFlagParsing() error {
	for _, arg := range flag.Args()[1:] {
		if strings.HasPrefix(arg, "-") {
			return fmt.Errorf("%s appears after the subcommand, but flags go before positional arguments", arg)
		}
	}
	return nil
}

func loadConfigFile() (*app.Config, error) {
	cfgBytes, err := os.ReadFile(configFile)
	if err != nil {
		// a missing file only matters when the user pointed us at one
		if errors.Is(err, fs.ErrNotExist) && os.Getenv("CHRONOFILE_CONFIG") == "" {
			return new(app.Config), nil
		}
		return nil, err
	}
	var cfg *app.Config
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = new(app.Config)
	}
	return cfg, nil
}

// version reports the module version stamped into the binary, which
// is only there for `go install ...@version` builds.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}

func printHelp() {
	fmt.Print(commandLineHelp, "\n")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

const commandLineHelp = `Chronofile sorts photo and video collections into a dated folder tree.

Usage:

  chronofile [flags] <subcommand> [arguments]

Subcommands:

  analyze [folder]             scan a folder and write a CSV report of each
                               media file's date evidence, the date resolved
                               from it, and the name the file would be given
  organize [source] [library]  scan a source folder or archive and move its
                               media into the library's dated folder tree;
                               with no source, reorganize the library itself
  rename [folder]              give media files their canonical names where
                               they are, without moving them across folders
  undo [library]               put the files moved by the most recent
                               organize job (or the one named by -job) back
                               where they came from
  sample <folder>              fabricate a small fake photo collection for
                               trying the other subcommands
  version                      print the version
  help                         print this help

Flags go before the subcommand:
`

var configFile = app.DefaultConfigFilePath()
