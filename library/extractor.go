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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/mholt/archives"
	"go.uber.org/zap"
)

// Extractor has information about a signal extractor that can be
// registered.
type Extractor struct {
	// A snake_cased name that uniquely identifies the extractor.
	Name string

	// The human-readable name.
	Title string

	// Kind is the signal channel this extractor feeds.
	Kind SignalKind

	// Priority orders extractors within a kind; lower is consulted
	// first, and the first non-placeholder signal per kind wins.
	Priority int

	// New constructs an instance. Instances are not assumed safe for
	// concurrent use; each scan worker constructs its own. An error
	// disables the extractor for the run (how a missing external tool
	// is reported).
	New func() (SignalExtractor, error)
}

// SignalExtractor reads date signals and media attributes from one
// file. Implementations that hold resources may also implement
// io.Closer; the scanner closes them when its worker drains.
type SignalExtractor interface {
	// Recognize reports whether the file is worth opening, judged by
	// its name alone.
	Recognize(entry DirEntry) bool

	// Extract reads the file and reports what it found. A recognized
	// file that cannot be read returns an error; a readable file with
	// no usable signal returns empty Findings, not an error.
	Extract(ctx context.Context, entry DirEntry, logger *zap.Logger) (*Findings, error)
}

// DirEntry is a fs.DirEntry that also carries the file system it came
// from, the OS path of that file system's root, and the file's path
// within it.
type DirEntry struct {
	fs.DirEntry

	// FS is the file system the entry lives in. Extractors use it for
	// the file itself and for probing companion files beside it.
	FS fs.FS

	// FSRoot is the root of FS as an OS-compatible filepath.
	FSRoot string

	// Filename is the slash-separated path of the file within FS.
	Filename string
}

func (d DirEntry) Open() (fs.File, error) { return d.FS.Open(d.Filename) }

// FullPath returns the OS path of the entry, including the FS root.
// For entries inside an archive the result is not a real file on disk.
func (d DirEntry) FullPath() string {
	root := d.FSRoot
	switch fsys := d.FS.(type) {
	case archives.FileFS:
		root = fsys.Path
	case archives.DirFS:
		root = string(fsys)
	case *archives.ArchiveFS:
		root = fsys.Path
	case *archives.DeepFS:
		root = fsys.Root
	}
	return filepath.Join(root, filepath.FromSlash(d.Filename))
}

// Findings is everything the extractors learned about one file.
type Findings struct {
	// Signals are the date candidates found, in extraction order. Each
	// carries its Source kind; placeholders are filtered at selection.
	Signals []DateSignal

	// Pixel dimensions, zero when unknown.
	Width, Height int

	CameraMake  string
	CameraModel string

	// GPS coordinates, when the file records them.
	Latitude, Longitude *float64

	// TimeZone is the IANA zone derived from the GPS coordinates.
	TimeZone string

	// EditDate is an adjustment timestamp (an Apple .AAE sidecar, for
	// example). It is catalogued but never a capture-date candidate.
	EditDate *DateSignal

	// Fields holds loose extra metadata for the catalog.
	Fields map[string]any
}

// merge folds other into f. Earlier findings win: signals append in
// order, scalar attributes keep the first value seen. Dimensions and
// coordinates move as pairs so values from different sources never
// mix.
func (f *Findings) merge(other *Findings) {
	if other == nil {
		return
	}
	f.Signals = append(f.Signals, other.Signals...)
	if f.Width == 0 && f.Height == 0 {
		f.Width, f.Height = other.Width, other.Height
	}
	if f.CameraMake == "" {
		f.CameraMake = other.CameraMake
	}
	if f.CameraModel == "" {
		f.CameraModel = other.CameraModel
	}
	if f.Latitude == nil && f.Longitude == nil {
		f.Latitude, f.Longitude = other.Latitude, other.Longitude
	}
	if f.TimeZone == "" {
		f.TimeZone = other.TimeZone
	}
	if f.EditDate == nil {
		f.EditDate = other.EditDate
	}
	for k, v := range other.Fields {
		if f.Fields == nil {
			f.Fields = make(map[string]any)
		}
		if _, ok := f.Fields[k]; !ok {
			f.Fields[k] = v
		}
	}
}

// BestSignals picks, for each signal kind, the first non-placeholder
// signal in extraction order. Extraction order follows registration
// priority, so the winner per kind is the highest-priority extractor
// that produced a real value.
func (f *Findings) BestSignals() map[SignalKind]*DateSignal {
	best := make(map[SignalKind]*DateSignal)
	for i := range f.Signals {
		sig := normalizeSignal(&f.Signals[i])
		if sig == nil {
			continue
		}
		if _, ok := best[sig.Source]; !ok {
			best[sig.Source] = sig
		}
	}
	return best
}

// MetadataSignal returns the file's metadata-channel date: embedded
// metadata first, then sidecar metadata, then the filesystem timestamp
// as a last resort.
func MetadataSignal(best map[SignalKind]*DateSignal) *DateSignal {
	for _, kind := range []SignalKind{SignalEmbedded, SignalSidecar, SignalFileTime} {
		if sig := best[kind]; sig != nil {
			return sig
		}
	}
	return nil
}

// RegisterExtractor registers ex as a signal extractor.
func RegisterExtractor(ex Extractor) error {
	if ex.Name == "" {
		return errors.New("missing name")
	}
	if ex.New == nil {
		return errors.New("missing constructor")
	}
	if _, ok := extractors[ex.Name]; ok {
		return fmt.Errorf("extractor already registered: %s", ex.Name)
	}
	extractors[ex.Name] = ex
	return nil
}

// AllExtractors returns all registered extractors ordered by kind,
// priority, then name.
func AllExtractors() []Extractor {
	exs := make([]Extractor, 0, len(extractors))
	for _, ex := range extractors {
		exs = append(exs, ex)
	}
	sort.Slice(exs, func(i, j int) bool {
		if exs[i].Kind != exs[j].Kind {
			return exs[i].Kind < exs[j].Kind
		}
		if exs[i].Priority != exs[j].Priority {
			return exs[i].Priority < exs[j].Priority
		}
		return exs[i].Name < exs[j].Name
	})
	return exs
}

var extractors = make(map[string]Extractor) // keyed by name

// extractorSet holds live extractor instances for one scan worker.
type extractorSet struct {
	ordered []liveExtractor
	logger  *zap.Logger
}

type liveExtractor struct {
	Extractor
	impl SignalExtractor
}

// newExtractorSet constructs instances of every registered extractor
// not named in disabled. Extractors whose constructor fails are
// skipped for the whole run.
func newExtractorSet(disabled map[string]bool, logger *zap.Logger) *extractorSet {
	set := &extractorSet{logger: logger}
	for _, ex := range AllExtractors() {
		if disabled[ex.Name] {
			continue
		}
		impl, err := ex.New()
		if err != nil {
			logger.Debug("extractor unavailable",
				zap.String("extractor", ex.Name),
				zap.Error(err))
			continue
		}
		set.ordered = append(set.ordered, liveExtractor{ex, impl})
	}
	return set
}

func (s *extractorSet) Close() error {
	for _, le := range s.ordered {
		if c, ok := le.impl.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Error("closing extractor",
					zap.String("extractor", le.Name),
					zap.Error(err))
			}
		}
	}
	return nil
}

// extract runs every live extractor that recognizes the file and
// merges their findings. Extractor failures are logged and skipped so
// one unreadable tag block cannot sink the whole file.
func (s *extractorSet) extract(ctx context.Context, entry DirEntry) (*Findings, error) {
	merged := new(Findings)
	for _, le := range s.ordered {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		if !le.impl.Recognize(entry) {
			continue
		}
		found, err := le.impl.Extract(ctx, entry, s.logger.Named(le.Name))
		if err != nil {
			s.logger.Debug("extractor failed",
				zap.String("extractor", le.Name),
				zap.String("file", entry.Filename),
				zap.Error(err))
			continue
		}
		merged.merge(found)
	}
	return merged, nil
}
