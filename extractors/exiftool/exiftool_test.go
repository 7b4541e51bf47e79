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

package exiftool

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/chronofile/chronofile/library"
)

func newOrSkip(t *testing.T) *Extractor {
	t.Helper()
	impl, err := New()
	if err != nil {
		t.Skipf("exiftool not installed: %v", err)
	}
	ex := impl.(*Extractor)
	t.Cleanup(func() { ex.Close() })
	return ex
}

func TestExtract(t *testing.T) {
	ex := newOrSkip(t)

	dir := t.TempDir()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 120, 80)), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	entry := library.DirEntry{FS: os.DirFS(dir), FSRoot: dir, Filename: "photo.jpg"}
	if !ex.Recognize(entry) {
		t.Fatal("expected a media file on disk to be recognized")
	}

	findings, err := ex.Extract(context.Background(), entry, library.Log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findings.Width != 120 || findings.Height != 80 {
		t.Errorf("expected 120x80 but got %dx%d", findings.Width, findings.Height)
	}
	if len(findings.Signals) != 0 {
		t.Errorf("expected no date signals from a bare JPEG but got %v", findings.Signals)
	}
}

func TestRecognizeNeedsFileOnDisk(t *testing.T) {
	ex := newOrSkip(t)

	entry := library.DirEntry{
		FS:       os.DirFS(t.TempDir()),
		FSRoot:   t.TempDir(),
		Filename: "never-written.jpg",
	}
	if ex.Recognize(entry) {
		t.Error("expected a missing file to be passed over")
	}
}

var _ io.Closer = (*Extractor)(nil)
