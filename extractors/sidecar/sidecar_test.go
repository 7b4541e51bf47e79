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

package sidecar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chronofile/chronofile/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xmpFixture = `<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="XMP Core 5.1.2">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
      xmlns:photoshop="http://ns.adobe.com/photoshop/1.0/"
      xmlns:exif="http://ns.adobe.com/exif/1.0/">
   <photoshop:DateCreated>2012-02-23T09:15:30</photoshop:DateCreated>
   <exif:DateTimeOriginal>2012-02-23T09:15:30</exif:DateTimeOriginal>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>`

const takeoutFixture = `{
  "title": "IMG_1234.jpg",
  "photoTakenTime": {
    "timestamp": "1329988530",
    "formatted": "Feb 23, 2012, 9:15:30 AM UTC"
  },
  "creationTime": {
    "timestamp": "1400000000",
    "formatted": "May 13, 2014, 4:53:20 PM UTC"
  }
}`

const aaeFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>adjustmentBaseVersion</key>
	<integer>0</integer>
	<key>adjustmentEditorBundleID</key>
	<string>com.apple.mobileslideshow</string>
	<key>adjustmentFormatIdentifier</key>
	<string>com.apple.photo</string>
	<key>adjustmentTimestamp</key>
	<date>2016-08-14T17:52:40Z</date>
</dict>
</plist>`

// testEntry writes the primary and its companions into a temp dir and
// returns the primary's entry.
func testEntry(t *testing.T, primary string, companions map[string]string) library.DirEntry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, primary), []byte("media"), 0644))
	for name, contents := range companions {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
	}
	return library.DirEntry{FS: os.DirFS(dir), FSRoot: dir, Filename: primary}
}

func TestExtractXMPAppended(t *testing.T) {
	entry := testEntry(t, "IMG_1234.jpg", map[string]string{
		"IMG_1234.jpg.xmp": xmpFixture,
	})

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err)

	require.Len(t, findings.Signals, 2) // both XMP date properties present
	sig := findings.Signals[0]
	assert.Equal(t, "2012-02-23 09:15", sig.String())
	assert.Equal(t, 30, sig.Second)
	assert.True(t, sig.HasTime)
	assert.Equal(t, library.SignalSidecar, sig.Source)
	assert.Nil(t, findings.EditDate)
}

func TestExtractXMPReplaced(t *testing.T) {
	entry := testEntry(t, "IMG_5678.jpg", map[string]string{
		"IMG_5678.xmp": xmpFixture,
	})

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err)
	require.NotEmpty(t, findings.Signals)
	assert.Equal(t, "2012-02-23 09:15", findings.Signals[0].String())
}

func TestExtractTakeoutJSON(t *testing.T) {
	entry := testEntry(t, "IMG_1234.jpg", map[string]string{
		"IMG_1234.jpg.json": takeoutFixture,
	})

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err)

	require.Len(t, findings.Signals, 1)
	sig := findings.Signals[0]
	assert.Equal(t, "2012-02-23 09:15", sig.String()) // taken time, not upload time
	assert.Equal(t, 30, sig.Second)
	assert.True(t, sig.HasTime)
	assert.Equal(t, library.SignalSidecar, sig.Source)
}

func TestExtractAAE(t *testing.T) {
	// cameras write the extension uppercase
	entry := testEntry(t, "IMG_3333.jpg", map[string]string{
		"IMG_3333.AAE": aaeFixture,
	})

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err)

	assert.Empty(t, findings.Signals, "an edit date must not become a capture candidate")
	require.NotNil(t, findings.EditDate)
	assert.Equal(t, "2016-08-14 17:52", findings.EditDate.String())
}

func TestExtractNoCompanions(t *testing.T) {
	entry := testEntry(t, "IMG_0001.jpg", nil)

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err)
	assert.Empty(t, findings.Signals)
	assert.Nil(t, findings.EditDate)
}

func TestExtractMalformedCompanion(t *testing.T) {
	entry := testEntry(t, "IMG_0002.jpg", map[string]string{
		"IMG_0002.jpg.json": "not json at all {{{",
	})

	findings, err := (Extractor{}).Extract(context.Background(), entry, library.Log)
	require.NoError(t, err, "a broken companion is skipped, not fatal")
	assert.Empty(t, findings.Signals)
}
