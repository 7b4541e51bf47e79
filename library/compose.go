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
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// TargetName is the canonical location for a file, derived from its
// resolved date and attributes. All fields are single path segments;
// Parent is empty when the original parent folder was date-only.
type TargetName struct {
	Decade    string // "2000+"
	Year      string // "2008"
	YearMonth string // "2008-05"
	Parent    string // "2008-05-03 Cub Scouts Photos", or ""
	Filename  string // "2008-05-08_0000_600x450_Cub Scouts Photos_CIMG3926.jpg"
}

// Path joins the segments into a slash-separated relative path,
// omitting the Parent segment when it is empty.
func (tn TargetName) Path() string {
	if tn.Parent == "" {
		return path.Join(tn.Decade, tn.Year, tn.YearMonth, tn.Filename)
	}
	return path.Join(tn.Decade, tn.Year, tn.YearMonth, tn.Parent, tn.Filename)
}

func (tn TargetName) String() string { return tn.Path() }

var (
	// composedPrefixRE recognizes a filename this composer produced on
	// an earlier run, so re-runs strip the old prefix instead of
	// stacking a second one.
	composedPrefixRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{4}(?:_[^_]+)?_\d+x\d+(?:_[^_]+)?_(.+)$`)

	// dateTokenRE matches separated date tokens in folder or file
	// names: YYYY, YYYY-MM, YYYY-MM-DD (underscores allowed). Token
	// boundaries are checked by stripTokens, not the pattern; \b does
	// not work here because underscore counts as a word character.
	dateTokenRE = regexp.MustCompile(`(?:19|20)\d{2}(?:[-_](?:0[1-9]|1[0-2])(?:[-_](?:0[1-9]|[12]\d|3[01]))?)?`)

	// compactDateTokenRE matches run-together date tokens: YYYYMMDD
	// and YYYYMM.
	compactDateTokenRE = regexp.MustCompile(`(?:19|20)\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])?`)

	// decadeTokenRE matches decade folder labels like "1950s".
	decadeTokenRE = regexp.MustCompile(`(?:19|20)\d0s`)

	// dimensionTokenRE matches a WIDTHxHEIGHT token.
	dimensionTokenRE = regexp.MustCompile(`\d{1,5}x\d{1,5}`)

	// leadingTimeRE matches a time token left at the start of a stem
	// after its leading date token has been stripped. The trailing
	// boundary is checked in code; \b treats underscore as a word
	// character and would miss times followed by one.
	leadingTimeRE = regexp.MustCompile(`^[-_ .]?\d{2}[:.\-_]?\d{2}(?:[:.\-_]?\d{2})?`)

	// separatorRunRE collapses runs of separators that stripping
	// leaves behind.
	separatorRunRE = regexp.MustCompile(`[-_ .]{2,}`)

	// roguePathCharsRE removes characters that cannot appear in a path
	// segment on common filesystems.
	roguePathCharsRE = regexp.MustCompile(`[/\\?%*:|"<>]`)
)

// Compose derives the canonical target name for a file from its
// resolved date, pixel dimensions (zero when unknown), the immediate
// parent folder's name, and the file's base name and extension.
//
// The filename has the form YYYY-MM-DD_HHMM_WIDTHxHEIGHT_PARENT_BASE.EXT
// with an unknown month/day rendered as 00, a missing time as 0000, and
// unknown dimensions as 0x0. The parent token appears only when the
// parent folder carries non-date text, and any date, dimension, or
// parent text the base name already repeats is stripped first, so
// composing is idempotent across re-runs.
//
// Compose never touches the filesystem and has no failure mode; it
// degrades to placeholder tokens. Collision checks against a live tree
// are the mover's job.
func Compose(date DateSignal, width, height int, parentName, baseName, ext string) TargetName {
	tn := TargetName{
		Decade:    fmt.Sprintf("%d+", date.Year/10*10),
		Year:      fmt.Sprintf("%04d", date.Year),
		YearMonth: fmt.Sprintf("%04d-%02d", date.Year, date.Month),
	}

	parentText, descriptive := descriptiveParent(parentName)
	if descriptive {
		tn.Parent = cleanPathSegment(parentName)
	}

	timePart := "0000"
	if date.HasTime {
		timePart = fmt.Sprintf("%02d%02d", date.Hour, date.Minute)
	}

	dims := "0x0"
	if width > 0 && height > 0 {
		dims = fmt.Sprintf("%dx%d", width, height)
	}

	stem := strippedStem(baseName, date, parentText)

	parts := []string{date.DateString(), timePart, dims}
	if descriptive {
		parts = append(parts, parentText)
	}
	if stem != "" {
		parts = append(parts, stem)
	}

	name := strings.Join(parts, "_")
	if e := strings.TrimPrefix(strings.ToLower(ext), "."); e != "" {
		name += "." + e
	}
	tn.Filename = cleanPathSegment(name)

	return tn
}

// descriptiveParent strips recognized date tokens from a folder name
// and reports whether meaningful text remains. A folder named purely
// "2024-05" or "20240512" describes nothing; "2024-05 Family Reunion"
// yields "Family Reunion". Leftover text must contain a letter: a
// folder of bare digits and separators is not descriptive either.
//
// Underscores in the leftover become spaces. The underscore is the
// composed filename's field separator, so the parent token must not
// contain any or re-runs could not strip the old prefix cleanly.
func descriptiveParent(name string) (string, bool) {
	stripped := stripTokens(name, decadeTokenRE)
	stripped = stripTokens(stripped, dateTokenRE)
	stripped = stripTokens(stripped, compactDateTokenRE)
	stripped = strings.ReplaceAll(stripped, "_", " ")
	stripped = collapseSeparators(stripped)
	if !strings.ContainsFunc(stripped, unicode.IsLetter) {
		return "", false
	}
	return stripped, true
}

// stripTokens removes every match of re from s that does not butt up
// against an adjacent digit, so part of a longer number is never
// mistaken for a token.
func stripTokens(s string, re *regexp.Regexp) string {
	locs := re.FindAllStringIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > 0 && isASCIIDigit(s[start-1]) {
			continue
		}
		if end < len(s) && isASCIIDigit(s[end]) {
			continue
		}
		b.WriteString(s[prev:start])
		prev = end
	}
	b.WriteString(s[prev:])
	return b.String()
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isASCIIDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// strippedStem removes from the base name everything the composed
// prefix already states: a prefix from a previous composition, any
// dimension-shaped token, a leading date (and adjoining time) token
// matching the date being prefixed, and the descriptive parent text.
// A stem that strips down to nothing was wholly redundant and is
// reported as empty; the composed name then carries no basename part.
func strippedStem(baseName string, date DateSignal, parentText string) string {
	stem := baseName

	if m := composedPrefixRE.FindStringSubmatch(stem); m != nil {
		stem = m[1]
	}

	stem = stripTokens(stem, dimensionTokenRE)
	stem = stripLeadingDate(stem, date)
	if parentText != "" {
		stem = removeFold(stem, parentText)
		// folder names often carry the same text with underscores
		stem = removeFold(stem, strings.ReplaceAll(parentText, " ", "_"))
	}
	return collapseSeparators(stem)
}

// stripLeadingDate removes a date token at the start of the stem when
// it restates the date being prefixed; a date that disagrees is
// preserved, since it is information the prefix does not carry. A time
// token immediately following a stripped date is stripped with it.
func stripLeadingDate(stem string, date DateSignal) string {
	loc := leadingToken(stem, dateTokenRE)
	if loc == nil {
		loc = leadingToken(stem, compactDateTokenRE)
	}
	if loc == nil {
		return stem
	}
	lead := ParseDate(normalizeDateToken(stem[:loc[1]]), SignalFilename)
	if lead == nil {
		return stem
	}
	if lead.Year != date.Year ||
		(lead.Month != 0 && date.Month != 0 && lead.Month != date.Month) ||
		(lead.Day != 0 && date.Day != 0 && lead.Day != date.Day) {
		return stem
	}
	stem = stem[loc[1]:]
	if tl := leadingTimeRE.FindStringIndex(stem); tl != nil &&
		(tl[1] == len(stem) || !isAlnum(stem[tl[1]])) {
		stem = stem[tl[1]:]
	}
	return stem
}

// leadingToken reports the bounds of a token matching re at the very
// start of s, or nil; the token must not run into a following digit.
func leadingToken(s string, re *regexp.Regexp) []int {
	loc := re.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	if loc[1] < len(s) && isASCIIDigit(s[loc[1]]) {
		return nil
	}
	return loc
}

// normalizeDateToken rewrites a compact YYYYMMDD or YYYYMM token into
// the separated form ParseDate understands; separated tokens pass
// through unchanged.
func normalizeDateToken(tok string) string {
	if strings.ContainsAny(tok, "-_") {
		return strings.ReplaceAll(tok, "_", "-")
	}
	switch len(tok) {
	case 8:
		return tok[:4] + "-" + tok[4:6] + "-" + tok[6:]
	case 6:
		return tok[:4] + "-" + tok[4:]
	}
	return tok
}

// collapseSeparators squeezes separator runs left behind by stripping
// into a single separator and trims separators from both ends.
func collapseSeparators(s string) string {
	s = separatorRunRE.ReplaceAllStringFunc(s, func(run string) string {
		return run[:1]
	})
	return strings.Trim(s, "-_ .")
}

// removeFold removes the first case-insensitive occurrence of sub
// from s.
func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	lower, lowerSub := strings.ToLower(s), strings.ToLower(sub)
	if len(lower) != len(s) || len(lowerSub) != len(sub) {
		// lowercasing changed byte offsets; match exactly instead
		if i := strings.Index(s, sub); i >= 0 {
			return s[:i] + s[i+len(sub):]
		}
		return s
	}
	i := strings.Index(lower, lowerSub)
	if i < 0 {
		return s
	}
	return s[:i] + s[i+len(sub):]
}

// cleanPathSegment removes characters that are not portable in file
// names across filesystems.
func cleanPathSegment(s string) string {
	return strings.TrimSpace(roguePathCharsRE.ReplaceAllString(s, ""))
}
