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
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/natural"
)

// reportHeader is the column layout of the analysis report. One row
// per scanned item, including the ones that failed to resolve.
var reportHeader = []string{
	"Filename",
	"Path",
	"Size",
	"Modified",
	"Embedded Date",
	"Sidecar Date",
	"Folder Date",
	"Filename Date",
	"Name Date",
	"Calc Date",
	"Date Source",
	"Time Source",
	"Agreement",
	"Width",
	"Height",
	"Camera",
	"Time Zone",
	"Target Filename",
	"Target Path",
	"Error",
}

// WriteReport writes the catalog as CSV: what the last scan found for
// every file, what it decided, and where the file would go. Rows come
// out in natural path order so the report diffs cleanly between runs.
// It returns the number of item rows written (the header not counted).
func (l *Library) WriteReport(ctx context.Context, w io.Writer) (int, error) {
	rows, err := l.reportRows(ctx)
	if err != nil {
		return 0, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return natural.Less(rows[i][1], rows[j][1])
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return 0, fmt.Errorf("writing report header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return i, fmt.Errorf("writing report row: %w", err)
		}
	}
	cw.Flush()
	return len(rows), cw.Error()
}

func (l *Library) reportRows(ctx context.Context) ([][]string, error) {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()

	dbRows, err := l.db.QueryContext(ctx, `SELECT
		source_path, size, mod_time,
		embedded_date, sidecar_date, folder_date, filename_date,
		name_date, resolved_date, date_source, time_source, agreement,
		width, height, camera_make, camera_model, time_zone,
		target_filename, target_path, error
		FROM items`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer dbRows.Close()

	var rows [][]string
	for dbRows.Next() {
		var (
			sourcePath                 string
			size                       int64
			modTime                    sql.NullInt64
			embedded, sidecar          sql.NullString
			folder, filename           sql.NullString
			nameDate, resolved         sql.NullString
			dateSource, timeSource     sql.NullString
			agreement                  sql.NullString
			width, height              sql.NullInt64
			cameraMake, cameraModel    sql.NullString
			timeZone                   sql.NullString
			targetFilename, targetPath sql.NullString
			itemErr                    sql.NullString
		)
		err := dbRows.Scan(&sourcePath, &size, &modTime,
			&embedded, &sidecar, &folder, &filename,
			&nameDate, &resolved, &dateSource, &timeSource, &agreement,
			&width, &height, &cameraMake, &cameraModel, &timeZone,
			&targetFilename, &targetPath, &itemErr)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}

		var modified string
		if modTime.Valid {
			modified = time.Unix(modTime.Int64, 0).Format("2006-01-02 15:04:05")
		}

		rows = append(rows, []string{
			filepath.Base(sourcePath),
			sourcePath,
			strconv.FormatInt(size, 10),
			modified,
			embedded.String,
			sidecar.String,
			folder.String,
			filename.String,
			nameDate.String,
			resolved.String,
			dateSource.String,
			timeSource.String,
			agreement.String,
			reportInt(width),
			reportInt(height),
			cameraName(cameraMake.String, cameraModel.String),
			timeZone.String,
			targetFilename.String,
			targetPath.String,
			itemErr.String,
		})
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}
	return rows, nil
}

func reportInt(v sql.NullInt64) string {
	if !v.Valid || v.Int64 == 0 {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

// cameraName joins make and model, dropping the make when the model
// already repeats it (Canon does this, for one).
func cameraName(make, model string) string {
	make, model = strings.TrimSpace(make), strings.TrimSpace(model)
	switch {
	case make == "":
		return model
	case model == "":
		return make
	case strings.HasPrefix(strings.ToLower(model), strings.ToLower(make)):
		return model
	default:
		return make + " " + model
	}
}
