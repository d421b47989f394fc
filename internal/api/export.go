package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/nvalkov/station-core/internal/storage"
)

const (
	// exportLimit caps export size; pagination is a browse concern, exports
	// take the newest rows in range.
	exportLimit = 1000

	exportSheet = "Sheet1"

	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// handleExportScalarCSV streams stored scalar samples as a CSV attachment.
// Accepts the same start/end bounds as the browse endpoints.
func (s *Server) handleExportScalarCSV(w http.ResponseWriter, r *http.Request) {
	items, ok := s.scalarExportItems(w, r)
	if !ok {
		return
	}
	s.writeCSV(w, "scalar.csv", scalarExportColumns(), scalarExportRows(items))
}

// handleExportAccelCSV streams stored accel batch rows as a CSV attachment.
func (s *Server) handleExportAccelCSV(w http.ResponseWriter, r *http.Request) {
	items, ok := s.accelExportItems(w, r)
	if !ok {
		return
	}
	s.writeCSV(w, "accel.csv", accelExportColumns(), accelExportRows(items))
}

// handleExportScalarXLSX serves stored scalar samples as a spreadsheet.
func (s *Server) handleExportScalarXLSX(w http.ResponseWriter, r *http.Request) {
	items, ok := s.scalarExportItems(w, r)
	if !ok {
		return
	}
	s.writeXLSX(w, "scalar.xlsx", scalarExportColumns(), scalarExportRows(items))
}

// handleExportAccelXLSX serves stored accel batch rows as a spreadsheet.
func (s *Server) handleExportAccelXLSX(w http.ResponseWriter, r *http.Request) {
	items, ok := s.accelExportItems(w, r)
	if !ok {
		return
	}
	s.writeXLSX(w, "accel.xlsx", accelExportColumns(), accelExportRows(items))
}

// scalarExportItems fetches the newest scalar rows in range. On failure it
// writes the error response and returns ok false.
func (s *Server) scalarExportItems(w http.ResponseWriter, r *http.Request) ([]storage.ScalarRow, bool) {
	filter, err := parseRangeFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return nil, false
	}
	filter.Limit = exportLimit

	list, err := s.store.ListScalar(r.Context(), filter)
	if err != nil {
		s.logger.Error("scalar export query failed", "error", err)
		writeInternalError(w, "failed to query scalar samples")
		return nil, false
	}
	return list.Items, true
}

// accelExportItems fetches the newest accel batch rows in range. On failure
// it writes the error response and returns ok false.
func (s *Server) accelExportItems(w http.ResponseWriter, r *http.Request) ([]storage.AccelRow, bool) {
	filter, err := parseRangeFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return nil, false
	}
	filter.Limit = exportLimit

	list, err := s.store.ListAccel(r.Context(), filter)
	if err != nil {
		s.logger.Error("accel export query failed", "error", err)
		writeInternalError(w, "failed to query accel batches")
		return nil, false
	}
	return list.Items, true
}

func scalarExportColumns() []string {
	return []string{"id", "time_local", "temp_c", "hum_pct", "wind_dir_deg", "wind_dir_txt", "wind_spd_ms", "created_at"}
}

func scalarExportRows(items []storage.ScalarRow) [][]any {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.ID,
			item.TimeLocal,
			cell(item.TempC),
			cell(item.HumPct),
			cell(item.WindDirDeg),
			cell(item.WindDirTxt),
			cell(item.WindSpdMS),
			item.CreatedAt,
		})
	}
	return rows
}

func accelExportColumns() []string {
	return []string{"id", "chunk_start_us", "fs_hz", "sample_count", "created_at"}
}

func accelExportRows(items []storage.AccelRow) [][]any {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.ID,
			item.ChunkStartUS,
			item.FsHz,
			item.SampleCount,
			item.CreatedAt,
		})
	}
	return rows
}

// cell unwraps an optional measurement for export. Absent readings become
// untyped nil so both writers render an empty cell instead of a pointer.
func cell[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// writeCSV writes rows as a CSV attachment.
func (s *Server) writeCSV(w http.ResponseWriter, filename string, columns []string, rows [][]any) {
	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write(columns) //nolint:errcheck // write errors surface via cw.Error below
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = csvCell(v)
		}
		cw.Write(record) //nolint:errcheck // write errors surface via cw.Error below
	}
	cw.Flush()

	if err := cw.Error(); err != nil {
		// Status is already committed; the client sees a truncated file.
		s.logger.Warn("csv export write failed", "filename", filename, "error", err)
	}
}

// writeXLSX builds a single-sheet workbook in memory and serves it as an
// attachment. The workbook is only streamed once fully built, so build
// failures still produce a clean 500.
func (s *Server) writeXLSX(w http.ResponseWriter, filename string, columns []string, rows [][]any) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		s.logger.Error("spreadsheet export build failed", "filename", filename, "error", err)
		writeInternalError(w, "failed to build spreadsheet")
		return
	}

	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err == nil {
			err = f.SetSheetRow(exportSheet, cellName, &row)
		}
		if err != nil {
			s.logger.Error("spreadsheet export build failed", "filename", filename, "error", err)
			writeInternalError(w, "failed to build spreadsheet")
			return
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		s.logger.Warn("spreadsheet export write failed", "filename", filename, "error", err)
	}
}

// csvCell renders one export cell as text. Absent measurements render as an
// empty field.
func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
