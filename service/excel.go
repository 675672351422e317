package service

import (
	"context"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/xuri/excelize/v2"
)

// RowError reports a spreadsheet row that was not imported.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Failed   []RowError `json:"failed"`
}

// ImportExcel reads an Excel file stream and creates one record per row of
// its first sheet. The first row names the columns. Each row goes through
// Create, so the usual validation and uniqueness rules apply; rows that fail
// are reported and skipped.
func (s *Service[T, PT]) ImportExcel(ctx context.Context, file io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, errors.NewNotValid(err, "failed to open excel file")
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Errorf("closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.NewNotValid(nil, "excel file does not contain any sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.NewNotValid(err, "failed to get rows from sheet "+sheetName)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotValid(nil, "excel file is empty")
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	}
	for _, col := range s.schema.Required {
		if !contains(header, col) {
			return nil, errors.NewNotValid(nil, "missing column "+col)
		}
	}

	result := &ImportResult{Failed: []RowError{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		cells := make(map[string]string, len(header))
		blank := true
		for j, v := range row {
			if j < len(header) && header[j] != "" {
				cells[header[j]] = v
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		rec := new(T)
		if err := PT(rec).FromRow(cells); err != nil {
			result.Failed = append(result.Failed, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if _, err := s.Create(ctx, rec); err != nil {
			logger.Debugf("skipping row %d: %v", rowNum, err)
			result.Failed = append(result.Failed, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Imported++
	}

	logger.Infof("imported %d %s records, %d rows failed", result.Imported, s.schema.Noun, len(result.Failed))
	return result, nil
}

// ExportExcel writes every record as a spreadsheet: an id column followed by
// the schema columns.
func (s *Service[T, PT]) ExportExcel(ctx context.Context, w io.Writer) error {
	recs, err := s.store.List(ctx, s.schema.FilterColumn, "")
	if err != nil {
		return &StoreError{Phase: PhaseLookup, Err: err}
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	header := append([]interface{}{"id"}, toInterfaces(s.schema.Columns)...)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Trace(err)
	}
	for i := range recs {
		columns := PT(&recs[i]).Columns()
		row := make([]interface{}, 0, len(s.schema.Columns)+1)
		row = append(row, PT(&recs[i]).PrimaryKey())
		for _, col := range s.schema.Columns {
			v := columns[col]
			if v == nil {
				v = ""
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Trace(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(f.Write(w))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toInterfaces(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
