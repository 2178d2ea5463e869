// Package export turns an aggregated register table into a spreadsheet download or a console table.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// MIMEType is served with every workbook download.
const MIMEType = constants.SpreadsheetMIME

const (
	minColWidth = 10
	maxColWidth = 60
)

// Service produces XLSX bytes for an aggregated table.
type Service struct {
	fileName  string
	sheetName string
	logger    *slog.Logger
}

func NewService(cfg common.ExportConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FileName == "" {
		cfg.FileName = constants.DefaultExportFileName
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Records"
	}
	return &Service{fileName: cfg.FileName, sheetName: cfg.SheetName, logger: logger}
}

// FileName is the suggested download name.
func (s *Service) FileName() string { return s.fileName }

// TableXLSX returns a workbook with one worksheet: a bold, frozen header row of
// table.Columns followed by one row per record.
func (s *Service) TableXLSX(table register.Table) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	sheet := s.sheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := append([]string(nil), table.Columns...)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	widths := make([]int, len(table.Columns))
	for j, c := range table.Columns {
		widths[j] = utf8.RuneCountInString(c)
	}

	for i := range table.Rows {
		vals := table.Values(i)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
		for j, v := range vals {
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
	}

	if len(table.Columns) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("freeze header: %w", err)
		}
	}

	for j, w := range widths {
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetColWidth(sheet, col, col, float64(clamp(w+2, minColWidth, maxColWidth)))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", table.Len(),
		"columns", len(table.Columns),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile writes the workbook to path, replacing any previous file only once the new one is complete.
func (s *Service) WriteFile(path string, table register.Table) error {
	b, err := s.TableXLSX(table)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	s.logger.Info("export.file.ok", "path", path, "rows", table.Len())
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
