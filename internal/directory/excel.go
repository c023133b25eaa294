package directory

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/xuri/excelize/v2"
)

const scheduleSheet = "Schedule"

// ScheduleHeader 导入/导出表头
var ScheduleHeader = []string{"Day", "Time", "Label", "Sound"}

// ExportScheduleXLSX 导出铃声计划为 Excel
func ExportScheduleXLSX(entries []models.ScheduleEntry) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ScheduleHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(scheduleSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(scheduleSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(scheduleSheet, "A", "A", 14); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(scheduleSheet, "C", "D", 28); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	sorted := append([]models.ScheduleEntry(nil), entries...)
	SortSchedule(sorted)

	for i, e := range sorted {
		row := i + 2 // 第1行是表头
		values := []interface{}{e.Day.String(), e.Time, e.Label, e.SoundRef}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(scheduleSheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportScheduleXLSX 解析 Excel 中的铃声计划（第一张表，首行为表头）
func ImportScheduleXLSX(r io.Reader) ([]models.ScheduleEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidEntry)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var entries []models.ScheduleEntry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		line := i + 1

		day, err := models.ParseWeekday(cellAt(row, 0))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidEntry, line, err)
		}
		slot, err := normalizeSlot(cellAt(row, 1))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidEntry, line, err)
		}

		entries = append(entries, models.ScheduleEntry{
			Day:      day,
			Time:     slot,
			Label:    cellAt(row, 2),
			SoundRef: cellAt(row, 3),
		})
	}
	return entries, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// normalizeSlot 接受 "8:00"、"08:00"、"08:00:00"，统一为 HH:MM
func normalizeSlot(s string) (string, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	if t, err := time.Parse("3:04 PM", strings.ToUpper(s)); err == nil {
		return t.Format("15:04"), nil
	}
	return "", fmt.Errorf("invalid time %q", s)
}
