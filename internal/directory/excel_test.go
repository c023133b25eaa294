package directory

import (
	"bytes"
	"testing"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestScheduleXLSX_ExportThenImport(t *testing.T) {
	entries := []models.ScheduleEntry{
		{ID: "b", Day: models.Tuesday, Time: "09:00", Label: "2. ders", SoundRef: "school"},
		{ID: "a", Day: models.Monday, Time: "08:00", Label: "1. ders", SoundRef: "classic"},
	}

	data, err := ExportScheduleXLSX(entries)
	require.NoError(t, err)

	imported, err := ImportScheduleXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, models.Monday, imported[0].Day)
	assert.Equal(t, "08:00", imported[0].Time)
	assert.Equal(t, "1. ders", imported[0].Label)
	assert.Equal(t, "classic", imported[0].SoundRef)
	assert.Empty(t, imported[0].ID)
}

func TestImportScheduleXLSX_Lenient(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Gün", "Saat", "Etiket", "Zil"},
		{"Pazartesi", "8:00", "Sabah", "classic"},
		{},
		{"cuma", "15:20:00", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	imported, err := ImportScheduleXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, "08:00", imported[0].Time)
	assert.Equal(t, models.Friday, imported[1].Day)
	assert.Equal(t, "15:20", imported[1].Time)
}

func TestImportScheduleXLSX_InvalidRow(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Day", "Time"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Someday", "08:00"}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	_, err = ImportScheduleXLSX(&buf)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}
