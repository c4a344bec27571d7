// Package export renders trip views as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/ukydev/trip-approvals/internal/readmodel"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of an xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const tripSheet = "Trips"

// header row of the trip sheet
var tripColumns = []struct {
	label string
	width float64
	value func(r readmodel.TripRow) interface{}
}{
	{"Code", 14, func(r readmodel.TripRow) interface{} { return r.Code }},
	{"Client", 24, func(r readmodel.TripRow) interface{} { return r.ClientName }},
	{"Driver", 22, func(r readmodel.TripRow) interface{} { return r.DriverName }},
	{"Vehicle", 12, func(r readmodel.TripRow) interface{} { return r.VehiclePlate }},
	{"Origin", 18, func(r readmodel.TripRow) interface{} { return r.Origin }},
	{"Destination", 18, func(r readmodel.TripRow) interface{} { return r.Destination }},
	{"Departure", 18, func(r readmodel.TripRow) interface{} { return r.DepartureAt.Format("2006-01-02 15:04") }},
	{"Arrival", 18, func(r readmodel.TripRow) interface{} { return r.ArrivalAt.Format("2006-01-02 15:04") }},
	{"Status", 16, func(r readmodel.TripRow) interface{} { return r.StatusBadge.Label }},
	{"Risk score", 10, func(r readmodel.TripRow) interface{} { return r.RiskScore }},
	{"Risk tier", 10, func(r readmodel.TripRow) interface{} { return r.RiskBadge.Label }},
	{"Started", 18, func(r readmodel.TripRow) interface{} { return stamp(r.StartedAt) }},
	{"Finished", 18, func(r readmodel.TripRow) interface{} { return stamp(r.FinishedAt) }},
	{"Distance (km)", 12, func(r readmodel.TripRow) interface{} { return r.DistanceKm }},
	{"Signed", 8, func(r readmodel.TripRow) interface{} {
		if r.Signed {
			return "Yes"
		}
		return "No"
	}},
}

// risk tier fill colors, keyed by badge color
var riskFills = map[string]string{
	"success": "#C6EFCE",
	"warning": "#FFEB9C",
	"danger":  "#FFC7CE",
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// TripListWorkbook builds a workbook with one row per trip.
func TripListWorkbook(rows []readmodel.TripRow, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(tripSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	riskStyles := map[string]int{}
	for color, fill := range riskFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return nil, err
		}
		riskStyles[color] = id
	}

	if err := f.SetCellValue(tripSheet, "A1", "Trips"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(tripSheet, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(tripSheet, "A2", fmt.Sprintf("Generated: %s", generatedAt.UTC().Format("2006-01-02 15:04:05"))); err != nil {
		return nil, err
	}

	const headerRow = 4
	riskCol := 0
	for i, col := range tripColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(tripSheet, cell, col.label); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(tripSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(tripSheet, name, name, col.width); err != nil {
			return nil, err
		}
		if col.label == "Risk tier" {
			riskCol = i + 1
		}
	}

	for r, row := range rows {
		values := make([]interface{}, len(tripColumns))
		for i, col := range tripColumns {
			values[i] = col.value(row)
		}
		start, err := excelize.CoordinatesToCellName(1, headerRow+1+r)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(tripSheet, start, &values); err != nil {
			return nil, err
		}
		if style, ok := riskStyles[row.RiskBadge.Color]; ok && riskCol > 0 {
			cell, _ := excelize.CoordinatesToCellName(riskCol, headerRow+1+r)
			if err := f.SetCellStyle(tripSheet, cell, cell, style); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(tripSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTripList writes the trip workbook to w.
func WriteTripList(w io.Writer, rows []readmodel.TripRow, generatedAt time.Time) error {
	f, err := TripListWorkbook(rows, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename names an export generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("trips_%s.xlsx", t.UTC().Format("20060102_150405"))
}
