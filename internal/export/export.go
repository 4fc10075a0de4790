// Package export turns solved timetables into the tabular datasets the
// adapted pkg/export renderers consume, and dispatches to CSV or PDF
// output.
package export

import (
	"fmt"
	"sort"

	"github.com/campusops/timetable-engine/internal/model"
	"github.com/campusops/timetable-engine/internal/render"
	"github.com/campusops/timetable-engine/pkg/export"
)

// Format selects the rendered output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

var dayNames = [model.Days]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Exporter renders a teacher's timetable into downloadable bytes.
type Exporter struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewExporter constructs an Exporter backed by the default CSV/PDF
// renderers.
func NewExporter() *Exporter {
	return &Exporter{csv: export.NewCSVExporter(), pdf: export.NewPDFExporter()}
}

// Render renders one teacher's timetable in the requested format.
func (e *Exporter) Render(tt render.TeacherTimetable, format Format) ([]byte, error) {
	dataset := Dataset(tt)
	title := fmt.Sprintf("Timetable - %s", tt.Teacher)

	switch format {
	case FormatCSV:
		return e.csv.Render(dataset)
	case FormatPDF:
		return e.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// RenderAll concatenates every teacher's dataset rows into a single
// workbook-style dataset, used for a whole-batch or whole-run export.
func RenderAll(tables []render.TeacherTimetable, format Format) ([]byte, error) {
	sorted := append([]render.TeacherTimetable(nil), tables...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Teacher < sorted[j].Teacher })

	dataset := export.Dataset{Headers: datasetHeaders()}
	for _, tt := range sorted {
		dataset.Rows = append(dataset.Rows, Dataset(tt).Rows...)
	}

	e := NewExporter()
	switch format {
	case FormatCSV:
		return e.csv.Render(dataset)
	case FormatPDF:
		return e.pdf.Render(dataset, "Timetables")
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func datasetHeaders() []string {
	headers := []string{"Teacher", "Day", "Slot Type"}
	for s := 0; s < model.Slots; s++ {
		headers = append(headers, fmt.Sprintf("Slot %d", s+1))
	}
	return headers
}

// Dataset flattens one teacher's timetable into one row per day, with a
// column per slot.
func Dataset(tt render.TeacherTimetable) export.Dataset {
	dataset := export.Dataset{Headers: datasetHeaders()}
	for d := 0; d < model.Days; d++ {
		row := map[string]string{
			"Teacher":   tt.Teacher,
			"Day":       dayNames[d],
			"Slot Type": tt.SlotTypeText[d],
		}
		for s := 0; s < model.Slots; s++ {
			row[fmt.Sprintf("Slot %d", s+1)] = tt.Grid[d][s].String()
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}
