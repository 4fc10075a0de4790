package catalogue

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	appErrors "github.com/campusops/timetable-engine/pkg/errors"
)

var requiredColumns = []string{"course_code", "faculty", "lecture_hours", "tutorial_hours", "practical_hours", "credits"}

// ReadCSV parses a catalogue from CSV bytes, matching headers
// case-insensitively and independent of column order. Missing
// required columns are a fatal InputError.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, appErrors.Clone(appErrors.ErrInput, "catalogue CSV has no header row")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInput.Code, appErrors.ErrInput.Status, "failed to read catalogue header")
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[normaliseColumn(col)] = i
	}
	for _, required := range requiredColumns {
		if _, ok := index[required]; !ok {
			return nil, appErrors.Clone(appErrors.ErrInput, fmt.Sprintf("catalogue CSV missing required column %q", required))
		}
	}
	registrationIdx, hasRegistration := index["registration"]

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInput.Code, appErrors.ErrInput.Status, "failed to read catalogue row")
		}

		row := Row{
			CourseCode:     field(record, index["course_code"]),
			Faculty:        field(record, index["faculty"]),
			LectureHours:   parseInt(field(record, index["lecture_hours"])),
			TutorialHours:  parseInt(field(record, index["tutorial_hours"])),
			PracticalHours: parseInt(field(record, index["practical_hours"])),
			Credits:        parseInt(field(record, index["credits"])),
		}
		if hasRegistration {
			if v := field(record, registrationIdx); v != "" {
				row.Registration = parseInt(v)
				row.HasRegistration = true
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func normaliseColumn(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	// Accept "2.0"-style numeric cells without pulling in a decoder; a
	// malformed or missing field coerces to zero.
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}
