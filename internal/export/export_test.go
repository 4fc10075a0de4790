package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/timetable-engine/internal/model"
	"github.com/campusops/timetable-engine/internal/render"
)

func sampleTimetable() render.TeacherTimetable {
	tt := render.TeacherTimetable{Teacher: "T1"}
	tt.SlotTypeText[0] = model.SlotTypeLabel(model.SlotTypeA)
	tt.Grid[0][0] = render.Cell{CourseCode: "K1"}
	tt.Grid[0][1] = render.Cell{CourseCode: "K2", IsPractical: true}
	return tt
}

func TestDatasetShape(t *testing.T) {
	dataset := Dataset(sampleTimetable())
	require.Len(t, dataset.Rows, model.Days)
	assert.Equal(t, "T1", dataset.Rows[0]["Teacher"])
	assert.Equal(t, "Mon", dataset.Rows[0]["Day"])
	assert.Equal(t, "K1", dataset.Rows[0]["Slot 1"])
	assert.Equal(t, "K2 (Practical)", dataset.Rows[0]["Slot 2"])
	assert.Equal(t, "", dataset.Rows[0]["Slot 3"])
}

func TestRenderCSV(t *testing.T) {
	e := NewExporter()
	out, err := e.Render(sampleTimetable(), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Teacher")
	assert.Contains(t, string(out), "K1")
}

func TestRenderUnsupportedFormat(t *testing.T) {
	e := NewExporter()
	_, err := e.Render(sampleTimetable(), Format("xlsx"))
	assert.Error(t, err)
}

func TestRenderAllSortsByTeacher(t *testing.T) {
	b := sampleTimetable()
	b.Teacher = "T2"
	a := sampleTimetable()
	a.Teacher = "T1"

	out, err := RenderAll([]render.TeacherTimetable{b, a}, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(out), "T1")
	assert.Contains(t, string(out), "T2")
	assert.Less(t, strings.Index(string(out), "T1"), strings.Index(string(out), "T2"))
}
