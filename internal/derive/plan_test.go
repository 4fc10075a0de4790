package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/timetable-engine/internal/catalogue"
)

func TestBuildDerivesWeeklySlotsAndConsecutiveFlag(t *testing.T) {
	cat, err := catalogue.Load([]catalogue.Row{
		{Faculty: "A", CourseCode: "CS101", LectureHours: 1, PracticalHours: 2, Credits: 4},
	})
	require.NoError(t, err)

	plan, err := Build(cat, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)

	u := plan.Units[0]
	assert.Equal(t, 3, u.Weekly)
	assert.True(t, u.NeedsConsecutive)
}

func TestBuildRejectsOddPracticalHours(t *testing.T) {
	cat := &catalogue.Catalogue{Teachers: []catalogue.Teacher{
		{Name: "a", Courses: []catalogue.Course{{Code: "X", PracticalHours: 3, Credits: 1}}},
	}}

	_, err := Build(cat, DefaultOptions())
	require.Error(t, err)
}

func TestBuildSplitsOversizeLabIntoTwoBatches(t *testing.T) {
	cat := &catalogue.Catalogue{Teachers: []catalogue.Teacher{
		{Name: "T1", Courses: []catalogue.Course{
			{Code: "CS201", PracticalHours: 4, Credits: 3, Registration: 60, HasRegistration: true},
		}},
	}}

	plan, err := Build(cat, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, plan.Units, 2)

	b1, b2 := plan.Units[0], plan.Units[1]
	assert.Equal(t, "CS201-B1", b1.Course.Code)
	assert.Equal(t, "CS201-B2", b2.Course.Code)
	assert.True(t, b1.IsBatchSplit)
	assert.True(t, b2.IsBatchSplit)
	assert.Equal(t, "CS201", b1.BatchGroup)
	assert.Equal(t, "CS201", b2.BatchGroup)
	assert.Equal(t, 1, b1.BatchIndex)
	assert.Equal(t, 2, b2.BatchIndex)
	assert.Equal(t, "T1", b1.Teacher)
	assert.Equal(t, "T1", b2.Teacher)
	// Each batch carries the full load, not half of it.
	assert.Equal(t, 4, b1.Practical)
	assert.Equal(t, 4, b2.Practical)
}

func TestBuildIgnoresRegistrationBelowThreshold(t *testing.T) {
	cat := &catalogue.Catalogue{Teachers: []catalogue.Teacher{
		{Name: "T1", Courses: []catalogue.Course{
			{Code: "CS201", PracticalHours: 4, Credits: 3, Registration: 45, HasRegistration: true},
		}},
	}}

	plan, err := Build(cat, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)
	assert.False(t, plan.Units[0].IsBatchSplit)
}

func TestBuildRoundsDownOddPracticalHoursWhenNotStrict(t *testing.T) {
	cat := &catalogue.Catalogue{Teachers: []catalogue.Teacher{
		{Name: "T1", Courses: []catalogue.Course{
			{Code: "X", PracticalHours: 3, Credits: 1},
		}},
	}}

	opts := DefaultOptions()
	opts.StrictEvenPractical = false
	plan, err := Build(cat, opts)
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)
	assert.Equal(t, 2, plan.Units[0].Practical)
}

func TestBuildFlagsOpenElectivesAndMorningOnly(t *testing.T) {
	cat, err := catalogue.Load([]catalogue.Row{
		{Faculty: "A", CourseCode: "OpenElective-1", LectureHours: 1, Credits: 2},
		{Faculty: "B", CourseCode: "OpenElective-1", LectureHours: 1, Credits: 2},
		{Faculty: "A", CourseCode: "CE23331", PracticalHours: 2, Credits: 3},
	})
	require.NoError(t, err)

	plan, err := Build(cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"OpenElective-1"}, plan.OpenElectiveCourses)

	var sawMorningOnly bool
	for _, u := range plan.Units {
		if u.Course.Code == "CE23331" {
			sawMorningOnly = true
			assert.True(t, u.IsMorningOnly)
		}
	}
	assert.True(t, sawMorningOnly)
}
