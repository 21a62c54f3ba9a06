package formatter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"schedparser/internal/batch"
	"schedparser/internal/model"
)

func lesson(wt model.WeekType, day, period int, name string) *model.Lesson {
	start, end, _ := model.PeriodTimes(period)
	return &model.Lesson{
		Name:          name,
		WeekType:      wt,
		DayOfWeek:     day,
		LessonNumber:  period,
		StartTime:     start,
		EndTime:       end,
		LessonDate:    time.Date(2024, time.September, 1+day, 0, 0, 0, 0, time.UTC),
		TeacherName:   "Иванов И.И.",
		CabinetNumber: "401",
		LessonType:    model.LessonLecture,
	}
}

func TestDayName(t *testing.T) {
	assert.Equal(t, "Понедельник", DayName(1))
	assert.Equal(t, "Суббота", DayName(6))
	assert.Equal(t, "день 9", DayName(9))
}

func TestFormatLesson(t *testing.T) {
	l := lesson(model.WeekEven, 1, 2, "История")
	assert.Equal(t, "2. 10:45-12:20 История (Lecture) | Иванов И.И. | ауд. 401", FormatLesson(l))

	l.TeacherName, l.CabinetNumber, l.LessonType = "", "", ""
	l.Subgroup = model.Subgroup2
	assert.Equal(t, "2. 10:45-12:20 История [подгр. 2]", FormatLesson(l))
}

func TestFormatLessons(t *testing.T) {
	out := FormatLessons([]*model.Lesson{
		lesson(model.WeekOdd, 1, 1, "Физика"),
		lesson(model.WeekEven, 2, 3, "Химия"),
		lesson(model.WeekEven, 2, 1, "История"),
	})

	even := strings.Index(out, "Чётная неделя")
	odd := strings.Index(out, "Нечётная неделя")
	assert.True(t, even >= 0 && odd > even, out)
	assert.Less(t, strings.Index(out, "История"), strings.Index(out, "Химия"))
	assert.Contains(t, out, "Вторник, 03.09.2024")

	assert.Equal(t, "Занятий нет\n", FormatLessons(nil))
}

func TestFormatResult(t *testing.T) {
	ok := model.SuccessResult(106, 3, 1, 0)
	ok.GroupName = "1123"
	ok.Duration = 1500 * time.Millisecond
	assert.Equal(t, "group 106 (1123): OK added=3 updated=1 deleted=0 in 1.5s", FormatResult(ok))

	failed := model.FailedResult(999, fmt.Errorf("group 999: %w", model.ErrGroupNotFound))
	assert.Equal(t, "group 999: FAILED [GROUP_NOT_FOUND] group 999: group not found", FormatResult(failed))

	partial := model.FailedResult(5, errors.New("odd week: boom"))
	partial.LessonsAdded = 2
	assert.Contains(t, FormatResult(partial), "(added=2 updated=0 deleted=0)")
}

func TestFormatSummary(t *testing.T) {
	s := batch.Summary{Total: 3, Succeeded: 2, Failed: 1, Added: 5, Duration: 2 * time.Second}
	assert.Equal(t, "groups=3 succeeded=2 failed=1 added=5 updated=0 deleted=0 duration=2s", FormatSummary(s))
}

func TestFormatChange(t *testing.T) {
	at := time.Date(2024, time.September, 4, 12, 30, 0, 0, time.UTC)
	old := lesson(model.WeekEven, 3, 2, "История")
	updated := lesson(model.WeekEven, 3, 2, "Физика")

	c := *model.NewChange(model.ChangeUpdate, 7, 106, old, updated)
	c.ChangedAt = at
	assert.Equal(t,
		"2024-09-04 12:30 update lesson=7 Чётная неделя среда, 2 пара | История | Иванов И.И. | ауд. 401 -> Чётная неделя среда, 2 пара | Физика | Иванов И.И. | ауд. 401",
		FormatChange(c))

	d := *model.NewChange(model.ChangeDelete, 7, 106, old, nil)
	d.ChangedAt = at
	assert.Contains(t, FormatChange(d), "delete lesson=7 - Чётная неделя")

	n := *model.NewChange(model.ChangeNew, 8, 106, nil, updated)
	n.ChangedAt = at
	assert.Contains(t, FormatChange(n), "new    lesson=8 + ")
}
