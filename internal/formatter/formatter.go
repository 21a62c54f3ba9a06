// Package formatter форматирует расписание и итоги синхронизации для вывода в консоль.
package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"schedparser/internal/batch"
	"schedparser/internal/model"
)

// DateTimeFormat формат времени в журнале изменений
const DateTimeFormat = "2006-01-02 15:04"

var dayNames = [...]string{"", "понедельник", "вторник", "среда", "четверг", "пятница", "суббота", "воскресенье"}

// DayName возвращает название дня недели, 1 = понедельник
func DayName(day int) string {
	if day < 1 || day >= len(dayNames) {
		return fmt.Sprintf("день %d", day)
	}
	return cases.Title(language.Russian).String(dayNames[day])
}

// WeekLabel возвращает название чётности недели
func WeekLabel(wt model.WeekType) string {
	switch wt {
	case model.WeekEven:
		return "Чётная неделя"
	case model.WeekOdd:
		return "Нечётная неделя"
	default:
		return string(wt)
	}
}

// FormatLesson форматирует одно занятие в строку
func FormatLesson(l *model.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s-%s %s", l.LessonNumber, l.StartTime, l.EndTime, l.Name)
	if l.LessonType != "" {
		fmt.Fprintf(&b, " (%s)", l.LessonType)
	}
	if l.Subgroup != model.WholeGroup {
		fmt.Fprintf(&b, " [подгр. %d]", l.Subgroup)
	}
	if l.TeacherName != "" {
		fmt.Fprintf(&b, " | %s", l.TeacherName)
	}
	if l.CabinetNumber != "" {
		fmt.Fprintf(&b, " | ауд. %s", l.CabinetNumber)
	}
	return b.String()
}

// FormatLessons форматирует занятия по неделям и дням
func FormatLessons(lessons []*model.Lesson) string {
	if len(lessons) == 0 {
		return "Занятий нет\n"
	}

	sorted := make([]*model.Lesson, len(lessons))
	copy(sorted, lessons)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WeekType != sorted[j].WeekType {
			return sorted[i].WeekType < sorted[j].WeekType
		}
		return sorted[i].Key().Less(sorted[j].Key())
	})

	var b strings.Builder
	var week model.WeekType
	day := 0
	for _, l := range sorted {
		if l.WeekType != week {
			if week != "" {
				b.WriteString("\n")
			}
			week, day = l.WeekType, 0
			fmt.Fprintf(&b, "== %s ==\n", WeekLabel(week))
		}
		if l.DayOfWeek != day {
			day = l.DayOfWeek
			fmt.Fprintf(&b, "%s, %s\n", DayName(day), l.LessonDate.Format("02.01.2006"))
		}
		fmt.Fprintf(&b, "  %s\n", FormatLesson(l))
	}
	return b.String()
}

// FormatResult форматирует итог обработки группы
func FormatResult(res model.ParseResult) string {
	name := fmt.Sprintf("group %d", res.GroupID)
	if res.GroupName != "" {
		name += fmt.Sprintf(" (%s)", res.GroupName)
	}

	counts := fmt.Sprintf("added=%d updated=%d deleted=%d", res.LessonsAdded, res.LessonsUpdated, res.LessonsDeleted)
	if res.IsSuccessful() {
		return fmt.Sprintf("%s: OK %s in %s", name, counts, res.Duration.Round(time.Millisecond))
	}

	line := fmt.Sprintf("%s: FAILED [%s] %s", name, res.ErrorCode, res.Error)
	if res.TotalChanges() > 0 {
		line += " (" + counts + ")"
	}
	return line
}

// FormatSummary форматирует итоги запуска
func FormatSummary(s batch.Summary) string {
	return fmt.Sprintf("groups=%d succeeded=%d failed=%d added=%d updated=%d deleted=%d duration=%s",
		s.Total, s.Succeeded, s.Failed, s.Added, s.Updated, s.Deleted, s.Duration.Round(time.Millisecond))
}

// FormatChange форматирует запись журнала изменений
func FormatChange(c model.ScheduleChange) string {
	prefix := fmt.Sprintf("%s %-6s lesson=%d", c.ChangedAt.Format(DateTimeFormat), c.ChangeType, c.LessonID)
	switch c.ChangeType {
	case model.ChangeNew:
		return prefix + " + " + formatSnapshot(c.NewData)
	case model.ChangeDelete:
		return prefix + " - " + formatSnapshot(c.OldData)
	default:
		return prefix + " " + formatSnapshot(c.OldData) + " -> " + formatSnapshot(c.NewData)
	}
}

func formatSnapshot(s *model.LessonSnapshot) string {
	if s == nil {
		return "<empty>"
	}
	parts := []string{
		fmt.Sprintf("%s %s, %d пара", WeekLabel(s.WeekType), strings.ToLower(DayName(s.DayOfWeek)), s.LessonNumber),
		s.Name,
	}
	if s.TeacherName != "" {
		parts = append(parts, s.TeacherName)
	}
	if s.CabinetNumber != "" {
		parts = append(parts, "ауд. "+s.CabinetNumber)
	}
	return strings.Join(parts, " | ")
}
