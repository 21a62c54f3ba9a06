// Package schedule собирает занятия группы из разобранной таблицы расписания.
package schedule

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"schedparser/internal/calendar"
	"schedparser/internal/model"
	"schedparser/internal/parser"
)

var dayNumbers = map[string]int{
	"пнд": 1, "пон": 1,
	"втр": 2, "вто": 2,
	"срд": 3, "сре": 3,
	"чтв": 4, "чет": 4,
	"птн": 5, "пят": 5,
	"сбт": 6, "суб": 6,
	"вск": 7, "вос": 7,
}

// DayOfWeek переводит подпись дня в номер 1-7 по первым трем буквам
func DayOfWeek(label string) (int, bool) {
	lower := []rune(cases.Lower(language.Russian).String(label))
	if len(lower) < 3 {
		return 0, false
	}
	day, ok := dayNumbers[string(lower[:3])]
	return day, ok
}

// Stats счетчики обработки ячеек
type Stats struct {
	Rows            int
	Cells           int
	Processed       int
	Empty           int
	Malformed       int
	UnknownDays     int
	InvalidPeriods  int
	Invalid         int
	Anomalies       int
	Duplicates      int
	SubgroupLessons int
	MultiTeacher    int
}

// Result занятия по чётности недели
type Result struct {
	Even  []model.Lesson
	Odd   []model.Lesson
	Stats Stats
}

// ByWeek возвращает занятия заданной чётности
func (r Result) ByWeek(wt model.WeekType) []model.Lesson {
	if wt == model.WeekEven {
		return r.Even
	}
	return r.Odd
}

// Total возвращает количество занятий обеих недель
func (r Result) Total() int {
	return len(r.Even) + len(r.Odd)
}

// Builder собирает занятия группы
type Builder struct {
	logger *zap.Logger
}

// NewBuilder создает новый сборщик
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

type weekSlot struct {
	parity model.WeekType
	monday time.Time
}

// Build превращает строки таблицы в занятия чётной и нечётной недели.
//
// Если в таблице есть выделенные строки, они относятся к текущей неделе
// (по дате today), остальные к следующей. Без выделения выделенные ячейки
// считаются нечётной неделей, прочие чётной.
func (b *Builder) Build(groupID int, table parser.Table, today time.Time) Result {
	var (
		res   Result
		seen  = map[model.WeekType]map[model.LessonKey]bool{model.WeekEven: {}, model.WeekOdd: {}}
		stats = &res.Stats
	)

	current := weekSlot{parity: calendar.WeekParity(today), monday: calendar.MondayOf(today)}
	next := weekSlot{parity: current.parity.Opposite(), monday: current.monday.AddDate(0, 0, 7)}
	explicit := table.HasHighlight()

	for _, row := range table.Rows {
		stats.Rows++

		day, ok := DayOfWeek(row.Day)
		if !ok {
			stats.UnknownDays++
			b.logger.Warn("Skipping row with unknown day label",
				zap.Int("group_id", groupID),
				zap.String("day_label", row.Day),
				zap.Error(model.ErrUnknownDayLabel))
			continue
		}

		for _, cell := range row.Periods {
			stats.Cells++

			var slot weekSlot
			switch {
			case explicit && row.Highlighted:
				slot = current
			case explicit:
				slot = next
			case cell.Highlighted:
				slot = weekSlot{parity: model.WeekOdd, monday: calendar.MondayOfParity(today, model.WeekOdd)}
			default:
				slot = weekSlot{parity: model.WeekEven, monday: calendar.MondayOfParity(today, model.WeekEven)}
			}

			lesson, ok := b.buildLesson(groupID, day, cell, slot, stats)
			if !ok {
				continue
			}

			key := lesson.Key()
			if seen[slot.parity][key] {
				stats.Duplicates++
				b.logger.Warn("Duplicate lesson slot, keeping the first one",
					zap.Int("group_id", groupID),
					zap.String("week_type", slot.parity.String()),
					zap.String("key", key.String()),
					zap.String("raw_text", cell.Text))
				continue
			}
			seen[slot.parity][key] = true

			stats.Processed++
			if slot.parity == model.WeekEven {
				res.Even = append(res.Even, lesson)
			} else {
				res.Odd = append(res.Odd, lesson)
			}
		}
	}

	b.logger.Info("Schedule parsing stats",
		zap.Int("group_id", groupID),
		zap.Bool("explicit_highlight", explicit),
		zap.Int("rows", stats.Rows),
		zap.Int("cells", stats.Cells),
		zap.Int("processed", stats.Processed),
		zap.Int("empty", stats.Empty),
		zap.Int("malformed", stats.Malformed),
		zap.Int("unknown_days", stats.UnknownDays),
		zap.Int("invalid_periods", stats.InvalidPeriods),
		zap.Int("invalid", stats.Invalid),
		zap.Int("anomalies", stats.Anomalies),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("subgroup_lessons", stats.SubgroupLessons),
		zap.Int("multi_teacher", stats.MultiTeacher),
		zap.Int("even", len(res.Even)),
		zap.Int("odd", len(res.Odd)))

	return res
}

func (b *Builder) buildLesson(groupID, day int, cell parser.PeriodCell, slot weekSlot, stats *Stats) (model.Lesson, bool) {
	if parser.IsPlaceholder(cell.Text) {
		stats.Empty++
		return model.Lesson{}, false
	}

	info := parser.ParseCell(cell.Text)
	if info.IsEmpty() {
		stats.Malformed++
		b.logger.Warn("Skipping cell without discipline name",
			zap.Int("group_id", groupID),
			zap.Int("day", day),
			zap.Int("period", cell.Period),
			zap.String("raw_text", cell.Text),
			zap.Error(model.ErrMalformedCell))
		return model.Lesson{}, false
	}

	start, end, ok := model.PeriodTimes(cell.Period)
	if !ok {
		stats.InvalidPeriods++
		b.logger.Warn("Skipping cell outside bell schedule",
			zap.Int("group_id", groupID),
			zap.Int("day", day),
			zap.Int("period", cell.Period),
			zap.String("raw_text", cell.Text),
			zap.Error(fmt.Errorf("%w: %d", model.ErrInvalidPeriodIndex, cell.Period)))
		return model.Lesson{}, false
	}

	if info.NameFallback {
		stats.Anomalies++
		b.logger.Warn("Discipline name fell back to raw cell text",
			zap.Int("group_id", groupID),
			zap.String("raw_text", cell.Text),
			zap.Strings("teachers", info.Teachers),
			zap.Strings("cabinets", info.Cabinets))
	}
	if info.Subgroup != model.WholeGroup {
		stats.SubgroupLessons++
	}
	if len(info.Teachers) > 1 {
		stats.MultiTeacher++
	}

	lesson := model.Lesson{
		GroupID:       groupID,
		Name:          info.Name,
		LessonDate:    slot.monday.AddDate(0, 0, day-1),
		DayOfWeek:     day,
		LessonNumber:  cell.Period,
		StartTime:     start,
		EndTime:       end,
		TeacherName:   info.TeacherNames(),
		CabinetNumber: info.CabinetNumbers(),
		WeekType:      slot.parity,
		LessonType:    info.Type,
		Subgroup:      info.Subgroup,
		RawText:       cell.Text,
	}
	if !b.valid(&lesson, stats) {
		return model.Lesson{}, false
	}
	return lesson, true
}

// valid проверяет инварианты собранного занятия, нарушители пропускаются
func (b *Builder) valid(lesson *model.Lesson, stats *Stats) bool {
	if err := lesson.Validate(); err != nil {
		stats.Invalid++
		b.logger.Warn("Skipping lesson that violates invariants",
			zap.Int("group_id", lesson.GroupID),
			zap.Int("day", lesson.DayOfWeek),
			zap.Int("period", lesson.LessonNumber),
			zap.String("raw_text", lesson.RawText),
			zap.Error(err))
		return false
	}
	return true
}
