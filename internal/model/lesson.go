// Package model содержит модели данных.
//
// Группа: ENTITIES - Основные сущности
// Содержит: Lesson, LessonKey, WeekType, LessonType, Subgroup, ClockTime
package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// WeekType представляет чётность учебной недели
type WeekType string

const (
	WeekEven WeekType = "even"
	WeekOdd  WeekType = "odd"
)

// IsValid проверяет валидность чётности
func (w WeekType) IsValid() bool {
	return w == WeekEven || w == WeekOdd
}

// Opposite возвращает противоположную чётность
func (w WeekType) Opposite() WeekType {
	if w == WeekEven {
		return WeekOdd
	}
	return WeekEven
}

// String возвращает строковое представление чётности
func (w WeekType) String() string {
	return string(w)
}

// LessonType представляет вид занятия
type LessonType string

const (
	LessonLecture      LessonType = "Lecture"
	LessonPractice     LessonType = "Practice"
	LessonLab          LessonType = "Lab"
	LessonSeminar      LessonType = "Seminar"
	LessonConsultation LessonType = "Consultation"
)

// IsValid проверяет валидность вида занятия
func (t LessonType) IsValid() bool {
	switch t {
	case LessonLecture, LessonPractice, LessonLab, LessonSeminar, LessonConsultation:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление вида занятия
func (t LessonType) String() string {
	return string(t)
}

// Subgroup номер подгруппы. Ноль означает всю группу.
type Subgroup int

const (
	WholeGroup Subgroup = 0
	Subgroup1  Subgroup = 1
	Subgroup2  Subgroup = 2
)

// IsValid проверяет валидность подгруппы
func (s Subgroup) IsValid() bool {
	return s >= WholeGroup && s <= Subgroup2
}

// ClockTime время суток с точностью до минуты
type ClockTime struct {
	Hour   int
	Minute int
}

// Clock создает ClockTime
func Clock(hour, minute int) ClockTime {
	return ClockTime{Hour: hour, Minute: minute}
}

// Minutes возвращает количество минут от полуночи
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Before сообщает, раньше ли c, чем other
func (c ClockTime) Before(other ClockTime) bool {
	return c.Minutes() < other.Minutes()
}

// IsZero сообщает, задано ли время
func (c ClockTime) IsZero() bool {
	return c.Hour == 0 && c.Minute == 0
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalText реализует encoding.TextMarshaler
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (c *ClockTime) UnmarshalText(data []byte) error {
	parsed, err := ParseClock(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value реализует driver.Valuer для колонок типа time
func (c ClockTime) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", c.Hour, c.Minute), nil
}

// Scan реализует sql.Scanner
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = ClockTime{}
		return nil
	case time.Time:
		*c = ClockTime{Hour: v.Hour(), Minute: v.Minute()}
		return nil
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

// ParseClock разбирает "HH:MM" или "HH:MM:SS"
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
}

// Лимиты сетки занятий
const (
	MinPeriod = 1
	MaxPeriod = 6
)

// bellSchedule расписание звонков по номеру пары
var bellSchedule = map[int][2]ClockTime{
	1: {Clock(9, 0), Clock(10, 35)},
	2: {Clock(10, 45), Clock(12, 20)},
	3: {Clock(13, 0), Clock(14, 35)},
	4: {Clock(14, 45), Clock(16, 20)},
	5: {Clock(16, 25), Clock(18, 0)},
	6: {Clock(18, 5), Clock(19, 40)},
}

// PeriodTimes возвращает время начала и конца пары
func PeriodTimes(period int) (start, end ClockTime, ok bool) {
	times, ok := bellSchedule[period]
	if !ok {
		return ClockTime{}, ClockTime{}, false
	}
	return times[0], times[1], true
}

// LessonKey естественный ключ занятия в пределах группы и чётности
type LessonKey struct {
	DayOfWeek    int
	LessonNumber int
	Subgroup     Subgroup
}

// Less задает порядок день, пара, подгруппа
func (k LessonKey) Less(other LessonKey) bool {
	if k.DayOfWeek != other.DayOfWeek {
		return k.DayOfWeek < other.DayOfWeek
	}
	if k.LessonNumber != other.LessonNumber {
		return k.LessonNumber < other.LessonNumber
	}
	return k.Subgroup < other.Subgroup
}

func (k LessonKey) String() string {
	return fmt.Sprintf("day=%d period=%d subgroup=%d", k.DayOfWeek, k.LessonNumber, k.Subgroup)
}

// Lesson представляет одно занятие группы в неделе заданной чётности
type Lesson struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	LessonID      int64      `bun:"lesson_id,pk,autoincrement" json:"lesson_id"`
	GroupID       int        `bun:"group_id,notnull" json:"group_id"`
	Name          string     `bun:"name,notnull" json:"name"`
	LessonDate    time.Time  `bun:"lesson_date,type:date,notnull" json:"lesson_date"`
	DayOfWeek     int        `bun:"day_of_week,notnull" json:"day_of_week"`
	LessonNumber  int        `bun:"lesson_number,notnull" json:"lesson_number"`
	StartTime     ClockTime  `bun:"start_time,type:time,notnull" json:"start_time"`
	EndTime       ClockTime  `bun:"end_time,type:time,notnull" json:"end_time"`
	TeacherName   string     `bun:"teacher_name,nullzero" json:"teacher_name,omitempty"`
	CabinetNumber string     `bun:"cabinet_number,nullzero" json:"cabinet_number,omitempty"`
	WeekType      WeekType   `bun:"week_type,notnull" json:"week_type"`
	LessonType    LessonType `bun:"lesson_type,nullzero" json:"lesson_type,omitempty"`
	Subgroup      Subgroup   `bun:"subgroup,notnull,default:0" json:"subgroup"`
	RawText       string     `bun:"raw_text,nullzero" json:"raw_text,omitempty"`
	CreatedAt     time.Time  `bun:"date_added,nullzero,notnull,default:current_timestamp" json:"date_added"`
	UpdatedAt     time.Time  `bun:"last_updated,nullzero,notnull,default:current_timestamp" json:"last_updated"`
}

// Key возвращает естественный ключ занятия
func (l *Lesson) Key() LessonKey {
	return LessonKey{DayOfWeek: l.DayOfWeek, LessonNumber: l.LessonNumber, Subgroup: l.Subgroup}
}

// Equal сравнивает занятия по содержимому. Идентификатор, даты, исходный
// текст и вид занятия не участвуют в сравнении.
func (l *Lesson) Equal(other *Lesson) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Name == other.Name &&
		l.TeacherName == other.TeacherName &&
		l.CabinetNumber == other.CabinetNumber &&
		l.StartTime == other.StartTime &&
		l.EndTime == other.EndTime &&
		l.Subgroup == other.Subgroup
}

// Validate проверяет инварианты занятия
func (l *Lesson) Validate() error {
	var errs ValidationErrors

	if err := ValidateRequired("name", l.Name); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRange("day_of_week", l.DayOfWeek, 1, 7); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRange("lesson_number", l.LessonNumber, MinPeriod, MaxPeriod); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if !l.StartTime.Before(l.EndTime) {
		errs = append(errs, ValidationError{Field: "start_time", Message: "must be before end_time"})
	}
	if !l.WeekType.IsValid() {
		errs = append(errs, ValidationError{Field: "week_type", Message: fmt.Sprintf("unknown value %q", l.WeekType)})
	}
	if !l.Subgroup.IsValid() {
		errs = append(errs, ValidationError{Field: "subgroup", Message: "must be 0, 1 or 2"})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
