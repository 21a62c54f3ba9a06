package model

import (
	"time"

	"github.com/uptrace/bun"
)

// ChangeType представляет вид изменения расписания
type ChangeType string

const (
	ChangeNew    ChangeType = "new"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// IsValid проверяет валидность вида изменения
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeNew, ChangeUpdate, ChangeDelete:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление вида изменения
func (c ChangeType) String() string {
	return string(c)
}

// LessonSnapshot содержимое занятия, сохраняемое в журнал изменений
type LessonSnapshot struct {
	Name          string    `json:"name"`
	TeacherName   string    `json:"teacher_name,omitempty"`
	CabinetNumber string    `json:"cabinet_number,omitempty"`
	Subgroup      Subgroup  `json:"subgroup"`
	DayOfWeek     int       `json:"day_of_week"`
	LessonNumber  int       `json:"lesson_number"`
	StartTime     ClockTime `json:"start_time"`
	EndTime       ClockTime `json:"end_time"`
	WeekType      WeekType  `json:"week_type"`
}

// SnapshotOf снимает содержимое занятия
func SnapshotOf(l *Lesson) *LessonSnapshot {
	if l == nil {
		return nil
	}
	return &LessonSnapshot{
		Name:          l.Name,
		TeacherName:   l.TeacherName,
		CabinetNumber: l.CabinetNumber,
		Subgroup:      l.Subgroup,
		DayOfWeek:     l.DayOfWeek,
		LessonNumber:  l.LessonNumber,
		StartTime:     l.StartTime,
		EndTime:       l.EndTime,
		WeekType:      l.WeekType,
	}
}

// ScheduleChange запись журнала изменений расписания.
// Для new заполнен только NewData, для delete только OldData.
type ScheduleChange struct {
	bun.BaseModel `bun:"table:schedule_changes,alias:sc"`

	ChangeID   int64           `bun:"change_id,pk,autoincrement" json:"change_id"`
	LessonID   int64           `bun:"lesson_id,notnull" json:"lesson_id"`
	GroupID    int             `bun:"group_id,notnull" json:"group_id"`
	ChangeType ChangeType      `bun:"change_type,notnull" json:"change_type"`
	OldData    *LessonSnapshot `bun:"old_data,type:jsonb,nullzero" json:"old_data,omitempty"`
	NewData    *LessonSnapshot `bun:"new_data,type:jsonb,nullzero" json:"new_data,omitempty"`
	ChangedAt  time.Time       `bun:"changed_at,nullzero,notnull,default:current_timestamp" json:"changed_at"`
}

// NewChange создает запись журнала
func NewChange(kind ChangeType, lessonID int64, groupID int, oldLesson, newLesson *Lesson) *ScheduleChange {
	return &ScheduleChange{
		LessonID:   lessonID,
		GroupID:    groupID,
		ChangeType: kind,
		OldData:    SnapshotOf(oldLesson),
		NewData:    SnapshotOf(newLesson),
	}
}
