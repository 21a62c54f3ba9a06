package model

import "context"

// LessonQueries операции над занятиями и журналом, доступные и на
// соединении, и внутри транзакции
type LessonQueries interface {
	GetExistingLessons(ctx context.Context, groupID int, weekType WeekType) ([]Lesson, error)
	InsertLesson(ctx context.Context, lesson *Lesson) (int64, error)
	UpdateLesson(ctx context.Context, lesson *Lesson) error
	DeleteLesson(ctx context.Context, lessonID int64) error
	LogChange(ctx context.Context, change *ScheduleChange) error
}

// ScheduleTx транзакция над расписанием
type ScheduleTx interface {
	LessonQueries
	Commit() error
	Rollback() error
}

// ScheduleSession выделенное соединение с хранилищем
type ScheduleSession interface {
	LessonQueries
	BeginTx(ctx context.Context) (ScheduleTx, error)
	Close() error
}

// GroupRepository определяет интерфейс для чтения групп.
// GetGroupInfo возвращает ошибку, оборачивающую ErrGroupNotFound, если группы нет.
type GroupRepository interface {
	GetGroupInfo(ctx context.Context, groupID int) (*GroupInfo, error)
	GetActiveGroupIDs(ctx context.Context) ([]int, error)
}

// ScheduleStore хранилище расписаний
type ScheduleStore interface {
	GroupRepository
	Acquire(ctx context.Context) (ScheduleSession, error)
}
