// Package repository содержит реализации репозиториев для работы с базой данных.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// LessonRepository работает с таблицей занятий. Принимает любой bun.IDB,
// поэтому одинаково работает на соединении и внутри транзакции.
type LessonRepository struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewLessonRepository создает новый репозиторий занятий
func NewLessonRepository(db bun.IDB, logger *zap.Logger) *LessonRepository {
	return &LessonRepository{
		db:     db,
		logger: logger,
	}
}

// GetExistingLessons получает сохраненные занятия группы заданной чётности
func (r *LessonRepository) GetExistingLessons(ctx context.Context, groupID int, weekType model.WeekType) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.db.NewSelect().
		Model(&lessons).
		Where("group_id = ?", groupID).
		Where("week_type = ?", weekType).
		Order("day_of_week", "lesson_number", "subgroup", "lesson_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get lessons for group %d (%s): %w", groupID, weekType, err)
	}
	return lessons, nil
}

// InsertLesson добавляет занятие и возвращает его идентификатор
func (r *LessonRepository) InsertLesson(ctx context.Context, lesson *model.Lesson) (int64, error) {
	_, err := r.db.NewInsert().
		Model(lesson).
		Returning("lesson_id, date_added, last_updated").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lesson: %w", err)
	}
	return lesson.LessonID, nil
}

// UpdateLesson обновляет содержимое занятия по идентификатору
func (r *LessonRepository) UpdateLesson(ctx context.Context, lesson *model.Lesson) error {
	lesson.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(lesson).
		Column("name", "lesson_date", "start_time", "end_time", "teacher_name",
			"cabinet_number", "lesson_type", "raw_text", "last_updated").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update lesson %d: %w", lesson.LessonID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lesson %d not found", lesson.LessonID)
	}
	return nil
}

// DeleteLesson удаляет занятие
func (r *LessonRepository) DeleteLesson(ctx context.Context, lessonID int64) error {
	_, err := r.db.NewDelete().
		Model((*model.Lesson)(nil)).
		Where("lesson_id = ?", lessonID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete lesson %d: %w", lessonID, err)
	}
	return nil
}
