package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// ChangeRepository пишет и читает журнал изменений расписания
type ChangeRepository struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewChangeRepository создает новый репозиторий журнала
func NewChangeRepository(db bun.IDB, logger *zap.Logger) *ChangeRepository {
	return &ChangeRepository{
		db:     db,
		logger: logger,
	}
}

// LogChange добавляет запись в журнал
func (r *ChangeRepository) LogChange(ctx context.Context, change *model.ScheduleChange) error {
	if !change.ChangeType.IsValid() {
		return fmt.Errorf("invalid change type %q", change.ChangeType)
	}
	_, err := r.db.NewInsert().
		Model(change).
		Returning("change_id, changed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to log %s change for lesson %d: %w", change.ChangeType, change.LessonID, err)
	}
	return nil
}

// GetRecentChanges возвращает последние записи журнала группы, новые первыми
func (r *ChangeRepository) GetRecentChanges(ctx context.Context, groupID, limit int) ([]model.ScheduleChange, error) {
	var changes []model.ScheduleChange
	q := r.db.NewSelect().
		Model(&changes).
		Where("group_id = ?", groupID).
		Order("changed_at DESC", "change_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get changes for group %d: %w", groupID, err)
	}
	return changes, nil
}
