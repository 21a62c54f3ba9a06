package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// GroupRepository реализует интерфейс model.GroupRepository
type GroupRepository struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewGroupRepository создает новый репозиторий групп
func NewGroupRepository(db bun.IDB, logger *zap.Logger) *GroupRepository {
	return &GroupRepository{
		db:     db,
		logger: logger,
	}
}

// GetGroupInfo получает активную группу по ID. Неактивная группа не найдена.
func (r *GroupRepository) GetGroupInfo(ctx context.Context, groupID int) (*model.GroupInfo, error) {
	var group model.GroupInfo
	err := r.selectGroup(&group, groupID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %d: %w", groupID, model.ErrGroupNotFound)
		}
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}
	return &group, nil
}

func (r *GroupRepository) selectGroup(group *model.GroupInfo, groupID int) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(group).
		Where("group_id = ?", groupID).
		Where("is_active = ?", true)
}

// GetActiveGroupIDs получает идентификаторы активных групп
func (r *GroupRepository) GetActiveGroupIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := r.db.NewSelect().
		Model((*model.GroupInfo)(nil)).
		Column("group_id").
		Where("is_active = ?", true).
		Order("group_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get active groups: %w", err)
	}
	return ids, nil
}

// Upsert создает или обновляет группу
func (r *GroupRepository) Upsert(ctx context.Context, group *model.GroupInfo) error {
	_, err := r.db.NewInsert().
		Model(group).
		On("CONFLICT (group_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("url = EXCLUDED.url").
		Set("institution_id = EXCLUDED.institution_id").
		Set("department_id = EXCLUDED.department_id").
		Set("course = EXCLUDED.course").
		Set("is_active = EXCLUDED.is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert group %d: %w", group.GroupID, err)
	}
	return nil
}
