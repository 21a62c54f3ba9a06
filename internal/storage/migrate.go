package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// Migrate создает таблицы и индексы, если их еще нет
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tables := createTableQueries(tx)
		for _, q := range tables {
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table %s: %w", q.GetTableName(), err)
			}
		}
		for _, q := range createIndexQueries(tx) {
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		p.logger.Info("Database schema is up to date", zap.Int("tables", len(tables)))
		return nil
	})
}

func createTableQueries(db bun.IDB) []*bun.CreateTableQuery {
	models := []interface{}{
		(*model.GroupInfo)(nil),
		(*model.Lesson)(nil),
		(*model.ScheduleChange)(nil),
	}
	queries := make([]*bun.CreateTableQuery, 0, len(models))
	for _, m := range models {
		queries = append(queries, db.NewCreateTable().Model(m).IfNotExists())
	}
	return queries
}

func createIndexQueries(db bun.IDB) []*bun.CreateIndexQuery {
	return []*bun.CreateIndexQuery{
		// естественный ключ занятия уникален в пределах группы и чётности
		db.NewCreateIndex().
			Model((*model.Lesson)(nil)).
			Index("lessons_natural_key_idx").
			Unique().
			IfNotExists().
			Column("group_id", "week_type", "day_of_week", "lesson_number", "subgroup"),
		db.NewCreateIndex().
			Model((*model.ScheduleChange)(nil)).
			Index("schedule_changes_group_idx").
			IfNotExists().
			Column("group_id", "changed_at"),
	}
}
