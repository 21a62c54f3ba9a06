// Package storage содержит работу с базой данных.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"schedparser/internal/config"
	"schedparser/internal/model"
	"schedparser/internal/storage/repository"
)

var _ model.ScheduleStore = (*Postgres)(nil)

// Postgres представляет подключение к PostgreSQL и реализует model.ScheduleStore
type Postgres struct {
	db     *bun.DB
	groups *repository.GroupRepository
	logger *zap.Logger
}

// NewPostgres создает новое подключение к PostgreSQL с retry логикой
func NewPostgres(cfg *config.Config, logger *zap.Logger) (*Postgres, error) {
	maxRetries := cfg.DBConnectTries
	if maxRetries < 1 {
		maxRetries = 1
	}
	retryDelay := cfg.DBConnectPause

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		logger.Info("Attempting to connect to database",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries))

		// Создаем подключение к PostgreSQL
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseURL)))

		// Настраиваем пул соединений
		sqldb.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.DBConnLifetime)
		sqldb.SetConnMaxIdleTime(1 * time.Minute)

		db := bun.NewDB(sqldb, pgdialect.New())

		// Добавляем отладку в режиме разработки
		if logger.Core().Enabled(zap.DebugLevel) {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = db.PingContext(pingCtx)
		pingCancel()

		if lastErr != nil {
			logger.Warn("Failed to connect to database",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))

			if err := db.Close(); err != nil {
				logger.Warn("Failed to close database connection", zap.Error(err))
			}

			if attempt == maxRetries {
				break
			}

			logger.Info("Retrying connection",
				zap.Duration("delay", retryDelay))
			time.Sleep(retryDelay)
			continue
		}

		logger.Info("Connected to PostgreSQL database with Bun ORM",
			zap.Int("attempt", attempt))

		return &Postgres{
			db:     db,
			groups: repository.NewGroupRepository(db, logger),
			logger: logger,
		}, nil
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w: %w",
		maxRetries, model.ErrStorageFailure, lastErr)
}

// GetGroupInfo получает группу по ID
func (p *Postgres) GetGroupInfo(ctx context.Context, groupID int) (*model.GroupInfo, error) {
	return p.groups.GetGroupInfo(ctx, groupID)
}

// GetActiveGroupIDs получает идентификаторы активных групп
func (p *Postgres) GetActiveGroupIDs(ctx context.Context) ([]int, error) {
	return p.groups.GetActiveGroupIDs(ctx)
}

// SaveGroup создает или обновляет группу
func (p *Postgres) SaveGroup(ctx context.Context, group *model.GroupInfo) error {
	return p.groups.Upsert(ctx, group)
}

// RecentChanges возвращает последние записи журнала изменений группы
func (p *Postgres) RecentChanges(ctx context.Context, groupID, limit int) ([]model.ScheduleChange, error) {
	return repository.NewChangeRepository(p.db, p.logger).GetRecentChanges(ctx, groupID, limit)
}

// Acquire выделяет соединение из пула под сессию одной группы
func (p *Postgres) Acquire(ctx context.Context) (model.ScheduleSession, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w: %w", model.ErrStorageFailure, err)
	}
	return newSession(conn, p.logger), nil
}

// Ping проверяет доступность базы данных
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Stats возвращает статистику пула соединений
func (p *Postgres) Stats() sql.DBStats {
	return p.db.DB.Stats()
}

// Close закрывает соединение с базой данных
func (p *Postgres) Close() error {
	return p.db.Close()
}
