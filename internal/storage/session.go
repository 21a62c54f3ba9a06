package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"schedparser/internal/model"
	"schedparser/internal/storage/repository"
)

// queries набор операций над занятиями и журналом поверх bun.IDB
type queries struct {
	*repository.LessonRepository
	*repository.ChangeRepository
}

func newQueries(db bun.IDB, logger *zap.Logger) queries {
	return queries{
		LessonRepository: repository.NewLessonRepository(db, logger),
		ChangeRepository: repository.NewChangeRepository(db, logger),
	}
}

// session держит одно соединение пула на время обработки группы
type session struct {
	queries
	conn   bun.Conn
	logger *zap.Logger
}

func newSession(conn bun.Conn, logger *zap.Logger) *session {
	return &session{
		queries: newQueries(conn, logger),
		conn:    conn,
		logger:  logger,
	}
}

// BeginTx открывает транзакцию на соединении сессии
func (s *session) BeginTx(ctx context.Context) (model.ScheduleTx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &scheduleTx{queries: newQueries(tx, s.logger), tx: tx}, nil
}

// Close возвращает соединение в пул
func (s *session) Close() error {
	return s.conn.Close()
}

type scheduleTx struct {
	queries
	tx bun.Tx
}

func (t *scheduleTx) Commit() error {
	return t.tx.Commit()
}

func (t *scheduleTx) Rollback() error {
	return t.tx.Rollback()
}
