// Package reconcile сравнивает свежее расписание с сохраненным и применяет
// разницу в одной транзакции с записью в журнал изменений.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"schedparser/internal/model"
)

// detailLimit сколько изменений каждого вида попадает в лог
const detailLimit = 10

// Counts количество примененных изменений
type Counts struct {
	Added   int
	Updated int
	Deleted int
}

// Total возвращает суммарное количество изменений
func (c Counts) Total() int {
	return c.Added + c.Updated + c.Deleted
}

// Add складывает счетчики
func (c Counts) Add(other Counts) Counts {
	return Counts{
		Added:   c.Added + other.Added,
		Updated: c.Updated + other.Updated,
		Deleted: c.Deleted + other.Deleted,
	}
}

// Update пара сохраненного и нового занятия с одним ключом.
// New уже несет идентификатор сохраненного занятия.
type Update struct {
	Old model.Lesson
	New model.Lesson
}

// Plan изменения, которые нужно применить
type Plan struct {
	Inserts []model.Lesson
	Updates []Update
	Deletes []model.Lesson
}

// IsEmpty сообщает, что изменений нет
func (p Plan) IsEmpty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Counts возвращает размер плана
func (p Plan) Counts() Counts {
	return Counts{Added: len(p.Inserts), Updated: len(p.Updates), Deleted: len(p.Deletes)}
}

// Compare строит план по ключу (день, пара, подгруппа).
// Если в хранилище оказалось несколько занятий с одним ключом, лишние удаляются.
func Compare(existing, fresh []model.Lesson) Plan {
	var plan Plan

	persisted := make(map[model.LessonKey]model.Lesson, len(existing))
	for _, l := range existing {
		if _, dup := persisted[l.Key()]; dup {
			plan.Deletes = append(plan.Deletes, l)
			continue
		}
		persisted[l.Key()] = l
	}

	matched := make(map[model.LessonKey]bool, len(fresh))
	for _, l := range fresh {
		key := l.Key()
		if matched[key] {
			continue
		}
		matched[key] = true

		old, ok := persisted[key]
		if !ok {
			plan.Inserts = append(plan.Inserts, l)
			continue
		}
		if old.Equal(&l) {
			continue
		}
		l.LessonID = old.LessonID
		l.CreatedAt = old.CreatedAt
		plan.Updates = append(plan.Updates, Update{Old: old, New: l})
	}

	for key, old := range persisted {
		if !matched[key] {
			plan.Deletes = append(plan.Deletes, old)
		}
	}

	sort.Slice(plan.Inserts, func(i, j int) bool { return plan.Inserts[i].Key().Less(plan.Inserts[j].Key()) })
	sort.Slice(plan.Updates, func(i, j int) bool { return plan.Updates[i].New.Key().Less(plan.Updates[j].New.Key()) })
	sort.SliceStable(plan.Deletes, func(i, j int) bool {
		ki, kj := plan.Deletes[i].Key(), plan.Deletes[j].Key()
		if ki == kj {
			return plan.Deletes[i].LessonID < plan.Deletes[j].LessonID
		}
		return ki.Less(kj)
	})

	return plan
}

// Engine применяет планы к хранилищу
type Engine struct {
	logger *zap.Logger
}

// NewEngine создает новый движок сверки
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Reconcile сверяет занятия группы заданной чётности с сохраненными.
// Чтение выполняется на сессии, изменения в отдельной транзакции;
// при любой ошибке транзакция откатывается целиком.
func (e *Engine) Reconcile(ctx context.Context, sess model.ScheduleSession, groupID int, weekType model.WeekType, lessons []model.Lesson) (Counts, error) {
	existing, err := sess.GetExistingLessons(ctx, groupID, weekType)
	if err != nil {
		return Counts{}, storageError("load existing lessons", err)
	}

	plan := Compare(existing, lessons)
	if plan.IsEmpty() {
		e.logger.Debug("Schedule is up to date",
			zap.Int("group_id", groupID),
			zap.String("week_type", weekType.String()),
			zap.Int("lessons", len(lessons)))
		return Counts{}, nil
	}

	e.logger.Info("Applying schedule changes",
		zap.Int("group_id", groupID),
		zap.String("week_type", weekType.String()),
		zap.Int("inserts", len(plan.Inserts)),
		zap.Int("updates", len(plan.Updates)),
		zap.Int("deletes", len(plan.Deletes)))

	tx, err := sess.BeginTx(ctx)
	if err != nil {
		return Counts{}, storageError("begin transaction", err)
	}

	if err := e.apply(ctx, tx, groupID, plan); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("Failed to rollback schedule transaction",
				zap.Int("group_id", groupID),
				zap.String("week_type", weekType.String()),
				zap.Error(rbErr))
		}
		return Counts{}, err
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, storageError("commit transaction", err)
	}

	e.logDetails(groupID, weekType, plan)
	return plan.Counts(), nil
}

func (e *Engine) apply(ctx context.Context, tx model.ScheduleTx, groupID int, plan Plan) error {
	for i := range plan.Inserts {
		lesson := &plan.Inserts[i]
		id, err := tx.InsertLesson(ctx, lesson)
		if err != nil {
			return storageError("insert lesson "+lesson.Key().String(), err)
		}
		lesson.LessonID = id
		if err := tx.LogChange(ctx, model.NewChange(model.ChangeNew, id, groupID, nil, lesson)); err != nil {
			return storageError("log new lesson", err)
		}
	}

	for i := range plan.Updates {
		u := &plan.Updates[i]
		if err := tx.UpdateLesson(ctx, &u.New); err != nil {
			return storageError("update lesson "+u.New.Key().String(), err)
		}
		if err := tx.LogChange(ctx, model.NewChange(model.ChangeUpdate, u.New.LessonID, groupID, &u.Old, &u.New)); err != nil {
			return storageError("log lesson update", err)
		}
	}

	// запись о удалении пишется, пока строка еще существует
	for i := range plan.Deletes {
		old := &plan.Deletes[i]
		if err := tx.LogChange(ctx, model.NewChange(model.ChangeDelete, old.LessonID, groupID, old, nil)); err != nil {
			return storageError("log lesson delete", err)
		}
		if err := tx.DeleteLesson(ctx, old.LessonID); err != nil {
			return storageError("delete lesson "+old.Key().String(), err)
		}
	}

	return nil
}

func (e *Engine) logDetails(groupID int, weekType model.WeekType, plan Plan) {
	var added, updated, deleted []string
	for _, l := range plan.Inserts {
		added = append(added, describe(&l))
	}
	for _, u := range plan.Updates {
		updated = append(updated, fmt.Sprintf("%s: %s / %s -> %s / %s",
			u.New.Key(), u.Old.TeacherName, u.Old.CabinetNumber, u.New.TeacherName, u.New.CabinetNumber))
	}
	for _, l := range plan.Deletes {
		deleted = append(deleted, describe(&l))
	}

	e.logger.Info("Schedule changes applied",
		zap.Int("group_id", groupID),
		zap.String("week_type", weekType.String()),
		zap.Strings("added", truncate(added)),
		zap.Strings("updated", truncate(updated)),
		zap.Strings("deleted", truncate(deleted)),
		zap.Int("total", plan.Counts().Total()))
}

func describe(l *model.Lesson) string {
	return fmt.Sprintf("%s %s", l.Key(), l.Name)
}

func truncate(items []string) []string {
	if len(items) <= detailLimit {
		return items
	}
	out := append([]string(nil), items[:detailLimit]...)
	return append(out, fmt.Sprintf("... and %d more", len(items)-detailLimit))
}

func storageError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, model.ErrStorageFailure, err)
}
