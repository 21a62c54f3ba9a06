// Package memory хранилище расписаний в памяти процесса.
// Используется для пробного прогона без базы данных и в тестах.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schedparser/internal/model"
)

// Операции, которые записываются в журнал вызовов
const (
	OpGetExisting = "get_existing"
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpLogChange   = "log_change"
	OpBegin       = "begin"
	OpCommit      = "commit"
	OpRollback    = "rollback"
)

// Store реализует model.ScheduleStore
type Store struct {
	mu       sync.Mutex
	groups   map[int]model.GroupInfo
	lessons  map[int64]model.Lesson
	changes  []model.ScheduleChange
	nextID   int64
	changeID int64
	calls    []string
	failures map[string]error
	sessions int
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		groups:   make(map[int]model.GroupInfo),
		lessons:  make(map[int64]model.Lesson),
		failures: make(map[string]error),
	}
}

// AddGroup регистрирует группу
func (s *Store) AddGroup(group model.GroupInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.GroupID] = group
}

// SaveGroup создает или обновляет группу
func (s *Store) SaveGroup(ctx context.Context, group *model.GroupInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.AddGroup(*group)
	return nil
}

// FailOn заставляет операцию op возвращать err; nil снимает ошибку
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// GetGroupInfo возвращает активную группу по идентификатору
func (s *Store) GetGroupInfo(_ context.Context, groupID int) (*model.GroupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok || !group.IsActive {
		return nil, fmt.Errorf("group %d: %w", groupID, model.ErrGroupNotFound)
	}
	return &group, nil
}

// GetActiveGroupIDs возвращает идентификаторы активных групп по возрастанию
func (s *Store) GetActiveGroupIDs(_ context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.groups))
	for id, g := range s.groups {
		if g.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Acquire открывает сессию
func (s *Store) Acquire(ctx context.Context) (model.ScheduleSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	return &session{queries: queries{store: s}}, nil
}

// OpenSessions возвращает количество незакрытых сессий
func (s *Store) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Lessons возвращает сохраненные занятия группы заданной чётности по порядку ключей
func (s *Store) Lessons(groupID int, weekType model.WeekType) []model.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLessons(groupID, weekType)
}

// Changes возвращает копию журнала изменений
func (s *Store) Changes() []model.ScheduleChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScheduleChange(nil), s.changes...)
}

// Calls возвращает журнал вызовов вида "insert:12"
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls очищает журнал вызовов
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Store) selectLessons(groupID int, weekType model.WeekType) []model.Lesson {
	var out []model.Lesson
	for _, l := range s.lessons {
		if l.GroupID == groupID && l.WeekType == weekType {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// record пишет вызов в журнал и возвращает подготовленную ошибку.
// Вызывается под блокировкой.
func (s *Store) record(op string, arg any) error {
	if arg != nil {
		s.calls = append(s.calls, fmt.Sprintf("%s:%v", op, arg))
	} else {
		s.calls = append(s.calls, op)
	}
	return s.failures[op]
}

// queries выполняет операции над хранилищем; undo заполняется только в транзакции
type queries struct {
	store *Store
	undo  *[]func()
}

func (q queries) remember(fn func()) {
	if q.undo != nil {
		*q.undo = append(*q.undo, fn)
	}
}

func (q queries) GetExistingLessons(ctx context.Context, groupID int, weekType model.WeekType) ([]model.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpGetExisting, fmt.Sprintf("%d/%s", groupID, weekType)); err != nil {
		return nil, err
	}
	return s.selectLessons(groupID, weekType), nil
}

func (q queries) InsertLesson(ctx context.Context, lesson *model.Lesson) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpInsert, lesson.Key()); err != nil {
		return 0, err
	}

	s.nextID++
	id := s.nextID
	stored := *lesson
	stored.LessonID = id
	now := time.Now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.lessons[id] = stored

	q.remember(func() { delete(s.lessons, id) })
	return id, nil
}

func (q queries) UpdateLesson(ctx context.Context, lesson *model.Lesson) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpUpdate, lesson.LessonID); err != nil {
		return err
	}

	prev, ok := s.lessons[lesson.LessonID]
	if !ok {
		return fmt.Errorf("lesson %d not found", lesson.LessonID)
	}
	updated := *lesson
	updated.CreatedAt = prev.CreatedAt
	updated.UpdatedAt = time.Now()
	s.lessons[lesson.LessonID] = updated

	q.remember(func() { s.lessons[prev.LessonID] = prev })
	return nil
}

func (q queries) DeleteLesson(ctx context.Context, lessonID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpDelete, lessonID); err != nil {
		return err
	}

	prev, ok := s.lessons[lessonID]
	if !ok {
		return nil
	}
	delete(s.lessons, lessonID)

	q.remember(func() { s.lessons[lessonID] = prev })
	return nil
}

func (q queries) LogChange(ctx context.Context, change *model.ScheduleChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpLogChange, fmt.Sprintf("%s/%d", change.ChangeType, change.LessonID)); err != nil {
		return err
	}
	if change.ChangeType == model.ChangeDelete {
		if _, ok := s.lessons[change.LessonID]; !ok {
			return fmt.Errorf("delete record for missing lesson %d", change.LessonID)
		}
	}

	s.changeID++
	stored := *change
	stored.ChangeID = s.changeID
	stored.ChangedAt = time.Now()
	s.changes = append(s.changes, stored)
	change.ChangeID = stored.ChangeID

	id := stored.ChangeID
	q.remember(func() {
		for i := range s.changes {
			if s.changes[i].ChangeID == id {
				s.changes = append(s.changes[:i], s.changes[i+1:]...)
				return
			}
		}
	})
	return nil
}

type session struct {
	queries
	closed bool
}

func (c *session) BeginTx(ctx context.Context) (model.ScheduleTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpBegin, nil); err != nil {
		return nil, err
	}
	t := &tx{}
	t.queries = queries{store: s, undo: &t.undo}
	return t, nil
}

func (c *session) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions--
	return nil
}

type tx struct {
	queries
	undo []func()
	done bool
}

func (t *tx) Commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if err := s.record(OpCommit, nil); err != nil {
		t.rollbackLocked()
		return err
	}
	t.done = true
	t.undo = nil
	return nil
}

func (t *tx) Rollback() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return nil
	}
	_ = s.record(OpRollback, nil)
	t.rollbackLocked()
	return nil
}

func (t *tx) rollbackLocked() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.done = true
}
