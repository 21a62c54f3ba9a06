// Package cache кэширует сведения о группах поверх хранилища расписаний.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// GroupStore оборачивает хранилище и кэширует GetGroupInfo на заданное время.
// Отсутствующие группы не кэшируются.
type GroupStore struct {
	model.ScheduleStore
	cache  *gocache.Cache
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ model.ScheduleStore = (*GroupStore)(nil)

// NewGroupStore создает кэширующее хранилище
func NewGroupStore(store model.ScheduleStore, ttl time.Duration, logger *zap.Logger) *GroupStore {
	if ttl <= 0 {
		logger.Warn("Invalid GROUP_CACHE_TTL, using default", zap.Duration("default", 10*time.Minute))
		ttl = 10 * time.Minute
	}
	return &GroupStore{
		ScheduleStore: store,
		cache:         gocache.New(ttl, 2*ttl),
		logger:        logger,
	}
}

// GetGroupInfo возвращает группу из кэша или из хранилища
func (s *GroupStore) GetGroupInfo(ctx context.Context, groupID int) (*model.GroupInfo, error) {
	key := cacheKey(groupID)
	if v, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		group := v.(model.GroupInfo)
		return &group, nil
	}
	s.misses.Add(1)

	group, err := s.ScheduleStore.GetGroupInfo(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, *group)
	s.logger.Debug("Group info cached", zap.Int("group_id", groupID), zap.String("name", group.Name))
	return group, nil
}

// GroupSaver сохраняет сведения о группе
type GroupSaver interface {
	SaveGroup(ctx context.Context, group *model.GroupInfo) error
}

// SaveGroup сохраняет группу в хранилище и сбрасывает её запись в кэше
func (s *GroupStore) SaveGroup(ctx context.Context, group *model.GroupInfo) error {
	saver, ok := s.ScheduleStore.(GroupSaver)
	if !ok {
		return fmt.Errorf("store %T cannot save groups", s.ScheduleStore)
	}
	if err := saver.SaveGroup(ctx, group); err != nil {
		return err
	}
	s.Invalidate(group.GroupID)
	return nil
}

// Invalidate удаляет группу из кэша
func (s *GroupStore) Invalidate(groupID int) {
	s.cache.Delete(cacheKey(groupID))
}

// Stats возвращает количество попаданий и промахов
func (s *GroupStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Len возвращает количество записей в кэше
func (s *GroupStore) Len() int {
	return s.cache.ItemCount()
}

func cacheKey(groupID int) string {
	return "group:" + strconv.Itoa(groupID)
}

// String описывает состояние кэша для логов
func (s *GroupStore) String() string {
	hits, misses := s.Stats()
	return fmt.Sprintf("groups=%d hits=%d misses=%d", s.Len(), hits, misses)
}
