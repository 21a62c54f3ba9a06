// Package batch запускает обработку расписаний групп с ограничением параллельности.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"schedparser/internal/model"
	"schedparser/internal/parser"
	"schedparser/internal/reconcile"
	"schedparser/internal/schedule"
)

// PageFetcher загружает страницу расписания по адресу
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options параметры оркестратора
type Options struct {
	MaxConcurrent int
	Location      *time.Location
	Now           func() time.Time
}

// Orchestrator обрабатывает группы: загрузка, разбор, сборка и сверка
type Orchestrator struct {
	store    model.ScheduleStore
	fetcher  PageFetcher
	builder  *schedule.Builder
	engine   *reconcile.Engine
	sem      *semaphore.Weighted
	limit    int
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
	metrics  *Metrics
}

// New создает новый оркестратор
func New(store model.ScheduleStore, fetcher PageFetcher, opts Options, logger *zap.Logger) *Orchestrator {
	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		builder:  schedule.NewBuilder(logger),
		engine:   reconcile.NewEngine(logger),
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    limit,
		location: loc,
		now:      now,
		logger:   logger,
		metrics:  &Metrics{},
	}
}

// Metrics возвращает текущие метрики
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Run обрабатывает группы параллельно, не более MaxConcurrent одновременно.
// Результаты возвращаются в порядке входного списка; ошибка одной группы
// не влияет на остальные.
func (o *Orchestrator) Run(ctx context.Context, groupIDs []int) []model.ParseResult {
	start := time.Now()
	o.logger.Info("Starting schedule batch",
		zap.Int("groups", len(groupIDs)),
		zap.Int("max_concurrent", o.limit))

	results := make([]model.ParseResult, len(groupIDs))
	var wg sync.WaitGroup
	for i, id := range groupIDs {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			results[i] = o.ParseGroup(ctx, id)
		}(i, id)
	}
	wg.Wait()

	summary := Summarize(results)
	summary.Duration = time.Since(start)
	o.metrics.finishRun(start, summary)

	o.logger.Info("Schedule batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("added", summary.Added),
		zap.Int("updated", summary.Updated),
		zap.Int("deleted", summary.Deleted),
		zap.Duration("duration", summary.Duration))

	return results
}

// RunActive обрабатывает все активные группы из хранилища
func (o *Orchestrator) RunActive(ctx context.Context) ([]model.ParseResult, error) {
	ids, err := o.store.GetActiveGroupIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active groups: %w: %w", model.ErrStorageFailure, err)
	}
	if len(ids) == 0 {
		o.logger.Warn("No active groups to process")
		return nil, nil
	}
	return o.Run(ctx, ids), nil
}

// ParseGroup обрабатывает одну группу, занимая слот семафора
func (o *Orchestrator) ParseGroup(ctx context.Context, groupID int) (res model.ParseResult) {
	start := time.Now()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		res = model.FailedResult(groupID, model.NewPipelineError(groupID, model.StageLookup, err))
		res.Duration = time.Since(start)
		o.metrics.begin()
		o.metrics.end(res)
		return res
	}
	defer o.sem.Release(1)

	o.metrics.begin()
	run := &groupRun{id: groupID, stage: model.StageLookup}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic while processing group",
				zap.Int("group_id", groupID),
				zap.String("stage", run.stage),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = model.FailedResult(groupID, &model.PipelineError{
				Code:    model.CodeInternal,
				Stage:   run.stage,
				GroupID: groupID,
				Err:     fmt.Errorf("panic: %v", r),
			})
		}
		if run.group != nil {
			res.GroupName = run.group.Name
		}
		res.Duration = time.Since(start)
		o.metrics.end(res)
	}()

	counts, err := o.process(ctx, run)
	if err != nil {
		pe := model.NewPipelineError(groupID, run.stage, err)
		o.logger.Error("Failed to process group",
			zap.Int("group_id", groupID),
			zap.String("stage", run.stage),
			zap.String("code", pe.Code),
			zap.Error(err))
		res = model.FailedResult(groupID, pe)
		res.LessonsAdded, res.LessonsUpdated, res.LessonsDeleted = counts.Added, counts.Updated, counts.Deleted
		return res
	}

	res = model.SuccessResult(groupID, counts.Added, counts.Updated, counts.Deleted)
	o.logger.Info("Group processed",
		zap.Int("group_id", groupID),
		zap.Int("added", counts.Added),
		zap.Int("updated", counts.Updated),
		zap.Int("deleted", counts.Deleted),
		zap.Duration("duration", time.Since(start)))
	return res
}

// groupRun состояние обработки одной группы
type groupRun struct {
	id    int
	stage string
	group *model.GroupInfo
}

func (o *Orchestrator) process(ctx context.Context, run *groupRun) (reconcile.Counts, error) {
	groupID := run.id

	run.stage = model.StageLookup
	group, err := o.store.GetGroupInfo(ctx, groupID)
	if err != nil {
		return reconcile.Counts{}, err
	}
	run.group = group

	run.stage = model.StageFetch
	page, err := o.fetcher.Fetch(ctx, group.URL)
	if err != nil {
		return reconcile.Counts{}, err
	}

	run.stage = model.StageExtract
	table, err := parser.ExtractTable(strings.NewReader(page))
	if err != nil {
		return reconcile.Counts{}, fmt.Errorf("failed to tokenize page: %w", err)
	}
	if len(table.Rows) == 0 {
		return reconcile.Counts{}, fmt.Errorf("%w at %s", model.ErrNoScheduleTable, group.URL)
	}
	if meta, err := parser.ExtractMeta(page); err == nil && !meta.MatchesGroup(group.Name) {
		o.logger.Warn("Page group label differs from group name",
			zap.Int("group_id", groupID),
			zap.String("group_name", group.Name),
			zap.String("page_label", meta.GroupLabel),
			zap.String("page_title", meta.Title))
	}

	run.stage = model.StageBuild
	built := o.builder.Build(groupID, table, o.now().In(o.location))

	run.stage = model.StageReconcile
	sess, err := o.store.Acquire(ctx)
	if err != nil {
		return reconcile.Counts{}, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			o.logger.Warn("Failed to close storage session", zap.Int("group_id", groupID), zap.Error(err))
		}
	}()

	var total reconcile.Counts
	for _, wt := range []model.WeekType{model.WeekEven, model.WeekOdd} {
		counts, err := o.engine.Reconcile(ctx, sess, groupID, wt, built.ByWeek(wt))
		if err != nil {
			return total, fmt.Errorf("%s week: %w", wt, err)
		}
		total = total.Add(counts)
	}
	return total, nil
}
