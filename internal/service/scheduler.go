// Package service содержит планировщик периодической синхронизации расписаний.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

// Runner запускает обработку всех активных групп
type Runner interface {
	RunActive(ctx context.Context) ([]model.ParseResult, error)
}

// Scheduler запускает синхронизацию по cron-выражению.
// Запуски не перекрываются: пока идет предыдущий, следующий пропускается.
type Scheduler struct {
	runner  Runner
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	entryID cron.EntryID
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler создает новый планировщик
func NewScheduler(runner Runner, spec string, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	cl := cronLogger{logger: logger}
	return &Scheduler{
		runner:  runner,
		spec:    spec,
		timeout: 30 * time.Minute,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start регистрирует задачу и запускает cron. При runNow первая
// синхронизация выполняется сразу в отдельной горутине.
func (s *Scheduler) Start(runNow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	id, err := s.cron.AddFunc(s.spec, s.sync)
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.spec, err)
	}
	s.entryID = id

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started",
		zap.String("cron_expression", s.spec),
		zap.Time("next_run", s.cron.Entry(id).Next))

	if runNow {
		job := s.cron.Entry(id).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop останавливает планировщик и ждет завершения текущей синхронизации
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.running = false
	s.logger.Info("Scheduler stopped")
}

// NextRun возвращает время следующего запуска
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunNow выполняет синхронизацию синхронно
func (s *Scheduler) RunNow(ctx context.Context) ([]model.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.runner.RunActive(ctx)
}

func (s *Scheduler) sync() {
	s.logger.Info("Executing scheduled sync")
	start := time.Now()

	results, err := s.RunNow(s.ctx)
	if err != nil {
		s.logger.Error("Scheduled sync failed", zap.Error(err))
		return
	}

	failed := 0
	for _, r := range results {
		if !r.IsSuccessful() {
			failed++
		}
	}
	s.logger.Info("Scheduled sync finished",
		zap.Int("groups", len(results)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// cronLogger передает сообщения cron в zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}
