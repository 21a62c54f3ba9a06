// Package main запускает синхронизацию расписаний учебных групп.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"schedparser/internal/batch"
	"schedparser/internal/config"
	"schedparser/internal/external/fetcher"
	"schedparser/internal/formatter"
	"schedparser/internal/infrastructure/cache"
	"schedparser/internal/infrastructure/health"
	"schedparser/internal/model"
	"schedparser/internal/service"
	"schedparser/internal/storage"
	"schedparser/internal/storage/memory"
	"schedparser/pkg/logger"
)

// dryRunGroupID идентификатор группы в памяти для -dry-run
const dryRunGroupID = 1

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := loadConfig(opts.dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	log := logger.New(cfg.LogLevel, cfg.AppDataDir)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.dryRun {
		return dryRun(ctx, cfg, opts, log)
	}

	db, err := storage.NewPostgres(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	if opts.migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Error("Migration failed", zap.Error(err))
			return 1
		}
	}

	switch {
	case opts.addGroup != "":
		return addGroup(ctx, cache.NewGroupStore(db, cfg.GroupCacheTTL, log), opts.addGroup, log)
	case opts.changes > 0:
		return printChanges(ctx, db, opts)
	case opts.daemon:
		return daemon(ctx, cfg, db, log)
	case opts.all || opts.groups != "":
		return syncOnce(ctx, cfg, db, opts, log)
	}
	return 0
}

// loadConfig читает окружение; без базы данных проверяются только прочие параметры
func loadConfig(offline bool) (*config.Config, error) {
	if !offline {
		return config.Load()
	}
	cfg := config.FromEnv()
	if err := cfg.ValidateOffline(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newOrchestrator(cfg *config.Config, store model.ScheduleStore, pages batch.PageFetcher, log *zap.Logger) *batch.Orchestrator {
	return batch.New(store, pages, batch.Options{
		MaxConcurrent: cfg.MaxConcurrentParses,
		Location:      cfg.Location(),
	}, log)
}

func syncOnce(ctx context.Context, cfg *config.Config, db *storage.Postgres, opts options, log *zap.Logger) int {
	store := cache.NewGroupStore(db, cfg.GroupCacheTTL, log)
	orch := newOrchestrator(cfg, store, fetcher.New(cfg, log), log)

	var results []model.ParseResult
	if opts.all {
		var err error
		results, err = orch.RunActive(ctx)
		if err != nil {
			log.Error("Failed to run active groups", zap.Error(err))
			return 1
		}
	} else {
		ids, err := parseGroupIDs(opts.groups)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		results = orch.Run(ctx, ids)
	}
	return printResults(results, orch.Metrics().LastRun)
}

func printResults(results []model.ParseResult, summary batch.Summary) int {
	for _, res := range results {
		fmt.Println(formatter.FormatResult(res))
	}
	fmt.Println(formatter.FormatSummary(summary))
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func daemon(ctx context.Context, cfg *config.Config, db *storage.Postgres, log *zap.Logger) int {
	store := cache.NewGroupStore(db, cfg.GroupCacheTTL, log)
	orch := newOrchestrator(cfg, store, fetcher.New(cfg, log), log)

	scheduler := service.NewScheduler(orch, cfg.SyncCron, cfg.Location(), log)
	if err := scheduler.Start(true); err != nil {
		log.Error("Failed to start scheduler", zap.Error(err))
		return 1
	}

	var hs *health.Server
	if cfg.HealthCheckEnabled {
		hs = health.NewHealthServer(cfg.HealthPort, log, db, orch)
		go func() {
			if err := hs.Start(); err != nil {
				log.Error("Health server stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutdown signal received")

	scheduler.Stop()
	if hs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Stop(shutdownCtx); err != nil {
			log.Warn("Failed to stop health server", zap.Error(err))
		}
	}
	log.Info("Daemon stopped", zap.String("cache", store.String()))
	return 0
}

func addGroup(ctx context.Context, groups cache.GroupSaver, spec string, log *zap.Logger) int {
	group, err := parseGroupSpec(spec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := groups.SaveGroup(ctx, group); err != nil {
		log.Error("Failed to save group", zap.Int("group_id", group.GroupID), zap.Error(err))
		return 1
	}
	fmt.Printf("group %d (%s) saved\n", group.GroupID, group.Name)
	return 0
}

func printChanges(ctx context.Context, db *storage.Postgres, opts options) int {
	ids, _ := parseGroupIDs(opts.groups)
	changes, err := db.RecentChanges(ctx, ids[0], opts.changes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(changes) == 0 {
		fmt.Printf("group %d: no changes\n", ids[0])
		return 0
	}
	for _, c := range changes {
		fmt.Println(formatter.FormatChange(c))
	}
	return 0
}

func dryRun(ctx context.Context, cfg *config.Config, opts options, log *zap.Logger) int {
	store := memory.New()
	url := opts.url
	var pages batch.PageFetcher = fetcher.New(cfg, log)
	if opts.file != "" {
		url = "file://" + opts.file
		pages = fileFetcher{path: opts.file}
	}
	store.AddGroup(model.GroupInfo{GroupID: dryRunGroupID, Name: opts.name, URL: url, IsActive: true})

	orch := newOrchestrator(cfg, store, pages, log)
	results := orch.Run(ctx, []int{dryRunGroupID})

	var lessons []*model.Lesson
	for _, wt := range []model.WeekType{model.WeekEven, model.WeekOdd} {
		stored := store.Lessons(dryRunGroupID, wt)
		for i := range stored {
			lessons = append(lessons, &stored[i])
		}
	}
	fmt.Print(formatter.FormatLessons(lessons))
	fmt.Println()
	return printResults(results, orch.Metrics().LastRun)
}
