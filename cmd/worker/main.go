package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"timeclock/internal/attendance"
	"timeclock/internal/config"
	"timeclock/internal/jobs"
	"timeclock/internal/logging"
	"timeclock/internal/payroll"
	"timeclock/internal/queue"
	"timeclock/internal/store"
)

type repository interface {
	attendance.Repository
	payroll.Repository
}

// Worker schedules rebuild and payroll jobs and consumes them from the queue.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.Production(), cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var repo repository
	switch cfg.StoreBackend {
	case "memory":
		repo = store.NewMemory()
		log.Warn("using in-memory store; jobs see only this process's data")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repo = store.NewPostgres(db)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Warn("redis not reachable; consumer will keep retrying", "addr", cfg.RedisAddr)
		}
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log.With("component", "queue"))
	}

	att := attendance.NewService(repo,
		attendance.WithLogger(log.With("component", "attendance")),
		attendance.WithDefaultLookback(cfg.LookbackDays),
	)
	pay := payroll.NewService(repo, cfg.Payroll(), log.With("component", "payroll"))

	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}

	sched := jobs.NewScheduler(q, log.With("component", "scheduler"), true,
		jobs.RebuildEvery(cfg.RebuildInterval, cfg.LookbackDays),
		jobs.PayrollDueEvery(cfg.PayrollInterval),
	)
	runner := jobs.NewRunner(att, pay, log.With("component", "runner"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	log.Info("worker started", "queue", cfg.QueueBackend, "store", cfg.StoreBackend)
	runner.Run(ctx, messages)
	wg.Wait()
	log.Info("worker stopped")
	return nil
}
