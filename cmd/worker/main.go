package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medbook/scheduling-api/internal/config"
	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/internal/repository/postgres"
	prioritysvc "github.com/medbook/scheduling-api/internal/service/priority"
	"github.com/medbook/scheduling-api/pkg/clock"
	"github.com/medbook/scheduling-api/pkg/logger"
	"github.com/medbook/scheduling-api/pkg/messaging/redis"
	"github.com/medbook/scheduling-api/pkg/metrics"
	"github.com/medbook/scheduling-api/pkg/worker"
)

const releaseSweepInterval = 15 * time.Minute

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load config")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: time.Duration(cfg.Redis.RetryBackoffMS) * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}

	outboxRepo := postgres.NewOutboxRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)

	m := metrics.NewMetrics("medbook", "scheduling_worker")
	clk := clock.New()

	priorityService := prioritysvc.NewService(
		slotRepo, bookingRepo, patientRepo, clk, m,
		cfg.Scheduling.ScarcityDaysAhead,
		time.Duration(cfg.Scheduling.ScarcityCacheSeconds)*time.Second,
	)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Worker.BatchSize,
		PollInterval:  time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		RetryAttempts: cfg.Worker.MaxRetries,
		RetryDelay:    time.Second,
		Retention:     time.Duration(cfg.Worker.RetentionDays) * 24 * time.Hour,
	}, log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)
	go releaseReservedLoop(ctx, doctorRepo, priorityService, cfg.Scheduling.ReservedReleaseHoursAhead, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker")
	cancel()
}

// releaseReservedLoop periodically returns unclaimed urgent-reserve slots to
// the general pool once their start time is within hoursAhead.
func releaseReservedLoop(
	ctx context.Context,
	doctors repository.DoctorRepository,
	priority *prioritysvc.Service,
	hoursAhead int,
	log *logger.Logger,
) {
	ticker := time.NewTicker(releaseSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			releaseReserved(ctx, doctors, priority, hoursAhead, log)
		}
	}
}

func releaseReserved(
	ctx context.Context,
	doctors repository.DoctorRepository,
	priority *prioritysvc.Service,
	hoursAhead int,
	log *logger.Logger,
) {
	page := &model.Pagination{Page: 1, PageSize: 100}
	for {
		batch, err := doctors.List(ctx, page)
		if err != nil {
			log.Error(err, "failed to list doctors for reserve release")
			return
		}
		if len(batch) == 0 {
			return
		}

		for _, doc := range batch {
			released, err := priority.ReleaseUnused(ctx, doc.ID, hoursAhead)
			if err != nil {
				log.Error(err, "failed to release reserved slots", "doctor_id", doc.ID.String())
				continue
			}
			if released > 0 {
				log.Info("released reserved slots", "doctor_id", doc.ID.String(), "count", released)
			}
		}

		if len(batch) < page.PageSize {
			return
		}
		page.Page++
	}
}
