package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/medbook/scheduling-api/internal/config"
	authhandler "github.com/medbook/scheduling-api/internal/handler/auth"
	bookinghandler "github.com/medbook/scheduling-api/internal/handler/booking"
	doctorhandler "github.com/medbook/scheduling-api/internal/handler/doctor"
	healthhandler "github.com/medbook/scheduling-api/internal/handler/health"
	patienthandler "github.com/medbook/scheduling-api/internal/handler/patient"
	slothandler "github.com/medbook/scheduling-api/internal/handler/slot"
	"github.com/medbook/scheduling-api/internal/middleware"
	"github.com/medbook/scheduling-api/internal/repository/postgres"
	"github.com/medbook/scheduling-api/internal/router"
	authsvc "github.com/medbook/scheduling-api/internal/service/auth"
	bookingsvc "github.com/medbook/scheduling-api/internal/service/booking"
	doctorsvc "github.com/medbook/scheduling-api/internal/service/doctor"
	patientsvc "github.com/medbook/scheduling-api/internal/service/patient"
	prioritysvc "github.com/medbook/scheduling-api/internal/service/priority"
	slotsvc "github.com/medbook/scheduling-api/internal/service/slot"
	"github.com/medbook/scheduling-api/pkg/auth"
	"github.com/medbook/scheduling-api/pkg/clock"
	"github.com/medbook/scheduling-api/pkg/logger"
	"github.com/medbook/scheduling-api/pkg/metrics"
	"github.com/medbook/scheduling-api/pkg/security"
)

const bcryptCost = 12

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

	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	questionnaireRepo := postgres.NewQuestionnaireRepository(db)

	jwtService := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour,
	)
	hasher := security.NewBcryptHasher(bcryptCost)
	clk := clock.New()
	m := metrics.NewMetrics("medbook", "scheduling")

	patientService := patientsvc.NewService(
		patientRepo, doctorRepo, bookingRepo, questionnaireRepo,
		hasher, clk, cfg.Scheduling.DefaultBookingWindowDays,
	)
	priorityService := prioritysvc.NewService(
		slotRepo, bookingRepo, patientRepo, clk, m,
		cfg.Scheduling.ScarcityDaysAhead,
		time.Duration(cfg.Scheduling.ScarcityCacheSeconds)*time.Second,
	)
	slotService := slotsvc.NewService(slotRepo, doctorRepo, patientRepo, priorityService, clk)
	doctorService := doctorsvc.NewService(doctorRepo)
	authService := authsvc.NewService(patientRepo, doctorRepo, hasher, jwtService)
	bookingService := bookingsvc.NewService(
		bookingRepo, slotRepo, doctorRepo, questionnaireRepo,
		patientService, priorityService, m, clk,
		bookingsvc.Config{
			LateCancellationHours: cfg.Scheduling.LateCancellationHours,
			WindowDays:            cfg.Scheduling.DefaultBookingWindowDays,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	r := router.NewRouter(
		authMiddleware,
		authhandler.NewHandler(authService, patientService),
		patienthandler.NewHandler(patientService),
		doctorhandler.NewHandler(doctorService, priorityService),
		slothandler.NewHandler(slotService, priorityService, clk),
		bookinghandler.NewHandler(bookingService),
		healthhandler.NewHandler(db),
		router.RouterConfig{
			RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:      cfg.Server.RateLimitBurst,
			CORSConfig:     middleware.DefaultCORSConfig(),
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix:  "scheduling_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited")
}
