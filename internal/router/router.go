package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	authhandler "github.com/medbook/scheduling-api/internal/handler/auth"
	bookinghandler "github.com/medbook/scheduling-api/internal/handler/booking"
	doctorhandler "github.com/medbook/scheduling-api/internal/handler/doctor"
	healthhandler "github.com/medbook/scheduling-api/internal/handler/health"
	patienthandler "github.com/medbook/scheduling-api/internal/handler/patient"
	slothandler "github.com/medbook/scheduling-api/internal/handler/slot"
	"github.com/medbook/scheduling-api/internal/middleware"
	"github.com/medbook/scheduling-api/pkg/auth"
)

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MetricsPrefix  string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    *authhandler.Handler
	patientH *patienthandler.Handler
	doctorH  *doctorhandler.Handler
	slotH    *slothandler.Handler
	bookingH *bookinghandler.Handler
	healthH  *healthhandler.Handler
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(
	authMw *middleware.AuthMiddleware,
	authH *authhandler.Handler,
	patientH *patienthandler.Handler,
	doctorH *doctorhandler.Handler,
	slotH *slothandler.Handler,
	bookingH *bookinghandler.Handler,
	healthH *healthhandler.Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     authMw,
		authH:    authH,
		patientH: patientH,
		doctorH:  doctorH,
		slotH:    slotH,
		bookingH: bookingH,
		healthH:  healthH,
		metrics:  initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.RequestTimeout(config.RequestTimeout),
	)

	engine.Use(middleware.CORS(config.CORSConfig))
	engine.Use(middleware.Throttle(config.RateLimit, config.RateBurst))

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)

	// Patient-facing surface: booking lifecycle, slot browsing, own profile.
	patients := api.Group("")
	patients.Use(r.auth.Authenticate(), r.auth.RequireRole(auth.RolePatient))
	{
		r.patientH.RegisterPatientRoutes(patients)
		r.doctorH.RegisterPatientRoutes(patients)
		r.slotH.RegisterPatientRoutes(patients)
		r.bookingH.RegisterPatientRoutes(patients)
	}

	// Doctor-facing surface: calendar management, triage review, patient
	// administration.
	doctors := api.Group("/manage")
	doctors.Use(r.auth.Authenticate(), r.auth.RequireRole(auth.RoleDoctor))
	{
		r.patientH.RegisterDoctorRoutes(doctors)
		r.doctorH.RegisterDoctorRoutes(doctors)
		r.slotH.RegisterDoctorRoutes(doctors)
		r.bookingH.RegisterDoctorRoutes(doctors)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
