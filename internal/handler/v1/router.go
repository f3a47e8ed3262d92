package v1

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/config"
	"github.com/remedyhq/remedy/pkg/metrics"
)

type Handlers struct {
	Patients  *PatientHandler
	Routines  *RoutineHandler
	Schedules *ScheduleHandler
}

// NewRouter wires middleware and versioned routes.
func NewRouter(cfg *config.Config, h Handlers, m *metrics.Collector, log *zap.Logger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(requestMetrics(m))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": cfg.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")
	{
		api.POST("/patients", h.Patients.Create)
		api.GET("/patients", h.Patients.List)
		api.GET("/patients/:id", h.Patients.Get)
		api.GET("/patients/:id/schedule", h.Schedules.Get)

		api.POST("/routines", h.Routines.Create)
		api.GET("/routines", h.Routines.List)
		api.GET("/routines/:id", h.Routines.Get)
		api.PATCH("/routines/:id", h.Routines.Update)
		api.DELETE("/routines/:id", h.Routines.Delete)
	}

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func requestMetrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.InFlightGauge.Inc()
		c.Next()
		m.InFlightGauge.Dec()

		// FullPath keeps label cardinality bounded; raw URLs would not.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
