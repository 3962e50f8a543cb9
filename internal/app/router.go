package app

import (
	"fsmbus/pkg/health"
	"fsmbus/pkg/logger"
	"fsmbus/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(logger.CorrelationMiddleware(), logger.RequestLogger(a.logger), gin.Recovery())

	readiness := health.NewRegistry(a.health.Checkers()...)

	// Health checks (Kubernetes-style)
	engine.GET("/health/live", health.LivenessHandler())
	engine.GET("/health/ready", health.ReadinessHandler(readiness, health.DefaultTimeout))
	engine.GET("/health/messaging", health.IndicatorHandler(a.health.IsHealthy, health.DefaultTimeout))

	// Prometheus metrics
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return engine
}
