package main

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding"
)

// newRouter 注册路由；metricsPath 为空时不暴露指标
func newRouter(logger *zap.Logger, b *binding.Binder, ejb *ColorEjb, metricsPath string, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()

	// 请求日志，RFC3339 UTC 时间
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	// panic 记录到错误日志，包含堆栈
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(binding.Middleware(b))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	ctrl := &ColorController{
		binder: b,
		ejb:    &colorEjbProxy{ColorEjb: ejb},
		logger: logger,
	}
	color := router.Group("/color")
	{
		color.GET("/basic", ctrl.GetColorForm)
		color.POST("/basic", ctrl.ProcessColorFormBasic)
		color.GET("/ejb", ctrl.GetColorForm)
		color.POST("/ejb", ctrl.ProcessColorFormWithEjb)
	}

	if metricsPath != "" {
		router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}
