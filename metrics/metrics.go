// Package metrics Prometheus 指标和 OpenTelemetry 追踪
package metrics

import (
	"context"
	"errors"

	"spice/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// NewtonIterations 每次求解的迭代次数
	NewtonIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spice_newton_iterations",
		Help:    "Newton-Raphson iterations per solve",
		Buckets: prometheus.ExponentialBuckets(1, 2, 9),
	}, []string{"analysis"})

	// NewtonPasses 求解结果计数
	NewtonPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spice_newton_passes_total",
		Help: "Newton-Raphson passes by analysis and result",
	}, []string{"analysis", "result"})

	// SweepPoints 扫描点计数
	SweepPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spice_sweep_points_total",
		Help: "Sweep points visited by execution mode",
	}, []string{"mode"})

	// PoolJobs 线程池任务计数
	PoolJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spice_pool_jobs_total",
		Help: "Parallel sweep jobs by result",
	}, []string{"result"})
)

var tracer = otel.Tracer("spice")

// Result 错误分类标签
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrPause):
		return "paused"
	case errors.Is(err, types.ErrIterationLimit):
		return "iteration_limit"
	case errors.Is(err, types.ErrSingular):
		return "singular"
	case errors.Is(err, types.ErrFloatingPoint):
		return "floating_point"
	case errors.Is(err, types.ErrBadParam):
		return "bad_param"
	}
	return "error"
}

// Start 开始追踪区间
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End 按错误设置状态后结束区间, 暂停不算错误
func End(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, types.ErrPause):
		span.SetAttributes(attribute.Bool("spice.paused", true))
		span.SetStatus(codes.Ok, "paused")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
