// Package parallel 在线程池上并行执行扫描
package parallel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"spice/ckt"
	"spice/logging"
	"spice/metrics"
	"spice/pool"
	"spice/sweep"
	"spice/types"
)

// Executor 并行扫描执行器
//
// 每个线程持有电路的独立克隆, 结果按扫描点序号写入 Sink, 与执行顺序无关。
// 并行扫描不支持暂停, ctx 取消后停止派发并返回错误。
type Executor struct {
	Threads  int // 0 时使用任务的线程数
	Callback sweep.PointCallback
	Logger   *slog.Logger
}

type worker struct {
	c      *ckt.Circuit
	params []ckt.Param
}

// Run 执行扫描, 点数或线程数不足时退回顺序驱动
func (e *Executor) Run(ctx context.Context, c *ckt.Circuit, job *ckt.Job) (err error) {
	log := logging.OrDefault(e.Logger)
	threads := e.Threads
	if threads <= 0 {
		threads = job.Threads
	}
	d := &sweep.Driver{Circuit: c, Job: job, Callback: e.Callback, Logger: e.Logger}
	points, err := d.Enumerate()
	if err != nil {
		return err
	}
	if len(points) <= 1 || threads < 2 {
		return d.Run(ctx, false)
	}
	grids, err := d.Grids()
	if err != nil {
		return err
	}
	params, err := sweep.Params(c, job.Levels)
	if err != nil {
		return err
	}
	saved := make([]float64, len(params))
	for i, p := range params {
		saved[i] = p.Get()
	}
	defer func() {
		for i, p := range params {
			p.Set(saved[i])
		}
	}()

	nw := min(threads, len(points)-1)
	ctx, span := metrics.Start(ctx, "parallel.run",
		attribute.String("spice.circuit", c.Name),
		attribute.String("spice.job", job.ID),
		attribute.Int("spice.points", len(points)),
		attribute.Int("spice.threads", nw))
	defer func() { metrics.End(span, err) }()

	workers := make([]*worker, nw)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			cl := c.Clone()
			ps, err := sweep.Params(cl, job.Levels)
			if err != nil {
				return err
			}
			workers[i] = &worker{c: cl, params: ps}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if job.Sink != nil {
		if err := job.Sink.Begin(len(points), c.Names()); err != nil {
			return err
		}
	}
	log.Info("parallel sweep start", "circuit", c.Name, "job", job.ID, "points", len(points), "threads", nw)

	p := pool.New(nw)
	defer p.Close()
	for i, w := range workers[:nw-1] {
		if err := p.SetThreadData(w, i); err != nil {
			return err
		}
	}
	for _, pt := range points {
		p.Submit(e.point(ctx), pt)
	}
	err = p.Run(workers[nw-1])

	if job.Sink != nil {
		if err == nil {
			job.Sink.SetDims(sweep.DimsSlice(dims(grids)))
		}
		if endErr := job.Sink.End(); err == nil {
			err = endErr
		}
	}
	if err != nil {
		return err
	}
	log.Info("parallel sweep done", "circuit", c.Name, "job", job.ID, "points", len(points))
	return nil
}

// point 在线程的克隆上设置扫描值后调用分析
func (e *Executor) point(ctx context.Context) pool.Func {
	return func(data any, arg any) error {
		w := data.(*worker)
		pt := arg.(sweep.Point)
		for i, p := range w.params {
			p.Set(pt.Values[i])
		}
		if err := e.Callback.Point(ctx, w.c, pt); err != nil {
			return types.WithValues(err, "parallel sweep", pt.Values...)
		}
		metrics.SweepPoints.WithLabelValues("parallel").Inc()
		return nil
	}
}

// dims 完整扫描结束时的维度
func dims(grids []sweep.Grid) [3]int {
	d := [3]int{1, 1, 1}
	if len(grids) > 0 {
		d[1] = grids[0].Count()
		d[2] = d[1]
	}
	if len(grids) > 1 {
		d[0] = grids[1].Count()
	}
	return d
}
