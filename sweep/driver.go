package sweep

import (
	"context"
	"errors"
	"log/slog"

	"spice/ckt"
	"spice/logging"
	"spice/metrics"
	"spice/types"

	"go.opentelemetry.io/otel/attribute"
)

// Driver 顺序扫描驱动
//
// 内层快变, 外层慢变。回调返回 types.ErrPause 时把当前取值写入断点,
// 恢复参数原值后返回; Run(ctx, true) 从断点继续。
type Driver struct {
	Circuit  *ckt.Circuit
	Job      *ckt.Job
	Callback PointCallback
	Logger   *slog.Logger
}

// Grids 各层扫描网格
func (d *Driver) Grids() ([]Grid, error) {
	if err := d.Job.Validate(); err != nil {
		return nil, err
	}
	log := logging.OrDefault(d.Logger)
	grids := make([]Grid, len(d.Job.Levels))
	total := 1
	for i, l := range d.Job.Levels {
		grids[i] = NewGrid(l, d.Job.RelTol, d.Job.DoLast, log)
		total *= grids[i].Count()
		if total > types.MaxSweepPoints {
			return nil, types.BadParam("sweep over %s has more than %d points", l.Param, types.MaxSweepPoints)
		}
	}
	return grids, nil
}

// Params 解析各层扫描参数
func Params(c *ckt.Circuit, levels []ckt.Level) ([]ckt.Param, error) {
	params := make([]ckt.Param, len(levels))
	for i, l := range levels {
		p, err := c.Param(l.Param)
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	return params, nil
}

// Count 总点数, 与 Run 的回调次数一致
func (d *Driver) Count() (int, error) {
	grids, err := d.Grids()
	if err != nil {
		return 0, err
	}
	return count(grids), nil
}

func count(grids []Grid) int {
	n := 1
	for _, g := range grids {
		n *= g.Count()
	}
	return n
}

// Enumerate 按 Run 的顺序列出全部扫描点
func (d *Driver) Enumerate() ([]Point, error) {
	grids, err := d.Grids()
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, count(grids))
	var cp ckt.Checkpoint
	first(&cp, grids)
	for {
		points = append(points, point(&cp, len(grids)))
		if more, _ := advance(&cp, grids); !more {
			return points, nil
		}
	}
}

// Run 执行扫描, resume 为 true 时从断点继续
func (d *Driver) Run(ctx context.Context, resume bool) (err error) {
	job, c := d.Job, d.Circuit
	log := logging.OrDefault(d.Logger)
	cp := &job.Checkpoint
	if resume && !cp.Active {
		return types.BadParam("no paused sweep to resume")
	}
	grids, err := d.Grids()
	if err != nil {
		return err
	}
	params, err := Params(c, job.Levels)
	if err != nil {
		return err
	}
	total := count(grids)
	ctx, span := metrics.Start(ctx, "sweep.run",
		attribute.String("spice.circuit", c.Name),
		attribute.String("spice.job", job.ID),
		attribute.Int("spice.points", total),
		attribute.Bool("spice.resume", resume))
	defer func() { metrics.End(span, err) }()

	if !resume || !cp.SkipReentry {
		cp.Reset()
		for i, p := range params {
			cp.Saved[i] = p.Get()
		}
		first(cp, grids)
		cp.Active = true
		if job.Sink != nil {
			if err := job.Sink.Begin(total, c.Names()); err != nil {
				restore(params, cp)
				return err
			}
		}
		log.Info("sweep start", "circuit", c.Name, "job", job.ID, "levels", len(grids), "points", total)
	} else {
		log.Info("sweep resume", "circuit", c.Name, "job", job.ID, "seq", cp.Seq, "level", cp.Level)
	}

	for {
		for i, p := range params {
			p.Set(cp.Values[i])
		}
		pt := point(cp, len(grids))
		err := d.Callback.Point(ctx, c, pt)
		if errors.Is(err, types.ErrPause) {
			if job.ParamMode == types.ParamEnhanced {
				for i, p := range params {
					cp.Values[i] = p.Get()
				}
			}
			restore(params, cp)
			cp.SkipReentry = true
			log.Debug("sweep paused", "circuit", c.Name, "seq", cp.Seq, "values", pt.Values)
			return err
		}
		if err != nil {
			restore(params, cp)
			cp.Reset()
			err = types.WithValues(err, "sweep", pt.Values...)
			if job.Sink != nil {
				if endErr := job.Sink.End(); endErr != nil {
					err = errors.Join(err, endErr)
				}
			}
			return err
		}
		metrics.SweepPoints.WithLabelValues("sequential").Inc()

		more, levelDone := advance(cp, grids)
		if levelDone && job.Sink != nil {
			job.Sink.SetDims(DimsSlice(cp.Dims))
		}
		if !more {
			break
		}
	}

	restore(params, cp)
	log.Info("sweep done", "circuit", c.Name, "job", job.ID, "points", cp.Seq, "dims", DimsSlice(cp.Dims))
	cp.Reset()
	if job.Sink != nil {
		return job.Sink.End()
	}
	return nil
}

// restore 恢复扫描前的参数值
func restore(params []ckt.Param, cp *ckt.Checkpoint) {
	for i, p := range params {
		p.Set(cp.Saved[i])
	}
}
