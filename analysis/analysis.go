// Package analysis 扫描点上的直流和交流分析
//
// 每个分析实现 sweep.PointCallback, 结果按扫描点序号写入任务的 Sink。
package analysis

import (
	"context"

	"spice/ckt"
	"spice/newton"
	"spice/output"
	"spice/sweep"
	"spice/types"
)

// Arena 中的命名向量
const (
	OpVector       = "op"       // 直流工作点
	AcceptedVector = "accepted" // 上一个收敛的扫描点
)

// OP 从零初值计算直流工作点, 结果另存为 OpVector
func OP(ctx context.Context, e *newton.Engine, c *ckt.Circuit) error {
	c.Sol.Reset()
	mode := types.Mode{Analysis: types.AnalysisDC, Phase: types.PhaseJunction}
	if err := e.Run(ctx, c, mode, c.Config.MaxIter); err != nil {
		return err
	}
	copy(c.Arena.Vec(OpVector), c.Sol.Old())
	c.DCPoints++
	return nil
}

// DC 直流扫描点
//
// 默认每点从零初值经 JUNCTION 阶段求解, 结果与执行顺序无关;
// Warm 为 true 时以上一个收敛点为初值直接进入 FLOAT 阶段,
// 结果依赖扫描顺序, 只能顺序执行。
type DC struct {
	Engine *newton.Engine
	Warm   bool
}

func (a *DC) Point(ctx context.Context, c *ckt.Circuit, p sweep.Point) error {
	if c.Interrupted(ctx) {
		return types.ErrPause
	}
	mode := types.Mode{Analysis: types.AnalysisDC, Phase: types.PhaseJunction}
	if a.Warm && c.Arena.Has(AcceptedVector) {
		copy(c.Sol.Old(), c.Arena.Vec(AcceptedVector))
		c.Seed(c.Sol.Old())
		mode.Phase = types.PhaseFloat
	} else {
		c.Sol.Reset()
	}
	if err := a.Engine.Run(ctx, c, mode, maxIter(c)); err != nil {
		return err
	}
	copy(c.Arena.Vec(AcceptedVector), c.Sol.Old())
	c.DCPoints++
	return record(c, p)
}

// AC 交流扫描点, 在工作点处线性化后按小信号求解
//
// 调用前须已由 OP 得到工作点。
type AC struct {
	Engine *newton.Engine
}

func (a *AC) Point(ctx context.Context, c *ckt.Circuit, p sweep.Point) error {
	if c.Interrupted(ctx) {
		return types.ErrPause
	}
	if !c.Arena.Has(OpVector) {
		return types.Internal("ac point on %q without operating point", c.Name)
	}
	copy(c.Sol.Old(), c.Arena.Vec(OpVector))
	mode := types.Mode{Analysis: types.AnalysisAC, Phase: types.PhaseSmallSignal, Frequency: c.Freq}
	if err := a.Engine.Run(ctx, c, mode, maxIter(c)); err != nil {
		return err
	}
	return record(c, p)
}

func maxIter(c *ckt.Circuit) int {
	if c.Job != nil && c.Job.MaxIter > 0 {
		return c.Job.MaxIter
	}
	return c.Config.SweepMaxIter
}

func record(c *ckt.Circuit, p sweep.Point) error {
	if c.Job == nil || c.Job.Sink == nil {
		return nil
	}
	sol := c.Sol.Old()
	return c.Job.Sink.Append(output.Record{
		Seq:        p.Seq,
		Values:     p.Values,
		Data:       append([]float64(nil), sol[1:]...),
		Iterations: c.Iter,
	})
}
