// Package sweep 扫描网格和扫描驱动
package sweep

import (
	"log/slog"
	"math"

	"spice/ckt"
	"spice/logging"
	"spice/types"

	"golang.org/x/exp/constraints"
)

// Grid 一层扫描的取值规则
type Grid struct {
	Start, Stop, Step float64 // 几何扫描时 Step 为倍率
	Geometric         bool
	DoLast            bool    // 末点对齐 Stop
	RelTol            float64 // 计数容差
}

// NewGrid 由扫描层创建网格, 修正零步长和反向步长
func NewGrid(l ckt.Level, relTol float64, doLast bool, log *slog.Logger) Grid {
	g := Grid{Start: l.Start, Stop: l.Stop, Step: l.Step, Geometric: l.Geometric, DoLast: doLast, RelTol: relTol}
	log = logging.OrDefault(log)
	if g.Geometric {
		if (g.Stop > g.Start && g.Step < 1) || (g.Stop < g.Start && g.Step > 1) {
			log.Warn("sweep factor points away from stop, inverting", "param", l.Param, "factor", g.Step, "start", g.Start, "stop", g.Stop)
			g.Step = 1 / g.Step
		}
		return g
	}
	span := g.Stop - g.Start
	switch {
	case g.Step == 0:
		// 向外扩展两个最小步长, 第二个点必然越过终止值
		pad := 2 * math.Max(types.MinSweepStep, math.Abs(span)*relTol)
		g.Step = span + sign(span)*pad
		g.DoLast = false
	case span != 0 && sign(span) != sign(g.Step):
		log.Warn("sweep step points away from stop, flipping sign", "param", l.Param, "step", g.Step, "start", g.Start, "stop", g.Stop)
		g.Step = -g.Step
	}
	return g
}

// Linear 线性网格
func Linear(start, stop, step float64) Grid {
	return NewGrid(ckt.Level{Start: start, Stop: stop, Step: step}, types.DefaultRelTol, false, logging.Discard())
}

// CountPoints 线性扫描的点数
func CountPoints(start, stop, step float64) int { return Linear(start, stop, step).Count() }

// tol 计数容差
func (g Grid) tol() float64 {
	if g.Geometric {
		return math.Abs(g.Step * g.Stop * g.RelTol)
	}
	return math.Abs(g.Step * g.RelTol)
}

// up 是否递增
func (g Grid) up() bool {
	if g.Geometric {
		return g.Step > 1
	}
	return g.Step > 0
}

// within v 没有越过终止值
func (g Grid) within(v float64) bool {
	if g.up() {
		return v <= g.Stop+g.tol()
	}
	return v >= g.Stop-g.tol()
}

// Next 下一个取值, false 表示结束
func (g Grid) Next(v float64) (float64, bool) {
	n := v + g.Step
	if g.Geometric {
		n = v * g.Step
	}
	if n == v {
		return 0, false
	}
	if g.within(n) {
		return n, true
	}
	if g.DoLast && math.Abs(v-g.Stop) > g.tol() {
		return g.Stop, true
	}
	return 0, false
}

// Count 逐点计数, 超过 types.MaxSweepPoints 时停在 MaxSweepPoints+1
func (g Grid) Count() int {
	n := 0
	for v, ok := g.Start, true; ok && n <= types.MaxSweepPoints; v, ok = g.Next(v) {
		n++
	}
	return n
}

// Values 全部取值, 与 Count 同样有上限
func (g Grid) Values() []float64 {
	var vs []float64
	for v, ok := g.Start, true; ok && len(vs) <= types.MaxSweepPoints; v, ok = g.Next(v) {
		vs = append(vs, v)
	}
	return vs
}

func sign[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -1
	}
	return 1
}
