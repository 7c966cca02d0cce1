package sweep

import (
	"context"

	"spice/ckt"
)

// Point 扫描点, 只被消费一次
type Point struct {
	Seq    int       // 序号, 决定结果存放位置
	Values []float64 // 各层取值, 下标 0 为内层
	Dims   [3]int    // 枚举时的维度
}

// PointCallback 每个扫描点的分析
type PointCallback interface {
	Point(ctx context.Context, c *ckt.Circuit, p Point) error
}

// CallbackFunc 函数形式的 PointCallback
type CallbackFunc func(ctx context.Context, c *ckt.Circuit, p Point) error

func (f CallbackFunc) Point(ctx context.Context, c *ckt.Circuit, p Point) error { return f(ctx, c, p) }

// DimsSlice 外层多于一个点时为 (No, Ni, Ni), 否则为 (Ni)
func DimsSlice(d [3]int) []int {
	if d[0] > 1 {
		return []int{d[0], d[1], d[2]}
	}
	return []int{d[1]}
}

// first 各层置为起始值
func first(cp *ckt.Checkpoint, grids []Grid) {
	for i, g := range grids {
		cp.Values[i] = g.Start
	}
}

// advance 前进到下一个点
//
// more 为 false 表示扫描结束; levelDone 表示内层完成一轮, 维度已更新。
func advance(cp *ckt.Checkpoint, grids []Grid) (more, levelDone bool) {
	cp.Seq++
	cp.Counts[0]++
	cp.Level = 0
	if len(grids) > 0 {
		if v, ok := grids[0].Next(cp.Values[0]); ok {
			cp.Values[0] = v
			return true, false
		}
	}
	cp.Dims[1] = cp.Counts[0]
	if cp.Dims[2] == 0 {
		cp.Dims[2] = cp.Counts[0]
	}
	cp.Dims[0]++
	cp.Counts[1]++
	if len(grids) > 1 {
		if v, ok := grids[1].Next(cp.Values[1]); ok {
			cp.Values[1] = v
			cp.Values[0] = grids[0].Start
			cp.Counts[0] = 0
			cp.Level = 1
			return true, true
		}
	}
	return false, true
}

// point 当前断点对应的扫描点
func point(cp *ckt.Checkpoint, levels int) Point {
	return Point{Seq: cp.Seq, Values: append([]float64(nil), cp.Values[:levels]...), Dims: cp.Dims}
}
