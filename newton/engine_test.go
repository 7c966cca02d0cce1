package newton

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"spice/ckt"
	"spice/device"
	"spice/logging"
	"spice/mat"
	"spice/output"
	"spice/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// divider 10V 电压源经两个 1k 电阻分压
func divider(t *testing.T, cfg types.Config) *ckt.Circuit {
	t.Helper()
	c := ckt.New("divider", cfg)
	in, mid := c.Node("in"), c.Node("mid")
	r1, err := device.NewResistor("R1", in, mid, 1e3)
	require.NoError(t, err)
	r2, err := device.NewResistor("R2", mid, 0, 1e3)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewVSource(c, "V1", in, 0, 10)))
	require.NoError(t, c.Add(r1))
	require.NoError(t, c.Add(r2))
	require.NoError(t, c.Setup())
	return c
}

// rectifier 5V 电压源经 1k 电阻驱动二极管
func rectifier(t *testing.T, cfg types.Config) (*ckt.Circuit, *device.Diode) {
	t.Helper()
	c := ckt.New("rectifier", cfg)
	in, a := c.Node("in"), c.Node("a")
	r, err := device.NewResistor("R1", in, a, 1e3)
	require.NoError(t, err)
	d, err := device.NewDiode("D1", a, 0, 1e-14, 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewVSource(c, "V1", in, 0, 5)))
	require.NoError(t, c.Add(r))
	require.NoError(t, c.Add(d))
	require.NoError(t, c.Setup())
	return c, d
}

var dcJunction = types.Mode{Analysis: types.AnalysisDC, Phase: types.PhaseJunction}

func TestLinearConverges(t *testing.T) {
	c := divider(t, types.DefaultConfig())
	e := New(logging.Discard())
	require.NoError(t, e.Run(context.Background(), c, dcJunction, 100))

	v, _ := c.Value("mid")
	assert.InDelta(t, 5, v, 1e-9)
	i, _ := c.Value("v1#branch")
	assert.InDelta(t, -5e-3, i, 1e-12)
	// JUNCTION → FIX → FLOAT, 每个阶段一次迭代
	assert.Equal(t, 3, c.Iter)
	assert.Equal(t, types.PhaseFloat, c.Mode.Phase)
}

func TestNodesetExtraPass(t *testing.T) {
	c := divider(t, types.DefaultConfig())
	mode := dcJunction
	mode.Nodeset = true
	require.NoError(t, New(logging.Discard()).Run(context.Background(), c, mode, 100))
	assert.Equal(t, 4, c.Iter)
}

func TestSmallSignalOneShot(t *testing.T) {
	c := divider(t, types.DefaultConfig())
	mode := types.Mode{Analysis: types.AnalysisAC, Phase: types.PhaseSmallSignal}
	require.NoError(t, New(logging.Discard()).Run(context.Background(), c, mode, 100))
	assert.Equal(t, 2, c.Iter, "一次性阶段在首次迭代不判收敛")
}

func TestDiodeConverges(t *testing.T) {
	c, d := rectifier(t, types.DefaultConfig())
	require.NoError(t, New(logging.Discard()).Run(context.Background(), c, dcJunction, 100))

	va, _ := c.Value("a")
	assert.Greater(t, va, 0.5)
	assert.Less(t, va, 0.8)
	// 电阻电流等于二极管电流
	ir := (5 - va) / 1e3
	id := d.Is * (math.Exp(va/(d.N*0.025865)) - 1)
	assert.InDelta(t, ir, id, ir*1e-2)
	assert.Greater(t, c.Iter, 3)
}

func TestMixingSameAnswer(t *testing.T) {
	c, _ := rectifier(t, types.DefaultConfig())
	require.NoError(t, New(logging.Discard()).Run(context.Background(), c, dcJunction, 100))
	want, _ := c.Value("a")

	cfg := types.DefaultConfig()
	cfg.Mixing = 0.3
	m, _ := rectifier(t, cfg)
	require.NoError(t, New(logging.Discard()).Run(context.Background(), m, dcJunction, 200))
	got, _ := m.Value("a")
	assert.InDelta(t, want, got, 1e-3)
}

func TestIterationLimit(t *testing.T) {
	c, _ := rectifier(t, types.DefaultConfig())
	err := New(logging.Discard()).Run(context.Background(), c, dcJunction, 2)
	require.ErrorIs(t, err, types.ErrIterationLimit)
	var se *types.SolveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Iteration)
}

func TestBadIterationLimit(t *testing.T) {
	c := divider(t, types.DefaultConfig())
	err := New(logging.Discard()).Run(context.Background(), c, dcJunction, 0)
	assert.ErrorIs(t, err, types.ErrBadParam)
	assert.Zero(t, c.Iter, "参数错误在任何迭代之前返回")
}

// flakySys 在指定的第 n 次分解时报告奇异
type flakySys struct {
	mat.LinearSystem
	fail  map[int]bool
	calls int
	kinds []string
}

func (f *flakySys) factor(kind string, do func() error) error {
	f.calls++
	f.kinds = append(f.kinds, kind)
	if f.fail[f.calls] {
		return fmt.Errorf("%w: injected", types.ErrSingular)
	}
	return do()
}

func (f *flakySys) OrderAndFactor() error {
	return f.factor("order", f.LinearSystem.OrderAndFactor)
}

func (f *flakySys) Factor() error {
	return f.factor("factor", f.LinearSystem.Factor)
}

func TestSingularRetry(t *testing.T) {
	cases := []struct {
		name  string
		fail  map[int]bool
		err   bool
		calls int
		kinds []string
	}{
		{
			name:  "first iteration once",
			fail:  map[int]bool{1: true},
			calls: 4,
			kinds: []string{"order", "order", "order", "factor"},
		},
		{
			name:  "first iteration twice",
			fail:  map[int]bool{1: true, 2: true},
			err:   true,
			calls: 2,
			kinds: []string{"order", "order"},
		},
		{
			name:  "second iteration",
			fail:  map[int]bool{2: true},
			err:   true,
			calls: 2,
			kinds: []string{"order", "order"},
		},
		{
			name:  "third iteration",
			fail:  map[int]bool{3: true},
			err:   true,
			calls: 3,
			kinds: []string{"order", "order", "factor"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := divider(t, types.DefaultConfig())
			sys := &flakySys{LinearSystem: c.Sys, fail: tc.fail}
			c.Sys = sys
			err := New(logging.Discard()).Run(context.Background(), c, dcJunction, 100)
			if tc.err {
				require.ErrorIs(t, err, types.ErrSingular)
			} else {
				require.NoError(t, err)
				v, _ := c.Value("mid")
				assert.InDelta(t, 5, v, 1e-9)
			}
			assert.Equal(t, tc.calls, sys.calls)
			assert.Equal(t, tc.kinds, sys.kinds)
		})
	}
}

// nanDevice 加盖 NaN
type nanDevice struct{ node int }

func (nanDevice) Name() string { return "X1" }
func (d nanDevice) Load(lc *ckt.LoadContext) error {
	lc.Sys.AddMatrix(d.node, d.node, math.NaN())
	return nil
}

func TestFloatingPoint(t *testing.T) {
	c := ckt.New("nan", types.DefaultConfig())
	n := c.Node("1")
	r, err := device.NewResistor("R1", n, 0, 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(r))
	require.NoError(t, c.Add(nanDevice{node: n}))
	require.NoError(t, c.Setup())

	err = New(logging.Discard()).Run(context.Background(), c, dcJunction, 100)
	require.ErrorIs(t, err, types.ErrFloatingPoint)
	var se *types.SolveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Iteration)
}

// failDevice 加盖时返回错误
type failDevice struct{}

func (failDevice) Name() string                { return "F1" }
func (failDevice) Load(*ckt.LoadContext) error { return errors.New("model blew up") }

func TestLoadErrorPropagates(t *testing.T) {
	c := ckt.New("fail", types.DefaultConfig())
	r, err := device.NewResistor("R1", c.Node("1"), 0, 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(r))
	require.NoError(t, c.Add(failDevice{}))
	require.NoError(t, c.Setup())

	err = New(logging.Discard()).Run(context.Background(), c, dcJunction, 100)
	assert.ErrorContains(t, err, "model blew up")
}

// pauseSink 只实现暂停请求
type pauseSink struct{ pending atomic.Bool }

func (*pauseSink) Begin(int, []string) error  { return nil }
func (*pauseSink) Append(output.Record) error { return nil }
func (*pauseSink) End() error                 { return nil }
func (*pauseSink) SetDims([]int)              {}
func (s *pauseSink) Paused() bool             { return s.pending.CompareAndSwap(true, false) }

func TestInterrupt(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.InterruptEvery = 1
	c := divider(t, cfg)
	sink := &pauseSink{}
	sink.pending.Store(true)
	c.Job = &ckt.Job{Sink: sink}

	e := New(logging.Discard())
	err := e.Run(context.Background(), c, dcJunction, 100)
	require.ErrorIs(t, err, types.ErrPause)
	assert.Equal(t, 1, c.Iter)

	// 请求已被消费, 再次运行正常收敛
	require.NoError(t, e.Run(context.Background(), c, dcJunction, 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx, c, dcJunction, 100), types.ErrPause)

	// 交流分析不轮询中断
	mode := types.Mode{Analysis: types.AnalysisAC, Phase: types.PhaseSmallSignal}
	assert.NoError(t, e.Run(ctx, c, mode, 100))
}

// stubAccel 接管收敛判断
type stubAccel struct{ calls int }

func (a *stubAccel) Converged(*ckt.Circuit) (bool, bool) {
	a.calls++
	return false, true
}

func TestAcceleratorOverrides(t *testing.T) {
	c := divider(t, types.DefaultConfig())
	acc := &stubAccel{}
	e := &Engine{Accel: acc, Logger: logging.Discard()}
	err := e.Run(context.Background(), c, dcJunction, 10)
	require.ErrorIs(t, err, types.ErrIterationLimit)
	assert.Equal(t, 10, acc.calls)
}
