package sweep

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"spice/ckt"
	"spice/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountPoints(t *testing.T) {
	cases := []struct {
		start, stop, step float64
		want              int
	}{
		{0, 1, 0.25, 5},
		{0, 1, 0.1, 11},
		{1, 0, -0.25, 5},
		{0, 1, 0.3, 4},
		{0, 0, 0, 1},
		{0, 1, 0, 1},
		{-2, 3, 0, 1},
		{5, -5, 1, 11}, // 反向步长被修正
		{0, 1e-6, 1e-7, 11},
	}
	for _, tc := range cases {
		got := CountPoints(tc.start, tc.stop, tc.step)
		assert.Equal(t, tc.want, got, "%g..%g step %g", tc.start, tc.stop, tc.step)
		assert.Len(t, Linear(tc.start, tc.stop, tc.step).Values(), got)
	}
}

func TestCountBounded(t *testing.T) {
	assert.Equal(t, types.MaxSweepPoints+1, CountPoints(0, 1, 1e-15))
	assert.Len(t, Linear(0, 1, 1e-15).Values(), types.MaxSweepPoints+1)
}

func TestLinearValues(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linear(0, 1, 0.25).Values(), 1e-15)
}

func TestZeroStep(t *testing.T) {
	g := Linear(0, 1, 0)
	assert.Greater(t, g.Step, 1.0, "零步长替换为跨度加两个最小步长")
	assert.Equal(t, 1, g.Count())

	g = Linear(2, -3, 0)
	assert.Less(t, g.Step, -5.0, "替换步长指向终止值")
	assert.Equal(t, 1, g.Count())

	g = Linear(4, 4, 0)
	assert.Greater(t, g.Step, 0.0)
	assert.Equal(t, []float64{4}, g.Values())

	// 末点对齐不作用于零步长
	g = NewGrid(ckt.Level{Start: 0, Stop: 1}, 1e-3, true, nil)
	assert.Equal(t, 1, g.Count())
}

func TestSignMismatchWarns(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	g := NewGrid(ckt.Level{Param: "V1", Start: 0, Stop: -1, Step: 0.5}, 1e-3, false, log)
	assert.Equal(t, -0.5, g.Step)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "param=V1")
	assert.Equal(t, CountPoints(0, -1, -0.5), g.Count())
	assert.Equal(t, 3, g.Count())

	buf.Reset()
	g = NewGrid(ckt.Level{Param: "freq", Start: 1000, Stop: 1, Step: 10, Geometric: true}, 1e-3, false, log)
	assert.InDelta(t, 0.1, g.Step, 1e-15)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Equal(t, 4, g.Count())
}

func TestDoLast(t *testing.T) {
	g := NewGrid(ckt.Level{Start: 0, Stop: 1, Step: 0.3}, 1e-3, true, nil)
	assert.InDeltaSlice(t, []float64{0, 0.3, 0.6, 0.9, 1}, g.Values(), 1e-12)
	assert.Equal(t, 1.0, g.Values()[4], "末点精确等于终止值")

	// 自然落在终止值上时不重复
	g = NewGrid(ckt.Level{Start: 0, Stop: 1, Step: 0.25}, 1e-3, true, nil)
	assert.Equal(t, 5, g.Count())

	// 递减方向
	g = NewGrid(ckt.Level{Start: 1, Stop: 0, Step: -0.4}, 1e-3, true, nil)
	assert.InDeltaSlice(t, []float64{1, 0.6, 0.2, 0}, g.Values(), 1e-12)
}

func TestGeometric(t *testing.T) {
	g := NewGrid(ckt.Level{Start: 1, Stop: 1000, Step: math.Pow(10, 0.1), Geometric: true}, 1e-3, false, nil)
	vs := g.Values()
	require.Len(t, vs, 31)
	assert.InDelta(t, 1000, vs[30], 1e-9)
	assert.InDelta(t, 10, vs[10], 1e-12)
}

func TestFreqGrid(t *testing.T) {
	cases := []struct {
		grid FreqGrid
		want int
	}{
		{FreqGrid{Kind: FreqDec, Points: 10, Start: 1, Stop: 1000}, 31},
		{FreqGrid{Kind: FreqOct, Points: 1, Start: 1, Stop: 8}, 4},
		{FreqGrid{Kind: FreqLin, Points: 5, Start: 1, Stop: 5}, 5},
		{FreqGrid{Kind: FreqLin, Points: 1, Start: 10, Stop: 20}, 1},
		{FreqGrid{Kind: FreqDec, Points: 5, Start: 100, Stop: 100}, 1},
	}
	for _, tc := range cases {
		l, err := tc.grid.Level()
		require.NoError(t, err, tc.grid.Kind.String())
		assert.Equal(t, "freq", l.Param)
		g := NewGrid(l, 1e-3, false, nil)
		assert.Equal(t, tc.want, g.Count(), "%+v", tc.grid)
	}

	_, err := FreqGrid{Kind: FreqDec, Points: 0, Start: 1, Stop: 10}.Level()
	assert.Error(t, err)
	_, err = FreqGrid{Kind: FreqDec, Points: 3, Start: 0, Stop: 10}.Level()
	assert.Error(t, err)

	k, err := ParseFreqKind("DEC")
	require.NoError(t, err)
	assert.Equal(t, FreqDec, k)
	_, err = ParseFreqKind("log")
	assert.Error(t, err)
}
