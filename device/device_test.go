package device

import (
	"math"
	"testing"

	"spice/ckt"
	"spice/mat"
	"spice/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResistorStamp(t *testing.T) {
	c := ckt.New("r", types.DefaultConfig())
	r, err := NewResistor("R1", c.Node("1"), c.Node("2"), 100)
	require.NoError(t, err)
	require.NoError(t, c.Add(r))
	require.NoError(t, c.Setup())
	require.NoError(t, c.Load())

	sys := c.Sys.(*mat.Dense)
	assert.InDelta(t, 0.01, sys.At(1, 1), 1e-15)
	assert.InDelta(t, -0.01, sys.At(1, 2), 1e-15)
	assert.InDelta(t, 0.01, sys.At(2, 2), 1e-15)

	_, err = NewResistor("R2", 1, 0, 0)
	assert.ErrorIs(t, err, types.ErrBadParam)
}

func TestSourceModes(t *testing.T) {
	c := ckt.New("v", types.DefaultConfig())
	v := NewVSource(c, "V1", c.Node("in"), 0, 5)
	v.AC = 1
	i := NewISource("I1", c.Node("in"), 0, 2e-3)
	require.NoError(t, c.Add(v))
	require.NoError(t, c.Add(i))
	require.NoError(t, c.Setup())

	br, ok := c.Index("v1#branch")
	require.True(t, ok)

	require.NoError(t, c.Load())
	sys := c.Sys.(*mat.Dense)
	assert.Equal(t, 5.0, sys.RHS()[br])
	assert.Equal(t, -2e-3, sys.RHS()[1])
	assert.Equal(t, 1.0, sys.At(1, br))
	assert.Equal(t, 1.0, sys.At(br, 1))

	c.Mode = types.Mode{Analysis: types.AnalysisAC, Phase: types.PhaseSmallSignal}
	require.NoError(t, c.Load())
	assert.Equal(t, 1.0, sys.RHS()[br], "交流分析使用交流幅值")
	assert.Equal(t, 0.0, sys.RHS()[1])

	p, err := c.Param("V1")
	require.NoError(t, err)
	p.Set(3)
	assert.Equal(t, 3.0, v.DC)
	p, err = c.Param("v1:ac")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Get())
	_, err = c.Param("V1:bogus")
	assert.ErrorIs(t, err, types.ErrBadParam)
}

func TestDiodeJunctionPhase(t *testing.T) {
	c := ckt.New("d", types.DefaultConfig())
	d, err := NewDiode("D1", c.Node("a"), 0, 1e-14, 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(d))
	require.NoError(t, c.Setup())

	c.Mode = types.Mode{Phase: types.PhaseJunction}
	require.NoError(t, c.Load())
	assert.InDelta(t, d.vcrit, d.Voltage(), 1e-15, "结初值取临界电压")
	assert.Zero(t, c.Noncon)

	// 从临界电压跳到 5V 触发限幅
	c.Mode.Phase = types.PhaseFloat
	c.Sol.Old()[1] = 5
	require.NoError(t, c.Load())
	assert.Less(t, d.Voltage(), 5.0)
	assert.Equal(t, 1, c.Noncon)
}

func TestPnjlim(t *testing.T) {
	vt := 0.025865
	vcrit := vt * math.Log(vt/(math.Sqrt2*1e-14))

	// 低于临界电压不限幅
	v, limited := pnjlim(0.3, 0, vt, vcrit)
	assert.False(t, limited)
	assert.Equal(t, 0.3, v)

	// 步长小于 2vt 不限幅
	v, limited = pnjlim(vcrit+0.01, vcrit, vt, vcrit)
	assert.False(t, limited)
	assert.Equal(t, vcrit+0.01, v)

	// 上次电压为正: 对数压缩步长
	v, limited = pnjlim(2, 0.6, vt, vcrit)
	assert.True(t, limited)
	assert.InDelta(t, 0.6+vt*math.Log(1+1.4/vt), v, 1e-12)

	// 上次电压非正
	v, limited = pnjlim(2, -1, vt, vcrit)
	assert.True(t, limited)
	assert.InDelta(t, vt*math.Log(2/vt), v, 1e-12)
}

func TestDiodeClone(t *testing.T) {
	d, err := NewDiode("D1", 1, 0, 1e-14, 1)
	require.NoError(t, err)
	d.vd = 0.6
	c := d.Clone().(*Diode)
	c.vd = 0.1
	assert.Equal(t, 0.6, d.vd)

	p, ok := d.Param("is")
	require.True(t, ok)
	old := d.vcrit
	p.Set(1e-12)
	assert.NotEqual(t, old, d.vcrit, "修改饱和电流后重新计算临界电压")
}

func TestCloneIndependentParams(t *testing.T) {
	c := ckt.New("clone", types.DefaultConfig())
	v := NewVSource(c, "V1", c.Node("in"), 0, 1)
	r, err := NewResistor("R1", c.Node("in"), 0, 1e3)
	require.NoError(t, err)
	require.NoError(t, c.Add(v))
	require.NoError(t, c.Add(r))
	require.NoError(t, c.Setup())

	cl := c.Clone()
	for _, ref := range []string{"V1", "R1"} {
		p, err := cl.Param(ref)
		require.NoError(t, err)
		p.Set(42)
	}
	assert.Equal(t, 1.0, v.DC)
	assert.Equal(t, 1e3, r.R)
	assert.True(t, cl.IsClone())
	assert.False(t, c.IsClone())
}
