package device

import (
	"math"

	"spice/ckt"
	"spice/types"
)

const (
	boltzmann = 1.380649e-23   // 玻尔兹曼常数 (J/K)
	charge    = 1.60217662e-19 // 电子电荷 (C)
	nominalT  = 300.15         // 默认温度 (K)
)

// Diode 结二极管
type Diode struct {
	name  string
	A, K  int     // 阳极, 阴极
	Is    float64 // 反向饱和电流 (A)
	N     float64 // 发射系数
	Off   bool    // 初始关断
	vt    float64 // 热电压
	vcrit float64 // 正向临界电压

	// 工作状态, 每次加盖更新
	vd, id, gd float64
}

// NewDiode 创建二极管
func NewDiode(name string, a, k int, is, n float64) (*Diode, error) {
	if is <= 0 || n <= 0 {
		return nil, types.BadParam("diode %s needs positive is and n", name)
	}
	d := &Diode{name: name, A: a, K: k, Is: is, N: n, vt: boltzmann * nominalT / charge}
	d.update()
	return d, nil
}

// update 计算临界电压: 电流为 nvt/sqrt(2) 时的电压
func (d *Diode) update() {
	nvt := d.N * d.vt
	d.vcrit = nvt * math.Log(nvt/(math.Sqrt2*d.Is))
}

func (d *Diode) Name() string { return d.name }

func (d *Diode) Load(lc *ckt.LoadContext) error {
	// 小信号: 只加盖工作点处的电导
	if lc.Mode.Analysis == types.AnalysisAC {
		lc.StampConductance(d.A, d.K, d.gd)
		return nil
	}
	nvt := d.N * d.vt
	var vd float64
	switch {
	case lc.Mode.Phase == types.PhaseJunction:
		if !d.Off {
			vd = d.vcrit
		}
	case lc.Mode.Phase == types.PhaseFix && d.Off:
		vd = 0
	default:
		vd = lc.X[d.A] - lc.X[d.K]
		if v, limited := pnjlim(vd, d.vd, nvt, d.vcrit); limited {
			vd = v
			lc.NonConverged()
		}
	}
	gmin := lc.Config.Gmin
	var id, gd float64
	if vd >= -5*nvt {
		e := math.Exp(vd / nvt)
		id = d.Is*(e-1) + gmin*vd
		gd = d.Is*e/nvt + gmin
	} else {
		id = -d.Is + gmin*vd
		gd = gmin
	}
	d.vd, d.id, d.gd = vd, id, gd
	lc.StampConductance(d.A, d.K, gd)
	lc.StampCurrentSource(d.A, d.K, id-gd*vd)
	return nil
}

// Converged 用线性化模型预测电流, 与上次加盖的电流比较
func (d *Diode) Converged(lc *ckt.LoadContext) bool {
	if lc.Mode.Analysis == types.AnalysisAC {
		return true
	}
	vd := lc.X[d.A] - lc.X[d.K]
	cdhat := d.id + d.gd*(vd-d.vd)
	tol := lc.Config.RelTol*math.Max(math.Abs(cdhat), math.Abs(d.id)) + lc.Config.AbsTol
	return math.Abs(cdhat-d.id) <= tol
}

// Seed 以 x 中的结电压作为限幅的参考电压
func (d *Diode) Seed(x []float64) {
	d.vd = x[d.A] - x[d.K]
}

func (d *Diode) Clone() ckt.Device {
	c := *d
	return &c
}

func (d *Diode) Param(name string) (ckt.Param, bool) {
	if name == "" || name == "is" {
		return diodeParam{d, &d.Is}, true
	}
	if name == "n" {
		return diodeParam{d, &d.N}, true
	}
	return nil, false
}

// Voltage 最近一次加盖使用的结电压
func (d *Diode) Voltage() float64 { return d.vd }

// Current 最近一次加盖的结电流
func (d *Diode) Current() float64 { return d.id }

// diodeParam 修改后重新计算临界电压
type diodeParam struct {
	d *Diode
	p *float64
}

func (p diodeParam) Get() float64 { return *p.p }
func (p diodeParam) Set(v float64) {
	*p.p = v
	p.d.update()
}

// pnjlim 限制结电压步长, 使电流变化不超过上次线性化模型的 e^2 倍
func pnjlim(vnew, vold, vt, vcrit float64) (float64, bool) {
	if vnew <= vcrit || math.Abs(vnew-vold) <= vt+vt {
		return vnew, false
	}
	if vold > 0 {
		if arg := 1 + (vnew-vold)/vt; arg > 0 {
			return vold + vt*math.Log(arg), true
		}
		return vcrit, true
	}
	return vt * math.Log(vnew/vt), true
}
