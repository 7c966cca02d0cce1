package ckt

import (
	"spice/mat"
	"spice/types"
)

// Device 器件
type Device interface {
	Name() string
	// Load 按当前模式和试探解加盖雅可比矩阵和右侧向量
	Load(lc *LoadContext) error
}

// Converger 器件自身的收敛检查
type Converger interface {
	Converged(lc *LoadContext) bool
}

// Seeder 按给定解重置器件的工作状态, 热启动前调用
type Seeder interface {
	Seed(x []float64)
}

// Cloner 带工作状态的器件, 并行克隆时复制
type Cloner interface {
	Clone() Device
}

// Tunable 可扫描参数的器件, name 为空时返回默认参数
type Tunable interface {
	Param(name string) (Param, bool)
}

// Param 参数句柄
type Param interface {
	Get() float64
	Set(v float64)
}

// Ref 指向 float64 字段的参数
type Ref struct{ p *float64 }

// NewRef 创建参数句柄
func NewRef(p *float64) Ref { return Ref{p: p} }

func (r Ref) Get() float64  { return *r.p }
func (r Ref) Set(v float64) { *r.p = v }

// LoadContext 加盖上下文
type LoadContext struct {
	Mode   types.Mode
	X      []float64 // 试探解, X[0] 为地
	Sys    mat.LinearSystem
	Config *types.Config
	noncon int
}

// NonConverged 器件报告本次加盖未收敛 (如发生电压限幅)
func (lc *LoadContext) NonConverged() { lc.noncon++ }

// Noncon 未收敛计数
func (lc *LoadContext) Noncon() int { return lc.noncon }

// 加盖电导元件
func (lc *LoadContext) StampConductance(n1, n2 int, g float64) {
	lc.Sys.AddMatrix(n1, n1, g)
	lc.Sys.AddMatrix(n2, n2, g)
	lc.Sys.AddMatrix(n1, n2, -g)
	lc.Sys.AddMatrix(n2, n1, -g)
}

// 加盖电流源, 电流从 n1 经源流向 n2
func (lc *LoadContext) StampCurrentSource(n1, n2 int, i float64) {
	lc.Sys.AddRHS(n1, -i)
	lc.Sys.AddRHS(n2, i)
}

// 加盖电压源, br 为支路电流未知量
func (lc *LoadContext) StampVoltageSource(n1, n2, br int, v float64) {
	lc.Sys.AddMatrix(n1, br, 1)
	lc.Sys.AddMatrix(n2, br, -1)
	lc.Sys.AddMatrix(br, n1, 1)
	lc.Sys.AddMatrix(br, n2, -1)
	lc.Sys.AddRHS(br, v)
}

// 加盖压控电流源, 电流 gm·(V(c1)-V(c2)) 从 n1 经源流向 n2
func (lc *LoadContext) StampVCCS(n1, n2, c1, c2 int, gm float64) {
	lc.Sys.AddMatrix(n1, c1, gm)
	lc.Sys.AddMatrix(n2, c2, gm)
	lc.Sys.AddMatrix(n1, c2, -gm)
	lc.Sys.AddMatrix(n2, c1, -gm)
}
