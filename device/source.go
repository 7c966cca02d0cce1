package device

import (
	"spice/ckt"
	"spice/types"
)

// VSource 独立电压源
type VSource struct {
	name   string
	Np, Nn int
	Br     int     // 支路电流未知量
	DC     float64 // 直流值 (V)
	AC     float64 // 交流幅值 (V)
}

// NewVSource 创建电压源, 支路电流在电路中分配
func NewVSource(c *ckt.Circuit, name string, np, nn int, dc float64) *VSource {
	return &VSource{name: name, Np: np, Nn: nn, Br: c.Branch(name), DC: dc}
}

func (v *VSource) Name() string { return v.name }

func (v *VSource) Load(lc *ckt.LoadContext) error {
	val := v.DC
	if lc.Mode.Analysis == types.AnalysisAC {
		val = v.AC
	}
	lc.StampVoltageSource(v.Np, v.Nn, v.Br, val)
	return nil
}

func (v *VSource) Clone() ckt.Device {
	c := *v
	return &c
}

func (v *VSource) Param(name string) (ckt.Param, bool) {
	switch name {
	case "", "dc":
		return ckt.NewRef(&v.DC), true
	case "ac":
		return ckt.NewRef(&v.AC), true
	}
	return nil, false
}

// ISource 独立电流源, 电流从 Np 经源流向 Nn
type ISource struct {
	name   string
	Np, Nn int
	DC     float64 // 直流值 (A)
	AC     float64 // 交流幅值 (A)
}

// NewISource 创建电流源
func NewISource(name string, np, nn int, dc float64) *ISource {
	return &ISource{name: name, Np: np, Nn: nn, DC: dc}
}

func (i *ISource) Name() string { return i.name }

func (i *ISource) Load(lc *ckt.LoadContext) error {
	val := i.DC
	if lc.Mode.Analysis == types.AnalysisAC {
		val = i.AC
	}
	lc.StampCurrentSource(i.Np, i.Nn, val)
	return nil
}

func (i *ISource) Clone() ckt.Device {
	c := *i
	return &c
}

func (i *ISource) Param(name string) (ckt.Param, bool) {
	switch name {
	case "", "dc":
		return ckt.NewRef(&i.DC), true
	case "ac":
		return ckt.NewRef(&i.AC), true
	}
	return nil, false
}
