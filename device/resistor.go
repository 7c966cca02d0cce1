// Package device 参考器件
package device

import (
	"spice/ckt"
	"spice/types"
)

// Resistor 电阻
type Resistor struct {
	name   string
	N1, N2 int
	R      float64 // 阻值 (Ω)
}

// NewResistor 创建电阻
func NewResistor(name string, n1, n2 int, r float64) (*Resistor, error) {
	if r == 0 {
		return nil, types.BadParam("resistor %s has zero resistance", name)
	}
	return &Resistor{name: name, N1: n1, N2: n2, R: r}, nil
}

func (r *Resistor) Name() string { return r.name }

func (r *Resistor) Load(lc *ckt.LoadContext) error {
	lc.StampConductance(r.N1, r.N2, 1/r.R)
	return nil
}

func (r *Resistor) Clone() ckt.Device {
	c := *r
	return &c
}

func (r *Resistor) Param(name string) (ckt.Param, bool) {
	if name == "" || name == "r" {
		return ckt.NewRef(&r.R), true
	}
	return nil, false
}

// VCCS 压控电流源
type VCCS struct {
	name           string
	N1, N2, C1, C2 int
	Gm             float64 // 跨导 (S)
}

// NewVCCS 创建压控电流源
func NewVCCS(name string, n1, n2, c1, c2 int, gm float64) *VCCS {
	return &VCCS{name: name, N1: n1, N2: n2, C1: c1, C2: c2, Gm: gm}
}

func (g *VCCS) Name() string { return g.name }

func (g *VCCS) Load(lc *ckt.LoadContext) error {
	lc.StampVCCS(g.N1, g.N2, g.C1, g.C2, g.Gm)
	return nil
}

func (g *VCCS) Clone() ckt.Device {
	c := *g
	return &c
}

func (g *VCCS) Param(name string) (ckt.Param, bool) {
	if name == "" || name == "gm" {
		return ckt.NewRef(&g.Gm), true
	}
	return nil, false
}
