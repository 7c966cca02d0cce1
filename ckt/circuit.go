// Package ckt 电路状态、器件接口和分析任务
package ckt

import (
	"context"
	"fmt"
	"strings"

	"spice/mat"
	"spice/types"
)

// Unknown 未知量
type Unknown struct {
	Name   string
	Branch bool // 支路电流, 否则为节点电压
}

// Circuit 电路状态
//
// 一个 Circuit 只能由一个 goroutine 使用, 并行扫描时每个 worker 持有独立克隆。
type Circuit struct {
	Name   string
	Config types.Config
	Mode   types.Mode
	Sys    mat.LinearSystem // 线性系统
	Sol    *mat.PingPong    // 新旧解
	Arena  *mat.Arena       // 命名向量
	Job    *Job             // 当前分析任务
	Freq   float64          // 交流分析频率

	Iter      int // 当前求解的迭代次数
	TotalIter int // 累计迭代次数
	DCPoints  int // 已完成的直流点数
	Noncon    int // 最近一次加盖的未收敛计数

	unknowns []Unknown
	index    map[string]int
	devices  []Device
	byName   map[string]Device
	lc       LoadContext
	clone    bool
}

// New 创建空电路, 未知量 0 为地
func New(name string, cfg types.Config) *Circuit {
	return &Circuit{
		Name:     name,
		Config:   cfg,
		unknowns: []Unknown{{Name: "0"}},
		index:    map[string]int{"0": 0, "gnd": 0},
		byName:   make(map[string]Device),
	}
}

// Node 取得节点编号, 不存在时创建
func (c *Circuit) Node(name string) int {
	key := strings.ToLower(name)
	if i, ok := c.index[key]; ok {
		return i
	}
	c.unknowns = append(c.unknowns, Unknown{Name: key})
	c.index[key] = len(c.unknowns) - 1
	return len(c.unknowns) - 1
}

const branchSuffix = "#branch"

// Branch 为器件分配支路电流未知量
func (c *Circuit) Branch(device string) int {
	key := strings.ToLower(device) + branchSuffix
	if i, ok := c.index[key]; ok {
		return i
	}
	c.unknowns = append(c.unknowns, Unknown{Name: key, Branch: true})
	c.index[key] = len(c.unknowns) - 1
	return len(c.unknowns) - 1
}

// Add 添加器件
func (c *Circuit) Add(d Device) error {
	key := strings.ToLower(d.Name())
	if _, ok := c.byName[key]; ok {
		return types.BadParam("duplicate device %q", d.Name())
	}
	c.byName[key] = d
	c.devices = append(c.devices, d)
	return nil
}

// Setup 按未知量个数分配线性系统和缓冲
func (c *Circuit) Setup() error {
	n := c.Size()
	if n < 1 {
		return types.BadParam("circuit %q has no unknowns", c.Name)
	}
	if len(c.devices) == 0 {
		return types.BadParam("circuit %q has no devices", c.Name)
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Sys == nil || c.Sys.Size() != n {
		c.Sys = mat.NewDense(n)
	}
	c.Sol = mat.NewPingPong(n + 1)
	if c.Arena == nil {
		c.Arena = mat.NewArena(n)
	} else {
		c.Arena.Resize(n)
	}
	return nil
}

// Size 未知量个数 (不含地)
func (c *Circuit) Size() int { return len(c.unknowns) - 1 }

// Unknowns 全部未知量, 下标 0 为地
func (c *Circuit) Unknowns() []Unknown { return c.unknowns }

// Names 解向量各项名称 (不含地)
func (c *Circuit) Names() []string {
	names := make([]string, 0, c.Size())
	for _, u := range c.unknowns[1:] {
		if u.Branch {
			names = append(names, "i("+strings.TrimSuffix(u.Name, branchSuffix)+")")
		} else {
			names = append(names, "v("+u.Name+")")
		}
	}
	return names
}

// Index 未知量编号
func (c *Circuit) Index(name string) (int, bool) {
	i, ok := c.index[strings.ToLower(name)]
	return i, ok
}

// Devices 器件列表
func (c *Circuit) Devices() []Device { return c.devices }

// Device 按名称查找器件
func (c *Circuit) Device(name string) (Device, bool) {
	d, ok := c.byName[strings.ToLower(name)]
	return d, ok
}

// Param 解析参数引用 "freq", "V1" 或 "V1:dc"
func (c *Circuit) Param(ref string) (Param, error) {
	if strings.EqualFold(ref, "freq") {
		return NewRef(&c.Freq), nil
	}
	name, param, _ := strings.Cut(ref, ":")
	d, ok := c.Device(name)
	if !ok {
		return nil, types.BadParam("unknown device %q", name)
	}
	t, ok := d.(Tunable)
	if !ok {
		return nil, types.BadParam("device %q has no sweepable parameter", name)
	}
	p, ok := t.Param(strings.ToLower(param))
	if !ok {
		return nil, types.BadParam("device %q has no parameter %q", name, param)
	}
	return p, nil
}

// Solution 当前解
func (c *Circuit) Solution() []float64 { return c.Sol.Old() }

// Value 按名称读取解, 节点名或 "器件#branch"
func (c *Circuit) Value(name string) (float64, bool) {
	i, ok := c.Index(name)
	if !ok {
		return 0, false
	}
	return c.Sol.Old()[i], true
}

// Load 清空线性系统后由全部器件加盖
func (c *Circuit) Load() error {
	c.Sys.Clear()
	c.lc = LoadContext{Mode: c.Mode, X: c.Sol.Old(), Sys: c.Sys, Config: &c.Config}
	for _, d := range c.devices {
		if err := d.Load(&c.lc); err != nil {
			return fmt.Errorf("load %s: %w", d.Name(), err)
		}
	}
	c.Noncon = c.lc.noncon
	return nil
}

// Seed 以 x 为上一次加盖的试探解设置器件工作状态
//
// 热启动时工作状态只取决于 x, 与之前求解过哪些点无关。
func (c *Circuit) Seed(x []float64) {
	for _, d := range c.devices {
		if s, ok := d.(Seeder); ok {
			s.Seed(x)
		}
	}
}

// DevicesConverged 器件收敛检查, 使用当前解
func (c *Circuit) DevicesConverged() bool {
	c.lc.X = c.Sol.Old()
	for _, d := range c.devices {
		if cv, ok := d.(Converger); ok && !cv.Converged(&c.lc) {
			return false
		}
	}
	return true
}

// Interrupted 检查中断, 克隆电路只响应 ctx
func (c *Circuit) Interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if c.clone || c.Job == nil || c.Job.Sink == nil {
		return false
	}
	return c.Job.Sink.Paused()
}

// Clone 创建独立求解的副本
//
// 无状态器件共享, 实现 Cloner 的器件复制; 线性系统和缓冲各自独立。
func (c *Circuit) Clone() *Circuit {
	n := &Circuit{
		Name:     c.Name,
		Config:   c.Config,
		Mode:     c.Mode,
		Job:      c.Job,
		Freq:     c.Freq,
		unknowns: c.unknowns,
		index:    c.index,
		devices:  make([]Device, len(c.devices)),
		byName:   make(map[string]Device, len(c.byName)),
		clone:    true,
	}
	for i, d := range c.devices {
		if cl, ok := d.(Cloner); ok {
			d = cl.Clone()
		}
		n.devices[i] = d
		n.byName[strings.ToLower(d.Name())] = d
	}
	if c.Sys != nil {
		n.Sys = c.Sys.Clone()
	}
	if c.Sol != nil {
		n.Sol = c.Sol.Clone()
	}
	if c.Arena != nil {
		n.Arena = c.Arena.Clone()
	}
	return n
}

// IsClone 是否为并行克隆
func (c *Circuit) IsClone() bool { return c.clone }
