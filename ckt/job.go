package ckt

import (
	"math"

	"spice/output"
	"spice/types"

	"github.com/google/uuid"
)

// MaxLevels 扫描最大层数
const MaxLevels = 2

// Level 一层扫描变量
type Level struct {
	Param     string  `yaml:"param" mapstructure:"param"`         // 参数引用
	Start     float64 `yaml:"start" mapstructure:"start"`         // 起始值
	Stop      float64 `yaml:"stop" mapstructure:"stop"`           // 终止值
	Step      float64 `yaml:"step" mapstructure:"step"`           // 步长, 几何扫描时为倍率
	Geometric bool    `yaml:"geometric" mapstructure:"geometric"` // 几何扫描
}

// Checkpoint 扫描断点
//
// 下标 0 为内层 (快变), 1 为外层 (慢变)。
type Checkpoint struct {
	Active      bool       `yaml:"active"`       // 存在未完成的扫描
	Level       int        `yaml:"level"`        // 恢复时继续的层
	Seq         int        `yaml:"seq"`          // 下一个点的序号
	Values      [2]float64 `yaml:"values"`       // 当前各层扫描值
	Counts      [2]int     `yaml:"counts"`       // 各层已完成点数 (内层为本轮)
	Saved       [2]float64 `yaml:"saved"`        // 扫描前的参数原值
	SkipReentry bool       `yaml:"skip_reentry"` // 恢复时跳过重入簿记
	Dims        [3]int     `yaml:"dims"`         // 外层完成数, 内层完成数, 内层块大小
}

// Reset 清除断点
func (cp *Checkpoint) Reset() { *cp = Checkpoint{} }

// Job 分析任务
type Job struct {
	ID         string          `yaml:"id"`
	Analysis   types.Analysis  `yaml:"analysis"`
	Levels     []Level         `yaml:"levels"`
	MaxIter    int             `yaml:"max_iter"`
	RelTol     float64         `yaml:"reltol"`
	Threads    int             `yaml:"threads"`
	DoLast     bool            `yaml:"do_last"`
	ParamMode  types.ParamMode `yaml:"param_mode"`
	Checkpoint Checkpoint      `yaml:"checkpoint"`
	Sink       output.Sink     `yaml:"-"`
}

// NewJob 按配置创建任务
func NewJob(a types.Analysis, cfg types.Config, sink output.Sink, levels ...Level) (*Job, error) {
	j := &Job{
		ID:        uuid.NewString(),
		Analysis:  a,
		Levels:    levels,
		MaxIter:   cfg.SweepMaxIter,
		RelTol:    cfg.RelTol,
		Threads:   cfg.Threads,
		DoLast:    cfg.DoLast,
		ParamMode: cfg.ParamMode,
		Sink:      sink,
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate 在任何迭代之前检查任务参数
func (j *Job) Validate() error {
	if len(j.Levels) > MaxLevels {
		return types.BadParam("%d sweep levels, at most %d", len(j.Levels), MaxLevels)
	}
	if j.MaxIter < 1 {
		return types.BadParam("iteration limit %d must be positive", j.MaxIter)
	}
	if j.RelTol <= 0 || j.RelTol >= 0.5 {
		return types.BadParam("reltol %g out of range (0, 0.5)", j.RelTol)
	}
	if j.Threads < 0 {
		return types.BadParam("threads %d must not be negative", j.Threads)
	}
	for i, l := range j.Levels {
		if l.Param == "" {
			return types.BadParam("level %d has no parameter", i)
		}
		for _, v := range []float64{l.Start, l.Stop, l.Step} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return types.BadParam("level %d (%s) has non-finite bounds", i, l.Param)
			}
		}
		if l.Geometric && (l.Start <= 0 || l.Stop <= 0 || l.Step <= 0 || l.Step == 1) {
			return types.BadParam("level %d (%s) geometric sweep needs positive bounds and a factor other than 1", i, l.Param)
		}
	}
	return nil
}
