package types

// 默认参数常量定义
const (
	DefaultRelTol         = 1e-3    // 相对容差
	DefaultAbsTol         = 1e-12   // 支路电流绝对容差
	DefaultVnTol          = 1e-6    // 节点电压绝对容差
	DefaultGmin           = 1e-12   // 结最小电导
	DefaultMaxIter        = 100     // 工作点最大迭代次数
	DefaultSweepMaxIter   = 50      // 扫描点最大迭代次数
	DefaultInterruptEvery = 8       // 中断轮询间隔
	MinSweepStep          = 1e-9    // 零步长修正的最小步长
	MaxSweepPoints        = 1 << 20 // 一次扫描的最大点数
)

// Config 求解配置
type Config struct {
	RelTol         float64   `yaml:"reltol" mapstructure:"reltol"`                   // 相对容差
	AbsTol         float64   `yaml:"abstol" mapstructure:"abstol"`                   // 电流绝对容差
	VnTol          float64   `yaml:"vntol" mapstructure:"vntol"`                     // 电压绝对容差
	Gmin           float64   `yaml:"gmin" mapstructure:"gmin"`                       // 最小电导
	MaxIter        int       `yaml:"max_iter" mapstructure:"max_iter"`               // 工作点迭代上限
	SweepMaxIter   int       `yaml:"sweep_max_iter" mapstructure:"sweep_max_iter"`   // 扫描点迭代上限
	Mixing         float64   `yaml:"mixing" mapstructure:"mixing"`                   // 新旧解混合系数, 0 关闭
	CheckFP        bool      `yaml:"check_fp" mapstructure:"check_fp"`               // 浮点异常检查
	InterruptEvery int       `yaml:"interrupt_every" mapstructure:"interrupt_every"` // 中断轮询间隔, 0 关闭
	Threads        int       `yaml:"threads" mapstructure:"threads"`                 // 并行扫描线程数
	DoLast         bool      `yaml:"do_last" mapstructure:"do_last"`                 // 末点对齐终止值
	ParamMode      ParamMode `yaml:"param_mode" mapstructure:"-"`                    // 扫描参数保存策略, 文本形式
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		RelTol:         DefaultRelTol,
		AbsTol:         DefaultAbsTol,
		VnTol:          DefaultVnTol,
		Gmin:           DefaultGmin,
		MaxIter:        DefaultMaxIter,
		SweepMaxIter:   DefaultSweepMaxIter,
		CheckFP:        true,
		InterruptEvery: DefaultInterruptEvery,
		Threads:        1,
		ParamMode:      ParamEnhanced,
	}
}

// Validate 检查配置
func (c Config) Validate() error {
	switch {
	case c.RelTol <= 0 || c.RelTol >= 0.5:
		return BadParam("reltol %g out of range (0, 0.5)", c.RelTol)
	case c.AbsTol <= 0:
		return BadParam("abstol %g must be positive", c.AbsTol)
	case c.VnTol <= 0:
		return BadParam("vntol %g must be positive", c.VnTol)
	case c.Gmin < 0:
		return BadParam("gmin %g must not be negative", c.Gmin)
	case c.MaxIter < 1 || c.SweepMaxIter < 1:
		return BadParam("iteration limits must be positive")
	case c.Mixing < 0 || c.Mixing >= 1:
		return BadParam("mixing %g out of range [0, 1)", c.Mixing)
	case c.InterruptEvery < 0:
		return BadParam("interrupt cadence %d must not be negative", c.InterruptEvery)
	case c.Threads < 0:
		return BadParam("threads %d must not be negative", c.Threads)
	}
	return nil
}
