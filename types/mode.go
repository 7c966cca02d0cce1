package types

import "fmt"

// Analysis 分析类型
type Analysis uint8

const (
	AnalysisDC   Analysis = iota // 直流工作点/直流扫描
	AnalysisAC                   // 小信号交流扫描
	AnalysisTran                 // 瞬态
)

func (a Analysis) String() string {
	switch a {
	case AnalysisDC:
		return "dc"
	case AnalysisAC:
		return "ac"
	case AnalysisTran:
		return "tran"
	}
	return fmt.Sprintf("analysis(%d)", uint8(a))
}

// Phase 迭代初始化阶段
type Phase uint8

const (
	PhaseJunction    Phase = iota // 结电压初值
	PhaseFix                      // 固定关断器件
	PhaseFloat                    // 自由迭代
	PhasePred                     // 预测初值
	PhaseTran                     // 瞬态首点
	PhaseSmallSignal              // 小信号
)

var phaseNames = [...]string{"junction", "fix", "float", "pred", "tran", "small_signal"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// OneShot 只执行一次后转入 PhaseFloat 的阶段
func (p Phase) OneShot() bool {
	return p == PhasePred || p == PhaseTran || p == PhaseSmallSignal
}

// Mode 分析模式
type Mode struct {
	Analysis  Analysis // 分析类型
	Phase     Phase    // 初始化阶段
	Nodeset   bool     // 节点设置一次性直流
	Frequency float64  // 交流频率
}

// DC 是否为直流类分析
func (m Mode) DC() bool { return m.Analysis == AnalysisDC }

func (m Mode) String() string {
	if m.Nodeset {
		return m.Analysis.String() + "/" + m.Phase.String() + "+nodeset"
	}
	return m.Analysis.String() + "/" + m.Phase.String()
}

// ParamMode 扫描参数保存策略
type ParamMode uint8

const (
	ParamEnhanced ParamMode = iota // 暂停时从器件回读当前值
	ParamLegacy                    // 仅使用扫描器自身记录的值
)

func (m ParamMode) String() string {
	if m == ParamLegacy {
		return "legacy"
	}
	return "enhanced"
}

// MarshalText 文本编码
func (m ParamMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText 文本解码
func (m *ParamMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "enhanced":
		*m = ParamEnhanced
	case "legacy":
		*m = ParamLegacy
	default:
		return BadParam("unknown param mode %q", string(b))
	}
	return nil
}
