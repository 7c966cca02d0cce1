package sweep

import (
	"fmt"
	"math"
	"strings"

	"spice/ckt"
	"spice/types"
)

// FreqKind 频率扫描方式
type FreqKind uint8

const (
	FreqLin FreqKind = iota // 线性, Points 为总点数
	FreqDec                 // 十倍频, Points 为每十倍频点数
	FreqOct                 // 倍频, Points 为每倍频点数
)

func (k FreqKind) String() string {
	switch k {
	case FreqLin:
		return "lin"
	case FreqDec:
		return "dec"
	case FreqOct:
		return "oct"
	}
	return fmt.Sprintf("freq(%d)", uint8(k))
}

// ParseFreqKind 解析扫描方式
func ParseFreqKind(s string) (FreqKind, error) {
	switch strings.ToLower(s) {
	case "lin":
		return FreqLin, nil
	case "dec":
		return FreqDec, nil
	case "oct":
		return FreqOct, nil
	}
	return 0, types.BadParam("unknown frequency sweep %q", s)
}

// FreqGrid 频率扫描
type FreqGrid struct {
	Kind   FreqKind `yaml:"kind"`
	Points int      `yaml:"points"`
	Start  float64  `yaml:"start"`
	Stop   float64  `yaml:"stop"`
}

// Level 转为扫描层, 参数为电路频率
func (f FreqGrid) Level() (ckt.Level, error) {
	if f.Points < 1 {
		return ckt.Level{}, types.BadParam("frequency sweep needs at least one point")
	}
	if f.Start <= 0 || f.Stop < f.Start {
		return ckt.Level{}, types.BadParam("frequency range %g..%g invalid", f.Start, f.Stop)
	}
	l := ckt.Level{Param: "freq", Start: f.Start, Stop: f.Stop}
	switch f.Kind {
	case FreqLin:
		if f.Points > 1 {
			l.Step = (f.Stop - f.Start) / float64(f.Points-1)
		}
	case FreqDec:
		l.Geometric = true
		l.Step = math.Pow(10, 1/float64(f.Points))
	case FreqOct:
		l.Geometric = true
		l.Step = math.Pow(2, 1/float64(f.Points))
	default:
		return ckt.Level{}, types.BadParam("unknown frequency sweep %s", f.Kind)
	}
	if l.Geometric && f.Start == f.Stop {
		// 单点几何扫描退化为线性零步长
		l.Geometric = false
		l.Step = 0
	}
	return l, nil
}
