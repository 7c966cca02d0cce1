package mat

import (
	"fmt"
	"math"
	"strings"

	"spice/types"
)

// FPFlags 浮点异常标志
//
// 运算不留下硬件异常状态, 只能从结果数值判断:
// 溢出与除零都表现为 ±Inf, 无法区分。
type FPFlags uint8

const (
	FPInvalid   FPFlags = 1 << iota // NaN
	FPInfinite                      // ±Inf (溢出或除零)
	FPUnderflow                     // 非规格化数
)

// Fatal 是否需要终止迭代 (下溢忽略)
func (f FPFlags) Fatal() bool { return f&(FPInvalid|FPInfinite) != 0 }

func (f FPFlags) String() string {
	if f == 0 {
		return "none"
	}
	var s []string
	if f&FPInvalid != 0 {
		s = append(s, "invalid")
	}
	if f&FPInfinite != 0 {
		s = append(s, "overflow/divide-by-zero")
	}
	if f&FPUnderflow != 0 {
		s = append(s, "underflow")
	}
	return strings.Join(s, "|")
}

// Err 转为错误, 非致命时返回 nil
func (f FPFlags) Err(where string) error {
	if !f.Fatal() {
		return nil
	}
	return fmt.Errorf("%w: %s after %s", types.ErrFloatingPoint, f&^FPUnderflow, where)
}

// ScanFP 扫描数值
func ScanFP(vs ...[]float64) (f FPFlags) {
	for _, v := range vs {
		for _, x := range v {
			switch {
			case math.IsNaN(x):
				f |= FPInvalid
			case math.IsInf(x, 0):
				f |= FPInfinite
			case x != 0 && math.Abs(x) < 0x1p-1022:
				f |= FPUnderflow
			}
		}
	}
	return f
}
