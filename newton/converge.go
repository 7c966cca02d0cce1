package newton

import (
	"math"

	"spice/ckt"
)

// Converged 比较最近两次迭代的解, 再检查器件收敛
//
// 节点电压: |x-xold| <= reltol·max(|x|,|xold|) + vntol
// 支路电流: |x-xold| <= reltol·max(|x|,|xold|) + abstol
func Converged(c *ckt.Circuit) bool {
	cfg := &c.Config
	x, xold := c.Sol.Old(), c.Sol.New()
	for i, u := range c.Unknowns() {
		if i == 0 {
			continue
		}
		tol := cfg.RelTol * math.Max(math.Abs(x[i]), math.Abs(xold[i]))
		if u.Branch {
			tol += cfg.AbsTol
		} else {
			tol += cfg.VnTol
		}
		// NaN 视为未收敛
		if !(math.Abs(x[i]-xold[i]) <= tol) {
			return false
		}
	}
	return c.DevicesConverged()
}
