package newton

import "spice/ckt"

// Accelerator 收敛加速钩子
//
// handled 为 true 时以 converged 代替内置收敛检查。
type Accelerator interface {
	Converged(c *ckt.Circuit) (converged, handled bool)
}

// NoAccel 不做任何处理
type NoAccel struct{}

func (NoAccel) Converged(*ckt.Circuit) (bool, bool) { return false, false }
