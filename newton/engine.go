// Package newton 阻尼牛顿-拉夫逊迭代
package newton

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"spice/ckt"
	"spice/logging"
	"spice/metrics"
	"spice/types"

	"gonum.org/v1/gonum/floats"
)

// Engine 迭代引擎, 本身无状态, 可被多个 goroutine 共享
type Engine struct {
	Accel  Accelerator
	Logger *slog.Logger
}

// New 创建迭代引擎
func New(logger *slog.Logger) *Engine {
	return &Engine{Accel: NoAccel{}, Logger: logging.OrDefault(logger)}
}

// Run 从 mode 指定的初始化阶段开始迭代直到收敛
//
// 成功返回 nil, 解在 c.Sol.Old(); 失败返回 *types.SolveError。
func (e *Engine) Run(ctx context.Context, c *ckt.Circuit, mode types.Mode, maxIter int) (err error) {
	if maxIter < 1 {
		return types.BadParam("iteration limit %d must be positive", maxIter)
	}
	if c.Sys == nil || c.Sol == nil {
		return types.Internal("circuit %q not set up", c.Name)
	}
	log := logging.OrDefault(e.Logger)
	accel := e.Accel
	if accel == nil {
		accel = NoAccel{}
	}
	defer func() {
		metrics.NewtonPasses.WithLabelValues(mode.Analysis.String(), metrics.Result(err)).Inc()
		if err == nil {
			metrics.NewtonIterations.WithLabelValues(mode.Analysis.String()).Observe(float64(c.Iter))
			return
		}
		if errors.Is(err, types.ErrPause) {
			log.Debug("newton paused", "circuit", c.Name, "iter", c.Iter)
		}
		var se *types.SolveError
		if !errors.As(err, &se) {
			err = &types.SolveError{Op: "newton " + mode.String(), Iteration: c.Iter, Err: err}
		}
	}()

	cfg := &c.Config
	c.Mode = mode
	c.Iter = 0
	reorder := false // 强制重排
	retried := false // 奇异重试只做一次
	ipass := 0       // 节点设置的额外一轮
	for {
		c.Iter++
		c.TotalIter++
		if mode.DC() && cfg.InterruptEvery > 0 && c.Iter%cfg.InterruptEvery == 0 && c.Interrupted(ctx) {
			return types.ErrPause
		}
		if err := c.Load(); err != nil {
			return err
		}
		if cfg.CheckFP {
			if err := c.Sys.Check().Err("load"); err != nil {
				return err
			}
		}

		if reorder || c.Sys.NeedsOrdering() {
			reorder = false
			err = c.Sys.OrderAndFactor()
		} else {
			err = c.Sys.Factor()
		}
		if err != nil {
			if errors.Is(err, types.ErrSingular) && c.Iter == 1 && !retried {
				log.Warn("singular matrix, reloading with reorder", "circuit", c.Name, "phase", c.Mode.Phase, "err", err)
				retried = true
				reorder = true
				c.Iter--
				continue
			}
			return err
		}
		if cfg.CheckFP {
			if err := c.Sys.Check().Err("factor"); err != nil {
				return err
			}
		}

		if err := c.Sys.Solve(c.Sol.New()); err != nil {
			return err
		}
		if cfg.CheckFP {
			if err := c.Sys.Check().Err("solve"); err != nil {
				return err
			}
		}
		c.Sol.Swap()

		if c.Iter > maxIter {
			return types.ErrIterationLimit
		}

		converged, handled := accel.Converged(c)
		if !handled {
			converged = false
			if c.Noncon == 0 && c.Iter != 1 && (c.Mode.Phase == types.PhaseFix || c.Mode.Phase == types.PhaseFloat) {
				converged = Converged(c)
			}
		}
		if log.Enabled(ctx, slog.LevelDebug) {
			log.Debug("newton iteration",
				"circuit", c.Name,
				"iter", c.Iter,
				"phase", c.Mode.Phase,
				"noncon", c.Noncon,
				"converged", converged,
				"delta", floats.Distance(c.Sol.Old(), c.Sol.New(), math.Inf(1)))
		}

		switch c.Mode.Phase {
		case types.PhaseFloat:
			if mode.DC() && mode.Nodeset && ipass > 0 {
				// 节点设置解除后再迭代一轮
				ipass = 0
				converged = false
			}
			if converged {
				return nil
			}
		case types.PhaseJunction:
			c.Mode.Phase = types.PhaseFix
			reorder = true
		case types.PhaseFix:
			if converged {
				c.Mode.Phase = types.PhaseFloat
				ipass = 1
			}
		case types.PhaseTran:
			if c.Iter <= 1 {
				reorder = true
			}
			c.Mode.Phase = types.PhaseFloat
		case types.PhasePred, types.PhaseSmallSignal:
			c.Mode.Phase = types.PhaseFloat
		default:
			return types.Internal("unknown phase %s", c.Mode.Phase)
		}

		if cfg.Mixing > 0 && c.Mode.DC() && c.Iter > 2 {
			mix(c.Sol.Old(), c.Sol.New(), cfg.Mixing)
		}
	}
}

// mix x = (1-a)·x + a·xold
func mix(x, xold []float64, a float64) {
	for i := range x {
		x[i] = (1-a)*x[i] + a*xold[i]
	}
}
