package types

import (
	"errors"
	"fmt"
	"strings"
)

// 求解错误分类
var (
	ErrIterationLimit = errors.New("iteration limit reached")
	ErrSingular       = errors.New("singular matrix")
	ErrFloatingPoint  = errors.New("floating point exception")
	ErrPause          = errors.New("analysis paused")
	ErrInternal       = errors.New("internal error")
	ErrBadParam       = errors.New("bad parameter")
)

// BadParam 参数错误
func BadParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadParam, fmt.Sprintf(format, args...))
}

// Internal 内部逻辑错误
func Internal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// SolveError 附带迭代次数和扫描值的求解错误
type SolveError struct {
	Op        string    // 操作
	Iteration int       // 失败时的迭代次数
	Values    []float64 // 当前扫描值
	Err       error
}

func (e *SolveError) Error() string {
	parts := make([]string, 0, 2)
	if e.Iteration > 0 {
		parts = append(parts, fmt.Sprintf("iteration %d", e.Iteration))
	}
	if len(e.Values) > 0 {
		vs := make([]string, len(e.Values))
		for i, v := range e.Values {
			vs[i] = fmt.Sprintf("%g", v)
		}
		parts = append(parts, "at "+strings.Join(vs, " "))
	}
	if len(parts) == 0 {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, strings.Join(parts, ", "), e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// WithValues 为已有错误附加扫描值, 不重复包装
func WithValues(err error, op string, values ...float64) error {
	if err == nil {
		return nil
	}
	var se *SolveError
	if errors.As(err, &se) {
		if len(se.Values) == 0 {
			se.Values = append([]float64(nil), values...)
		}
		return err
	}
	return &SolveError{Op: op, Values: append([]float64(nil), values...), Err: err}
}
