package mat

import (
	"fmt"
	"math"

	"spice/types"

	gonum "gonum.org/v1/gonum/mat"
)

type stage uint8

const (
	stageLoad stage = iota
	stageFactor
	stageSolve
)

// Dense 稠密 LU 线性系统
type Dense struct {
	n       int
	a       *gonum.Dense    // 原始矩阵 A
	b       *gonum.Dense    // 列重排后的矩阵 B = A·P
	rhs     []float64       // 右侧向量 (下标 0 为地)
	y       *gonum.VecDense // B·y = rhs 的解
	lu      gonum.LU        // LU分解器
	u       gonum.TriDense  // 上三角因子
	pattern []bool          // 结构非零位置
	perm    []int           // 内部列 k 对应外部列 perm[k]
	changed bool            // 结构有新增
	ordered bool            // 已完成排序
	stage   stage
}

// NewDense 创建 n 个未知量的线性系统
func NewDense(n int) *Dense {
	if n < 1 {
		panic(fmt.Sprintf("mat: system size %d must be positive", n))
	}
	d := &Dense{
		n:       n,
		a:       gonum.NewDense(n, n, nil),
		b:       gonum.NewDense(n, n, nil),
		rhs:     make([]float64, n+1),
		y:       gonum.NewVecDense(n, nil),
		pattern: make([]bool, n*n),
		perm:    make([]int, n),
	}
	for k := range d.perm {
		d.perm[k] = k
	}
	return d
}

func (d *Dense) Size() int { return d.n }

// Clear 清空数值, 保留结构
func (d *Dense) Clear() {
	d.a.Zero()
	clear(d.rhs)
	d.stage = stageLoad
}

// AddMatrix 叠加矩阵元素
func (d *Dense) AddMatrix(i, j int, v float64) {
	if i <= 0 || j <= 0 {
		return
	}
	i, j = i-1, j-1
	if k := i*d.n + j; !d.pattern[k] {
		d.pattern[k] = true
		d.changed = true
	}
	d.a.Set(i, j, d.a.At(i, j)+v)
}

// AddRHS 叠加右侧向量
func (d *Dense) AddRHS(i int, v float64) {
	if i <= 0 {
		return
	}
	d.rhs[i] += v
}

func (d *Dense) NeedsOrdering() bool { return !d.ordered || d.changed }

// OrderAndFactor 重新计算列排序后分解
func (d *Dense) OrderAndFactor() error {
	preorder(d.a, d.perm)
	d.changed = false
	d.ordered = true
	return d.Factor()
}

// Factor 使用当前列排序分解
func (d *Dense) Factor() error {
	if !d.ordered {
		return types.Internal("factor before ordering")
	}
	for k, c := range d.perm {
		for i := 0; i < d.n; i++ {
			d.b.Set(i, k, d.a.At(i, c))
		}
	}
	d.lu.Factorize(d.b)
	d.lu.UTo(&d.u)
	d.stage = stageFactor
	for k := 0; k < d.n; k++ {
		if d.u.At(k, k) == 0 {
			return fmt.Errorf("%w: zero pivot in column %d", types.ErrSingular, d.perm[k]+1)
		}
	}
	c := d.lu.Cond()
	switch {
	case math.IsNaN(c):
		return fmt.Errorf("%w: %s in factors", types.ErrFloatingPoint, FPInvalid)
	case math.IsInf(c, 1) || c > gonum.ConditionTolerance:
		return fmt.Errorf("%w: condition number %g", types.ErrSingular, c)
	}
	return nil
}

// Solve 求解 A·x = rhs, 之后右侧向量清零
func (d *Dense) Solve(x []float64) error {
	if len(x) != d.n+1 {
		return types.Internal("solution length %d, want %d", len(x), d.n+1)
	}
	if d.stage != stageFactor {
		return types.Internal("solve before factor")
	}
	rhs := gonum.NewVecDense(d.n, d.rhs[1:])
	if err := d.lu.SolveVecTo(d.y, false, rhs); err != nil {
		if _, ok := err.(gonum.Condition); !ok {
			return fmt.Errorf("%w: %v", types.ErrSingular, err)
		}
	}
	// x = P·y
	x[0] = 0
	for k, c := range d.perm {
		x[c+1] = d.y.AtVec(k)
	}
	clear(d.rhs)
	d.stage = stageSolve
	return nil
}

// Check 扫描最近一步的数值
func (d *Dense) Check() FPFlags {
	switch d.stage {
	case stageFactor:
		return ScanFP(d.u.RawTriangular().Data)
	case stageSolve:
		return ScanFP(d.y.RawVector().Data)
	}
	return ScanFP(d.a.RawMatrix().Data, d.rhs)
}

// Clone 创建同规模的空系统
func (d *Dense) Clone() LinearSystem { return NewDense(d.n) }

// At 读取矩阵元素 (测试和调试用)
func (d *Dense) At(i, j int) float64 {
	if i <= 0 || j <= 0 {
		return 0
	}
	return d.a.At(i-1, j-1)
}

// RHS 右侧向量
func (d *Dense) RHS() []float64 { return d.rhs }

// Perm 当前列排序
func (d *Dense) Perm() []int { return d.perm }
