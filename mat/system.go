// Package mat 线性系统及求解缓冲区
package mat

// LinearSystem MNA 线性系统
//
// 行列下标 1..Size() 对应电路未知量, 下标 0 为地, 写入时忽略。
type LinearSystem interface {
	Size() int                     // 未知量个数
	Clear()                        // 清空矩阵和右侧向量
	AddMatrix(i, j int, v float64) // 在 (i,j) 叠加值
	AddRHS(i int, v float64)       // 在右侧向量 i 叠加值
	NeedsOrdering() bool           // 结构是否变化需要重排
	OrderAndFactor() error         // 重排并分解
	Factor() error                 // 按已有排序分解
	Solve(x []float64) error       // 求解到 x (长度 Size()+1, x[0] 恒为 0)
	Check() FPFlags                // 检查最近一步产生的数值
	Clone() LinearSystem           // 相同规模的空系统
}
