// Package output 分析结果记录
package output

// Record 一个分析点的结果
type Record struct {
	Seq        int       `yaml:"seq" json:"seq"`               // 扫描序号, 决定存放位置
	Values     []float64 `yaml:"values" json:"values"`         // 扫描变量值
	Data       []float64 `yaml:"data" json:"data"`             // 解向量 (不含地)
	Iterations int       `yaml:"iterations" json:"iterations"` // 收敛所用迭代次数
}

// Sink 结果输出
type Sink interface {
	// Begin 开始记录, n 为预期点数 (未知时为 -1), names 为解向量各项名称
	Begin(n int, names []string) error
	// Append 写入一个点, 按 Seq 定位; 不同 Seq 可并发写入
	Append(rec Record) error
	// End 结束记录
	End() error
	// Paused 报告并清除挂起的暂停请求
	Paused() bool
	// SetDims 更新扫描维度
	SetDims(dims []int)
}
