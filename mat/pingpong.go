package mat

// PingPong 新旧解双缓冲
//
// 每次迭代求解写入 New, 交换后成为 Old, 不复制数据。
type PingPong struct {
	buf [2][]float64
	cur int
}

// NewPingPong 创建长度 n 的双缓冲
func NewPingPong(n int) *PingPong {
	return &PingPong{buf: [2][]float64{make([]float64, n), make([]float64, n)}}
}

// Old 当前解 (最近一次交换后的结果)
func (p *PingPong) Old() []float64 { return p.buf[p.cur] }

// New 下一次求解的写入目标
func (p *PingPong) New() []float64 { return p.buf[1-p.cur] }

// Swap 交换新旧
func (p *PingPong) Swap() { p.cur ^= 1 }

func (p *PingPong) Len() int { return len(p.buf[0]) }

// Reset 清零两个缓冲
func (p *PingPong) Reset() {
	clear(p.buf[0])
	clear(p.buf[1])
	p.cur = 0
}

// Clone 深拷贝
func (p *PingPong) Clone() *PingPong {
	return &PingPong{
		buf: [2][]float64{append([]float64(nil), p.buf[0]...), append([]float64(nil), p.buf[1]...)},
		cur: p.cur,
	}
}
