package mat

// Arena 按矩阵规模分配的命名向量
//
// 规模变化时全部向量作废重新分配, 调用方不应长期持有返回的切片。
type Arena struct {
	n    int
	vecs map[string][]float64
}

// NewArena 创建规模 n 的向量池, 向量长度 n+1
func NewArena(n int) *Arena {
	return &Arena{n: n, vecs: make(map[string][]float64)}
}

// Size 矩阵规模
func (a *Arena) Size() int { return a.n }

// Vec 取得命名向量, 首次使用时为零
func (a *Arena) Vec(name string) []float64 {
	v, ok := a.vecs[name]
	if !ok {
		v = make([]float64, a.n+1)
		a.vecs[name] = v
	}
	return v
}

// Has 是否已分配
func (a *Arena) Has(name string) bool {
	_, ok := a.vecs[name]
	return ok
}

// Drop 释放命名向量
func (a *Arena) Drop(name string) { delete(a.vecs, name) }

// Resize 改变规模
func (a *Arena) Resize(n int) {
	if n == a.n {
		return
	}
	a.n = n
	clear(a.vecs)
}

// Clone 深拷贝
func (a *Arena) Clone() *Arena {
	c := NewArena(a.n)
	for k, v := range a.vecs {
		c.vecs[k] = append([]float64(nil), v...)
	}
	return c
}
