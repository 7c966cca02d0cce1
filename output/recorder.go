package output

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"spice/types"
)

// Recorder 内存结果记录
//
// Begin 给出点数时预先分配, Append 按 Seq 落位, 可并发调用。
type Recorder struct {
	mu      sync.Mutex
	names   []string
	records []Record
	filled  []bool
	dims    []int
	open    bool
	pause   atomic.Bool
}

// NewRecorder 创建记录器
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Begin(n int, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append([]string(nil), names...)
	r.records, r.filled, r.dims = nil, nil, nil
	if n > 0 {
		r.records = make([]Record, n)
		r.filled = make([]bool, n)
	}
	r.open = true
	return nil
}

func (r *Recorder) Append(rec Record) error {
	if rec.Seq < 0 {
		return types.BadParam("record sequence %d", rec.Seq)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.records) <= rec.Seq {
		r.records = append(r.records, Record{})
		r.filled = append(r.filled, false)
	}
	r.records[rec.Seq] = rec
	r.filled[rec.Seq] = true
	return nil
}

func (r *Recorder) End() error {
	r.mu.Lock()
	r.open = false
	r.mu.Unlock()
	return nil
}

// RequestPause 请求暂停, 由下一次 Paused 消费
func (r *Recorder) RequestPause() { r.pause.Store(true) }

func (r *Recorder) Paused() bool { return r.pause.CompareAndSwap(true, false) }

func (r *Recorder) SetDims(dims []int) {
	r.mu.Lock()
	r.dims = append([]int(nil), dims...)
	r.mu.Unlock()
}

// Dims 最近一次设置的维度
func (r *Recorder) Dims() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.dims...)
}

// Names 解向量各项名称
func (r *Recorder) Names() []string { return r.names }

// Open 是否处于 Begin 与 End 之间
func (r *Recorder) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Records 已写入的记录, 按序号排列
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for i, rec := range r.records {
		if r.filled[i] {
			out = append(out, rec)
		}
	}
	return out
}

// Column 按名称取出一列
func (r *Recorder) Column(name string) ([]float64, bool) {
	idx := -1
	for i, n := range r.names {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	recs := r.Records()
	col := make([]float64, len(recs))
	for i, rec := range recs {
		col[i] = rec.Data[idx]
	}
	return col, true
}

// Render JSON 格式输出全部记录
func (r *Recorder) Render(w io.Writer) error {
	out := struct {
		Names   []string `json:"names"`
		Dims    []int    `json:"dims"`
		Records []Record `json:"records"`
	}{r.names, r.Dims(), r.Records()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
