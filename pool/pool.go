// Package pool 固定线程数的任务池
//
// 任务队列为无锁单链表, 提交与取出都在链表头上做 CAS, 因此取出顺序为后进先出。
// 调用 Run 的协程也参与取任务, 所以 New(n) 只启动 n-1 个后台协程。
package pool

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/constraints"

	"spice/metrics"
	"spice/types"
)

// MaxThreads 线程数上限
const MaxThreads = 128

// Func 任务函数, data 为执行线程的私有数据
type Func func(data any, arg any) error

type job struct {
	fn   Func
	arg  any
	next *job
}

// Pool 任务池
type Pool struct {
	threads int
	data    []any
	head    atomic.Pointer[job]
	stop    atomic.Bool

	mu      sync.Mutex
	wake    *sync.Cond
	done    *sync.Cond
	gen     uint64 // 每次 Run 加一
	active  int    // 本轮尚未完成的后台协程
	closing bool
	err     error

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 创建任务池并启动后台协程
func New(threads int) *Pool {
	threads = clamp(threads, 1, MaxThreads)
	p := &Pool{
		threads: threads,
		data:    make([]any, threads-1),
	}
	p.wake = sync.NewCond(&p.mu)
	p.done = sync.NewCond(&p.mu)
	for i := 0; i < threads-1; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Threads 线程数 (含调用者)
func (p *Pool) Threads() int { return p.threads }

// SetThreadData 设置后台协程 idx 的私有数据
func (p *Pool) SetThreadData(data any, idx int) error {
	if idx < 0 || idx >= len(p.data) {
		return types.BadParam("thread index %d out of range [0, %d)", idx, len(p.data))
	}
	p.mu.Lock()
	p.data[idx] = data
	p.mu.Unlock()
	return nil
}

// Submit 提交任务
func (p *Pool) Submit(fn Func, arg any) {
	j := &job{fn: fn, arg: arg}
	for {
		old := p.head.Load()
		j.next = old
		if p.head.CompareAndSwap(old, j) {
			return
		}
	}
}

func (p *Pool) pop() *job {
	for {
		h := p.head.Load()
		if h == nil {
			return nil
		}
		if p.head.CompareAndSwap(h, h.next) {
			return h
		}
	}
}

// Clear 丢弃尚未取出的任务
func (p *Pool) Clear() { p.head.Store(nil) }

// Run 唤醒后台协程并由调用者一同执行, 直到队列取空且全部协程完成
//
// 任一任务出错后不再取新任务, 已取出的任务照常完成, 返回第一个错误。
func (p *Pool) Run(mainData any) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return types.Internal("run on closed pool")
	}
	p.err = nil
	p.stop.Store(false)
	p.active = p.threads - 1
	p.gen++
	p.wake.Broadcast()
	p.mu.Unlock()

	p.drain(mainData)

	p.mu.Lock()
	for p.active > 0 {
		p.done.Wait()
	}
	err := p.err
	p.mu.Unlock()
	if err != nil {
		p.Clear()
	}
	return err
}

// Close 通知后台协程退出并等待
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.wake.Broadcast()
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker(idx int) {
	defer p.wg.Done()
	var seen uint64
	for {
		p.mu.Lock()
		for !p.closing && p.gen == seen {
			p.wake.Wait()
		}
		if p.closing {
			p.mu.Unlock()
			return
		}
		seen = p.gen
		data := p.data[idx]
		p.mu.Unlock()

		p.drain(data)

		p.mu.Lock()
		p.active--
		if p.active == 0 {
			p.done.Broadcast()
		}
		p.mu.Unlock()
	}
}

func (p *Pool) drain(data any) {
	for !p.stop.Load() {
		j := p.pop()
		if j == nil {
			return
		}
		err := j.fn(data, j.arg)
		metrics.PoolJobs.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			p.fail(err)
		}
	}
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.stop.Store(true)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
