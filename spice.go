// Package spice 分析会话: 电路、结果记录、断点存储和迭代引擎的组合
package spice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spice/analysis"
	"spice/checkpoint"
	"spice/ckt"
	"spice/logging"
	"spice/newton"
	"spice/output"
	"spice/parallel"
	"spice/sweep"
	"spice/types"
)

// Session 一次分析会话
//
// 同一时间只运行一个分析。Pause 可从其他 goroutine 调用,
// 顺序扫描在下一个扫描点处暂停, 有 Store 时同时保存断点。
type Session struct {
	ID      string
	Netlist string // 网表路径, 随断点保存
	Circuit *ckt.Circuit
	Sink    *output.Recorder
	Store   checkpoint.Store // 可为 nil
	Engine  *newton.Engine
	Logger  *slog.Logger
	Warm    bool // 直流扫描以上一点为初值

	freq *sweep.FreqGrid
}

// NewSession 创建会话, 电路须已完成 Setup
func NewSession(c *ckt.Circuit, store checkpoint.Store, logger *slog.Logger) *Session {
	logger = logging.OrDefault(logger)
	return &Session{
		ID:      uuid.NewString(),
		Circuit: c,
		Sink:    output.NewRecorder(),
		Store:   store,
		Engine:  newton.New(logger),
		Logger:  logger,
	}
}

// Job 当前或最近一次的分析任务
func (s *Session) Job() *ckt.Job { return s.Circuit.Job }

// OP 直流工作点
func (s *Session) OP(ctx context.Context) error {
	job, err := s.newJob(types.AnalysisDC)
	if err != nil {
		return err
	}
	job.MaxIter = s.Circuit.Config.MaxIter
	return s.run(ctx, false)
}

// DC 直流扫描, levels[0] 为内层
func (s *Session) DC(ctx context.Context, levels ...ckt.Level) error {
	if _, err := s.newJob(types.AnalysisDC, levels...); err != nil {
		return err
	}
	return s.run(ctx, false)
}

// AC 在工作点处做交流扫描
func (s *Session) AC(ctx context.Context, fg sweep.FreqGrid) error {
	level, err := fg.Level()
	if err != nil {
		return err
	}
	if _, err := s.newJob(types.AnalysisAC, level); err != nil {
		return err
	}
	s.freq = &fg
	if err := analysis.OP(ctx, s.Engine, s.Circuit); err != nil {
		return err
	}
	return s.run(ctx, false)
}

// Pause 请求暂停当前扫描
func (s *Session) Pause() { s.Sink.RequestPause() }

// Resume 从断点继续
func (s *Session) Resume(ctx context.Context) error {
	job := s.Circuit.Job
	if job == nil || !job.Checkpoint.Active {
		return types.BadParam("session %s has no paused sweep", s.ID)
	}
	return s.run(ctx, true)
}

func (s *Session) newJob(a types.Analysis, levels ...ckt.Level) (*ckt.Job, error) {
	job, err := ckt.NewJob(a, s.Circuit.Config, s.Sink, levels...)
	if err != nil {
		return nil, err
	}
	s.Circuit.Job = job
	s.freq = nil
	return job, nil
}

func (s *Session) callback() sweep.PointCallback {
	if s.Circuit.Job.Analysis == types.AnalysisAC {
		return &analysis.AC{Engine: s.Engine}
	}
	return &analysis.DC{Engine: s.Engine, Warm: s.Warm}
}

func (s *Session) run(ctx context.Context, resume bool) error {
	c, job := s.Circuit, s.Circuit.Job
	log := s.Logger.With("session", s.ID, "analysis", job.Analysis)
	start := time.Now()
	var err error
	par := job.Threads > 1 && !resume
	if par && s.Warm && job.Analysis == types.AnalysisDC {
		// 热启动的每一点依赖上一点
		log.Info("warm start runs sequentially", "threads", job.Threads)
		par = false
	}
	if par {
		e := &parallel.Executor{Callback: s.callback(), Logger: s.Logger}
		err = e.Run(ctx, c, job)
		// 克隆不响应暂停请求
		s.Sink.Paused()
	} else {
		d := &sweep.Driver{Circuit: c, Job: job, Callback: s.callback(), Logger: s.Logger}
		err = d.Run(ctx, resume)
	}
	switch {
	case errors.Is(err, types.ErrPause) && job.Checkpoint.Active:
		log.Info("analysis paused", "seq", job.Checkpoint.Seq)
		if s.Store != nil {
			if saveErr := s.Save(ctx); saveErr != nil {
				return errors.Join(err, saveErr)
			}
		}
		return err
	case err != nil:
		log.Warn("analysis failed", "err", err)
		return err
	}
	log.Info("analysis done", "points", len(s.Sink.Records()), "iterations", c.TotalIter, "elapsed", time.Since(start))
	if s.Store != nil {
		return s.Store.Delete(ctx, s.ID)
	}
	return nil
}

// Save 保存断点
func (s *Session) Save(ctx context.Context) error {
	if s.Store == nil {
		return types.BadParam("session %s has no checkpoint store", s.ID)
	}
	st := &checkpoint.State{
		SessionID: s.ID,
		Circuit:   s.Circuit.Name,
		Netlist:   s.Netlist,
		Job:       s.Circuit.Job,
		Freq:      s.freq,
		Warm:      s.Warm,
		Names:     s.Sink.Names(),
		Dims:      s.Sink.Dims(),
		Records:   s.Sink.Records(),
		SavedAt:   time.Now().UTC(),
	}
	if s.Warm && s.Circuit.Arena.Has(analysis.AcceptedVector) {
		st.Accepted = append([]float64(nil), s.Circuit.Arena.Vec(analysis.AcceptedVector)...)
	}
	return s.Store.Save(ctx, st)
}

// Restore 从存储读取断点, 在电路 c 上重建会话
//
// c 须与保存时的电路一致, 通常由同一网表读入。交流扫描重新计算工作点,
// 热启动的直流扫描恢复上一个收敛点。
func Restore(ctx context.Context, store checkpoint.Store, id string, c *ckt.Circuit, logger *slog.Logger) (*Session, error) {
	st, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Circuit != c.Name {
		return nil, types.BadParam("checkpoint %s is for circuit %q, not %q", id, st.Circuit, c.Name)
	}
	if st.Job == nil || !st.Job.Checkpoint.Active {
		return nil, types.BadParam("checkpoint %s has no paused sweep", id)
	}
	s := NewSession(c, store, logger)
	s.ID = st.SessionID
	s.Netlist = st.Netlist
	s.freq = st.Freq
	s.Warm = st.Warm
	if len(st.Accepted) > 0 {
		if len(st.Accepted) != c.Size()+1 {
			return nil, types.BadParam("checkpoint %s has %d unknowns, circuit %q has %d", id, len(st.Accepted)-1, c.Name, c.Size())
		}
		copy(c.Arena.Vec(analysis.AcceptedVector), st.Accepted)
	}
	st.Job.Sink = s.Sink
	c.Job = st.Job

	d := &sweep.Driver{Circuit: c, Job: st.Job, Logger: s.Logger}
	total, err := d.Count()
	if err != nil {
		return nil, err
	}
	if err := s.Sink.Begin(total, st.Names); err != nil {
		return nil, err
	}
	for _, rec := range st.Records {
		if err := s.Sink.Append(rec); err != nil {
			return nil, err
		}
	}
	if len(st.Dims) > 0 {
		s.Sink.SetDims(st.Dims)
	}
	if st.Job.Analysis == types.AnalysisAC {
		if err := s.restoreOP(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// restoreOP 在扫描参数原值下重新计算工作点
func (s *Session) restoreOP(ctx context.Context) error {
	job := s.Circuit.Job
	params, err := sweep.Params(s.Circuit, job.Levels)
	if err != nil {
		return err
	}
	for i, p := range params {
		p.Set(job.Checkpoint.Saved[i])
	}
	return analysis.OP(ctx, s.Engine, s.Circuit)
}
