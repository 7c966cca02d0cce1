package spice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"spice/checkpoint"
	"spice/ckt"
	"spice/logging"
	"spice/netlist"
	"spice/output"
	"spice/sweep"
	"spice/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rect = `* rectifier with load
V1 in 0 dc 5 ac 1
R1 in a 1k
R2 a 0 1k
D1 a 0 is=1e-14
`

var (
	vsweep = ckt.Level{Param: "V1", Start: 0, Stop: 2, Step: 0.1}
	rsweep = ckt.Level{Param: "R2", Start: 500, Stop: 1500, Step: 500}
)

func load(t *testing.T, threads int) *ckt.Circuit {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.Threads = threads
	c, err := netlist.Load(strings.NewReader(rect), "rect", cfg)
	require.NoError(t, err)
	return c
}

// pauseAt 在指定分析的第 at 次迭代后请求暂停
type pauseAt struct {
	s        *Session
	analysis types.Analysis
	at, n    int
}

func (p *pauseAt) Converged(c *ckt.Circuit) (bool, bool) {
	if c.Mode.Analysis == p.analysis {
		p.n++
		if p.n == p.at {
			p.s.Pause()
		}
	}
	return false, false
}

func sameRecords(t *testing.T, want, got []output.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Seq, got[i].Seq)
		assert.Equal(t, want[i].Values, got[i].Values, "seq %d", i)
		assert.Equal(t, want[i].Data, got[i].Data, "seq %d", i)
		assert.Equal(t, want[i].Iterations, got[i].Iterations, "seq %d", i)
	}
}

func TestSessionOP(t *testing.T) {
	s := NewSession(load(t, 1), nil, logging.Discard())
	require.NoError(t, s.OP(context.Background()))
	recs := s.Sink.Records()
	require.Len(t, recs, 1)
	va, ok := s.Sink.Column("v(a)")
	require.True(t, ok)
	assert.Greater(t, va[0], 0.5)
	assert.Less(t, va[0], 0.8)
	assert.Equal(t, s.Circuit.Config.MaxIter, s.Job().MaxIter)
	assert.Equal(t, []int{1}, s.Sink.Dims())
}

func TestSessionDCParallel(t *testing.T) {
	ctx := context.Background()
	seq := NewSession(load(t, 1), nil, logging.Discard())
	require.NoError(t, seq.DC(ctx, vsweep, rsweep))
	par := NewSession(load(t, 4), nil, logging.Discard())
	require.NoError(t, par.DC(ctx, vsweep, rsweep))

	require.Len(t, seq.Sink.Records(), 63)
	sameRecords(t, seq.Sink.Records(), par.Sink.Records())
	assert.Equal(t, []int{3, 21, 21}, par.Sink.Dims())
	assert.Equal(t, seq.Sink.Dims(), par.Sink.Dims())
}

func TestSessionPauseRestore(t *testing.T) {
	ctx := context.Background()
	full := NewSession(load(t, 1), nil, logging.Discard())
	require.NoError(t, full.DC(ctx, vsweep, rsweep))

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewSession(load(t, 1), store, logging.Discard())
	s.Engine.Accel = &pauseAt{s: s, analysis: types.AnalysisDC, at: 100}
	err = s.DC(ctx, vsweep, rsweep)
	require.ErrorIs(t, err, types.ErrPause)
	done := len(s.Sink.Records())
	assert.Positive(t, done)
	assert.Less(t, done, 63)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, ids)

	// 另一个进程: 重新读入网表后继续
	r, err := Restore(ctx, store, s.ID, load(t, 1), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, s.ID, r.ID)
	assert.Len(t, r.Sink.Records(), done)
	v, _ := r.Circuit.Param("V1")
	assert.Equal(t, 5.0, v.Get())
	require.NoError(t, r.Resume(ctx))

	sameRecords(t, full.Sink.Records(), r.Sink.Records())
	assert.Equal(t, []int{3, 21, 21}, r.Sink.Dims())
	_, err = store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestSessionWarmRunsSequentially(t *testing.T) {
	ctx := context.Background()
	seq := NewSession(load(t, 1), nil, logging.Discard())
	seq.Warm = true
	require.NoError(t, seq.DC(ctx, vsweep, rsweep))
	par := NewSession(load(t, 4), nil, logging.Discard())
	par.Warm = true
	require.NoError(t, par.DC(ctx, vsweep, rsweep))

	require.Len(t, seq.Sink.Records(), 63)
	sameRecords(t, seq.Sink.Records(), par.Sink.Records())
	assert.Equal(t, []int{3, 21, 21}, par.Sink.Dims())
}

func TestSessionWarmPauseRestore(t *testing.T) {
	ctx := context.Background()
	full := NewSession(load(t, 1), nil, logging.Discard())
	full.Warm = true
	require.NoError(t, full.DC(ctx, vsweep, rsweep))

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewSession(load(t, 1), store, logging.Discard())
	s.Warm = true
	s.Engine.Accel = &pauseAt{s: s, analysis: types.AnalysisDC, at: 100}
	require.ErrorIs(t, s.DC(ctx, vsweep, rsweep), types.ErrPause)
	done := len(s.Sink.Records())
	assert.Positive(t, done)
	assert.Less(t, done, 63)

	st, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, st.Warm)
	assert.Len(t, st.Accepted, s.Circuit.Size()+1)

	r, err := Restore(ctx, store, s.ID, load(t, 1), logging.Discard())
	require.NoError(t, err)
	assert.True(t, r.Warm)
	require.NoError(t, r.Resume(ctx))
	sameRecords(t, full.Sink.Records(), r.Sink.Records())
}

func TestSessionWarmResumeInProcess(t *testing.T) {
	ctx := context.Background()
	full := NewSession(load(t, 1), nil, logging.Discard())
	full.Warm = true
	require.NoError(t, full.DC(ctx, vsweep))

	s := NewSession(load(t, 1), nil, logging.Discard())
	s.Warm = true
	s.Engine.Accel = &pauseAt{s: s, analysis: types.AnalysisDC, at: 30}
	require.ErrorIs(t, s.DC(ctx, vsweep), types.ErrPause)
	require.NoError(t, s.Resume(ctx))
	sameRecords(t, full.Sink.Records(), s.Sink.Records())
}

func TestSessionACRestore(t *testing.T) {
	ctx := context.Background()
	fg := sweep.FreqGrid{Kind: sweep.FreqDec, Points: 5, Start: 1, Stop: 1e3}

	full := NewSession(load(t, 1), nil, logging.Discard())
	require.NoError(t, full.AC(ctx, fg))
	require.Len(t, full.Sink.Records(), 16)
	for _, rec := range full.Sink.Records() {
		assert.Equal(t, 2, rec.Iterations)
	}

	store, err := checkpoint.OpenBadger(checkpoint.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()
	s := NewSession(load(t, 1), store, logging.Discard())
	s.Engine.Accel = &pauseAt{s: s, analysis: types.AnalysisAC, at: 5}
	require.ErrorIs(t, s.AC(ctx, fg), types.ErrPause)
	assert.Len(t, s.Sink.Records(), 3)

	r, err := Restore(ctx, store, s.ID, load(t, 1), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, r.Resume(ctx))
	sameRecords(t, full.Sink.Records(), r.Sink.Records())
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()
	s := NewSession(load(t, 1), nil, logging.Discard())
	assert.ErrorIs(t, s.Resume(ctx), types.ErrBadParam)
	assert.ErrorIs(t, s.Save(ctx), types.ErrBadParam)
	assert.ErrorIs(t, s.DC(ctx, ckt.Level{Param: "X9", Start: 0, Stop: 1, Step: 1}), types.ErrBadParam)
	assert.ErrorIs(t, s.AC(ctx, sweep.FreqGrid{Kind: sweep.FreqDec, Points: 0, Start: 1, Stop: 10}), types.ErrBadParam)

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s.Store = store
	s.Pause()
	require.ErrorIs(t, s.DC(ctx, vsweep), types.ErrPause)

	other, err := netlist.Load(strings.NewReader(rect), "other", types.DefaultConfig())
	require.NoError(t, err)
	_, err = Restore(ctx, store, s.ID, other, logging.Discard())
	assert.ErrorIs(t, err, types.ErrBadParam)
	_, err = Restore(ctx, store, "missing", other, logging.Discard())
	assert.True(t, errors.Is(err, checkpoint.ErrNotFound))
}
