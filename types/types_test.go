package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ParamEnhanced, cfg.ParamMode)

	cfg.Mixing = 1
	assert.ErrorIs(t, cfg.Validate(), ErrBadParam)
	cfg = DefaultConfig()
	cfg.RelTol = 0
	assert.ErrorIs(t, cfg.Validate(), ErrBadParam)
}

func TestPhaseOneShot(t *testing.T) {
	for _, p := range []Phase{PhasePred, PhaseTran, PhaseSmallSignal} {
		assert.True(t, p.OneShot(), p.String())
	}
	for _, p := range []Phase{PhaseJunction, PhaseFix, PhaseFloat} {
		assert.False(t, p.OneShot(), p.String())
	}
	assert.Equal(t, "dc/junction+nodeset", Mode{Phase: PhaseJunction, Nodeset: true}.String())
}

func TestSolveErrorWrap(t *testing.T) {
	err := &SolveError{Op: "newton", Iteration: 7, Err: ErrIterationLimit}
	wrapped := fmt.Errorf("dc sweep: %w", err)
	assert.ErrorIs(t, wrapped, ErrIterationLimit)
	assert.Equal(t, "newton (iteration 7): iteration limit reached", err.Error())

	// 已有包装时只补充扫描值
	out := WithValues(wrapped, "dc", 1.5)
	var se *SolveError
	require.True(t, errors.As(out, &se))
	assert.Equal(t, []float64{1.5}, se.Values)
	assert.Same(t, err, se)

	plain := WithValues(ErrSingular, "dc", 2)
	assert.EqualError(t, plain, "dc (at 2): singular matrix")
	assert.NoError(t, WithValues(nil, "dc"))
}

func TestParamModeText(t *testing.T) {
	var m ParamMode
	require.NoError(t, m.UnmarshalText([]byte("legacy")))
	assert.Equal(t, ParamLegacy, m)
	assert.ErrorIs(t, m.UnmarshalText([]byte("bogus")), ErrBadParam)
	b, err := ParamEnhanced.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "enhanced", string(b))
}
