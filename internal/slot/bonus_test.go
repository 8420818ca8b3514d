package slot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() BonusRules {
	return BonusRules{
		TriggerScatters:   3,
		Award:             10,
		AwardPerExtra:     2,
		RetriggerAward:    5,
		RetriggerPerExtra: 1,
		MaxSpins:          30,
	}
}

func TestBonusMachineEntry(t *testing.T) {
	t.Run("NoTrigger", func(t *testing.T) {
		m := NewBonusMachine(testRules())
		require.NoError(t, m.Start())
		awarded, err := m.EndBaseSpin(2, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.Equal(t, 0, awarded)
		assert.True(t, m.Done())

		final := m.Settle()
		assert.Equal(t, PhaseSpinning, final.Phase)
		assert.True(t, decimal.NewFromInt(5).Equal(final.PendingPayout))
		assert.Equal(t, PhaseIdle, m.State().Phase)
	})

	t.Run("ExtraScatters", func(t *testing.T) {
		for scatters, want := range map[int]int{3: 10, 4: 12, 5: 14} {
			m := NewBonusMachine(testRules())
			require.NoError(t, m.Start())
			awarded, err := m.EndBaseSpin(scatters, decimal.Zero)
			require.NoError(t, err)
			assert.Equal(t, want, awarded, "scatters %d", scatters)
			assert.Equal(t, PhaseFreeSpin, m.State().Phase)
			assert.Equal(t, want, m.State().SpinsRemaining)
		}
	})
}

func TestBonusMachineSequence(t *testing.T) {
	m := NewBonusMachine(testRules())
	require.NoError(t, m.Start())
	_, err := m.EndBaseSpin(3, decimal.NewFromInt(1))
	require.NoError(t, err)

	require.NoError(t, m.BeginFreeSpin())
	assert.Equal(t, 9, m.State().SpinsRemaining)

	added, err := m.EndFreeSpin(4, decimal.NewFromInt(2), 7)
	require.NoError(t, err)
	assert.Equal(t, 6, added)
	assert.Equal(t, 15, m.State().SpinsRemaining)
	assert.Equal(t, 7, m.State().AccumulatedMultiplier)

	for !m.Done() {
		before := m.State().SpinsRemaining
		require.NoError(t, m.BeginFreeSpin())
		assert.Equal(t, before-1, m.State().SpinsRemaining)
		_, err := m.EndFreeSpin(0, decimal.NewFromInt(1), 7)
		require.NoError(t, err)
	}

	final := m.Settle()
	assert.Equal(t, 16, final.Played)
	assert.Equal(t, 0, final.SpinsRemaining)
	assert.True(t, decimal.NewFromInt(18).Equal(final.PendingPayout), "got %s", final.PendingPayout)

	transitions := m.Transitions()
	require.Len(t, transitions, 4)
	assert.Equal(t, PhaseIdle, transitions[0].From)
	assert.Equal(t, PhaseFreeSpin, transitions[1].To)
	assert.Equal(t, 6, transitions[2].Awarded)
	assert.Equal(t, PhaseIdle, transitions[3].To)
}

func TestBonusMachineTerminates(t *testing.T) {
	// every free spin retriggers; the sequence cap still ends it
	m := NewBonusMachine(testRules())
	require.NoError(t, m.Start())
	_, err := m.EndBaseSpin(3, decimal.Zero)
	require.NoError(t, err)

	for steps := 0; !m.Done(); steps++ {
		require.Less(t, steps, 1000, "sequence did not terminate")
		require.NoError(t, m.BeginFreeSpin())
		added, err := m.EndFreeSpin(8, decimal.Zero, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, added, 0)
	}

	final := m.Settle()
	assert.Equal(t, 30, final.Played)
	assert.Equal(t, 30, final.Awarded)
}

func TestBonusMachineIllegalTransitions(t *testing.T) {
	m := NewBonusMachine(testRules())

	assert.ErrorIs(t, m.BeginFreeSpin(), ErrIllegalTransition)
	_, err := m.EndBaseSpin(3, decimal.Zero)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrIllegalTransition)
	_, err = m.EndFreeSpin(0, decimal.Zero, 0)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestBonusRulesValidate(t *testing.T) {
	assert.NoError(t, testRules().Validate())

	bad := testRules()
	bad.MaxSpins = 5
	assert.Error(t, bad.Validate())

	bad = testRules()
	bad.Award = 0
	assert.Error(t, bad.Validate())

	bad = testRules()
	bad.RetriggerPerExtra = -1
	assert.Error(t, bad.Validate())
}
