package tetris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	cfg := SimulationConfig{Seed: 2024, Supply: SupplyBag, Steps: 3000, StartedAt: testTime}

	replay, state, err := Simulate(cfg)
	require.NoError(t, err)
	require.NoError(t, state.Validate())
	assert.NotEmpty(t, replay.Events)
	assert.LessOrEqual(t, len(replay.Events), cfg.Steps)
	assert.Equal(t, state.Score, replay.FinalScore)
	if !state.GameOver {
		assert.Len(t, replay.Events, cfg.Steps)
	}

	// 同じ設定なら同じ結果
	again, _, err := Simulate(cfg)
	require.NoError(t, err)
	assert.Equal(t, replay.Events, again.Events)

	replayed, err := VerifyReplay(replay)
	require.NoError(t, err)
	assert.Equal(t, state, replayed)
}

func TestSimulate_SubMillisecondStep(t *testing.T) {
	cfg := SimulationConfig{Seed: 7, Supply: SupplyBag, Steps: 2500, StartedAt: testTime, StepInterval: 500 * time.Microsecond}

	replay, _, err := Simulate(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, replay.Events)

	ticks := 0
	for i, ev := range replay.Events {
		assert.Equal(t, int64(i+1), ev.OffsetMs, "event %d", i)
		if ev.Action == "tick" {
			ticks++
		}
	}
	if len(replay.Events) >= 1000 {
		assert.Positive(t, ticks)
	}
}

func TestSimulate_UnknownSupply(t *testing.T) {
	_, _, err := Simulate(SimulationConfig{Seed: 1, Supply: "tgm", Steps: 10})
	assert.Error(t, err)
}
