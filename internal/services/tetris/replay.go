package tetris

import (
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models"
)

// ErrReplayMismatch は再生結果が記録された最終状態と一致しないことを表します。
var ErrReplayMismatch = errors.New("replay does not reproduce the recorded result")

// ReplayConfig はリプレイの再生に必要なゲームの初期条件です。
type ReplayConfig struct {
	Seed      int64
	Supply    SupplyKind
	StartedAt time.Time
}

// ReplayConfigFrom は保存済みのリプレイから初期条件を取り出します。
func ReplayConfigFrom(r *models.Replay) ReplayConfig {
	return ReplayConfig{Seed: r.Seed, Supply: SupplyKind(r.Supply), StartedAt: r.StartedAt}
}

// Replay は記録されたイベントを最初から適用し直して最終状態を返します。
// 各イベントは StartedAt + OffsetMs の時刻で適用されるので、素早い連続クリアのボーナスも再現されます。
//
// Parameters:
//
//	cfg    : シード・供給方式・開始時刻
//	events : 適用順に並んだイベント
//
// Returns:
//
//	GameState: 全イベント適用後の状態
//	error    : 供給方式や記録されたアクションが不正な場合
func Replay(cfg ReplayConfig, events []models.ReplayEvent) (GameState, error) {
	supply, err := NewSupply(cfg.Supply, cfg.Seed)
	if err != nil {
		return GameState{}, err
	}

	now := cfg.StartedAt
	engine := NewEngine(supply, func() time.Time { return now })
	state := engine.NewGame()
	for i, ev := range events {
		now = cfg.StartedAt.Add(time.Duration(ev.OffsetMs) * time.Millisecond)
		state, err = engine.Apply(state, ev.Action)
		if err != nil {
			return state, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return state, nil
}

// VerifyReplay は保存済みのリプレイを再生し、記録された最終スコア・ライン数・レベルと比較します。
func VerifyReplay(r *models.Replay) (GameState, error) {
	state, err := Replay(ReplayConfigFrom(r), r.Events)
	if err != nil {
		return state, err
	}
	if state.Score != r.FinalScore || state.Lines != r.FinalLines || state.Level != r.FinalLevel {
		return state, fmt.Errorf("%w: got score=%d lines=%d level=%d, recorded score=%d lines=%d level=%d",
			ErrReplayMismatch, state.Score, state.Lines, state.Level, r.FinalScore, r.FinalLines, r.FinalLevel)
	}
	return state, nil
}
