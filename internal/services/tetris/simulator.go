package tetris

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models"
)

// DefaultStepInterval はシミュレーションで入力と入力の間に進める仮想時間です。
const DefaultStepInterval = 150 * time.Millisecond

// BotActions はボットが選ぶアクションです。横移動と回転を多めにしています。
var BotActions = []string{
	"move_left", "move_left", "move_right", "move_right",
	"rotate", "rotate_left", "soft_drop", "hard_drop",
}

// SimulationConfig はヘッドレスのシミュレーションの条件です。
type SimulationConfig struct {
	Seed         int64
	Supply       SupplyKind
	Steps        int
	StartedAt    time.Time
	StepInterval time.Duration // 0 なら DefaultStepInterval、1ms 未満は 1ms
}

// Simulate は乱数で操作するボットに1ゲームを遊ばせ、リプレイと最終状態を返します。
// 時計は仮想時間で進み、自動落下の時刻に達したステップでは入力の代わりに tick を適用します。
// 同じ設定なら同じ結果になり、返したリプレイは Replay で再生できます。
func Simulate(cfg SimulationConfig) (*models.Replay, GameState, error) {
	supply, err := NewSupply(cfg.Supply, cfg.Seed)
	if err != nil {
		return nil, GameState{}, err
	}
	interval := cfg.StepInterval
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	// リプレイはミリ秒単位なので 1ms 未満には刻まない
	interval = max(interval.Truncate(time.Millisecond), time.Millisecond)

	now := cfg.StartedAt
	engine := NewEngine(supply, func() time.Time { return now })
	bot := rand.New(rand.NewSource(cfg.Seed))

	state := engine.NewGame()
	events := make([]models.ReplayEvent, 0, cfg.Steps)
	var elapsed, lastFall time.Duration
	for step := 0; step < cfg.Steps && !state.GameOver; step++ {
		elapsed += interval
		now = cfg.StartedAt.Add(elapsed)

		action := BotActions[bot.Intn(len(BotActions))]
		if elapsed-lastFall >= DropInterval(state.Level) {
			action = "tick"
			lastFall = elapsed
		}

		state, err = engine.Apply(state, action)
		if err != nil {
			return nil, state, err
		}
		events = append(events, models.ReplayEvent{Action: action, OffsetMs: elapsed.Milliseconds()})
	}

	replay := &models.Replay{
		SessionID:  uuid.NewString(),
		Seed:       cfg.Seed,
		Supply:     string(cfg.Supply),
		StartedAt:  cfg.StartedAt,
		EndedAt:    now,
		FinalScore: state.Score,
		FinalLines: state.Lines,
		FinalLevel: state.Level,
		Events:     events,
	}
	return replay, state, nil
}
