package tetris

import (
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models/tetris"
)

var (
	ErrInvalidMove      = errors.New("invalid move delta")
	ErrInvalidDirection = errors.New("invalid rotation direction")
	ErrUnknownAction    = errors.New("unknown action")
)

// WallKicks は回転が衝突したときに試す位置補正 (dx, dy) です。
// 先頭から順に試し、最初に衝突しなかったものを採用します。順序を変えるとリプレイが再現しなくなります。
var WallKicks = [][2]int{{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}}

// Clock は現在時刻を返します。テストやリプレイでは固定の時刻を返す関数に差し替えます。
type Clock func() time.Time

// Engine はゲーム状態の遷移を計算します。
// 状態は持たず、ピース供給元と時計だけを持ちます。
type Engine struct {
	supply PieceSupply
	clock  Clock
}

// NewEngine は新しい Engine を返します。clock が nil の場合は time.Now を使います。
func NewEngine(supply PieceSupply, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{supply: supply, clock: clock}
}

// NewGame はゲーム開始時の状態を作ります。
func (e *Engine) NewGame() GameState {
	current := e.supply.NextBlock()
	next := e.supply.NextBlock()
	return GameState{
		Level:        1,
		CurrentBlock: current.At(SpawnX, SpawnY),
		NextBlock:    next,
		PlacedBlocks: []tetris.Piece{},
	}
}

// Restart は現在の状態を破棄して新しいゲームを始めます。
func (e *Engine) Restart() GameState {
	return e.NewGame()
}

// validateDelta は移動量が一方向だけの隣接ステップ（下方向は複数マス可）であることを確認します。
func validateDelta(dx, dy int) error {
	switch {
	case dx == 0 && dy == 0:
		return fmt.Errorf("%w: (0,0)", ErrInvalidMove)
	case dx != 0 && dy != 0:
		return fmt.Errorf("%w: diagonal (%d,%d)", ErrInvalidMove, dx, dy)
	case dx < -1 || dx > 1:
		return fmt.Errorf("%w: horizontal step %d", ErrInvalidMove, dx)
	}
	return nil
}

// checkCurrent は操作中のピースの形状が有効であることを確認します。
// 埋まったマスのないピースは衝突しないので、落下が止まらなくなります。
func checkCurrent(state GameState) error {
	if err := state.CurrentBlock.Shape.Validate(); err != nil {
		return fmt.Errorf("current piece: %w", err)
	}
	return nil
}

// Move は操作中のピースを (dx, dy) 移動させます。
// 横移動や上方向の移動が塞がれている場合は状態を変えずに返します。
// 下方向の移動が塞がれた場合はその位置でピースを固定します。dy > 1 は1マスずつ落とします。
//
// Parameters:
//
//	state  : 現在の状態
//	dx, dy : 移動量。どちらか一方だけが0以外
//
// Returns:
//
//	GameState: 遷移後の状態
//	error    : 移動量が不正な場合は ErrInvalidMove、操作中のピースの形状が不正な場合は tetris.ErrInvalidShape
func (e *Engine) Move(state GameState, dx, dy int) (GameState, error) {
	if err := validateDelta(dx, dy); err != nil {
		return state, err
	}
	if err := checkCurrent(state); err != nil {
		return state, err
	}
	if state.GameOver || dy < 0 {
		return state, nil
	}

	board := state.PlacedBoard()
	if dx != 0 {
		if board.HasCollision(state.CurrentBlock, dx, 0) {
			return state, nil
		}
		next := state
		next.CurrentBlock = state.CurrentBlock.Translate(dx, 0)
		return next, nil
	}

	current := state.CurrentBlock
	for step := 0; step < dy; step++ {
		if board.HasCollision(current, 0, 1) {
			return e.lockPiece(state, current), nil
		}
		current = current.Translate(0, 1)
	}
	next := state
	next.CurrentBlock = current
	return next, nil
}

// Rotate は操作中のピースを回転させます。
// 回転後の形状を WallKicks の順に試し、すべて衝突する場合は状態を変えずに返します。
func (e *Engine) Rotate(state GameState, dir tetris.Direction) (GameState, error) {
	if dir != tetris.Clockwise && dir != tetris.CounterClockwise {
		return state, fmt.Errorf("%w: %d", ErrInvalidDirection, dir)
	}
	if err := checkCurrent(state); err != nil {
		return state, err
	}
	if state.GameOver {
		return state, nil
	}

	rotated := state.CurrentBlock.Rotated(dir)
	board := state.PlacedBoard()
	for _, kick := range WallKicks {
		if !board.HasCollision(rotated, kick[0], kick[1]) {
			next := state
			next.CurrentBlock = rotated.Translate(kick[0], kick[1])
			return next, nil
		}
	}
	return state, nil
}

// HardDrop は操作中のピースを一番下まで落として固定します。
// 操作中のピースの形状が不正な場合は tetris.ErrInvalidShape を返し、状態は変えません。
func (e *Engine) HardDrop(state GameState) (GameState, error) {
	if err := checkCurrent(state); err != nil {
		return state, err
	}
	if state.GameOver {
		return state, nil
	}
	board := state.PlacedBoard()
	drop := 0
	// 埋まったマスがあれば床で止まるので BoardHeight 段を超えることはない
	for drop < tetris.BoardHeight && !board.HasCollision(state.CurrentBlock, 0, drop+1) {
		drop++
	}
	return e.lockPiece(state, state.CurrentBlock.Translate(0, drop)), nil
}

// AutoFall は自動落下を1段分適用します。落ちられなければピースを固定します。
func (e *Engine) AutoFall(state GameState) GameState {
	next, _ := e.Move(state, 0, 1)
	return next
}

// Apply は文字列のアクションを状態遷移に変換します。
// 受け付けるアクション: move_left, move_right, soft_drop, tick, rotate, rotate_right, rotate_left, hard_drop, restart
// restart だけはゲームオーバー後も有効です。
func (e *Engine) Apply(state GameState, action string) (GameState, error) {
	switch action {
	case "move_left":
		return e.Move(state, -1, 0)
	case "move_right":
		return e.Move(state, 1, 0)
	case "soft_drop":
		return e.Move(state, 0, 1)
	case "tick":
		return e.AutoFall(state), nil
	case "rotate", "rotate_right":
		return e.Rotate(state, tetris.Clockwise)
	case "rotate_left":
		return e.Rotate(state, tetris.CounterClockwise)
	case "hard_drop":
		return e.HardDrop(state)
	case "restart":
		return e.Restart(), nil
	default:
		return state, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// lockPiece は着地したピースを固定し、ゲームオーバー判定・次のピースの生成・ラインクリアを行います。
func (e *Engine) lockPiece(state GameState, resting tetris.Piece) GameState {
	next := state
	placed := make([]tetris.Piece, len(state.PlacedBlocks), len(state.PlacedBlocks)+1)
	copy(placed, state.PlacedBlocks)
	next.PlacedBlocks = append(placed, resting)

	// スポーン行から一段も落ちられなかった
	if resting.Y <= 0 {
		next.GameOver = true
		return next
	}

	next.CurrentBlock = state.NextBlock.At(SpawnX, SpawnY)
	next.NextBlock = e.supply.NextBlock()
	next = e.clearLines(next)

	// ラインクリア後もスポーン位置が塞がっていればブロックアウト
	if tetris.Collides(next.CurrentBlock, next.PlacedBlocks, 0, 0) {
		next.GameOver = true
	}
	return next
}

// clearLines は揃った行を消し、残ったピースを詰めて、スコア・レベル・コンボを更新します。
func (e *Engine) clearLines(state GameState) GameState {
	board := state.PlacedBoard()
	completed := board.CompletedRows()
	if len(completed) == 0 {
		state.Combo = 0
		return state
	}

	survivors := make([]tetris.Piece, 0, len(state.PlacedBlocks))
	for _, p := range state.PlacedBlocks {
		if compacted, ok := compactPiece(p, completed); ok {
			survivors = append(survivors, compacted)
		}
	}

	now := e.clock()
	var sinceLast time.Duration
	hasLast := state.LastClearTime != nil
	if hasLast {
		sinceLast = now.Sub(*state.LastClearTime)
	}

	state.PlacedBlocks = survivors
	state.Combo++
	state.Score += CalculateScore(len(completed), state.Level, state.Combo, sinceLast, hasLast)
	state.Lines += len(completed)
	state.Level = LevelForLines(state.Lines)
	state.LastClearTime = &now
	return state
}

// compactPiece は消えた行をピースの形状から取り除き、下に詰めた位置を計算します。
// 埋まったマスが一つも残らない場合は false を返します。
//
// 残った一番上の行 top を新しい基準にし、top より下で消えた行の数だけ下にずらします。
// ピースの行は連続しているので、top と各行の間で消えた行はすべて自分の行であり、
// 形状から取り除くことでその分は詰まります。
func compactPiece(p tetris.Piece, completed []int) (tetris.Piece, bool) {
	type keptRow struct {
		boardY int
		cells  []bool
	}
	kept := make([]keptRow, 0, len(p.Shape))
	for y, row := range p.Shape {
		boardY := p.Y + y
		if containsRow(completed, boardY) {
			continue
		}
		kept = append(kept, keptRow{boardY: boardY, cells: row})
	}

	// 上下の空行を落とす
	first, last := -1, -1
	for i, r := range kept {
		if rowFilled(r.cells) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return tetris.Piece{}, false
	}
	kept = kept[first : last+1]

	top := kept[0].boardY
	shift := 0
	for _, line := range completed {
		if line > top {
			shift++
		}
	}

	shape := make(tetris.Shape, len(kept))
	for i, r := range kept {
		shape[i] = append([]bool(nil), r.cells...)
	}
	p.Shape = shape
	p.Y = top + shift
	return p, true
}

func containsRow(rows []int, y int) bool {
	for _, r := range rows {
		if r == y {
			return true
		}
	}
	return false
}

func rowFilled(cells []bool) bool {
	for _, c := range cells {
		if c {
			return true
		}
	}
	return false
}
