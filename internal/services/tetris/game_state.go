package tetris

import (
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models/tetris"
)

const (
	SpawnX = 4 // 新しいピースの出現位置
	SpawnY = 0
)

// ErrInvariant は状態の整合性チェックに失敗したことを表します。
var ErrInvariant = errors.New("game state invariant violated")

// GameState は1ゲーム分の状態のスナップショットです。
// エンジンの操作は GameState を受け取り、新しい GameState を返します。受け取った値は変更しません。
// PlacedBlocks や各ピースの Shape は共有されることがあるため、呼び出し側も書き換えないでください。
type GameState struct {
	Score         int            `json:"score"`
	Level         int            `json:"level"`
	Lines         int            `json:"lines"`
	Combo         int            `json:"combo"`          // 連続してラインを消したドロップの回数
	CurrentBlock  tetris.Piece   `json:"current_block"`  // 現在操作中のテトリミノ
	NextBlock     tetris.Block   `json:"next_block"`     // 次に出現するテトリミノ（位置なし）
	PlacedBlocks  []tetris.Piece `json:"placed_blocks"`  // 固定済みのピース。ピースごとの色を保持するため1枚のグリッドにはまとめない
	GameOver      bool           `json:"game_over"`
	LastClearTime *time.Time     `json:"last_clear_time,omitempty"` // 最後にラインを消した時刻
}

// Board は描画用に、固定済みピースと操作中のピースを投影したボードを返します。
// ゲームオーバー後は操作中のピースを含めません。
func (s GameState) Board() tetris.Board {
	board := tetris.ProjectBoard(s.PlacedBlocks...)
	if !s.GameOver {
		board.MergePiece(&s.CurrentBlock)
	}
	return board
}

// PlacedBoard は固定済みピースだけを投影したボードを返します。
func (s GameState) PlacedBoard() tetris.Board {
	return tetris.ProjectBoard(s.PlacedBlocks...)
}

// Validate は到達可能な状態が満たすべき不変条件を確認します。
//   - 固定済みピースのマスはすべてボード内にある
//   - 固定済みピース同士が重ならない
//   - ゲームオーバーでなければ操作中のピースは衝突していない
//   - レベルはライン数から導出される値と一致する
func (s GameState) Validate() error {
	var occupied [tetris.BoardHeight][tetris.BoardWidth]bool
	for i, p := range s.PlacedBlocks {
		for _, cell := range p.Blocks() {
			x, y := cell[0], cell[1]
			if x < 0 || x >= tetris.BoardWidth || y < 0 || y >= tetris.BoardHeight {
				return fmt.Errorf("%w: placed piece %d has cell (%d,%d) outside the board", ErrInvariant, i, x, y)
			}
			if occupied[y][x] {
				return fmt.Errorf("%w: cell (%d,%d) is occupied twice", ErrInvariant, x, y)
			}
			occupied[y][x] = true
		}
	}
	if !s.GameOver && tetris.Collides(s.CurrentBlock, s.PlacedBlocks, 0, 0) {
		return fmt.Errorf("%w: current piece collides at (%d,%d)", ErrInvariant, s.CurrentBlock.X, s.CurrentBlock.Y)
	}
	if s.Level != LevelForLines(s.Lines) {
		return fmt.Errorf("%w: level %d does not match %d lines", ErrInvariant, s.Level, s.Lines)
	}
	if s.Score < 0 || s.Lines < 0 || s.Combo < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvariant)
	}
	return nil
}
