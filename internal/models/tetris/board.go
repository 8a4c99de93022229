package tetris

const (
	BoardWidth  = 10 // テトリスボードの幅
	BoardHeight = 20 // テトリスボードの高さ
)

// BlockType はボード上のマスの種類を表します。
// 各テトリミノの種類もブロックタイプとして扱います。
type BlockType int

const (
	BlockEmpty BlockType = iota // 0: 空のマス
	BlockI                      // 1: I-テトリミノ由来のブロック (PieceType 0 + 1)
	BlockO                      // 2: O-テトリミノ由来のブロック
	BlockT                      // 3: T-テトリミノ由来のブロック
	BlockS                      // 4: S-テトリミノ由来のブロック
	BlockZ                      // 5: Z-テトリミノ由来のブロック
	BlockJ                      // 6: J-テトリミノ由来のブロック
	BlockL                      // 7: L-テトリミノ由来のブロック
)

// Board は配置済みピースから導出される占有グリッドです。
// 状態の正本はピースのリストで、Board は必要なときに ProjectBoard で作り直します。
// Board[y][x] でアクセスします。yは行、xは列です。
type Board [BoardHeight][BoardWidth]BlockType

// ProjectBoard は各ピースの埋まっているマスをボード座標に投影します。
// ボード外のマスは無視します（描画や導出でパニックさせないため）。
func ProjectBoard(pieces ...Piece) Board {
	var board Board
	for i := range pieces {
		board.MergePiece(&pieces[i])
	}
	return board
}

// MergePiece はピースのマスをボードに書き込みます。
// ボードの有効な範囲内のマスだけを書き込みます。
func (b *Board) MergePiece(p *Piece) {
	blockType := BlockType(p.Type + 1) // PieceType (0-6) を BlockType (1-7) に変換
	if blockType <= BlockEmpty {
		blockType = BlockI
	}
	for _, cell := range p.Blocks() {
		x, y := cell[0], cell[1]
		if x >= 0 && x < BoardWidth && y >= 0 && y < BoardHeight {
			b[y][x] = blockType
		}
	}
}

// Occupied は (x, y) が埋まっているかを返します。ボード外は false です。
func (b Board) Occupied(x, y int) bool {
	if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
		return false
	}
	return b[y][x] != BlockEmpty
}

// HasCollision は指定されたピースを (dx, dy) だけ移動させたとき、
// 壁・床・天井、または既存のブロックと衝突するかどうかを判定します。
//
// Parameters:
//
//	p  : 衝突判定を行うテトリミノ
//	dx : X軸方向の移動量
//	dy : Y軸方向の移動量
//
// Returns:
//
//	bool: 衝突する場合はtrue
func (b Board) HasCollision(p Piece, dx, dy int) bool {
	for _, cell := range p.Blocks() {
		x := cell[0] + dx
		y := cell[1] + dy

		// 天井 (y < 0) も境界として扱う。スポーン位置での詰みの判定に使う
		if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
			return true
		}
		if b[y][x] != BlockEmpty {
			return true
		}
	}
	return false
}

// Collides は piece を (dx, dy) 移動させたときに境界または placed のいずれかと重なるかを返します。
// 副作用はなく、同じ入力には常に同じ結果を返します。
func Collides(piece Piece, placed []Piece, dx, dy int) bool {
	board := ProjectBoard(placed...)
	return board.HasCollision(piece, dx, dy)
}

// CompletedRows は全マスが埋まっている行のインデックスを上から順に返します。
func (b Board) CompletedRows() []int {
	var rows []int
	for y := 0; y < BoardHeight; y++ {
		full := true
		for x := 0; x < BoardWidth; x++ {
			if b[y][x] == BlockEmpty {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, y)
		}
	}
	return rows
}

// String はデバッグ用にボードを '#' と '.' で描いた文字列を返します。
func (b Board) String() string {
	buf := make([]byte, 0, BoardHeight*(BoardWidth+1))
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			if b[y][x] == BlockEmpty {
				buf = append(buf, '.')
			} else {
				buf = append(buf, '#')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
