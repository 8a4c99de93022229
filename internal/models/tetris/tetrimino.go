package tetris

import (
	"errors"
	"fmt"
)

// ErrInvalidShape は空、または行の長さが揃っていない形状を表します。
var ErrInvalidShape = errors.New("invalid shape")

// PieceType はテトリミノの種類を表します。
type PieceType int

const (
	TypeI PieceType = iota // 0: I-ミノ
	TypeO                  // 1: O-ミノ
	TypeT                  // 2: T-ミノ
	TypeS                  // 3: S-ミノ
	TypeZ                  // 4: Z-ミノ
	TypeJ                  // 5: J-ミノ
	TypeL                  // 6: L-ミノ
)

// Direction は回転方向です。
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

// Shape はセルの占有状態を行優先（上の行から順）で持つ2次元マスクです。
// Shape[y][x] が true のマスが埋まっています。
type Shape [][]bool

// Block は位置を持たないテトリミノです。「次のピース」のプレビューに使います。
type Block struct {
	Type  PieceType `json:"type"`
	Shape Shape     `json:"shape"`
	Color string    `json:"color"` // 表示用の属性。ロジックでは使わない
}

// Piece はボード上の位置を持つテトリミノです。
// X, Y は形状の左上のボード座標です。
type Piece struct {
	Block
	X int `json:"x"`
	Y int `json:"y"`
}

// catalog は各PieceTypeの初期形状と色です。I, O, T の色は既存クライアントに合わせています。
var catalog = []Block{
	{Type: TypeI, Color: "#00f0f0", Shape: Shape{
		{true, true, true, true},
	}},
	{Type: TypeO, Color: "#f0f000", Shape: Shape{
		{true, true},
		{true, true},
	}},
	{Type: TypeT, Color: "#a000f0", Shape: Shape{
		{true, true, true},
		{false, true, false},
	}},
	{Type: TypeS, Color: "#00f000", Shape: Shape{
		{false, true, true},
		{true, true, false},
	}},
	{Type: TypeZ, Color: "#f00000", Shape: Shape{
		{true, true, false},
		{false, true, true},
	}},
	{Type: TypeJ, Color: "#0000f0", Shape: Shape{
		{true, false, false},
		{true, true, true},
	}},
	{Type: TypeL, Color: "#f0a000", Shape: Shape{
		{false, false, true},
		{true, true, true},
	}},
}

// Catalog は全テトリミノのコピーを PieceType の順で返します。
func Catalog() []Block {
	blocks := make([]Block, len(catalog))
	for i, b := range catalog {
		blocks[i] = b.Clone()
	}
	return blocks
}

// NewBlock は指定された種類のテトリミノを返します。
// 不明な種類の場合は false を返します。
func NewBlock(t PieceType) (Block, bool) {
	if t < TypeI || int(t) >= len(catalog) {
		return Block{}, false
	}
	return catalog[t].Clone(), true
}

// Validate は形状が空でなく、すべての行が同じ長さで、埋まったマスが1つ以上あることを確認します。
func (s Shape) Validate() error {
	if len(s) == 0 || len(s[0]) == 0 {
		return fmt.Errorf("%w: empty grid", ErrInvalidShape)
	}
	width := len(s[0])
	for y, row := range s {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidShape, y, len(row), width)
		}
	}
	if s.CellCount() == 0 {
		return fmt.Errorf("%w: no filled cells", ErrInvalidShape)
	}
	return nil
}

// Rotate は形状をバウンディングボックスごと90度回転させた新しい形状を返します。
// 元の形状は変更しません。R行C列の形状はC行R列になります。
//
//	時計回り:   new[c][R-1-r] = old[r][c]
//	反時計回り: new[C-1-c][r] = old[r][c]
func (s Shape) Rotate(dir Direction) Shape {
	rows := len(s)
	if rows == 0 {
		return Shape{}
	}
	cols := len(s[0])
	rotated := make(Shape, cols)
	for c := range rotated {
		rotated[c] = make([]bool, rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols && c < len(s[r]); c++ {
			if dir == Clockwise {
				rotated[c][rows-1-r] = s[r][c]
			} else {
				rotated[cols-1-c][r] = s[r][c]
			}
		}
	}
	return rotated
}

// Equal は2つの形状が同じマスクかどうかを返します。
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for y := range s {
		if len(s[y]) != len(other[y]) {
			return false
		}
		for x := range s[y] {
			if s[y][x] != other[y][x] {
				return false
			}
		}
	}
	return true
}

// Clone は形状のディープコピーを返します。
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	c := make(Shape, len(s))
	for y, row := range s {
		c[y] = append([]bool(nil), row...)
	}
	return c
}

// RowFilled は y 行目に埋まったマスが一つでもあるかを返します。
func (s Shape) RowFilled(y int) bool {
	if y < 0 || y >= len(s) {
		return false
	}
	for _, cell := range s[y] {
		if cell {
			return true
		}
	}
	return false
}

// CellCount は埋まっているマスの数です。
func (s Shape) CellCount() int {
	n := 0
	for _, row := range s {
		for _, cell := range row {
			if cell {
				n++
			}
		}
	}
	return n
}

// Clone はBlockのディープコピーを返します。
func (b Block) Clone() Block {
	b.Shape = b.Shape.Clone()
	return b
}

// At は位置を与えて Piece を作ります。
func (b Block) At(x, y int) Piece {
	return Piece{Block: b.Clone(), X: x, Y: y}
}

// Blocks は埋まっているマスのボード上の絶対座標を返します。
//
// Returns:
//
//	[][2]int: 各マスの {x, y}
func (p Piece) Blocks() [][2]int {
	cells := make([][2]int, 0, 4)
	for y, row := range p.Shape {
		for x, cell := range row {
			if cell {
				cells = append(cells, [2]int{p.X + x, p.Y + y})
			}
		}
	}
	return cells
}

// Translate は (dx, dy) だけ移動したコピーを返します。形状は共有します。
func (p Piece) Translate(dx, dy int) Piece {
	p.X += dx
	p.Y += dy
	return p
}

// Rotated は形状だけを回転させたコピーを返します。位置は変わりません。
func (p Piece) Rotated(dir Direction) Piece {
	p.Shape = p.Shape.Rotate(dir)
	return p
}

// Clone は現在のPieceのディープコピーを返します。
func (p Piece) Clone() Piece {
	p.Block = p.Block.Clone()
	return p
}

// StringToPieceType は文字列のテトリミノタイプ（"I", "O", "T"など）をPieceTypeに変換します。
func StringToPieceType(s string) (PieceType, bool) {
	switch s {
	case "I":
		return TypeI, true
	case "O":
		return TypeO, true
	case "T":
		return TypeT, true
	case "S":
		return TypeS, true
	case "Z":
		return TypeZ, true
	case "J":
		return TypeJ, true
	case "L":
		return TypeL, true
	default:
		return TypeI, false
	}
}

// String はPieceTypeを文字列表現に変換します。
func (t PieceType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeO:
		return "O"
	case TypeT:
		return "T"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	default:
		return "?"
	}
}
