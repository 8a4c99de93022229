package tetris

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models/tetris"
)

// PieceSupply は次に出現するテトリミノを供給します。
// エンジン内で唯一の非決定的な要素なので、テストでは SequenceSupply などに差し替えます。
type PieceSupply interface {
	NextBlock() tetris.Block
}

// SupplyKind はピース供給方式の名前です。設定やリプレイ記録に使います。
type SupplyKind string

const (
	SupplyRandom SupplyKind = "random" // カタログから一様ランダム
	SupplyBag    SupplyKind = "bag"    // 7-bag
)

// NewSupply は方式とシードから PieceSupply を作ります。
// 同じ方式・シードなら同じ順序でピースが出てきます。
func NewSupply(kind SupplyKind, seed int64) (PieceSupply, error) {
	r := rand.New(rand.NewSource(seed))
	switch kind {
	case SupplyRandom, "":
		return NewRandomSupply(r), nil
	case SupplyBag:
		return NewBagSupply(r), nil
	default:
		return nil, fmt.Errorf("unknown piece supply %q", kind)
	}
}

// RandomSupply はカタログから一様ランダムにピースを選びます。
type RandomSupply struct {
	mu      sync.Mutex
	rand    *rand.Rand
	catalog []tetris.Block
}

// NewRandomSupply は乱数生成器を受け取って RandomSupply を作ります。
func NewRandomSupply(r *rand.Rand) *RandomSupply {
	return &RandomSupply{rand: r, catalog: tetris.Catalog()}
}

// NextBlock implements PieceSupply.
func (s *RandomSupply) NextBlock() tetris.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog[s.rand.Intn(len(s.catalog))].Clone()
}

// BagSupply はテトリスで一般的な7-bagシステムに基づきピースを供給します。
// 7種類を1袋としてシャッフルし、袋が空になったら次の袋を作ります。
type BagSupply struct {
	mu    sync.Mutex
	rand  *rand.Rand
	queue []tetris.PieceType
}

// NewBagSupply は乱数生成器を受け取って BagSupply を作ります。
func NewBagSupply(r *rand.Rand) *BagSupply {
	return &BagSupply{rand: r}
}

// refill は新しい袋をキューに追加します。
// 前の袋の最後のピースと新しい袋の最初のピースが同じにならないように調整します。
func (s *BagSupply) refill() {
	bag := []tetris.PieceType{tetris.TypeI, tetris.TypeO, tetris.TypeT, tetris.TypeS, tetris.TypeZ, tetris.TypeJ, tetris.TypeL}

	var lastPieceType tetris.PieceType
	hasLastPiece := len(s.queue) > 0
	if hasLastPiece {
		lastPieceType = s.queue[len(s.queue)-1]
	}

	s.rand.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})

	// 連続防止：先頭と2番目以降のどれかを交換
	if hasLastPiece && bag[0] == lastPieceType {
		swapIndex := s.rand.Intn(len(bag)-1) + 1
		bag[0], bag[swapIndex] = bag[swapIndex], bag[0]
	}

	s.queue = append(s.queue, bag...)
}

// NextBlock implements PieceSupply.
func (s *BagSupply) NextBlock() tetris.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 残りが1個になったら補充（連続防止のため最後のピースを残しておく）
	if len(s.queue) <= 1 {
		s.refill()
	}
	pieceType := s.queue[0]
	s.queue = s.queue[1:]

	block, _ := tetris.NewBlock(pieceType)
	return block
}

// SequenceSupply は与えられたピースを順番に繰り返し返します。テストやデモ用です。
type SequenceSupply struct {
	mu     sync.Mutex
	blocks []tetris.Block
	next   int
}

// NewSequenceSupply は blocks を順番に返す供給元を作ります。blocks が空の場合はエラーです。
func NewSequenceSupply(blocks ...tetris.Block) (*SequenceSupply, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: sequence supply needs at least one block", tetris.ErrInvalidShape)
	}
	for i, b := range blocks {
		if err := b.Shape.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	copied := make([]tetris.Block, len(blocks))
	for i, b := range blocks {
		copied[i] = b.Clone()
	}
	return &SequenceSupply{blocks: copied}, nil
}

// NextBlock implements PieceSupply.
func (s *SequenceSupply) NextBlock() tetris.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.blocks[s.next%len(s.blocks)]
	s.next++
	return b.Clone()
}
