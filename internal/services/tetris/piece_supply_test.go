package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models/tetris"
)

func drawTypes(s PieceSupply, n int) []tetris.PieceType {
	types := make([]tetris.PieceType, n)
	for i := range types {
		types[i] = s.NextBlock().Type
	}
	return types
}

func TestNewSupply_SameSeedSameSequence(t *testing.T) {
	for _, kind := range []SupplyKind{SupplyRandom, SupplyBag} {
		a, err := NewSupply(kind, 42)
		require.NoError(t, err)
		b, err := NewSupply(kind, 42)
		require.NoError(t, err)
		assert.Equal(t, drawTypes(a, 50), drawTypes(b, 50), string(kind))
	}
}

func TestNewSupply_Unknown(t *testing.T) {
	_, err := NewSupply("tgm", 1)
	assert.Error(t, err)
}

func TestRandomSupply_ReturnsValidCatalogBlocks(t *testing.T) {
	supply, err := NewSupply(SupplyRandom, 7)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		block := supply.NextBlock()
		require.NoError(t, block.Shape.Validate())
		want, ok := tetris.NewBlock(block.Type)
		require.True(t, ok)
		assert.True(t, want.Shape.Equal(block.Shape))
	}
}

func TestBagSupply(t *testing.T) {
	supply, err := NewSupply(SupplyBag, 3)
	require.NoError(t, err)

	types := drawTypes(supply, 7*20)
	// 最初の袋には7種類がちょうど1つずつ入っている
	seen := make(map[tetris.PieceType]int)
	for _, pt := range types[:7] {
		seen[pt]++
	}
	assert.Len(t, seen, 7)

	// 各種類の出現回数の差は袋1つ分を超えない
	counts := make(map[tetris.PieceType]int)
	for _, pt := range types {
		counts[pt]++
	}
	for pt, c := range counts {
		assert.InDelta(t, 20, c, 2, pt.String())
	}
}

func TestSequenceSupply(t *testing.T) {
	supply, err := NewSequenceSupply(dot, domino)
	require.NoError(t, err)

	first := supply.NextBlock()
	assert.True(t, first.Shape.Equal(dot.Shape))
	assert.True(t, supply.NextBlock().Shape.Equal(domino.Shape))
	assert.True(t, supply.NextBlock().Shape.Equal(dot.Shape), "sequence wraps around")

	// 返したブロックを書き換えても供給元には影響しない
	first.Shape[0][0] = false
	assert.True(t, supply.NextBlock().Shape.Equal(domino.Shape))
	assert.True(t, supply.NextBlock().Shape.Equal(dot.Shape))

	_, err = NewSequenceSupply()
	assert.ErrorIs(t, err, tetris.ErrInvalidShape)

	_, err = NewSequenceSupply(tetris.Block{Type: tetris.TypeO, Shape: tetris.Shape{{true}, {true, true}}})
	assert.Error(t, err)
}
