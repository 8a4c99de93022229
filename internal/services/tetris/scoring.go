package tetris

import (
	"math"
	"time"
)

const (
	LinesPerLevel      = 10               // レベルアップに必要なライン数
	ComboStep          = 0.5              // コンボ1回ごとの倍率の増分
	QuickClearBonus    = 1.5              // 素早い連続ラインクリアの倍率
	QuickClearWindow   = 10 * time.Second // 素早い連続とみなす間隔
	InitialDropMs      = 1000             // レベル1の自動落下間隔
	DropStepMs         = 100              // レベルごとの短縮幅
	MinDropMs          = 100              // 自動落下間隔の下限
	maxScoredLineCount = 4
)

// basePoints は同時に消したライン数 (1-4) ごとの基本点です。
var basePoints = [maxScoredLineCount]int{40, 100, 300, 1200}

// DropIntervalMs は現在のレベルに基づいた自動落下間隔（ミリ秒）を返します。
// レベルが上がるごとに100msずつ短くなり、100msで下げ止まります。
func DropIntervalMs(level int) int {
	interval := InitialDropMs - (level-1)*DropStepMs
	if interval < MinDropMs {
		interval = MinDropMs
	}
	return interval
}

// DropInterval は DropIntervalMs を time.Duration で返します。
func DropInterval(level int) time.Duration {
	return time.Duration(DropIntervalMs(level)) * time.Millisecond
}

// LevelForLines は累計ライン数からレベルを導出します。
func LevelForLines(lines int) int {
	return lines/LinesPerLevel + 1
}

// CalculateScore はラインクリア数、レベル、コンボ、前回クリアからの経過時間に基づいてスコアを計算します。
//
// Parameters:
//
//	clearedLines : 同時にクリアしたライン数。4を超える場合は4ラインとして扱う
//	level        : 現在のレベル
//	combo        : 今回のクリアを含めた連続クリア数
//	sinceLast    : 前回のラインクリアからの経過時間。前回がない場合は hasLast=false
//	hasLast      : 前回のラインクリアがあるか
//
// Returns:
//
//	int: 加算するスコア
func CalculateScore(clearedLines, level, combo int, sinceLast time.Duration, hasLast bool) int {
	if clearedLines <= 0 {
		return 0
	}
	if clearedLines > maxScoredLineCount {
		clearedLines = maxScoredLineCount
	}

	comboMultiplier := 1.0
	if combo > 1 {
		comboMultiplier = 1 + float64(combo-1)*ComboStep
	}

	timeBonus := 1.0
	if hasLast && sinceLast < QuickClearWindow {
		timeBonus = QuickClearBonus
	}

	return int(math.Floor(float64(basePoints[clearedLines-1]*level) * comboMultiplier * timeBonus))
}
