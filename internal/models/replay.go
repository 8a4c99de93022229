package models

import (
	"time"
)

// Replay はreplaysテーブルのレコードに対応する構造体です。
// 1セッション分の入力の記録で、同じシードと供給方式で再生すると同じ最終状態になります。
type Replay struct {
	ID         string        `json:"id"`         // UUID
	SessionID  string        `json:"session_id"` // UUID
	Seed       int64         `json:"seed"`
	Supply     string        `json:"supply"` // "random" または "bag"
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	FinalScore int           `json:"final_score"`
	FinalLines int           `json:"final_lines"`
	FinalLevel int           `json:"final_level"`
	Events     []ReplayEvent `json:"events"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ReplayEvent はエンジンに適用した1つのアクションです。
type ReplayEvent struct {
	Action   string `json:"action"`
	OffsetMs int64  `json:"offset_ms"` // セッション開始からの経過ミリ秒
}

// ReplaySummary は一覧表示用の構造体です。イベント本体は含みません。
type ReplaySummary struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	FinalScore int       `json:"final_score"`
	EventCount int       `json:"event_count"`
	CreatedAt  time.Time `json:"created_at"`
}
