package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models"
)

// ReplayRepository はリプレイ関連のデータベース操作を定義するインターフェースです。
type ReplayRepository interface {
	// CreateReplay は新しいリプレイレコードを作成します。ID が空なら採番します
	CreateReplay(tx *sql.Tx, replay *models.Replay) (*models.Replay, error)

	// GetReplayByID はIDでリプレイを取得します。存在しない場合は (nil, nil) を返します
	GetReplayByID(id string) (*models.Replay, error)

	// ListReplaysBySession はセッションに紐づくリプレイを新しい順に取得します
	ListReplaysBySession(sessionID string) ([]models.ReplaySummary, error)
}

// replayRepositoryImpl はReplayRepositoryインターフェースの実装です。
type replayRepositoryImpl struct {
	db *sql.DB
}

// NewReplayRepository はReplayRepositoryの新しいインスタンスを作成します。
func NewReplayRepository(db *sql.DB) ReplayRepository {
	return &replayRepositoryImpl{db: db}
}

const insertReplayQuery = `
	INSERT INTO replays (id, session_id, seed, supply, started_at, ended_at, final_score, final_lines, final_level, events)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at
`

// CreateReplay は新しいリプレイレコードを作成します。
func (r *replayRepositoryImpl) CreateReplay(tx *sql.Tx, replay *models.Replay) (*models.Replay, error) {
	if replay == nil {
		return nil, errors.New("リプレイが nil です")
	}
	created := *replay
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	events := created.Events
	if events == nil {
		events = []models.ReplayEvent{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("リプレイイベントのエンコードに失敗しました: %w", err)
	}

	args := []any{
		created.ID, created.SessionID, created.Seed, created.Supply,
		created.StartedAt, created.EndedAt,
		created.FinalScore, created.FinalLines, created.FinalLevel,
		payload,
	}

	// トランザクションの有無を確認して適切にクエリを実行
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRow(insertReplayQuery, args...)
	} else {
		row = r.db.QueryRow(insertReplayQuery, args...)
	}

	if err := row.Scan(&created.CreatedAt); err != nil {
		return nil, fmt.Errorf("リプレイレコードの作成に失敗しました: %w", err)
	}
	created.Events = events
	return &created, nil
}

// GetReplayByID はIDでリプレイを取得します。
func (r *replayRepositoryImpl) GetReplayByID(id string) (*models.Replay, error) {
	query := `
		SELECT id, session_id, seed, supply, started_at, ended_at,
			final_score, final_lines, final_level, events, created_at
		FROM replays
		WHERE id = $1
	`

	var replay models.Replay
	var payload []byte
	err := r.db.QueryRow(query, id).Scan(
		&replay.ID, &replay.SessionID, &replay.Seed, &replay.Supply,
		&replay.StartedAt, &replay.EndedAt,
		&replay.FinalScore, &replay.FinalLines, &replay.FinalLevel,
		&payload, &replay.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // リプレイが存在しない場合はnilを返す
	}
	if err != nil {
		return nil, fmt.Errorf("リプレイの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(payload, &replay.Events); err != nil {
		return nil, fmt.Errorf("リプレイイベントのデコードに失敗しました: %w", err)
	}
	return &replay, nil
}

// ListReplaysBySession はセッションに紐づくリプレイを新しい順に取得します。
func (r *replayRepositoryImpl) ListReplaysBySession(sessionID string) ([]models.ReplaySummary, error) {
	query := `
		SELECT id, session_id, final_score, jsonb_array_length(events), created_at
		FROM replays
		WHERE session_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("リプレイ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var summaries []models.ReplaySummary
	for rows.Next() {
		var s models.ReplaySummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.FinalScore, &s.EventCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("リプレイデータのスキャンに失敗しました: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("リプレイ一覧の取得中にエラーが発生しました: %w", err)
	}
	return summaries, nil
}

// ReplayJournal はセッション終了時のリプレイをトランザクション内で保存します。
type ReplayJournal struct {
	db     *sql.DB
	repo   ReplayRepository
	logger *zap.Logger
}

// NewReplayJournal は新しい ReplayJournal を返します。
func NewReplayJournal(db *sql.DB, repo ReplayRepository, logger *zap.Logger) *ReplayJournal {
	return &ReplayJournal{db: db, repo: repo, logger: logger.Named("ReplayJournal")}
}

// SaveReplay はリプレイを保存し、採番されたIDを replay に書き戻します。
func (j *ReplayJournal) SaveReplay(ctx context.Context, replay *models.Replay) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	created, err := j.repo.CreateReplay(tx, replay)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	replay.ID = created.ID
	replay.CreatedAt = created.CreatedAt
	j.logger.Info("リプレイを保存しました",
		zap.String("replay_id", created.ID),
		zap.String("session_id", created.SessionID),
		zap.Int("events", len(created.Events)),
		zap.Int("final_score", created.FinalScore),
	)
	return nil
}
