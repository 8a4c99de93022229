package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQLドライバー
	"go.uber.org/zap"
)

// replaysSchema はリプレイ記録用のテーブル定義です。
const replaysSchema = `
CREATE TABLE IF NOT EXISTS replays (
	id          UUID PRIMARY KEY,
	session_id  UUID NOT NULL,
	seed        BIGINT NOT NULL,
	supply      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	final_score INTEGER NOT NULL,
	final_lines INTEGER NOT NULL,
	final_level INTEGER NOT NULL,
	events      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS replays_session_id_idx ON replays (session_id);
`

// DatabaseService はデータベース接続を保持します。
type DatabaseService struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewDatabaseService はデータベースに接続し、Pingで疎通を確認した DatabaseService を返します。
//
// Parameters:
//
//	databaseURL : PostgreSQLの接続文字列
//	logger      : ロガー
//
// Returns:
//
//	*DatabaseService: 接続済みのサービス
//	error           : 接続またはPingに失敗した場合
func NewDatabaseService(databaseURL string, logger *zap.Logger) (*DatabaseService, error) {
	logger = logger.Named("DatabaseService")
	logger.Info("データベース接続を試行中", zap.String("url_prefix", databaseURL[:min(len(databaseURL), 50)]))

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	logger.Info("データベースに正常に接続しました")
	return &DatabaseService{DB: db, logger: logger}, nil
}

// NewDatabaseServiceWithDB は既存の *sql.DB から DatabaseService を作ります。テストで sqlmock を渡すために使います。
func NewDatabaseServiceWithDB(db *sql.DB, logger *zap.Logger) *DatabaseService {
	return &DatabaseService{DB: db, logger: logger.Named("DatabaseService")}
}

// EnsureSchema は必要なテーブルがなければ作成します。
func (s *DatabaseService) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, replaysSchema); err != nil {
		return fmt.Errorf("replaysテーブルの作成に失敗しました: %w", err)
	}
	s.logger.Debug("スキーマを確認しました")
	return nil
}

// Version はデータベースのバージョン文字列を返します。疎通確認用です。
func (s *DatabaseService) Version(ctx context.Context) (string, error) {
	var version string
	if err := s.DB.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("SELECT version() クエリの実行に失敗しました: %w", err)
	}
	return version, nil
}

// Close は接続を閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}
