package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/services/tetris"
)

const usage = `usage: engine <command> [flags]

commands:
  simulate   ボットに1ゲーム遊ばせる（DATABASE_URL があればリプレイを保存）
  live       イベントループでセッションを実時間で動かす
  replay     保存済みのリプレイを再生して検証する
  dbcheck    データベースへの接続を確認する
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "エラー: 設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "エラー: ロガーの初期化に失敗しました: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "simulate":
		err = runSimulate(ctx, cfg, logger, args)
	case "live":
		err = runLive(ctx, cfg, logger, args)
	case "replay":
		err = runReplay(ctx, cfg, logger, args)
	case "dbcheck":
		err = runDBCheck(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", zap.String("command", cmd), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openJournal は DATABASE_URL が設定されていればリプレイの保存先を返します。
func openJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DatabaseService, *database.ReplayJournal, error) {
	if !cfg.ReplayEnabled() {
		return nil, nil, nil
	}
	db, err := database.NewDatabaseService(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	journal := database.NewReplayJournal(db.DB, database.NewReplayRepository(db.DB), logger)
	return db, journal, nil
}

func seedFrom(cfg *config.Config) int64 {
	if cfg.GameSeed != 0 {
		return cfg.GameSeed
	}
	return time.Now().UnixNano()
}

func runSimulate(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	seed := fs.Int64("seed", seedFrom(cfg), "ピース供給と乱数ボットのシード")
	steps := fs.Int("steps", cfg.SimulationSteps, "最大ステップ数")
	supply := fs.String("supply", cfg.PieceSupply, "ピース供給方式 (random|bag)")
	showBoard := fs.Bool("board", false, "終了時のボードを表示する")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.Named("Simulate")
	replay, state, err := tetris.Simulate(tetris.SimulationConfig{
		Seed:      *seed,
		Supply:    tetris.SupplyKind(*supply),
		Steps:     *steps,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return err
	}
	log.Info("Simulation finished",
		zap.Int64("seed", *seed),
		zap.Int("events", len(replay.Events)),
		zap.Int("score", state.Score),
		zap.Int("lines", state.Lines),
		zap.Int("level", state.Level),
		zap.Bool("game_over", state.GameOver),
	)
	if *showBoard {
		fmt.Println(state.Board().String())
	}

	db, journal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if journal == nil {
		log.Info("DATABASE_URL is not set, skipping replay journal")
		return nil
	}
	defer db.Close()
	if err := journal.SaveReplay(ctx, replay); err != nil {
		return err
	}
	fmt.Println(replay.ID)
	return nil
}

func runLive(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	duration := fs.Duration("duration", 30*time.Second, "セッションを動かす最大時間")
	inputEvery := fs.Duration("input-every", 200*time.Millisecond, "ボットが入力する間隔")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, journal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var recorder tetris.ReplayRecorder
	if journal != nil {
		defer db.Close()
		recorder = journal
	}

	sm := tetris.NewSessionManager(logger, tetris.SupplyKind(cfg.PieceSupply), recorder)
	seed := seedFrom(cfg)
	id, err := sm.CreateSession(seed)
	if err != nil {
		return err
	}
	updates, err := sm.Updates(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *duration)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sm.Run(ctx, cfg.TickResolution)
	}()
	// db.Close より先にイベントループを止める
	defer func() {
		cancel()
		<-done
	}()

	bot := rand.New(rand.NewSource(seed))
	input := time.NewTicker(*inputEvery)
	defer input.Stop()

	var last *tetris.LightweightGameState
	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				// 閉じた時点でリプレイは保存済み
				return printResult(last)
			}
			last = ev.State
		case <-input.C:
			action := tetris.BotActions[bot.Intn(len(tetris.BotActions))]
			if err := sm.Submit(tetris.PlayerInputEvent{SessionID: id, Action: action}); err != nil {
				if errors.Is(err, tetris.ErrManagerStopped) {
					continue
				}
				return err
			}
		case <-ctx.Done():
			// 時間切れでもリプレイは保存する
			if err := sm.EndSession(context.Background(), id); err != nil {
				return err
			}
			snap, err := sm.Snapshot(id)
			if err != nil {
				return err
			}
			return printResult(snap)
		}
	}
}

func printResult(s *tetris.LightweightGameState) error {
	if s == nil {
		return errors.New("no state received")
	}
	fmt.Println(s.Board.String())
	fmt.Printf("score=%d lines=%d level=%d status=%s\n", s.Score, s.Lines, s.Level, s.Status)
	return nil
}

func runReplay(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: engine replay <replay-id>")
	}
	if !cfg.ReplayEnabled() {
		return errors.New("DATABASE_URL 環境変数が設定されていません")
	}

	db, err := database.NewDatabaseService(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewReplayRepository(db.DB)
	replay, err := repo.GetReplayByID(fs.Arg(0))
	if err != nil {
		return err
	}
	if replay == nil {
		return fmt.Errorf("リプレイ %s が見つかりません", fs.Arg(0))
	}

	state, err := tetris.VerifyReplay(replay)
	if err != nil {
		return err
	}
	logger.Named("Replay").Info("Replay verified",
		zap.String("replay_id", replay.ID),
		zap.String("session_id", replay.SessionID),
		zap.Int("events", len(replay.Events)),
		zap.Int("score", state.Score),
	)
	fmt.Println(state.Board().String())

	others, err := repo.ListReplaysBySession(replay.SessionID)
	if err != nil {
		return err
	}
	for _, r := range others {
		fmt.Printf("%s score=%d events=%d %s\n", r.ID, r.FinalScore, r.EventCount, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runDBCheck(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.ReplayEnabled() {
		return errors.New("DATABASE_URL 環境変数が設定されていません")
	}
	db, err := database.NewDatabaseService(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("成功: データベースに正常に接続し、Pingが成功しました！")
	version, err := db.Version(ctx)
	if err != nil {
		logger.Warn("Version query failed", zap.Error(err))
		return nil
	}
	fmt.Printf("データベースバージョン: %s\n", version)
	return nil
}
