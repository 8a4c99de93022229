package tetris

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models/tetris"
)

const (
	StatusPlaying  = "playing"
	StatusPaused   = "paused"
	StatusFinished = "finished"

	// セッション単位の操作。エンジンには渡さない
	ActionPause  = "pause"
	ActionResume = "resume"

	DefaultTickResolution = 50 * time.Millisecond

	// FinishedSessionRetention は終了したセッションを参照できるように残しておく時間です。
	// 過ぎたセッションは advance で削除されます。
	FinishedSessionRetention = 5 * time.Minute

	inputBufferSize   = 512 // プレイヤー操作のキューイング用
	updatesBufferSize = 64
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrManagerStopped  = errors.New("session manager stopped")
)

// ReplayRecorder は終了したセッションのリプレイを保存します。
type ReplayRecorder interface {
	SaveReplay(ctx context.Context, replay *models.Replay) error
}

// PlayerInputEvent はプレイヤーからの操作入力イベントです。
type PlayerInputEvent struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"` // "move_left", "rotate", "hard_drop", "pause" など
}

// GameStateEvent はゲーム状態の更新を通知するイベントです。
type GameStateEvent struct {
	SessionID string                `json:"session_id"`
	State     *LightweightGameState `json:"state"`
}

// LightweightGameState は購読者向けの軽量なゲーム状態です。
// 固定済みピースの一覧ではなく、投影したボードを含みます。
type LightweightGameState struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Board        tetris.Board `json:"board"`
	CurrentBlock tetris.Piece `json:"current_block"`
	NextBlock    tetris.Block `json:"next_block"`
	Score        int          `json:"score"`
	Lines        int          `json:"lines"`
	Level        int          `json:"level"`
	Combo        int          `json:"combo"`
	GameOver     bool         `json:"game_over"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      time.Time    `json:"ended_at,omitempty"`
}

// GameSession は1人分のゲームセッションです。
// フィールドは SessionManager のロックの内側でのみ読み書きされます。
type GameSession struct {
	ID        string
	Seed      int64
	Supply    SupplyKind
	Status    string // "playing", "paused", "finished"
	State     GameState
	StartedAt time.Time
	EndedAt   time.Time
	Events    []models.ReplayEvent

	updates   chan GameStateEvent
	closed    bool // true の後は updates に送らない
	engine    *Engine
	eventTime time.Time // エンジンの時計が返す時刻
	lastFall  time.Time
}

func (s *GameSession) snapshot() *LightweightGameState {
	return &LightweightGameState{
		ID:           s.ID,
		Status:       s.Status,
		Board:        s.State.Board(),
		CurrentBlock: s.State.CurrentBlock,
		NextBlock:    s.State.NextBlock,
		Score:        s.State.Score,
		Lines:        s.State.Lines,
		Level:        s.State.Level,
		Combo:        s.State.Combo,
		GameOver:     s.State.GameOver,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
}

func (s *GameSession) replayRecord() *models.Replay {
	events := make([]models.ReplayEvent, len(s.Events))
	copy(events, s.Events)
	return &models.Replay{
		SessionID:  s.ID,
		Seed:       s.Seed,
		Supply:     string(s.Supply),
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		FinalScore: s.State.Score,
		FinalLines: s.State.Lines,
		FinalLevel: s.State.Level,
		Events:     events,
	}
}

// SessionManager はゲームセッションの全体を管理し、入力と自動落下を1つのイベントループで処理します。
type SessionManager struct {
	sessions    map[string]*GameSession // sessionID -> GameSession
	inputEvents chan PlayerInputEvent
	quit        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex // sessions とその中身を保護
	supply      SupplyKind
	recorder    ReplayRecorder // nil ならリプレイを保存しない
	retention   time.Duration
	logger      *zap.Logger
}

// endedSession は終了処理の途中のセッションです。リプレイを保存してから updates を閉じます。
type endedSession struct {
	session *GameSession
	replay  *models.Replay
}

// NewSessionManager は新しい SessionManager を作成します。イベントループは Run で開始します。
//
// Parameters:
//
//	logger   : ロガー
//	supply   : 新しいセッションで使うピース供給方式
//	recorder : リプレイの保存先。nil の場合は保存しない
func NewSessionManager(logger *zap.Logger, supply SupplyKind, recorder ReplayRecorder) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*GameSession),
		inputEvents: make(chan PlayerInputEvent, inputBufferSize),
		quit:        make(chan struct{}),
		supply:      supply,
		recorder:    recorder,
		retention:   FinishedSessionRetention,
		logger:      logger.Named("SessionManager"),
	}
}

// CreateSession は新しいセッションを作成してIDを返します。seed が0の場合は現在時刻から決めます。
func (sm *SessionManager) CreateSession(seed int64) (string, error) {
	return sm.createSession(seed, time.Now())
}

func (sm *SessionManager) createSession(seed int64, now time.Time) (string, error) {
	if seed == 0 {
		seed = now.UnixNano()
	}
	supply, err := NewSupply(sm.supply, seed)
	if err != nil {
		return "", err
	}

	session := &GameSession{
		ID:        uuid.NewString(),
		Seed:      seed,
		Supply:    sm.supply,
		Status:    StatusPlaying,
		StartedAt: now,
		Events:    []models.ReplayEvent{},
		updates:   make(chan GameStateEvent, updatesBufferSize),
		eventTime: now,
		lastFall:  now,
	}
	session.engine = NewEngine(supply, func() time.Time { return session.eventTime })
	session.State = session.engine.NewGame()

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.publish(session)
	sm.mu.Unlock()

	sm.logger.Info("Game session created",
		zap.String("session_id", session.ID),
		zap.Int64("seed", seed),
		zap.String("supply", string(sm.supply)),
	)
	return session.ID, nil
}

// Submit はプレイヤー入力をイベントループのキューに追加します。
func (sm *SessionManager) Submit(event PlayerInputEvent) error {
	select {
	case <-sm.quit:
		return ErrManagerStopped
	default:
	}
	select {
	case sm.inputEvents <- event:
		return nil
	case <-sm.quit:
		return ErrManagerStopped
	}
}

// Updates はセッションの状態更新を受け取るチャネルを返します。
// 購読側が追いつかない場合、更新は捨てられます。
// セッションが終了するとリプレイの保存を終えてからチャネルが閉じられます。
func (sm *SessionManager) Updates(sessionID string) (<-chan GameStateEvent, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.updates, nil
}

// Snapshot はセッションの現在の状態を返します。
func (sm *SessionManager) Snapshot(sessionID string) (*LightweightGameState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// ReplayOf はセッションのここまでの記録をリプレイとして返します。
func (sm *SessionManager) ReplayOf(sessionID string) (*models.Replay, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.replayRecord(), nil
}

// Run はイベントループです。ctx がキャンセルされるか Stop が呼ばれるまで、
// 入力を到着順に適用し、tick ごとに自動落下の時刻に達したセッションを1段落とします。
func (sm *SessionManager) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTickResolution
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sm.logger.Info("Event loop started", zap.Duration("tick", tick))
	for {
		select {
		case <-ctx.Done():
			sm.Stop()
			return
		case <-sm.quit:
			return
		case event := <-sm.inputEvents:
			sm.handleInput(ctx, event, time.Now())
		case now := <-ticker.C:
			sm.advance(ctx, now)
		}
	}
}

// Stop はイベントループを停止します。複数回呼んでも安全です。
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.quit)
		sm.logger.Info("Event loop stopped")
	})
}

// EndSession はセッションを強制的に終了し、リプレイを保存します。
// セッションは保持期間が過ぎるまで Snapshot などで参照できます。
func (sm *SessionManager) EndSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.Status == StatusFinished {
		sm.mu.Unlock()
		sm.logger.Debug("EndSession called for already finished session", zap.String("session_id", sessionID))
		return nil
	}
	ended := sm.finish(session, time.Now())
	sm.mu.Unlock()

	sm.complete(ctx, ended)
	return nil
}

// RemoveSession はセッションを削除します。終了していなければ先に終了させてリプレイを保存します。
func (sm *SessionManager) RemoveSession(ctx context.Context, sessionID string) error {
	if err := sm.EndSession(ctx, sessionID); err != nil {
		return err
	}
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	sm.logger.Info("Game session removed", zap.String("session_id", sessionID))
	return nil
}

// handleInput は1つの入力イベントを処理します。
func (sm *SessionManager) handleInput(ctx context.Context, event PlayerInputEvent, now time.Time) {
	sm.mu.Lock()
	session, ok := sm.sessions[event.SessionID]
	if !ok {
		sm.mu.Unlock()
		sm.logger.Warn("Received input for non-existent session", zap.String("session_id", event.SessionID))
		return
	}

	log := sm.logger.With(zap.String("session_id", session.ID), zap.String("action", event.Action))
	var ended *endedSession
	switch {
	case session.Status == StatusFinished:
		log.Debug("Ignoring input for finished session")
	case event.Action == ActionPause:
		if session.Status == StatusPlaying {
			session.Status = StatusPaused
			sm.publish(session)
		}
	case event.Action == ActionResume:
		if session.Status == StatusPaused {
			session.Status = StatusPlaying
			// 一時停止していた時間は自動落下に数えない
			session.lastFall = now
			sm.publish(session)
		}
	case event.Action == "restart":
		if sm.apply(session, event.Action, now) {
			session.Status = StatusPlaying
			session.lastFall = now
		}
	case session.Status == StatusPaused:
		log.Debug("Ignoring input while paused")
	default:
		if sm.apply(session, event.Action, now) && session.State.GameOver {
			ended = sm.finish(session, now)
		}
	}
	sm.mu.Unlock()

	if ended != nil {
		sm.complete(ctx, ended)
	}
}

// advance は自動落下の時刻に達したセッションを1段落とします。
// 落下間隔は毎回現在のレベルから求め直します。保持期間を過ぎた終了済みセッションは削除します。
func (sm *SessionManager) advance(ctx context.Context, now time.Time) {
	var ended []*endedSession

	sm.mu.Lock()
	for id, session := range sm.sessions {
		if session.Status == StatusFinished && now.Sub(session.EndedAt) >= sm.retention {
			delete(sm.sessions, id)
			sm.logger.Debug("Evicted finished session", zap.String("session_id", id))
			continue
		}
		if session.Status != StatusPlaying {
			continue
		}
		if now.Sub(session.lastFall) < DropInterval(session.State.Level) {
			continue
		}
		session.lastFall = now
		if sm.apply(session, "tick", now) && session.State.GameOver {
			ended = append(ended, sm.finish(session, now))
		}
	}
	sm.mu.Unlock()

	for _, e := range ended {
		sm.complete(ctx, e)
	}
}

// apply はアクションをエンジンに適用し、記録と通知を行います。呼び出し側がロックを持っている必要があります。
func (sm *SessionManager) apply(session *GameSession, action string, now time.Time) bool {
	offset := now.Sub(session.StartedAt).Milliseconds()
	if offset < 0 {
		offset = 0
	}
	// リプレイと同じ時刻でエンジンを動かすため、ミリ秒に丸める
	session.eventTime = session.StartedAt.Add(time.Duration(offset) * time.Millisecond)

	next, err := session.engine.Apply(session.State, action)
	if err != nil {
		sm.logger.Warn("Rejected input",
			zap.String("session_id", session.ID),
			zap.String("action", action),
			zap.Error(err),
		)
		return false
	}
	session.State = next
	session.Events = append(session.Events, models.ReplayEvent{Action: action, OffsetMs: offset})
	sm.publish(session)
	return true
}

// finish はセッションを終了状態にし、最後の状態を通知します。呼び出し側がロックを持っている必要があります。
// updates はまだ閉じません。ロックを離した後に complete を呼んでください。
func (sm *SessionManager) finish(session *GameSession, now time.Time) *endedSession {
	session.Status = StatusFinished
	session.EndedAt = now
	sm.publish(session)
	session.closed = true

	sm.logger.Info("Game session ended",
		zap.String("session_id", session.ID),
		zap.Int("score", session.State.Score),
		zap.Int("lines", session.State.Lines),
		zap.Int("level", session.State.Level),
		zap.Int("events", len(session.Events)),
	)
	return &endedSession{session: session, replay: session.replayRecord()}
}

// complete はリプレイを保存してから updates を閉じます。
// 購読側はチャネルが閉じた時点で保存が終わっていることを前提にできます。
func (sm *SessionManager) complete(ctx context.Context, ended *endedSession) {
	sm.saveReplay(ctx, ended.replay)
	// closed が立っているので以降 updates に送る者はいない
	close(ended.session.updates)
}

// publish は最新の状態を購読チャネルに送ります。バッファが一杯なら捨てます。
func (sm *SessionManager) publish(session *GameSession) {
	if session.closed {
		return
	}
	event := GameStateEvent{SessionID: session.ID, State: session.snapshot()}
	select {
	case session.updates <- event:
	default:
		sm.logger.Debug("Update channel full, dropping state", zap.String("session_id", session.ID))
	}
}

func (sm *SessionManager) saveReplay(ctx context.Context, replay *models.Replay) {
	if sm.recorder == nil {
		return
	}
	// ループの ctx が終了と同時にキャンセルされても保存は最後まで行う
	if err := sm.recorder.SaveReplay(context.WithoutCancel(ctx), replay); err != nil {
		sm.logger.Error("Failed to save replay", zap.String("session_id", replay.SessionID), zap.Error(err))
	}
}
