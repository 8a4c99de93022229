package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定です。
type Config struct {
	AppEnv          string
	LogLevel        string
	DatabaseURL     string // 空ならリプレイを保存しない
	PieceSupply     string // "random" または "bag"
	GameSeed        int64  // 0 なら現在時刻から決める
	TickResolution  time.Duration
	SimulationSteps int
}

const (
	defaultTickResolutionMs = 50
	defaultSimulationSteps  = 5000
)

// Load は .env（本番環境以外）と環境変数から設定を読み込みます。
// .env が存在しないことはエラーにしませんが、読めない・書式が壊れている場合はエラーを返します。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// 本番ではプラットフォームの環境変数を使う
		if err := loadEnvFile(".env"); err != nil {
			return nil, err
		}
	}
	return FromEnv(os.Getenv)
}

// loadEnvFile は path の変数を環境変数に読み込みます。既に設定されている変数は上書きしません。
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%s の読み込みに失敗しました: %w", path, err)
}

// FromEnv は getenv から設定を組み立てます。テストでは map を包んだ関数を渡します。
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppEnv:      valueOr(getenv("APP_ENV"), "development"),
		LogLevel:    strings.ToLower(valueOr(getenv("LOG_LEVEL"), "info")),
		DatabaseURL: getenv("DATABASE_URL"),
		PieceSupply: strings.ToLower(valueOr(getenv("PIECE_SUPPLY"), "bag")),
	}

	var errs []error
	if v := getenv("GAME_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GAME_SEED: %w", err))
		}
		cfg.GameSeed = seed
	}

	tickMs := defaultTickResolutionMs
	if v := getenv("TICK_RESOLUTION_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TICK_RESOLUTION_MS: %w", err))
		}
		tickMs = n
	}
	cfg.TickResolution = time.Duration(tickMs) * time.Millisecond

	cfg.SimulationSteps = defaultSimulationSteps
	if v := getenv("SIMULATION_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SIMULATION_STEPS: %w", err))
		}
		cfg.SimulationSteps = n
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の範囲を確認します。
func (c *Config) Validate() error {
	var errs []error
	switch c.PieceSupply {
	case "random", "bag":
	default:
		errs = append(errs, fmt.Errorf("PIECE_SUPPLY must be random or bag, got %q", c.PieceSupply))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.TickResolution <= 0 {
		errs = append(errs, fmt.Errorf("TICK_RESOLUTION_MS must be positive, got %s", c.TickResolution))
	}
	if c.SimulationSteps <= 0 {
		errs = append(errs, fmt.Errorf("SIMULATION_STEPS must be positive, got %d", c.SimulationSteps))
	}
	return errors.Join(errs...)
}

// IsProduction は本番環境かどうかを返します。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ReplayEnabled はリプレイの保存先が設定されているかを返します。
func (c *Config) ReplayEnabled() bool {
	return c.DatabaseURL != ""
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
