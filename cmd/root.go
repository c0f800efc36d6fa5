package cmd

import (
	"fmt"
	"log/slog"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-charity-scraper/internal/config"
	"github.com/shouni/go-charity-scraper/internal/telemetry"
)

// --- グローバル定数 ---

const (
	appName           = "charity-scraper"
	defaultTimeoutSec = 10 // 秒
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout 検索APIのタイムアウト
	EnvFile    string // --env-file 読み込む .env ファイル
}

var Flags AppFlags
var appConfig *config.Config

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		defaultTimeoutSec,
		"検索APIへのHTTPリクエストのタイムアウト時間（秒）。指定した場合は LOOKUP_TIMEOUT より優先",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.EnvFile,
		"env-file",
		config.DefaultEnvFile,
		"読み込む .env ファイルのパス（存在しない場合は無視）",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Flags.EnvFile)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Hunter.Timeout = time.Duration(Flags.TimeoutSec) * time.Second
	}

	level := cfg.Log.Level
	if clibase.Flags.Verbose {
		level = "debug"
	}
	telemetry.SetupLogger(cfg.Log.Format, level)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	slog.Debug("設定を読み込みました",
		"lookup_timeout", cfg.Hunter.Timeout,
		"sink", cfg.Sink.Kind,
		"lookup_concurrency", cfg.Pipeline.LookupConcurrency,
	)

	appConfig = cfg
	return nil
}

// --- エントリポイント ---

// Execute は、rootCmd を実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		serveCmd,
		scrapeCmd,
	)
}
