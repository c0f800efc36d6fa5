package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel は "debug", "info", "warn", "error" (大文字小文字を区別しない) を slog.Level に変換します。
// それ以外の値は info として扱います。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler は format に応じた slog.Handler を生成します。
// "json" の場合は JSONHandler、それ以外は TextHandler です。
func NewHandler(w io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetupLogger は、設定値に基づいてグローバルな slog のデフォルトロガーを構成します。
// 標準出力は scrape コマンドの JSON 出力に使うため、ログは標準エラー出力に書き込みます。
func SetupLogger(format, level string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, level)))
	slog.Debug("ロガーを初期化しました", "format", format, "level", ParseLevel(level).String())
}
