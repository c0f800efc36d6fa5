package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultShutdownTimeout は、シャットダウン時に処理中のリクエストを待つ既定の時間です。
const DefaultShutdownTimeout = 30 * time.Second

// NewHTTPServer は http.Server を生成します。
// スクレイピングは数分かかることがあるため、書き込みタイムアウトは設定しません。
func NewHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// RunWithGracefulShutdown はサーバーを起動し、SIGINT/SIGTERM を受信するか ctx が終了すると
// 処理中のリクエストを待ってから停止します。
func RunWithGracefulShutdown(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("HTTPサーバーを起動します", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTPサーバーのエラー: %w", err)
	case sig := <-sigCh:
		slog.Info("シャットダウンシグナルを受信しました", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("コンテキストが終了したためシャットダウンします")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗しました: %w", err)
	}
	slog.Info("HTTPサーバーを停止しました")
	return nil
}
