package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries は既定の最大リトライ回数です。0 の場合は一度だけ実行します。
	DefaultMaxRetries = 0

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig は既定の設定を返します。既定ではリトライを行いません。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// AlwaysRetry は、コンテキスト起因のエラーを除くすべてのエラーをリトライ対象とします。
func AlwaysRetry(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// newBackOffPolicy は Config から指数バックオフのポリシーを組み立てます。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	// 最大リトライ回数とコンテキストを backoff に適用
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	if shouldRetryFn == nil {
		shouldRetryFn = AlwaysRetry
	}

	var lastErr error
	attempts := 0
	permanent := false

	retryableOp := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}

		lastErr = err
		if shouldRetryFn(err) {
			return err
		}
		// backoff.Retry は Permanent を展開して返すため、判定結果はここで記録しておく
		permanent = true
		return backoff.Permanent(err)
	}

	err := backoff.Retry(retryableOp, newBackOffPolicy(ctx, cfg))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, err)
	}

	if permanent {
		return fmt.Errorf("%sに失敗しました (リトライ対象外): %w", operationName, lastErr)
	}

	return fmt.Errorf("%sに失敗しました: %d回試行。最終エラー: %w", operationName, attempts, lastErr)
}
