package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

const (
	// DefaultMaxConcurrency は、同時に実行する検索の既定数です。1 の場合は逐次実行になります。
	DefaultMaxConcurrency = 1
)

// Lookuper は、ウェブサイトからメールアドレスを検索する機能のインターフェースです。
// 失敗時は types.NotFound を返し、エラーは返しません。
type Lookuper interface {
	Lookup(ctx context.Context, website string) string
}

// Enricher は、ウェブサイトの一覧をメールアドレスの一覧へ補完するインターフェースです。
type Enricher interface {
	Enrich(ctx context.Context, websites []string) []string
}

// ParallelEnricher は Enricher インターフェースを実装する並列処理構造体です。
type ParallelEnricher struct {
	lookuper       Lookuper
	maxConcurrency int           // 最大並列数
	rateLimit      time.Duration // 検索の開始間隔。0 の場合は制限なし
}

// Option は ParallelEnricher の設定を行うための関数型です。
type Option func(*ParallelEnricher)

// WithRateLimit は、各検索の開始間隔を設定します。
func WithRateLimit(interval time.Duration) Option {
	return func(e *ParallelEnricher) {
		e.rateLimit = interval
	}
}

// NewParallelEnricher は ParallelEnricher を初期化します。
// 依存性として Lookuper と、最大同時実行数を受け取ります。
func NewParallelEnricher(lookuper Lookuper, maxConcurrency int, opts ...Option) *ParallelEnricher {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	e := &ParallelEnricher{
		lookuper:       lookuper,
		maxConcurrency: maxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich は各ウェブサイトに対して1回ずつ検索を行い、入力と同じ順序で結果を返します。
// ウェブサイトが NotFound の要素は検索せずに NotFound とします。
// コンテキストが終了した後に開始予定だった検索も NotFound になります。
func (e *ParallelEnricher) Enrich(ctx context.Context, websites []string) []string {
	results := make([]string, len(websites))

	var wg sync.WaitGroup

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, e.maxConcurrency)

	var rateLimiter <-chan time.Time
	if e.rateLimit > 0 {
		ticker := time.NewTicker(e.rateLimit)
		defer ticker.Stop()
		rateLimiter = ticker.C
	}

	for i, website := range websites {
		if website == "" || website == types.NotFound {
			results[i] = types.NotFound
			continue
		}

		// スロットの確保。maxConcurrency件実行中の場合はここでブロックして待機。
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			results[i] = types.NotFound
			continue
		}

		wg.Add(1)
		go func(idx int, site string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if rateLimiter != nil {
				select {
				case <-rateLimiter:
				case <-ctx.Done():
					results[idx] = types.NotFound
					return
				}
			}

			// 各ゴルーチンは自分の添字にのみ書き込むため、順序は入力と一致する
			results[idx] = e.lookuper.Lookup(ctx, site)
		}(i, website)
	}

	wg.Wait()
	return results
}
