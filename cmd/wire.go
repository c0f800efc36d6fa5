package cmd

import (
	"context"
	"fmt"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-charity-scraper/internal/config"
	"github.com/shouni/go-charity-scraper/internal/pipeline"
	"github.com/shouni/go-charity-scraper/internal/telemetry"
	"github.com/shouni/go-charity-scraper/pkg/browser"
	"github.com/shouni/go-charity-scraper/pkg/enrich"
	"github.com/shouni/go-charity-scraper/pkg/extract"
	"github.com/shouni/go-charity-scraper/pkg/lookup"
	"github.com/shouni/go-charity-scraper/pkg/sink"
)

// buildPipeline は設定から依存関係を組み立て、Pipeline を返します。
// ctx は保存先の認証トークン取得に使用されるため、アプリケーションの稼働中は有効である必要があります。
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	// 検索APIは1回だけ問い合わせる
	fetcher := httpkit.New(cfg.Hunter.Timeout, httpkit.WithMaxRetries(0))

	client, err := lookup.NewClient(fetcher, cfg.Hunter.APIKey,
		lookup.WithBaseURL(cfg.Hunter.BaseURL),
		lookup.WithObserver(func(o lookup.Outcome) {
			telemetry.LookupsTotal.WithLabelValues(string(o)).Inc()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("検索クライアントの初期化エラー: %w", err)
	}

	extractor, err := extract.NewExtractor(cfg.Directory.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}

	s, err := sink.New(ctx, cfg.SinkConfig())
	if err != nil {
		return nil, fmt.Errorf("保存先の初期化エラー: %w", err)
	}

	return pipeline.New(
		browser.NewLauncher(cfg.BrowserOptions()),
		extractor,
		enrich.NewParallelEnricher(client, cfg.Pipeline.LookupConcurrency),
		pipeline.Config{
			DirectoryBaseURL: cfg.Directory.BaseURL,
			PageSize:         cfg.Directory.PageSize,
		},
		pipeline.WithSink(s),
	)
}
