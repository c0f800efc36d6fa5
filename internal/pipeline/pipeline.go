// Package pipeline は、検索結果ページの走査からメールアドレスの補完、保存までの1回分の実行をまとめます。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/shouni/go-charity-scraper/internal/telemetry"
	"github.com/shouni/go-charity-scraper/pkg/browser"
	"github.com/shouni/go-charity-scraper/pkg/enrich"
	"github.com/shouni/go-charity-scraper/pkg/sink"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// PageOpener は、実行ごとに1つのブラウザページを開きます。*browser.Launcher が満たします。
type PageOpener interface {
	Open(ctx context.Context) (browser.Page, error)
}

// LinkExtractor は、読み込み済みのDOMから必要な値を取り出します。*extract.Extractor が満たします。
type LinkExtractor interface {
	ProfileLinks(doc *goquery.Document) []types.ProfileLink
	Website(doc *goquery.Document) (string, bool)
}

// ----------------------------------------------------------------------
// 構造体とコンストラクタ
// ----------------------------------------------------------------------

// Config はディレクトリサイトの検索ページに関する設定です。
type Config struct {
	DirectoryBaseURL string
	PageSize         int
}

// Pipeline は実行間で状態を共有しないため、同時に複数の Run を呼び出しても安全です。
type Pipeline struct {
	opener    PageOpener
	extractor LinkExtractor
	enricher  enrich.Enricher
	sink      sink.Sink
	cfg       Config
}

type Option func(*Pipeline)

// WithSink は保存先を設定します。nil の場合は保存しません。
func WithSink(s sink.Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// New は Pipeline を生成します。
func New(opener PageOpener, extractor LinkExtractor, enricher enrich.Enricher, cfg Config, opts ...Option) (*Pipeline, error) {
	if opener == nil || extractor == nil || enricher == nil {
		return nil, errors.New("pipeline.New: opener, extractor, enricher は必須です")
	}
	if cfg.DirectoryBaseURL == "" {
		return nil, errors.New("pipeline.New: DirectoryBaseURL が設定されていません")
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("pipeline.New: PageSize は1以上である必要があります: %d", cfg.PageSize)
	}
	cfg.DirectoryBaseURL = strings.TrimRight(cfg.DirectoryBaseURL, "/")

	p := &Pipeline{
		opener:    opener,
		extractor: extractor,
		enricher:  enricher,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunOptions は1回の実行の設定です。
type RunOptions struct {
	Pages   int  // 走査する検索結果ページ数 (1始まりで Pages まで)
	Persist bool // 設定済みの保存先に結果を書き込むかどうか
}

// DirectoryURL は n ページ目の検索結果URLを返します。
func (p *Pipeline) DirectoryURL(n int) string {
	return fmt.Sprintf("%s/search?q=&page=%d&pageSize=%d", p.cfg.DirectoryBaseURL, n, p.cfg.PageSize)
}

// SinkName は保存先の名前を返します。保存先がない場合は空文字列です。
func (p *Pipeline) SinkName() string {
	if p.sink == nil {
		return ""
	}
	return p.sink.Name()
}

// ----------------------------------------------------------------------
// 実行
// ----------------------------------------------------------------------

// Run はパイプラインを1回実行します。
//
// ページの読み込みやDOMの取得に失敗した場合は実行全体を中断し、エラーを返します。
// ブラウザはどの経路でも必ず解放されます。メールアドレスの検索失敗は NotFound として扱い、
// 保存の失敗は RunResult.PersistError に記録するだけで実行は成功とします。
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	if opts.Pages < 1 {
		return nil, fmt.Errorf("ページ数は1以上である必要があります: %d", opts.Pages)
	}

	runID := uuid.NewString()
	logger := slog.With("run_id", runID)
	start := time.Now()

	logger.Info("スクレイピングを開始します", "pages", opts.Pages, "persist", opts.Persist)

	res, err := p.run(ctx, logger, runID, opts)

	telemetry.RunsTotal.WithLabelValues(telemetry.StatusOf(err)).Inc()
	telemetry.RunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("スクレイピングに失敗しました", "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	logger.Info("スクレイピングが完了しました", "records", len(res.Records), "elapsed", time.Since(start))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, runID string, opts RunOptions) (*types.RunResult, error) {
	links, websites, err := p.crawl(ctx, logger, opts.Pages)
	if err != nil {
		return nil, err
	}

	// ブラウザを解放した後でメールアドレスを検索する
	emails := p.enricher.Enrich(ctx, websites)
	// 中断された場合、未実行の検索は NotFound で埋められているため結果として扱わない
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("メールアドレスの検索中に中断されました: %w", err)
	}

	records := make([]types.OrganizationRecord, 0, len(links))
	for i, link := range links {
		records = append(records, types.OrganizationRecord{
			Name:    link.Name,
			Website: websites[i],
			Email:   emails[i],
		})
	}
	telemetry.OrganizationsTotal.Add(float64(len(records)))

	res := &types.RunResult{
		RunID:       runID,
		ScrapedFrom: p.DirectoryURL(1),
		Pages:       opts.Pages,
		Records:     records,
	}

	if opts.Persist && p.sink != nil {
		res.SavedAt = p.sink.Name()
		res.PersistError = p.persist(ctx, logger, records)
	}

	return res, nil
}

// crawl はブラウザで検索結果ページと各プロフィールページを順に開き、
// 発見順のプロフィールと、それぞれのウェブサイト (見つからない場合は NotFound) を返します。
func (p *Pipeline) crawl(ctx context.Context, logger *slog.Logger, pages int) ([]types.ProfileLink, []string, error) {
	page, err := p.opener.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ブラウザページの取得に失敗しました: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Debug("ブラウザの終了時にエラーが発生しました", "error", cerr)
		}
	}()

	var (
		links    []types.ProfileLink
		websites []string
	)

	for n := 1; n <= pages; n++ {
		listingURL := p.DirectoryURL(n)
		if err := page.Navigate(ctx, listingURL); err != nil {
			return nil, nil, fmt.Errorf("検索結果ページ %d の読み込みに失敗しました: %w", n, err)
		}
		found, err := browser.Extract(ctx, page, p.extractor.ProfileLinks)
		if err != nil {
			return nil, nil, fmt.Errorf("検索結果ページ %d の解析に失敗しました: %w", n, err)
		}
		logger.Debug("検索結果ページを解析しました", "page", n, "url", listingURL, "profiles", len(found))

		for _, link := range found {
			website, err := p.visitProfile(ctx, page, link)
			if err != nil {
				return nil, nil, err
			}
			links = append(links, link)
			websites = append(websites, website)
		}
	}

	return links, websites, nil
}

func (p *Pipeline) visitProfile(ctx context.Context, page browser.Page, link types.ProfileLink) (string, error) {
	if err := page.Navigate(ctx, link.ProfileURL); err != nil {
		return "", fmt.Errorf("プロフィールページの読み込みに失敗しました (%s): %w", link.Name, err)
	}
	website, err := browser.Extract(ctx, page, func(doc *goquery.Document) string {
		if w, ok := p.extractor.Website(doc); ok {
			return w
		}
		return types.NotFound
	})
	if err != nil {
		return "", fmt.Errorf("プロフィールページの解析に失敗しました (%s): %w", link.Name, err)
	}
	return website, nil
}

func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, records []types.OrganizationRecord) error {
	name := p.sink.Name()
	err := p.sink.Persist(ctx, records)
	telemetry.SinkWritesTotal.WithLabelValues(name, telemetry.StatusOf(err)).Inc()
	if err != nil {
		logger.Error("結果の保存に失敗しました", "sink", name, "error", err)
		return err
	}
	logger.Info("結果を保存しました", "sink", name, "rows", len(records))
	return nil
}
