package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultNavigationTimeout は、1回のナビゲーションに許される既定の時間です。
	DefaultNavigationTimeout = 30 * time.Second

	// readySelector が描画された時点でDOMの解析完了とみなします。
	readySelector = "body"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Page は、1つのブラウザタブを表す抽象です。
// 1回の実行の間は同じタブを順番に再利用します。
type Page interface {
	Navigate(ctx context.Context, url string) error
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// Options は、ヘッドレスブラウザの起動設定です。
type Options struct {
	ExecPath          string        // Chrome/Chromium の実行ファイル。空の場合は自動検出
	Headless          bool          // ヘッドレスで起動するかどうか
	NoSandbox         bool          // コンテナ環境向けに --no-sandbox を付与するかどうか
	UserAgent         string        // 空の場合はブラウザ既定のUser-Agent
	NavigationTimeout time.Duration // 0 以下の場合は DefaultNavigationTimeout
}

// Launcher は、実行ごとに新しいブラウザセッションを起動します。
type Launcher struct {
	opts Options
}

// NewLauncher は Launcher を生成します。
func NewLauncher(opts Options) *Launcher {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Launcher{opts: opts}
}

// allocatorOptions は Options を chromedp の起動オプションに変換します。
func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", l.opts.Headless))
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Open はブラウザを起動し、タブを1つ開いた Page を返します。
// 返された Page は呼び出し元が必ず Close する必要があります。
// ctx がキャンセルされた場合もブラウザは終了します。
func (l *Launcher) Open(ctx context.Context) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// アクションなしで Run を呼び、ブラウザの起動失敗をここで検出する
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("ブラウザの起動に失敗しました: %w", err)
	}

	return &Session{
		ctx:               tabCtx,
		cancelTab:         tabCancel,
		cancelAlloc:       allocCancel,
		navigationTimeout: l.opts.NavigationTimeout,
	}, nil
}

// Session は chromedp のタブ1つを保持する Page の実装です。
type Session struct {
	ctx               context.Context
	cancelTab         context.CancelFunc
	cancelAlloc       context.CancelFunc
	navigationTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// withCaller は、タブのコンテキストに呼び出し元のキャンセルとタイムアウトを重ねます。
func (s *Session) withCaller(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate は URL を開き、DOMContentLoaded の後に body が描画されるまで待機します。
// load イベント (画像や iframe などのサブリソースの読み込み完了) は待ちません。
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := s.withCaller(ctx, s.navigationTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx,
		navigateUntilDOMReady(url),
		chromedp.WaitReady(readySelector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("ページの読み込みに失敗しました (URL: %s): %w", url, err)
	}
	return nil
}

// navigateUntilDOMReady は、ページ遷移を開始して DOMContentLoaded の発火までブロックするアクションです。
// chromedp.Navigate は load イベントまで待機するため使用しません。
func navigateUntilDOMReady(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()

		domReady := make(chan struct{}, 1)
		// 遷移前に登録し、イベントの取りこぼしを防ぐ
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				select {
				case domReady <- struct{}{}:
				default:
				}
			}
		})

		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("ページ遷移に失敗しました: %s", errorText)
		}

		select {
		case <-domReady:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Document は、現在のページのDOMを goquery.Document として返します。
func (s *Session) Document(ctx context.Context) (*goquery.Document, error) {
	runCtx, cancel := s.withCaller(ctx, s.navigationTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("DOMの取得に失敗しました: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

// Close はタブとブラウザプロセスを終了します。複数回呼び出しても安全です。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}

// Extract は、読み込み済みページのDOMに対して読み取り専用のクエリを実行し、結果を返します。
func Extract[T any](ctx context.Context, p Page, fn func(*goquery.Document) T) (T, error) {
	var zero T
	doc, err := p.Document(ctx)
	if err != nil {
		return zero, err
	}
	return fn(doc), nil
}
