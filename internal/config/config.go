// Package config は、環境変数と .env ファイルからアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shouni/go-charity-scraper/pkg/browser"
	"github.com/shouni/go-charity-scraper/pkg/lookup"
	"github.com/shouni/go-charity-scraper/pkg/retry"
	"github.com/shouni/go-charity-scraper/pkg/sink"
)

// --- 既定値 ---

const (
	DefaultPort              = "3000"
	DefaultDirectoryBaseURL  = "https://www.charitynavigator.org"
	DefaultPageSize          = 10
	DefaultListingPages      = 3
	DefaultSheetPages        = 1
	DefaultMaxPages          = 10
	DefaultLookupConcurrency = 1
	DefaultLookupTimeout     = 10 * time.Second
	DefaultLogFormat         = "text"
	DefaultLogLevel          = "info"
	DefaultEnvFile           = ".env"
)

// Config はアプリケーション全体の設定です。各コンポーネントには必要な部分だけを渡します。
type Config struct {
	Server    ServerConfig
	Directory DirectoryConfig
	Pipeline  PipelineConfig
	Hunter    HunterConfig
	Sink      SinkConfig
	Sheets    SheetsConfig
	XLSX      XLSXConfig
	Browser   BrowserConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port             string
	CORSAllowOrigins []string
}

// DirectoryConfig は一覧を取得するディレクトリサイトの設定です。
type DirectoryConfig struct {
	BaseURL  string
	PageSize int
}

// PipelineConfig は、2種類のエンドポイントが使用するページ数と問い合わせの並列数です。
type PipelineConfig struct {
	ListingPages      int // GET /scrape の既定ページ数
	SheetPages        int // GET /api/scrape の既定ページ数
	MaxPages          int // pages クエリパラメータの上限
	LookupConcurrency int
}

type HunterConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type SinkConfig struct {
	Kind       sink.Kind
	MaxRetries int
}

type SheetsConfig struct {
	SpreadsheetID       string
	ServiceAccountEmail string
	PrivateKey          string
}

type XLSXConfig struct {
	Path string
}

type BrowserConfig struct {
	ExecPath          string
	Headless          bool
	NoSandbox         bool
	UserAgent         string
	NavigationTimeout time.Duration
}

type LogConfig struct {
	Format string
	Level  string
}

// Load は .env ファイルを読み込んだ後、環境変数から Config を組み立てます。
// envFile が空の場合は DefaultEnvFile を使用します。ファイルが存在しない場合は無視し、
// 既に設定されている環境変数は上書きしません。
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("envファイルの読み込みに失敗しました (%s): %w", envFile, err)
	}

	r := &envReader{}
	cfg := &Config{
		Server: ServerConfig{
			Port:             r.get("PORT", DefaultPort),
			CORSAllowOrigins: r.getList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Directory: DirectoryConfig{
			BaseURL:  r.get("DIRECTORY_BASE_URL", DefaultDirectoryBaseURL),
			PageSize: r.getInt("DIRECTORY_PAGE_SIZE", DefaultPageSize),
		},
		Pipeline: PipelineConfig{
			ListingPages:      r.getInt("LISTING_PAGES", DefaultListingPages),
			SheetPages:        r.getInt("SHEET_PAGES", DefaultSheetPages),
			MaxPages:          r.getInt("MAX_PAGES", DefaultMaxPages),
			LookupConcurrency: r.getInt("LOOKUP_CONCURRENCY", DefaultLookupConcurrency),
		},
		Hunter: HunterConfig{
			APIKey:  r.get("HUNTER_API_KEY", ""),
			BaseURL: r.get("HUNTER_BASE_URL", lookup.DefaultBaseURL),
			Timeout: r.getDuration("LOOKUP_TIMEOUT", DefaultLookupTimeout),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:       r.get("GOOGLE_SHEET_ID", ""),
			ServiceAccountEmail: r.get("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
			// .env や環境変数では改行が "\n" のままになっているため元に戻す
			PrivateKey: strings.ReplaceAll(r.get("GOOGLE_PRIVATE_KEY", ""), `\n`, "\n"),
		},
		XLSX: XLSXConfig{
			Path: r.get("XLSX_PATH", ""),
		},
		Browser: BrowserConfig{
			ExecPath:          r.get("CHROME_PATH", ""),
			Headless:          r.getBool("BROWSER_HEADLESS", true),
			NoSandbox:         r.getBool("BROWSER_NO_SANDBOX", false),
			UserAgent:         r.get("BROWSER_USER_AGENT", ""),
			NavigationTimeout: r.getDuration("NAVIGATION_TIMEOUT", browser.DefaultNavigationTimeout),
		},
		Log: LogConfig{
			Format: r.get("LOG_FORMAT", DefaultLogFormat),
			Level:  r.get("LOG_LEVEL", DefaultLogLevel),
		},
	}

	cfg.Sink = SinkConfig{
		Kind:       defaultSinkKind(r.get("SINK", ""), cfg.Sheets.SpreadsheetID),
		MaxRetries: r.getInt("SINK_MAX_RETRIES", int(retry.DefaultMaxRetries)),
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultSinkKind は SINK が未指定の場合、スプレッドシートIDの有無で保存先を決めます。
func defaultSinkKind(raw, spreadsheetID string) sink.Kind {
	if raw != "" {
		return sink.Kind(strings.ToLower(raw))
	}
	if spreadsheetID != "" {
		return sink.KindSheets
	}
	return sink.KindNone
}

// Validate は設定値を検証し、ディレクトリのURLを正規化します。
func (c *Config) Validate() error {
	var errs []error

	if c.Hunter.APIKey == "" {
		errs = append(errs, errors.New("HUNTER_API_KEY が設定されていません"))
	}
	if c.Hunter.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("LOOKUP_TIMEOUT は正の値である必要があります: %s", c.Hunter.Timeout))
	}

	baseURL, err := ensureScheme(c.Directory.BaseURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("DIRECTORY_BASE_URL: %w", err))
	} else {
		c.Directory.BaseURL = strings.TrimRight(baseURL, "/")
	}

	if c.Directory.PageSize < 1 {
		errs = append(errs, fmt.Errorf("DIRECTORY_PAGE_SIZE は1以上である必要があります: %d", c.Directory.PageSize))
	}
	if c.Pipeline.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES は1以上である必要があります: %d", c.Pipeline.MaxPages))
	}
	for name, pages := range map[string]int{"LISTING_PAGES": c.Pipeline.ListingPages, "SHEET_PAGES": c.Pipeline.SheetPages} {
		if pages < 1 || pages > c.Pipeline.MaxPages {
			errs = append(errs, fmt.Errorf("%s は1以上 MAX_PAGES(%d) 以下である必要があります: %d", name, c.Pipeline.MaxPages, pages))
		}
	}
	if c.Pipeline.LookupConcurrency < 1 {
		errs = append(errs, fmt.Errorf("LOOKUP_CONCURRENCY は1以上である必要があります: %d", c.Pipeline.LookupConcurrency))
	}
	if c.Sink.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("SINK_MAX_RETRIES は0以上である必要があります: %d", c.Sink.MaxRetries))
	}

	switch c.Sink.Kind {
	case sink.KindNone:
	case sink.KindSheets:
		if c.Sheets.SpreadsheetID == "" || c.Sheets.ServiceAccountEmail == "" || c.Sheets.PrivateKey == "" {
			errs = append(errs, errors.New("SINK=sheets には GOOGLE_SHEET_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL, GOOGLE_PRIVATE_KEY が必要です"))
		}
	case sink.KindXLSX:
		if c.XLSX.Path == "" {
			errs = append(errs, errors.New("SINK=xlsx には XLSX_PATH が必要です"))
		}
	default:
		errs = append(errs, fmt.Errorf("SINK の値が不正です: %q", c.Sink.Kind))
	}

	return errors.Join(errs...)
}

// --- コンポーネント向けの変換 ---

// SinkConfig は sink.New に渡す設定を返します。
func (c *Config) SinkConfig() sink.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = uint64(c.Sink.MaxRetries)
	return sink.Config{
		Kind: c.Sink.Kind,
		Sheets: sink.SheetsConfig{
			SpreadsheetID:       c.Sheets.SpreadsheetID,
			ServiceAccountEmail: c.Sheets.ServiceAccountEmail,
			PrivateKey:          c.Sheets.PrivateKey,
		},
		XLSXPath: c.XLSX.Path,
		Retry:    rc,
	}
}

// BrowserOptions は browser.NewLauncher に渡す設定を返します。
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		ExecPath:          c.Browser.ExecPath,
		Headless:          c.Browser.Headless,
		NoSandbox:         c.Browser.NoSandbox,
		UserAgent:         c.Browser.UserAgent,
		NavigationTimeout: c.Browser.NavigationTimeout,
	}
}

// --- 環境変数の読み取り ---

// envReader は環境変数を型変換して読み取り、変換エラーをまとめて保持します。
type envReader struct {
	errs []error
}

func (r *envReader) get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s は整数である必要があります: %q", key, v))
		return def
	}
	return n
}

func (r *envReader) getBool(key string, def bool) bool {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s は真偽値である必要があります: %q", key, v))
		return def
	}
	return b
}

// getDuration は "30s" 形式のほか、単位なしの整数を秒として受け付けます。
func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s は期間である必要があります (例: 30s): %q", key, v))
		return def
	}
	return d
}

func (r *envReader) getList(key string, def []string) []string {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
