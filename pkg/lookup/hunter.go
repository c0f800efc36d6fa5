package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

// DefaultBaseURL は Hunter.io API のベースURLです。
const DefaultBaseURL = "https://api.hunter.io"

const domainSearchPath = "/v2/domain-search"

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、URLのレスポンスボディを取得する機能のインターフェースです。
// *httpkit.Client がこれを満たします。2xx 以外のステータスはエラーとして返す必要があります。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Outcome は1回の検索結果の分類です。メトリクスのラベルに使用します。
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Observer は検索結果の分類を受け取るフックです。
type Observer func(Outcome)

// domainSearchResponse は domain-search のレスポンスのうち必要な部分のみを表します。
type domainSearchResponse struct {
	Data struct {
		Emails []struct {
			Value string `json:"value"`
		} `json:"emails"`
	} `json:"data"`
}

// Client は、ドメイン名から代表メールアドレスを推定する検索サービスのクライアントです。
// キャッシュ、レート制御、リトライは行いません。
type Client struct {
	fetcher  Fetcher
	apiKey   string
	baseURL  string
	observer Observer
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithBaseURL は API のベースURLを差し替えます。
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithObserver は検索ごとに呼び出されるフックを設定します。
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient は新しい Client を生成します。
func NewClient(fetcher Fetcher, apiKey string, opts ...Option) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("lookup.NewClient: Fetcher cannot be nil")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("lookup.NewClient: APIキーが設定されていません")
	}

	c := &Client{
		fetcher: fetcher,
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup はウェブサイトのホストを検索し、最初に見つかったメールアドレスを返します。
// 見つからない場合や、通信・応答の異常はすべて types.NotFound に集約されます。
func (c *Client) Lookup(ctx context.Context, website string) string {
	email, err := c.search(ctx, website)
	switch {
	case err != nil:
		slog.Warn("メールアドレス検索に失敗しました", slog.String("website", website), slog.String("error", err.Error()))
		c.observe(OutcomeError)
		return types.NotFound
	case email == "":
		c.observe(OutcomeNotFound)
		return types.NotFound
	default:
		c.observe(OutcomeFound)
		return email
	}
}

func (c *Client) observe(o Outcome) {
	if c.observer != nil {
		c.observer(o)
	}
}

// search は1回だけリクエストを発行し、最初のメールアドレスを返します。
func (c *Client) search(ctx context.Context, website string) (string, error) {
	host, err := HostOf(website)
	if err != nil {
		return "", err
	}

	body, err := c.fetcher.FetchBytes(ctx, c.requestURL(host))
	if err != nil {
		return "", fmt.Errorf("検索APIへのリクエストに失敗しました (domain: %s): %w", host, redact(err, c.apiKey))
	}

	var resp domainSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("検索APIのレスポンス解析に失敗しました (domain: %s): %w", host, err)
	}

	if len(resp.Data.Emails) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Data.Emails[0].Value), nil
}

func (c *Client) requestURL(host string) string {
	q := url.Values{}
	q.Set("domain", host)
	q.Set("api_key", c.apiKey)
	return c.baseURL + domainSearchPath + "?" + q.Encode()
}

// HostOf は URL またはスキームなしのドメイン名からホスト名を取り出し、ASCII 形式で返します。
func HostOf(website string) (string, error) {
	raw := strings.TrimSpace(website)
	if raw == "" || raw == types.NotFound {
		return "", errors.New("ウェブサイトが指定されていません")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("URLのパースエラー: %w", err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("URLにホストが含まれていません: %s", website)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("ホスト名の変換に失敗しました (%s): %w", host, err)
	}
	return ascii, nil
}

// redactedError はエラーメッセージからAPIキーを取り除いたラッパーです。
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redact はエラーメッセージにAPIキーが含まれる場合に伏せ字にします。
func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}
