package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// DefaultProfileSelector は、検索結果ページ上の団体プロフィールへのリンクを表します。
	DefaultProfileSelector = `a[href^="/ein/"]`
	// anchorSelector は、プロフィールページで公開サイトを探す際の走査対象です。
	anchorSelector = "a[href]"
)

// Extractor は、読み込み済みDOMから団体情報を取り出す読み取り専用のクエリ群です。
type Extractor struct {
	baseURL         *url.URL
	profileSelector string
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithProfileSelector は、プロフィールリンクのCSSセレクターを差し替えます。
func WithProfileSelector(selector string) Option {
	return func(e *Extractor) {
		if selector != "" {
			e.profileSelector = selector
		}
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
// baseURL はプロフィールの相対パスを絶対URLへ解決するために使用します。
func NewExtractor(baseURL string, opts ...Option) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("extract.NewExtractor: ベースURLのパースエラー: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("extract.NewExtractor: ベースURLは絶対URLである必要があります: %q", baseURL)
	}

	e := &Extractor{
		baseURL:         u,
		profileSelector: DefaultProfileSelector,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ProfileLinks は検索結果ページから (表示名, 絶対プロフィールURL) の組をDOM順に抽出します。
// 同じリンクが複数回現れた場合も、そのまま重複して返します。
func (e *Extractor) ProfileLinks(doc *goquery.Document) []types.ProfileLink {
	links := []types.ProfileLink{}
	doc.Find(e.profileSelector).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, types.ProfileLink{
			Name:       displayName(s.Text()),
			ProfileURL: e.baseURL.ResolveReference(ref).String(),
		})
	})
	return links
}

// Website はプロフィールページ上で最初に現れる絶対 http(s) リンクを返します。
// 該当するリンクがない場合は false を返します。
func (e *Extractor) Website(doc *goquery.Document) (string, bool) {
	var website string
	doc.Find(anchorSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !IsAbsoluteHTTP(href) {
			return true
		}
		website = href
		return false
	})
	return website, website != ""
}

// displayName は表示名を正規化し、改行や連続する空白を1つの空白にまとめます。
func displayName(raw string) string {
	return strings.Join(strings.Fields(textUtils.NormalizeText(raw)), " ")
}

// IsAbsoluteHTTP は、文字列がホストを含む http または https のURLであるかを判定します。
func IsAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
