package sink

import (
	"context"
	"fmt"

	"github.com/shouni/go-charity-scraper/pkg/retry"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

// Kind は保存先の種類です。
type Kind string

const (
	KindNone   Kind = "none"
	KindSheets Kind = "sheets"
	KindXLSX   Kind = "xlsx"
)

// Header は、保存先の1行目に置く列名です。OrganizationRecord の JSON キーと一致します。
var Header = []interface{}{"name", "website", "email"}

// Sink は、組み立て済みのレコードを外部に追記する保存先です。
type Sink interface {
	// Name は応答の savedAt に表示する保存先の名前を返します。
	Name() string
	// Persist はレコード1件につき1行を追記します。
	Persist(ctx context.Context, records []types.OrganizationRecord) error
}

// Config は New が保存先を組み立てるための設定です。
type Config struct {
	Kind     Kind
	Sheets   SheetsConfig
	XLSXPath string
	Retry    retry.Config
}

// New は設定に応じた Sink を生成します。Kind が none の場合は nil を返します。
func New(ctx context.Context, cfg Config) (Sink, error) {
	var (
		s   Sink
		err error
	)

	switch cfg.Kind {
	case KindNone, "":
		return nil, nil
	case KindSheets:
		s, err = NewSheetsSink(ctx, cfg.Sheets)
	case KindXLSX:
		s, err = NewXLSXSink(cfg.XLSXPath)
	default:
		return nil, fmt.Errorf("未対応の保存先です: %q (none, sheets, xlsx のいずれかを指定してください)", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(s, cfg.Retry), nil
}

// Rows は、レコードを保存先の行形式 (name, website, email) に変換します。
func Rows(records []types.OrganizationRecord) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.Name, r.Website, r.Email})
	}
	return rows
}

// retryingSink は、Persist を retry.Do でラップした Sink です。
type retryingSink struct {
	inner Sink
	cfg   retry.Config
}

// WithRetry は、Sink の保存処理に指数バックオフのリトライを付与します。
// cfg.MaxRetries が 0 の場合は一度だけ実行します。
func WithRetry(s Sink, cfg retry.Config) Sink {
	if s == nil {
		return nil
	}
	return &retryingSink{inner: s, cfg: cfg}
}

func (r *retryingSink) Name() string { return r.inner.Name() }

func (r *retryingSink) Persist(ctx context.Context, records []types.OrganizationRecord) error {
	return retry.Do(ctx, r.cfg, fmt.Sprintf("%sへの保存", r.inner.Name()), func() error {
		return r.inner.Persist(ctx, records)
	}, retry.AlwaysRetry)
}
