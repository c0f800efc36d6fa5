package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

const (
	sheetsSinkName = "Google Sheets"

	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
)

// SheetsConfig は Google スプレッドシートへの保存設定です。
type SheetsConfig struct {
	SpreadsheetID       string
	ServiceAccountEmail string
	// PrivateKey は PEM 形式の秘密鍵です。環境変数由来の "\n" は設定読み込み時に改行へ戻しておく必要があります。
	PrivateKey string
}

// SheetsSink は、指定されたスプレッドシートの先頭シートに行を追記します。
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsSink は SheetsSink を生成します。
// サービスアカウントの認証情報が設定されていればそれを使用し、extra は後から適用されます。
// ctx はトークン取得に使用されるため、サーバーの稼働中は有効である必要があります。
func NewSheetsSink(ctx context.Context, cfg SheetsConfig, extra ...option.ClientOption) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sink.NewSheetsSink: スプレッドシートIDが設定されていません")
	}

	var opts []option.ClientOption
	switch {
	case cfg.ServiceAccountEmail != "" && cfg.PrivateKey != "":
		conf := &jwt.Config{
			Email:      cfg.ServiceAccountEmail,
			PrivateKey: []byte(cfg.PrivateKey),
			Scopes:     []string{sheets.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		opts = append(opts, option.WithTokenSource(conf.TokenSource(ctx)))
	case len(extra) == 0:
		return nil, errors.New("sink.NewSheetsSink: サービスアカウントのメールアドレスと秘密鍵が必要です")
	}
	opts = append(opts, extra...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Sheetsクライアントの初期化に失敗しました: %w", err)
	}

	return &SheetsSink{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// Name は保存先の名前を返します。
func (s *SheetsSink) Name() string { return sheetsSinkName }

// Persist は、先頭シートの既存データの下にレコードを追記します。
func (s *SheetsSink) Persist(ctx context.Context, records []types.OrganizationRecord) error {
	if len(records) == 0 {
		return nil
	}

	title, err := s.firstSheetTitle(ctx)
	if err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: Rows(records)}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, a1Range(title), vr).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("スプレッドシートへの追記に失敗しました (sheet: %s): %w", title, err)
	}
	return nil
}

// firstSheetTitle は、ドキュメントの先頭シートのタイトルを取得します。
func (s *SheetsSink) firstSheetTitle(ctx context.Context) (string, error) {
	sp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("スプレッドシート情報の取得に失敗しました: %w", err)
	}
	if len(sp.Sheets) == 0 || sp.Sheets[0].Properties == nil {
		return "", errors.New("スプレッドシートにシートが存在しません")
	}
	return sp.Sheets[0].Properties.Title, nil
}

// a1Range はシート名をクォートした追記範囲を返します。
func a1Range(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}
