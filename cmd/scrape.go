package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-charity-scraper/internal/pipeline"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

// コマンドラインフラグ変数を定義
var (
	pages   int  // --pages 走査するページ数。0 の場合は設定の既定値
	persist bool // --persist 保存先に書き込むかどうか
	wrap    bool // --wrap メタデータ付きの形式で出力するかどうか
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "スクレイピングを1回実行し、結果をJSONで標準出力に書き出します",
	Long: `検索結果ページを走査して各団体のウェブサイトとメールアドレスを収集し、JSONで出力します。
--persist を指定すると設定済みの保存先に書き込み、--wrap を指定すると scrapedFrom と savedAt を含む形式で出力します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		n := pages
		if n == 0 {
			n = cfg.Pipeline.ListingPages
			if persist {
				n = cfg.Pipeline.SheetPages
			}
		}
		if n < 1 || n > cfg.Pipeline.MaxPages {
			return fmt.Errorf("--pages は 1 から %d までの整数で指定してください: %d", cfg.Pipeline.MaxPages, n)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}

		res, err := p.Run(ctx, pipeline.RunOptions{Pages: n, Persist: persist})
		if err != nil {
			return err
		}
		if res.PersistError != nil {
			slog.Warn("保存に失敗しました", "sink", res.SavedAt, "error", res.PersistError)
		}

		return writeResult(cmd.OutOrStdout(), res, wrap)
	},
}

// writeResult は結果をインデント付きJSONで書き出します。
func writeResult(w io.Writer, res *types.RunResult, wrapped bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	var v any
	if wrapped {
		v = types.NewScrapeResponse(res)
	} else {
		records := res.Records
		if records == nil {
			records = []types.OrganizationRecord{}
		}
		v = records
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("結果の出力に失敗しました: %w", err)
	}
	return nil
}

func init() {
	scrapeCmd.Flags().IntVarP(&pages, "pages", "n", 0,
		"走査する検索結果ページ数 (既定: LISTING_PAGES、--persist 指定時は SHEET_PAGES)")
	scrapeCmd.Flags().BoolVar(&persist, "persist", false, "設定済みの保存先 (SINK) に結果を書き込む")
	scrapeCmd.Flags().BoolVar(&wrap, "wrap", false, "scrapedFrom と savedAt を含む形式で出力する")
}
