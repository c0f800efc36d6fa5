package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-charity-scraper/internal/server"
)

var port string // --port フラグ。空の場合は PORT 環境変数

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "スクレイピングを起動するHTTPサーバーを起動します",
	Long:  `GET /scrape (結果の配列のみ)、GET /api/scrape (保存してメタデータ付きで返却)、GET / (操作画面) を提供します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if port != "" {
			cfg.Server.Port = port
		}

		ctx := cmd.Context()
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}

		srv, err := server.New(p, server.Config{
			ListingPages:     cfg.Pipeline.ListingPages,
			SheetPages:       cfg.Pipeline.SheetPages,
			MaxPages:         cfg.Pipeline.MaxPages,
			CORSAllowOrigins: cfg.Server.CORSAllowOrigins,
		})
		if err != nil {
			return fmt.Errorf("サーバーの初期化エラー: %w", err)
		}

		slog.Info("API running", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port), "sink", p.SinkName())
		httpServer := server.NewHTTPServer(cfg.Server.Port, srv.Handler())
		return server.RunWithGracefulShutdown(ctx, httpServer, server.DefaultShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "待ち受けポート (既定: PORT 環境変数、未設定の場合は 3000)")
}
