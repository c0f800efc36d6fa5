// Package server は、スクレイピングを起動するHTTPエンドポイントとHTML操作画面を提供します。
package server

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shouni/go-charity-scraper/internal/pipeline"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

//go:embed static/index.html
var indexHTML []byte

const corsMaxAge = 12 * time.Hour

// Runner はパイプラインの実行を抽象化します。*pipeline.Pipeline が満たします。
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*types.RunResult, error)
}

// Config はエンドポイントごとの既定ページ数などの設定です。
type Config struct {
	ListingPages     int // GET /scrape の既定ページ数
	SheetPages       int // GET /api/scrape の既定ページ数
	MaxPages         int // pages クエリパラメータの上限
	CORSAllowOrigins []string
}

// Server は gin のルーターとハンドラーを保持します。
type Server struct {
	runner Runner
	cfg    Config
	engine *gin.Engine
}

// New は Server を生成し、ルートを登録します。
func New(runner Runner, cfg Config) (*Server, error) {
	if runner == nil {
		return nil, errors.New("server.New: Runner cannot be nil")
	}
	if cfg.MaxPages < 1 || cfg.ListingPages < 1 || cfg.SheetPages < 1 {
		return nil, errors.New("server.New: ページ数の設定は1以上である必要があります")
	}

	s := &Server{runner: runner, cfg: cfg}
	s.engine = s.setupRouter()
	return s, nil
}

// Handler は http.Server に渡すハンドラーを返します。
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(Metrics())
	router.Use(cors.New(s.corsConfig()))

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/scrape", s.handleListing)
	router.GET("/api/scrape", s.handleSheet)

	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        corsMaxAge,
	}
	origins := s.cfg.CORSAllowOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
