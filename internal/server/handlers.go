package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shouni/go-charity-scraper/internal/pipeline"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListing は保存せずに、結果の配列だけを返します。
func (s *Server) handleListing(c *gin.Context) {
	res, ok := s.run(c, pipeline.RunOptions{Pages: s.cfg.ListingPages})
	if !ok {
		return
	}
	records := res.Records
	if records == nil {
		records = []types.OrganizationRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// handleSheet は結果を保存先に書き込み、取得元と保存先のメタデータ付きで返します。
// 保存に失敗した場合もレスポンスは 200 です。
func (s *Server) handleSheet(c *gin.Context) {
	res, ok := s.run(c, pipeline.RunOptions{Pages: s.cfg.SheetPages, Persist: true})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, types.NewScrapeResponse(res))
}

// run は pages クエリパラメータを反映してパイプラインを実行します。
// 失敗した場合はエラーレスポンスを書き込み、false を返します。
func (s *Server) run(c *gin.Context, opts pipeline.RunOptions) (*types.RunResult, bool) {
	pages, err := s.pagesParam(c, opts.Pages)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, false
	}
	opts.Pages = pages

	res, err := s.runner.Run(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return nil, false
	}
	if res.PersistError != nil {
		slog.Warn("保存に失敗しましたが結果を返します", "run_id", res.RunID, "error", res.PersistError)
	}
	return res, true
}

func (s *Server) pagesParam(c *gin.Context, def int) (int, error) {
	raw, ok := c.GetQuery("pages")
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > s.cfg.MaxPages {
		return 0, fmt.Errorf("pages は 1 から %d までの整数で指定してください: %q", s.cfg.MaxPages, raw)
	}
	return n, nil
}
