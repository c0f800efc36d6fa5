package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

// XLSXSink は、ローカルの Excel ブックの先頭シートに行を追記します。
type XLSXSink struct {
	path string
	mu   sync.Mutex // 同時リクエストによる同一ファイルへの書き込みを直列化する
}

// NewXLSXSink は XLSXSink を生成します。ファイルは最初の保存時に作成されます。
func NewXLSXSink(path string) (*XLSXSink, error) {
	if path == "" {
		return nil, errors.New("sink.NewXLSXSink: 保存先のパスが設定されていません")
	}
	return &XLSXSink{path: path}, nil
}

// Name は保存先の名前を返します。
func (s *XLSXSink) Name() string {
	return fmt.Sprintf("XLSX (%s)", filepath.Base(s.path))
}

// Persist は、ファイルがなければヘッダー付きで作成し、最終行の下にレコードを追記します。
func (s *XLSXSink) Persist(ctx context.Context, records []types.OrganizationRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("既存行の読み込みに失敗しました (%s): %w", s.path, err)
	}

	next := len(rows) + 1
	for i, row := range Rows(records) {
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return fmt.Errorf("セル位置の計算に失敗しました: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("行の書き込みに失敗しました (%s): %w", cell, err)
		}
	}

	if created {
		if err := f.SaveAs(s.path); err != nil {
			return fmt.Errorf("ブックの作成に失敗しました (%s): %w", s.path, err)
		}
		return nil
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("ブックの保存に失敗しました (%s): %w", s.path, err)
	}
	return nil
}

// open は既存のブックを開くか、ヘッダー行だけを持つ新しいブックを作成します。
func (s *XLSXSink) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return nil, false, fmt.Errorf("ブックを開けませんでした (%s): %w", s.path, err)
		}
		return f, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("ブックの確認に失敗しました (%s): %w", s.path, err)
	}

	f := excelize.NewFile()
	header := Header
	if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
	}
	return f, true, nil
}
