package types

// NotFound は、ウェブサイトまたはメールアドレスが取得できなかった場合に格納される値です。
// 「公開メールが存在しない」と「検索サービスに到達できなかった」は区別しません。
const NotFound = "Not found"

// OrganizationRecord は、1件の団体について収集・補完された結果を保持します。
// 一度組み立てられた後は変更されません。
type OrganizationRecord struct {
	Name    string `json:"name"`    // 検索結果ページに表示された団体名
	Website string `json:"website"` // プロフィールページで見つかった公開サイトのURL、または NotFound
	Email   string `json:"email"`   // 検索サービスが返した最初のメールアドレス、または NotFound
}

// ProfileLink は、検索結果ページから抽出された (表示名, プロフィールURL) の組です。
// DOMの出現順を保持し、重複も除去しません。
type ProfileLink struct {
	Name       string
	ProfileURL string
}

// RunResult は、パイプライン1回分の実行結果です。
type RunResult struct {
	RunID        string               // 実行ごとに採番されるID (ログと応答で共有)
	ScrapedFrom  string               // 取得元の検索ページURL
	SavedAt      string               // 保存先の名前。保存しない場合は空文字列
	Pages        int                  // 走査した検索結果ページ数
	Records      []OrganizationRecord // 発見順の結果
	PersistError error                // 保存に失敗した場合のエラー (実行自体は成功扱い)
}

// ScrapeResponse は、メタデータ付きで結果を返すエンドポイントのJSON形式です。
type ScrapeResponse struct {
	RunID       string               `json:"runId"`
	ScrapedFrom string               `json:"scrapedFrom"`
	SavedAt     string               `json:"savedAt"`
	Data        []OrganizationRecord `json:"data"`
}

// NewScrapeResponse は RunResult から応答用の構造体を生成します。
func NewScrapeResponse(res *RunResult) ScrapeResponse {
	data := res.Records
	if data == nil {
		data = []OrganizationRecord{}
	}
	return ScrapeResponse{
		RunID:       res.RunID,
		ScrapedFrom: res.ScrapedFrom,
		SavedAt:     res.SavedAt,
		Data:        data,
	}
}
