// Package model はドメインモデルを定義する。
package model

import "time"

// SearchRecord は実行された検索1件の永続ログを表す。
// 作成後は不変の追記専用レコードで、更新も削除もされない。
type SearchRecord struct {
	ID        string
	UserID    string
	Term      string
	CreatedAt time.Time
}

// SearchResultItem は画像検索APIのレスポンスを正規化した1件の結果。
// 永続化されず、1回の検索レスポンスの中でのみ存在する。
type SearchResultItem struct {
	ID    string `json:"id"`
	Thumb string `json:"thumb"`
	Full  string `json:"full"`
	Alt   string `json:"alt"`
}

// TopSearch は全ユーザー横断の検索語の集計結果1件を表す。
type TopSearch struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// HistoryEntry はユーザーの検索履歴1件の射影（term, timestamp のみ）。
type HistoryEntry struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchLogOrder は検索ログの書き込みタイミングを表す。
// 原実装は上流API呼び出しの前にログを書き込むため、
// 上流が失敗してもログは残る。この振る舞いは設定で切り替え可能。
type SearchLogOrder string

const (
	// SearchLogBefore は上流API呼び出しの前にログを書き込む（デフォルト）。
	SearchLogBefore SearchLogOrder = "before"
	// SearchLogAfter は上流API呼び出しが成功した後にログを書き込む。
	SearchLogAfter SearchLogOrder = "after"
)
