// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageのみがクライアントに返され、CodeとCategoryはログ用。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアントに返すメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeValidation          = "VALIDATION"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodePersistence         = "PERSISTENCE"
)

// NewAuthRequiredError は未認証エラーを生成する。
// 保護された操作にセッションなしでアクセスした場合に返す。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewTermRequiredError は検索語未指定エラーを生成する。
func NewTermRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "term required",
		Category: "validation",
	}
}

// NewUpstreamUnavailableError は上流サービス到達不能エラーを生成する。
// 検索フローではこのエラーは空の結果リストに縮退され、クライアントには返さない。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("upstream unavailable: %s", reason),
		Category: "upstream",
	}
}

// NewPersistenceError は永続化失敗エラーを生成する。
// 接続文字列等の詳細はログのみに残し、クライアントには一般的なメッセージを返す。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "Server error",
		Category: "system",
	}
}
