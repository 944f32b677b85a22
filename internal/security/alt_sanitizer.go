// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AltSanitizerService は上流APIから受け取った代替テキストの無害化インターフェース。
// 検索結果のalt文字列はそのままクライアントのDOMに挿入されるため、
// 保存せず応答に載せる前にプレーンテキスト化する。
type AltSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// altSanitizer はAltSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type altSanitizer struct {
	policy *bluemonday.Policy
}

// NewAltSanitizer はAltSanitizerServiceの新しいインスタンスを生成する。
func NewAltSanitizer() *altSanitizer {
	return &altSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
// bluemondayはタグ除去後にエンティティエスケープされた文字列を返すため、
// alt属性用にアンエスケープして素のテキストに戻す。
func (s *altSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// compile-time interface check
var _ AltSanitizerService = (*altSanitizer)(nil)
