// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundClientProvider は外部サービス呼び出し用HTTPクライアント生成のインターフェース。
// 画像検索APIとOAuthプロバイダーへのリクエストに使用される。
type OutboundClientProvider interface {
	// NewSafeClient は外部呼び出し用に堅牢化されたHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	// エンドポイントURLは環境変数で差し替え可能なため、誤設定や
	// DNS再バインディングで内部ネットワークに向いた場合でも
	// クレデンシャル付きリクエストが漏れないようDialerレベルで検証する。
	NewSafeClient(timeout time.Duration) *http.Client
}

// allowedSchemes は外部呼び出しで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// outboundGuard はOutboundClientProviderの実装。
type outboundGuard struct{}

// NewOutboundGuard はOutboundClientProviderの新しいインスタンスを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient は外部呼び出し用に堅牢化されたHTTPクライアントを生成する。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// compile-time interface check
var _ OutboundClientProvider = (*outboundGuard)(nil)
